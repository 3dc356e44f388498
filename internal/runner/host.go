// host.go implements host-mode environment execution: commands run as
// child processes of the CLI via "sh -c", with a filtered environment
// built from the configuration's setenv/passenv settings.
package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mmr-tortoise/envrunner/internal/config"
	"github.com/mmr-tortoise/envrunner/internal/model"
)

// basePassenv lists host environment variables that are always passed
// through to commands, regardless of the passenv configuration. Without
// PATH nothing would be executable; the rest keep subprocesses sane.
var basePassenv = []string{"PATH", "HOME", "LANG", "LC_ALL", "TMPDIR", "TEMP", "TMP"}

// runOnHost executes the install step and each command directly on the
// host, stopping at the first failure. Results are written into result.
func (r *Runner) runOnHost(ctx context.Context, env *config.Environment, installCmd string, commands []string, result *model.EnvResult, log *logrus.Entry) {
	workspace, err := r.envWorkspace(env)
	if err != nil {
		result.Status = model.StatusError
		result.Reason = err.Error()
		return
	}

	// Missing toolchain check before anything runs: if the first word of
	// a command is not on PATH, the environment is skipped (with
	// skip_missing) or errored instead of producing a confusing shell
	// "command not found" failure.
	if missing := r.missingExecutable(commands, installCmd); missing != "" {
		if r.project.SkipMissing {
			result.Status = model.StatusSkipped
			result.Reason = "executable not found: " + missing
			log.WithField("executable", missing).Warn("skipping environment, executable not found")
			return
		}
		result.Status = model.StatusError
		result.Reason = "executable not found: " + missing
		return
	}

	environ := r.hostEnviron(env, workspace)

	all := commands
	if installCmd != "" {
		all = append([]string{installCmd}, commands...)
	}

	for _, command := range all {
		cmdResult := r.execHostCommand(ctx, command, environ, log)
		result.Commands = append(result.Commands, cmdResult)

		if !cmdResult.Succeeded() {
			result.Status = model.StatusFailed
			return
		}
	}

	result.Status = model.StatusPassed
}

// execHostCommand runs one shell command string and captures its
// combined output, exit status, and duration.
func (r *Runner) execHostCommand(ctx context.Context, command string, environ []string, log *logrus.Entry) model.CommandResult {
	log.WithField("command", command).Debug("executing command")
	start := time.Now()

	// The configuration maps environments to shell command strings, so
	// the shell does the word splitting. Commands execute with the
	// project root as working directory.
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = r.project.Dir
	cmd.Env = environ

	output, err := cmd.CombinedOutput()
	cmdResult := model.CommandResult{
		Command:  command,
		Output:   string(output),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cmdResult.ExitStatus = exitErr.ExitCode()
		} else {
			// The process never ran (e.g., sh missing, context
			// cancelled). Report a conventional failure status and keep
			// the error text as output.
			cmdResult.ExitStatus = 127
			if cmdResult.Output == "" {
				cmdResult.Output = err.Error()
			}
		}
	}

	return cmdResult
}

// hostEnviron builds the environment variable list for host-mode
// commands: the always-passed base set, the configured passenv names,
// the configured setenv values, and the envrunner context variables.
// Setenv wins over passthrough on key collisions.
func (r *Runner) hostEnviron(env *config.Environment, workspace string) []string {
	values := make(map[string]string)

	passNames := append(append([]string(nil), basePassenv...), env.Settings.Passenv...)
	for _, name := range passNames {
		if v, ok := os.LookupEnv(name); ok {
			values[name] = v
		}
	}

	for k, v := range env.Settings.Setenv {
		values[k] = v
	}

	values["ENVRUNNER_ENV_NAME"] = env.Name
	values["ENVRUNNER_ENV_DIR"] = workspace

	// Deterministic ordering keeps the environ stable across runs,
	// which matters for reproducible failures.
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	environ := make([]string, 0, len(keys))
	for _, k := range keys {
		environ = append(environ, k+"="+values[k])
	}
	return environ
}

// missingExecutable returns the first command whose executable cannot be
// found on PATH, or "" when everything resolves. Only the executable word
// of each command string is checked; shell builtins and compound commands
// (containing shell metacharacters) are not probed.
func (r *Runner) missingExecutable(commands []string, installCmd string) string {
	all := commands
	if installCmd != "" {
		all = append([]string{installCmd}, commands...)
	}

	for _, command := range all {
		trimmed := strings.TrimSpace(command)
		if trimmed == "" || strings.ContainsAny(trimmed, "|&;<>$`") {
			continue
		}
		fields := strings.Fields(trimmed)
		// Leading KEY=VALUE words are inline variable assignments the
		// shell consumes before resolving the executable; the word to
		// probe is the first non-assignment one.
		for len(fields) > 0 && strings.Contains(fields[0], "=") {
			fields = fields[1:]
		}
		if len(fields) == 0 {
			continue
		}
		if _, err := exec.LookPath(fields[0]); err != nil {
			return fields[0]
		}
	}
	return ""
}
