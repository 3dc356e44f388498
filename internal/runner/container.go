// container.go implements container-mode environment execution. The
// install step and commands are joined into a single "sh -e" script that
// runs in one fresh container per environment, so installed dependencies
// stay visible to later commands and a failing command aborts the rest.
package runner

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mmr-tortoise/envrunner/internal/config"
	"github.com/mmr-tortoise/envrunner/internal/docker"
	"github.com/mmr-tortoise/envrunner/internal/model"
)

// runInContainer executes the environment inside a Docker container and
// writes the outcome into result.
//
// Unlike host mode, the whole environment maps to a single CommandResult
// carrying the full script: the container boundary makes per-command
// exit tracking impossible without losing state between commands.
func (r *Runner) runInContainer(ctx context.Context, cli *docker.Client, env *config.Environment, installCmd string, commands []string, result *model.EnvResult, log *logrus.Entry) {
	image := r.imageFor(env)

	if err := docker.EnsureImage(ctx, cli, image); err != nil {
		// CLIErrors indicate daemon trouble; anything else means the
		// image itself is unavailable, which skip_missing downgrades to
		// a skip.
		var cliErr *model.CLIError
		if !errors.As(err, &cliErr) && r.project.SkipMissing {
			result.Status = model.StatusSkipped
			result.Reason = err.Error()
			log.WithField("image", image).Warn("skipping environment, image not available")
			return
		}
		result.Status = model.StatusError
		result.Reason = err.Error()
		return
	}

	// The workspace directory is created on the host; the bind mount
	// makes it visible inside the container under the workspace path.
	if _, err := r.envWorkspace(env); err != nil {
		result.Status = model.StatusError
		result.Reason = err.Error()
		return
	}
	containerWorkspace := path.Join(docker.WorkspacePath, workspaceDirName, env.Name)

	script := buildScript(r.containerInstallCommand(env, installCmd), commands)

	runResult, err := docker.RunEnv(ctx, cli, docker.RunSpec{
		EnvName:    env.Name,
		Image:      image,
		ProjectDir: r.project.Dir,
		Script:     script,
		Env:        containerEnviron(env, containerWorkspace),
		Keep:       r.opts.Keep,
	})
	if err != nil {
		result.Status = model.StatusError
		result.Reason = err.Error()
		return
	}

	result.Commands = []model.CommandResult{{
		Command:    script,
		ExitStatus: runResult.ExitStatus,
		Output:     runResult.Output,
	}}

	if runResult.ExitStatus == 0 {
		result.Status = model.StatusPassed
	} else {
		result.Status = model.StatusFailed
	}
}

// containerInstallCommand translates the host install command for
// container execution. The dependency file lives on the host; inside the
// container the project is mounted at the fixed workspace path, so the
// file path is rewritten relative to that mount. Dependency files
// outside the project tree cannot be reached from the container and
// leave the host path untouched (the script then fails with a clear
// file-not-found from the installer).
func (r *Runner) containerInstallCommand(env *config.Environment, installCmd string) string {
	if installCmd == "" || env.Requirements == "" {
		return installCmd
	}

	rel, err := filepath.Rel(r.project.Dir, env.Requirements)
	if err != nil || strings.HasPrefix(rel, "..") {
		return installCmd
	}
	return r.opts.Installer + " " + path.Join(docker.WorkspacePath, filepath.ToSlash(rel))
}

// buildScript joins the install step and commands into one script body.
// The container runs it under "sh -e", so each line is a statement and
// the first failure aborts the script with that command's exit status.
func buildScript(installCmd string, commands []string) string {
	lines := make([]string, 0, len(commands)+1)
	if installCmd != "" {
		lines = append(lines, installCmd)
	}
	lines = append(lines, commands...)
	return strings.Join(lines, "\n")
}

// containerEnviron builds the KEY=VALUE environment list for a container
// run. Containers start from a clean environment: only setenv values,
// explicitly passed-through host variables, and the envrunner context
// variables are present. The workspace path is the container-side
// location of the per-environment workspace.
func containerEnviron(env *config.Environment, workspace string) []string {
	var environ []string

	for _, name := range env.Settings.Passenv {
		if v, ok := os.LookupEnv(name); ok {
			environ = append(environ, name+"="+v)
		}
	}
	for k, v := range env.Settings.Setenv {
		environ = append(environ, k+"="+v)
	}
	environ = append(environ,
		"ENVRUNNER_ENV_NAME="+env.Name,
		"ENVRUNNER_ENV_DIR="+workspace,
	)
	return environ
}
