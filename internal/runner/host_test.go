package runner

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/envrunner/internal/config"
	"github.com/mmr-tortoise/envrunner/internal/model"
)

// testLogger returns a logger that swallows all output so test runs stay
// quiet.
func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// testProject builds a minimal project rooted in a temp directory with
// the given environments.
func testProject(t *testing.T, envs map[string]config.EnvSettings) *config.Project {
	t.Helper()
	return &config.Project{
		Dir:  t.TempDir(),
		Envs: envs,
	}
}

// resolveEnv resolves one environment from the project, failing the test
// on error.
func resolveEnv(t *testing.T, project *config.Project, name string) *config.Environment {
	t.Helper()
	env, err := project.Environment(name)
	require.NoError(t, err)
	return env
}

// --- runOnHost tests ---

// TestRunOnHost_Passes verifies a passing environment: every command
// runs, output is captured, and the workspace directory is created.
func TestRunOnHost_Passes(t *testing.T) {
	project := testProject(t, map[string]config.EnvSettings{
		"unit": {Commands: []string{"echo hello", "true"}},
	})
	r := New(project, Options{}, testLogger())
	env := resolveEnv(t, project, "unit")

	result := &model.EnvResult{Name: "unit"}
	r.runOnHost(context.Background(), env, "", env.Settings.Commands, result, r.log.WithField("env", "unit"))

	assert.Equal(t, model.StatusPassed, result.Status)
	require.Len(t, result.Commands, 2)
	assert.Contains(t, result.Commands[0].Output, "hello")
	assert.True(t, result.Commands[0].Succeeded())
	assert.True(t, result.Commands[1].Succeeded())

	// The per-environment workspace exists under the project root.
	assert.DirExists(t, filepath.Join(project.Dir, ".envrunner", "unit"))
}

// TestRunOnHost_FailFast verifies that execution stops at the first
// failing command and the environment is marked failed.
func TestRunOnHost_FailFast(t *testing.T) {
	project := testProject(t, map[string]config.EnvSettings{
		"unit": {Commands: []string{"true", "false", "echo never-reached"}},
	})
	r := New(project, Options{}, testLogger())
	env := resolveEnv(t, project, "unit")

	result := &model.EnvResult{Name: "unit"}
	r.runOnHost(context.Background(), env, "", env.Settings.Commands, result, r.log.WithField("env", "unit"))

	assert.Equal(t, model.StatusFailed, result.Status)
	require.Len(t, result.Commands, 2, "third command should never run")
	assert.Equal(t, 1, result.Commands[1].ExitStatus)
}

// TestRunOnHost_SkipMissing verifies that a missing executable skips the
// environment when skip_missing is enabled and errors it otherwise.
func TestRunOnHost_SkipMissing(t *testing.T) {
	commands := []string{"envrunner-no-such-binary --version"}

	// skip_missing: true → skipped with a reason.
	project := testProject(t, map[string]config.EnvSettings{"unit": {Commands: commands}})
	project.SkipMissing = true
	r := New(project, Options{}, testLogger())
	env := resolveEnv(t, project, "unit")

	result := &model.EnvResult{Name: "unit"}
	r.runOnHost(context.Background(), env, "", commands, result, r.log.WithField("env", "unit"))

	assert.Equal(t, model.StatusSkipped, result.Status)
	assert.Contains(t, result.Reason, "envrunner-no-such-binary")
	assert.Empty(t, result.Commands, "nothing should execute")

	// skip_missing: false → errored.
	project.SkipMissing = false
	result = &model.EnvResult{Name: "unit"}
	r.runOnHost(context.Background(), env, "", commands, result, r.log.WithField("env", "unit"))

	assert.Equal(t, model.StatusError, result.Status)
	assert.Contains(t, result.Reason, "envrunner-no-such-binary")
}

// TestRunOnHost_InstallRunsFirst verifies that the install command runs
// before the environment's own commands and its failure fails the run.
func TestRunOnHost_InstallRunsFirst(t *testing.T) {
	project := testProject(t, map[string]config.EnvSettings{
		"unit": {Commands: []string{"echo tests"}},
	})
	r := New(project, Options{}, testLogger())
	env := resolveEnv(t, project, "unit")

	result := &model.EnvResult{Name: "unit"}
	r.runOnHost(context.Background(), env, "echo installing", env.Settings.Commands, result, r.log.WithField("env", "unit"))

	assert.Equal(t, model.StatusPassed, result.Status)
	require.Len(t, result.Commands, 2)
	assert.Contains(t, result.Commands[0].Output, "installing")
	assert.Contains(t, result.Commands[1].Output, "tests")
}

// --- execHostCommand tests ---

// TestExecHostCommand_ExitStatus verifies that non-zero shell exit
// statuses are reported verbatim.
func TestExecHostCommand_ExitStatus(t *testing.T) {
	project := testProject(t, map[string]config.EnvSettings{"unit": {Commands: []string{"true"}}})
	r := New(project, Options{}, testLogger())

	cmdResult := r.execHostCommand(context.Background(), "exit 7", nil, r.log.WithField("env", "unit"))
	assert.Equal(t, 7, cmdResult.ExitStatus)
	assert.False(t, cmdResult.Succeeded())
}

// TestExecHostCommand_CombinedOutput verifies that stdout and stderr are
// captured together.
func TestExecHostCommand_CombinedOutput(t *testing.T) {
	project := testProject(t, map[string]config.EnvSettings{"unit": {Commands: []string{"true"}}})
	r := New(project, Options{}, testLogger())

	cmdResult := r.execHostCommand(context.Background(), "echo out; echo err 1>&2", nil, r.log.WithField("env", "unit"))
	require.True(t, cmdResult.Succeeded())
	assert.Contains(t, cmdResult.Output, "out")
	assert.Contains(t, cmdResult.Output, "err")
}

// --- hostEnviron tests ---

// TestHostEnviron verifies the filtered environment construction: the
// base set, configured passenv names, setenv values, and the run context
// variables, in sorted order.
func TestHostEnviron(t *testing.T) {
	t.Setenv("ENVRUNNER_TEST_PASSTHROUGH", "from-host")
	t.Setenv("ENVRUNNER_TEST_BLOCKED", "should-not-appear")

	project := testProject(t, map[string]config.EnvSettings{
		"unit": {
			Commands: []string{"true"},
			Passenv:  []string{"ENVRUNNER_TEST_PASSTHROUGH"},
			Setenv:   map[string]string{"APP_MODE": "test"},
		},
	})
	r := New(project, Options{}, testLogger())
	env := resolveEnv(t, project, "unit")

	workspace := filepath.Join(project.Dir, ".envrunner", "unit")
	environ := r.hostEnviron(env, workspace)

	assert.Contains(t, environ, "ENVRUNNER_TEST_PASSTHROUGH=from-host")
	assert.Contains(t, environ, "APP_MODE=test")
	assert.Contains(t, environ, "ENVRUNNER_ENV_NAME=unit")
	assert.Contains(t, environ, "ENVRUNNER_ENV_DIR="+workspace)
	assert.NotContains(t, environ, "ENVRUNNER_TEST_BLOCKED=should-not-appear")

	// The list is sorted for reproducibility.
	assert.IsIncreasing(t, environ)
}

// TestHostEnviron_SetenvWinsOverPassthrough verifies that a setenv value
// overrides a passed-through host variable of the same name.
func TestHostEnviron_SetenvWinsOverPassthrough(t *testing.T) {
	t.Setenv("ENVRUNNER_TEST_CLASH", "host-value")

	project := testProject(t, map[string]config.EnvSettings{
		"unit": {
			Commands: []string{"true"},
			Passenv:  []string{"ENVRUNNER_TEST_CLASH"},
			Setenv:   map[string]string{"ENVRUNNER_TEST_CLASH": "setenv-value"},
		},
	})
	r := New(project, Options{}, testLogger())
	env := resolveEnv(t, project, "unit")

	environ := r.hostEnviron(env, "/ws")
	assert.Contains(t, environ, "ENVRUNNER_TEST_CLASH=setenv-value")
	assert.NotContains(t, environ, "ENVRUNNER_TEST_CLASH=host-value")
}

// --- missingExecutable tests ---

// TestMissingExecutable verifies the pre-flight executable probe: plain
// commands are checked by their first word, compound commands with shell
// metacharacters are left to the shell.
func TestMissingExecutable(t *testing.T) {
	project := testProject(t, map[string]config.EnvSettings{"unit": {Commands: []string{"true"}}})
	r := New(project, Options{}, testLogger())

	// Everything resolvable → empty.
	assert.Empty(t, r.missingExecutable([]string{"echo hi", "true"}, ""))

	// The first unresolvable executable is reported.
	assert.Equal(t, "envrunner-no-such-binary",
		r.missingExecutable([]string{"echo hi", "envrunner-no-such-binary run"}, ""))

	// The install command is probed too.
	assert.Equal(t, "envrunner-no-such-installer",
		r.missingExecutable([]string{"echo hi"}, "envrunner-no-such-installer install -r reqs.txt"))

	// Compound commands are not probed; the shell resolves them at run
	// time.
	assert.Empty(t, r.missingExecutable([]string{"envrunner-no-such-binary && echo"}, ""))
	assert.Empty(t, r.missingExecutable([]string{"FOO=$BAR envrunner-no-such-binary"}, ""))
}

// TestMissingExecutable_InlineAssignments verifies that leading KEY=VALUE
// assignments are skipped: the executable word after them is the one
// probed, never the assignment itself.
func TestMissingExecutable_InlineAssignments(t *testing.T) {
	project := testProject(t, map[string]config.EnvSettings{"unit": {Commands: []string{"true"}}})
	r := New(project, Options{}, testLogger())

	// Assignments before a resolvable executable are fine.
	assert.Empty(t, r.missingExecutable([]string{"FOO=bar echo hi"}, ""))
	assert.Empty(t, r.missingExecutable([]string{"FOO=bar BAZ=qux true"}, ""))

	// The word after the assignments is still probed.
	assert.Equal(t, "envrunner-no-such-binary",
		r.missingExecutable([]string{"FOO=bar envrunner-no-such-binary run"}, ""))

	// A command that is only assignments has nothing to probe.
	assert.Empty(t, r.missingExecutable([]string{"FOO=bar"}, ""))
}

// TestRunOnHost_InlineAssignmentCommand verifies end to end that a
// command with a leading inline assignment executes instead of being
// errored by the pre-flight probe.
func TestRunOnHost_InlineAssignmentCommand(t *testing.T) {
	project := testProject(t, map[string]config.EnvSettings{
		"unit": {Commands: []string{"GREETING=hello echo done"}},
	})
	r := New(project, Options{}, testLogger())
	env := resolveEnv(t, project, "unit")

	result := &model.EnvResult{Name: "unit"}
	r.runOnHost(context.Background(), env, "", env.Settings.Commands, result, r.log.WithField("env", "unit"))

	assert.Equal(t, model.StatusPassed, result.Status)
	require.Len(t, result.Commands, 1)
	assert.Contains(t, result.Commands[0].Output, "done")
}
