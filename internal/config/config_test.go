package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/envrunner/internal/model"
)

// projectRoot returns the absolute path to the project root directory.
// It uses runtime.Caller to locate the source file of this test, then
// navigates up from internal/config/ to the project root. This is more
// robust than os.Getwd() because it doesn't depend on which directory
// the test runner is invoked from.
func projectRoot(t *testing.T) string {
	t.Helper()

	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime.Caller failed to return file info")

	return filepath.Join(filepath.Dir(filename), "..", "..")
}

// testdataPath returns the absolute path to a testdata fixture directory.
// Each fixture directory contains a configuration file (and supporting
// files such as a requirements.txt).
func testdataPath(t *testing.T, fixture string) string {
	t.Helper()
	return filepath.Join(projectRoot(t), "tests", "testdata", fixture)
}

// --- Find tests ---

// TestFind_PrefersYAML verifies that when multiple candidate files exist,
// the YAML name wins over the JSONC variants.
func TestFind_PrefersYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "envrunner.yaml"), []byte("envs: {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "envrunner.json"), []byte("{}"), 0o644))

	path, err := Find(dir)
	require.NoError(t, err)
	assert.Equal(t, "envrunner.yaml", filepath.Base(path))
	assert.True(t, filepath.IsAbs(path), "Find should return an absolute path")
}

// TestFind_HiddenVariant verifies that the dotfile variant is found when
// the plain name is absent.
func TestFind_HiddenVariant(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".envrunner.yaml"), []byte("envs: {}\n"), 0o644))

	path, err := Find(dir)
	require.NoError(t, err)
	assert.Equal(t, ".envrunner.yaml", filepath.Base(path))
}

// TestFind_NotFound verifies the CLIError with the config-not-found exit
// code when no candidate file exists.
func TestFind_NotFound(t *testing.T) {
	_, err := Find(t.TempDir())
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr), "error should be a CLIError")
	assert.Equal(t, model.ExitConfigNotFound, cliErr.Code)
}

// --- Load tests ---

// TestLoad_YAMLBasic verifies that a full YAML configuration parses into
// the expected Project structure, including the style section.
func TestLoad_YAMLBasic(t *testing.T) {
	fixtureDir := testdataPath(t, "yaml-basic")

	project, err := Load(filepath.Join(fixtureDir, "envrunner.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "1.0", project.MinVersion)
	assert.Equal(t, []string{"py3", "style"}, project.EnvList)
	assert.Equal(t, "requirements.txt", project.Requirements)
	assert.True(t, project.SkipMissing)

	// Dir is populated from the file location, not the file contents.
	abs, err := filepath.Abs(fixtureDir)
	require.NoError(t, err)
	assert.Equal(t, abs, project.Dir)

	require.Len(t, project.Envs, 3)
	py3 := project.Envs["py3"]
	assert.Equal(t, "Unit tests", py3.Description)
	assert.Equal(t, "python:3.12", py3.Image)
	assert.Equal(t, []string{"pytest -q"}, py3.Commands)

	require.NotNil(t, project.Style)
	assert.Equal(t, []string{"E125", "W503"}, project.Style.Ignore)
	assert.Equal(t, 12, project.Style.MaxComplexity)
	assert.Equal(t, []string{".git", ".envrunner", "build"}, project.Style.Exclude)
}

// TestLoad_JSONCBasic verifies that a JSONC configuration with comments
// and trailing commas parses, using the json field names.
func TestLoad_JSONCBasic(t *testing.T) {
	path := filepath.Join(testdataPath(t, "jsonc-basic"), "envrunner.jsonc")

	project, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"unit"}, project.EnvList)
	assert.False(t, project.SkipMissing)

	unit := project.Envs["unit"]
	assert.Equal(t, "Go unit tests", unit.Description)
	assert.Equal(t, []string{"go test ./..."}, unit.Commands)

	require.NotNil(t, project.Style)
	assert.Equal(t, []string{"E501"}, project.Style.Ignore)
	assert.Equal(t, 10, project.Style.MaxComplexity)
}

// TestLoad_InvalidSyntax verifies that a malformed YAML file produces a
// CLIError with the config-invalid exit code.
func TestLoad_InvalidSyntax(t *testing.T) {
	path := filepath.Join(testdataPath(t, "invalid-syntax"), "envrunner.yaml")

	_, err := Load(path)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitConfigInvalid, cliErr.Code)
}

// TestLoad_MissingFile verifies the not-found exit code for an explicit
// path that doesn't exist (e.g., a wrong --config value).
func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitConfigNotFound, cliErr.Code)
}

// --- Environment / defaults merging tests ---

// TestEnvironment_MergesDefaults verifies that env_defaults are overlaid
// correctly: lists inherit when unset, setenv maps merge with the
// environment winning, and the requirements path resolves to an absolute
// path against the configuration directory.
func TestEnvironment_MergesDefaults(t *testing.T) {
	project, err := Load(filepath.Join(testdataPath(t, "yaml-basic"), "envrunner.yaml"))
	require.NoError(t, err)

	env, err := project.Environment("py3")
	require.NoError(t, err)

	// Passenv is inherited wholesale from env_defaults.
	assert.Equal(t, []string{"CI"}, env.Settings.Passenv)

	// Setenv merges key-by-key: the default PROJECT_MODE survives next to
	// the environment's own entry.
	assert.Equal(t, "test", env.Settings.Setenv["PROJECT_MODE"])
	assert.Equal(t, "1", env.Settings.Setenv["PYTHONDONTWRITEBYTECODE"])

	// The project-level requirements path applies and is absolute.
	assert.Equal(t, filepath.Join(project.Dir, "requirements.txt"), env.Requirements)
	assert.True(t, filepath.IsAbs(env.Requirements))
}

// TestEnvironment_SetenvOverride verifies that a per-environment setenv
// value wins over the same key in env_defaults.
func TestEnvironment_SetenvOverride(t *testing.T) {
	project := &Project{
		EnvDefaults: EnvSettings{Setenv: map[string]string{"MODE": "default", "KEEP": "yes"}},
		Envs: map[string]EnvSettings{
			"py3": {Commands: []string{"true"}, Setenv: map[string]string{"MODE": "override"}},
		},
	}

	env, err := project.Environment("py3")
	require.NoError(t, err)

	assert.Equal(t, "override", env.Settings.Setenv["MODE"])
	assert.Equal(t, "yes", env.Settings.Setenv["KEEP"])
}

// TestEnvironment_NotFound verifies the env-not-found exit code and that
// the error names the defined environments.
func TestEnvironment_NotFound(t *testing.T) {
	project := &Project{Envs: map[string]EnvSettings{"py3": {Commands: []string{"true"}}}}

	_, err := project.Environment("py4")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitEnvNotFound, cliErr.Code)
	assert.Contains(t, cliErr.Message, "py4")
	assert.Contains(t, cliErr.Message, "py3")
}

// --- Resolve tests ---

// TestResolve_DefaultsToEnvList verifies that an empty selection expands
// to the configured envlist in order.
func TestResolve_DefaultsToEnvList(t *testing.T) {
	project := &Project{
		EnvList: []string{"b", "a"},
		Envs: map[string]EnvSettings{
			"a": {Commands: []string{"true"}},
			"b": {Commands: []string{"true"}},
		},
	}

	envs, err := project.Resolve(nil)
	require.NoError(t, err)
	require.Len(t, envs, 2)
	assert.Equal(t, "b", envs[0].Name)
	assert.Equal(t, "a", envs[1].Name)
}

// TestResolve_ExplicitSelection verifies that an explicit selection is
// honored in order with duplicates collapsed to the first occurrence.
func TestResolve_ExplicitSelection(t *testing.T) {
	project := &Project{
		EnvList: []string{"a"},
		Envs: map[string]EnvSettings{
			"a": {Commands: []string{"true"}},
			"b": {Commands: []string{"true"}},
		},
	}

	envs, err := project.Resolve([]string{"b", "a", "b"})
	require.NoError(t, err)
	require.Len(t, envs, 2)
	assert.Equal(t, "b", envs[0].Name)
	assert.Equal(t, "a", envs[1].Name)
}

// TestResolve_UnknownName verifies that selecting an undefined
// environment surfaces the env-not-found error.
func TestResolve_UnknownName(t *testing.T) {
	project := &Project{Envs: map[string]EnvSettings{"a": {Commands: []string{"true"}}}}

	_, err := project.Resolve([]string{"missing"})
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitEnvNotFound, cliErr.Code)
}

// TestResolve_EmptySelection verifies the config-invalid error when both
// the selection and the envlist are empty.
func TestResolve_EmptySelection(t *testing.T) {
	project := &Project{Envs: map[string]EnvSettings{"a": {Commands: []string{"true"}}}}

	_, err := project.Resolve(nil)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitConfigInvalid, cliErr.Code)
}

// --- EnvNames tests ---

// TestEnvNames_Order verifies the listing order: envlist entries first in
// envlist order, then remaining environments lexically.
func TestEnvNames_Order(t *testing.T) {
	project := &Project{
		EnvList: []string{"zeta", "alpha"},
		Envs: map[string]EnvSettings{
			"alpha": {},
			"beta":  {},
			"delta": {},
			"zeta":  {},
		},
	}

	assert.Equal(t, []string{"zeta", "alpha", "beta", "delta"}, project.EnvNames())
}

// TestEnvNames_SkipsUndefinedEnvlistEntries verifies that envlist entries
// without a definition do not appear in the name listing. Validation
// reports them separately.
func TestEnvNames_SkipsUndefinedEnvlistEntries(t *testing.T) {
	project := &Project{
		EnvList: []string{"ghost", "real"},
		Envs:    map[string]EnvSettings{"real": {}},
	}

	assert.Equal(t, []string{"real"}, project.EnvNames())
}

// --- StyleConfig tests ---

// TestStyleConfig_Defaults verifies that a project without a style
// section gets the built-in defaults.
func TestStyleConfig_Defaults(t *testing.T) {
	project := &Project{}

	cfg := project.StyleConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "style", cfg.EnvironmentName())
	assert.Equal(t, "flake8", cfg.CheckerCommand())
}
