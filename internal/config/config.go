// Package config handles loading and resolution of the envrunner project
// configuration file.
//
// The configuration file declares named test environments, the ordered
// default environment list, a dependency-file path, and the style-check
// settings. Two on-disk formats are supported:
//
//   - YAML (envrunner.yaml / .envrunner.yaml / envrunner.yml), parsed
//     with gopkg.in/yaml.v3
//   - JSONC (envrunner.jsonc / envrunner.json), stripped of comments with
//     github.com/tidwall/jsonc before parsing with encoding/json
//
// Key responsibilities:
//   - Locate the configuration file in standard paths
//   - Parse either format into the Project structure
//   - Merge env_defaults into each named environment
//   - Resolve a requested environment selection against the envlist
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/envrunner/internal/model"
	"github.com/mmr-tortoise/envrunner/internal/style"
)

// Version is the tool version used for minversion checks. It is injected
// from the main package at startup so the config layer does not depend on
// the build system.
var Version = "dev"

// Project represents the parsed envrunner configuration file.
//
// Field names carry both yaml and json tags because the same structure is
// populated from YAML and JSONC files.
type Project struct {
	// MinVersion is the minimum envrunner version this configuration
	// requires. Empty means any version is accepted.
	MinVersion string `yaml:"minversion,omitempty" json:"minversion,omitempty"`

	// EnvList is the ordered list of environment names to run when no
	// explicit selection is given. Order is preserved; duplicates collapse
	// to the first occurrence.
	EnvList []string `yaml:"envlist" json:"envlist"`

	// Requirements is the path to the project dependency file, relative
	// to the configuration file's directory. Each environment installs
	// these dependencies before running its commands unless it declares
	// its own requirements path.
	Requirements string `yaml:"requirements,omitempty" json:"requirements,omitempty"`

	// SkipMissing controls what happens when an environment's toolchain
	// or container image is unavailable: true marks the environment as
	// skipped, false fails the run.
	SkipMissing bool `yaml:"skip_missing,omitempty" json:"skipMissing,omitempty"`

	// EnvDefaults holds settings inherited by every environment that does
	// not override them.
	EnvDefaults EnvSettings `yaml:"env_defaults,omitempty" json:"envDefaults,omitempty"`

	// Envs maps environment names to their settings.
	Envs map[string]EnvSettings `yaml:"envs" json:"envs"`

	// Style holds the style-check configuration: rule-code exclusions,
	// the maximum cyclomatic-complexity threshold, and excluded path globs.
	Style *style.Config `yaml:"style,omitempty" json:"style,omitempty"`

	// Dir is the absolute directory containing the configuration file.
	// All relative paths in the configuration resolve against it.
	// Populated by Load, never from the file itself.
	Dir string `yaml:"-" json:"-"`
}

// EnvSettings holds the per-environment configuration values. A zero value
// for any field means "inherit from env_defaults".
type EnvSettings struct {
	// Description is an optional human-readable summary shown by "list".
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Image is the container image used when the environment runs in
	// container mode (e.g., "golang:1.25"). Environments without an image
	// run directly on the host.
	Image string `yaml:"image,omitempty" json:"image,omitempty"`

	// Commands is the list of shell command strings executed in order.
	// The environment fails at the first non-zero exit status.
	Commands []string `yaml:"commands,omitempty" json:"commands,omitempty"`

	// Requirements overrides the project-level dependency-file path for
	// this environment.
	Requirements string `yaml:"requirements,omitempty" json:"requirements,omitempty"`

	// Setenv defines environment variables set for every command.
	Setenv map[string]string `yaml:"setenv,omitempty" json:"setenv,omitempty"`

	// Passenv lists host environment variable names passed through to
	// commands. Commands run with a filtered environment: besides these
	// names, only a small base set (PATH, HOME, locale and temp-dir
	// variables, host mode only), the Setenv values, and the envrunner
	// context variables are present.
	Passenv []string `yaml:"passenv,omitempty" json:"passenv,omitempty"`
}

// Environment is a fully resolved test environment: the result of merging
// EnvDefaults into the environment's own settings. This is the unit of
// work handed to the runner.
type Environment struct {
	// Name is the environment's key in the Envs map.
	Name string

	// Settings are the effective settings after defaults merging.
	Settings EnvSettings

	// Requirements is the effective absolute dependency-file path, or
	// empty when the project declares none.
	Requirements string
}

// candidateNames lists the configuration file names probed by Find,
// in priority order. YAML is the primary format; the JSONC variants
// exist for projects that keep all tooling config in JSON.
var candidateNames = []string{
	"envrunner.yaml",
	".envrunner.yaml",
	"envrunner.yml",
	"envrunner.jsonc",
	"envrunner.json",
}

// Find locates the envrunner configuration file in the given directory.
// It probes the candidate names in priority order and returns the
// absolute path of the first file that exists.
//
// Returns a CLIError with ExitConfigNotFound if no candidate exists.
func Find(dir string) (string, error) {
	for _, name := range candidateNames {
		path := filepath.Join(dir, name)
		// os.Stat checks existence without reading contents.
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return "", fmt.Errorf("failed to resolve config path: %w", err)
			}
			return abs, nil
		}
	}

	return "", model.NewCLIError(
		model.ExitConfigNotFound,
		fmt.Sprintf("no envrunner configuration found in %s (searched %s)", dir, strings.Join(candidateNames, ", ")),
	)
}

// Load reads and parses the configuration file at the given path.
// The format is selected by file extension: .jsonc/.json files are
// stripped of comments and parsed as JSON, everything else is YAML.
//
// Load populates Dir with the configuration file's directory but performs
// no semantic validation; call Validate on the result for that.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitConfigNotFound,
				fmt.Sprintf("configuration file not found: %s", path),
				err,
			)
		}
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	var project Project
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonc", ".json":
		// Strip // and /* */ comments and trailing commas, then parse
		// with the standard library. Unknown fields are silently ignored,
		// matching the YAML path's behavior.
		clean := jsonc.ToJSON(data)
		if err := json.Unmarshal(clean, &project); err != nil {
			return nil, model.WrapCLIError(
				model.ExitConfigInvalid,
				fmt.Sprintf("failed to parse %s", path),
				err,
			)
		}
	default:
		if err := yaml.Unmarshal(data, &project); err != nil {
			return nil, model.WrapCLIError(
				model.ExitConfigInvalid,
				fmt.Sprintf("failed to parse %s", path),
				err,
			)
		}
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configuration directory: %w", err)
	}
	project.Dir = dir

	return &project, nil
}

// Environment resolves a single named environment by merging EnvDefaults
// into the environment's own settings.
//
// Returns a CLIError with ExitEnvNotFound if the name is not defined in
// the Envs map.
func (p *Project) Environment(name string) (*Environment, error) {
	settings, ok := p.Envs[name]
	if !ok {
		return nil, model.NewCLIError(
			model.ExitEnvNotFound,
			fmt.Sprintf("environment %q is not defined in the configuration (defined: %s)", name, strings.Join(p.EnvNames(), ", ")),
		)
	}

	merged := mergeSettings(p.EnvDefaults, settings)

	// Effective requirements path: per-env override wins over the project
	// level. Relative paths resolve against the configuration directory.
	reqPath := merged.Requirements
	if reqPath == "" {
		reqPath = p.Requirements
	}
	if reqPath != "" && !filepath.IsAbs(reqPath) {
		reqPath = filepath.Join(p.Dir, reqPath)
	}

	return &Environment{
		Name:         name,
		Settings:     merged,
		Requirements: reqPath,
	}, nil
}

// Resolve expands an environment selection into resolved environments.
// An empty selection means "the configured envlist". Order follows the
// selection (or envlist); duplicate names collapse to the first occurrence.
func (p *Project) Resolve(selection []string) ([]*Environment, error) {
	names := selection
	if len(names) == 0 {
		names = p.EnvList
	}

	seen := make(map[string]bool, len(names))
	envs := make([]*Environment, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		env, err := p.Environment(name)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}

	if len(envs) == 0 {
		return nil, model.NewCLIError(
			model.ExitConfigInvalid,
			"no environments selected: envlist is empty and no environments were named",
		)
	}

	return envs, nil
}

// EnvNames returns all defined environment names in sorted-stable order:
// envlist entries first (in envlist order), then the remaining defined
// environments in lexical order. This gives deterministic output for
// "list" and for error messages.
func (p *Project) EnvNames() []string {
	names := make([]string, 0, len(p.Envs))
	seen := make(map[string]bool, len(p.Envs))

	for _, name := range p.EnvList {
		if _, defined := p.Envs[name]; defined && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}

	// Remaining environments not in envlist, lexically ordered.
	var rest []string
	for name := range p.Envs {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// StyleConfig returns the style-check configuration, substituting the
// built-in defaults when the file declares no style section.
func (p *Project) StyleConfig() *style.Config {
	if p.Style == nil {
		return style.DefaultConfig()
	}
	return p.Style
}

// mergeSettings overlays env-specific settings on top of the defaults.
// Scalar fields and lists inherit from defaults only when unset in the
// environment; maps merge key-by-key with the environment winning.
func mergeSettings(defaults, env EnvSettings) EnvSettings {
	merged := env

	if merged.Description == "" {
		merged.Description = defaults.Description
	}
	if merged.Image == "" {
		merged.Image = defaults.Image
	}
	if len(merged.Commands) == 0 {
		merged.Commands = defaults.Commands
	}
	if merged.Requirements == "" {
		merged.Requirements = defaults.Requirements
	}
	if len(merged.Passenv) == 0 {
		merged.Passenv = defaults.Passenv
	}

	// Setenv merges: defaults first, per-env entries override.
	if len(defaults.Setenv) > 0 {
		setenv := make(map[string]string, len(defaults.Setenv)+len(env.Setenv))
		for k, v := range defaults.Setenv {
			setenv[k] = v
		}
		for k, v := range env.Setenv {
			setenv[k] = v
		}
		merged.Setenv = setenv
	}

	return merged
}
