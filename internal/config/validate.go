// validate.go provides semantic validation of the parsed project
// configuration. Parsing catches syntax problems; this file catches
// everything else a broken configuration can express: envlist entries
// that reference undefined environments, environments with no commands,
// malformed rule codes, bad glob patterns, and minversion mismatches.
//
// Validation collects every problem rather than stopping at the first,
// so the "validate" command can report the full picture in one pass.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mmr-tortoise/envrunner/internal/model"
)

// ValidationError represents a specific validation failure in the
// project configuration.
type ValidationError struct {
	// Field is the configuration field path that failed validation
	// (e.g., "envs.py3.commands", "style.ignore").
	Field string

	// Message describes what is wrong with the field value.
	Message string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation error: %s: %s", e.Field, e.Message)
}

// Validate performs semantic checks on a parsed project configuration
// and returns all problems found (empty slice = valid configuration).
//
// Checks performed:
//   - minversion: must be satisfied by the running tool version
//   - envlist: every entry must reference a defined environment
//   - envs: at least one environment must be defined; names must be valid
//   - commands: every environment must have at least one command after
//     defaults merging (the style environment may synthesize its command)
//   - requirements: the declared dependency file must exist
//   - style: rule codes, complexity threshold, and exclude globs
func (p *Project) Validate() []ValidationError {
	var errs []ValidationError

	errs = append(errs, p.validateMinVersion()...)
	errs = append(errs, p.validateEnvs()...)
	errs = append(errs, p.validateRequirements()...)
	errs = append(errs, p.validateStyle()...)

	return errs
}

// ValidateStrict runs Validate and converts a non-empty result into a
// single CLIError with ExitConfigInvalid. Commands that need a usable
// configuration (run, lint) call this; the validate command itself uses
// Validate directly to report every finding.
func (p *Project) ValidateStrict() error {
	errs := p.Validate()
	if len(errs) == 0 {
		return nil
	}

	messages := make([]string, len(errs))
	for i, e := range errs {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return model.NewCLIError(
		model.ExitConfigInvalid,
		fmt.Sprintf("configuration is invalid:\n  %s", strings.Join(messages, "\n  ")),
	)
}

// validateMinVersion checks the minversion constraint against the running
// tool version. Development builds ("dev") accept any constraint.
func (p *Project) validateMinVersion() []ValidationError {
	if p.MinVersion == "" || Version == "dev" {
		return nil
	}

	ok, err := versionAtLeast(Version, p.MinVersion)
	if err != nil {
		return []ValidationError{{
			Field:   "minversion",
			Message: fmt.Sprintf("cannot parse version constraint %q: %v", p.MinVersion, err),
		}}
	}
	if !ok {
		return []ValidationError{{
			Field:   "minversion",
			Message: fmt.Sprintf("configuration requires envrunner >= %s, running %s", p.MinVersion, Version),
		}}
	}
	return nil
}

// validateEnvs checks the environment definitions and the envlist.
func (p *Project) validateEnvs() []ValidationError {
	var errs []ValidationError

	if len(p.Envs) == 0 {
		errs = append(errs, ValidationError{
			Field:   "envs",
			Message: "at least one environment must be defined",
		})
		return errs
	}

	styleEnv := p.StyleConfig().EnvironmentName()

	for _, name := range p.EnvNames() {
		if err := model.ValidateEnvName(name); err != nil {
			errs = append(errs, ValidationError{
				Field:   "envs." + name,
				Message: err.Error(),
			})
			continue
		}

		env, err := p.Environment(name)
		if err != nil {
			// Cannot happen for names from EnvNames, but keep the guard.
			errs = append(errs, ValidationError{
				Field:   "envs." + name,
				Message: err.Error(),
			})
			continue
		}

		// The style environment may run without explicit commands: the
		// runner synthesizes the checker invocation from the style
		// section. Every other environment needs at least one command.
		if len(env.Settings.Commands) == 0 && name != styleEnv {
			errs = append(errs, ValidationError{
				Field:   "envs." + name + ".commands",
				Message: "environment has no commands (and inherits none from env_defaults)",
			})
		}

		for i, command := range env.Settings.Commands {
			if strings.TrimSpace(command) == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("envs.%s.commands[%d]", name, i),
					Message: "command must not be blank",
				})
			}
		}
	}

	for _, name := range p.EnvList {
		if _, defined := p.Envs[name]; !defined {
			errs = append(errs, ValidationError{
				Field:   "envlist",
				Message: fmt.Sprintf("references undefined environment %q", name),
			})
		}
	}

	return errs
}

// validateRequirements checks that declared dependency-file paths exist.
// Only the project-level path and per-env overrides are checked here;
// nested -r includes are resolved when the file is parsed.
func (p *Project) validateRequirements() []ValidationError {
	var errs []ValidationError

	if p.Requirements != "" {
		if _, err := os.Stat(p.resolvePath(p.Requirements)); os.IsNotExist(err) {
			errs = append(errs, ValidationError{
				Field:   "requirements",
				Message: fmt.Sprintf("dependency file not found: %s", p.Requirements),
			})
		}
	}

	for name, settings := range p.Envs {
		if settings.Requirements == "" {
			continue
		}
		if _, err := os.Stat(p.resolvePath(settings.Requirements)); os.IsNotExist(err) {
			errs = append(errs, ValidationError{
				Field:   "envs." + name + ".requirements",
				Message: fmt.Sprintf("dependency file not found: %s", settings.Requirements),
			})
		}
	}

	return errs
}

// validateStyle checks the style section via the style package and maps
// its findings onto configuration field paths.
func (p *Project) validateStyle() []ValidationError {
	if p.Style == nil {
		return nil
	}

	var errs []ValidationError
	for _, err := range p.Style.Validate() {
		errs = append(errs, ValidationError{
			Field:   "style",
			Message: err.Error(),
		})
	}

	if name := p.Style.EnvironmentName(); name != "" {
		if err := model.ValidateEnvName(name); err != nil {
			errs = append(errs, ValidationError{
				Field:   "style.environment",
				Message: err.Error(),
			})
		}
	}

	return errs
}

// resolvePath resolves a possibly relative path against the configuration
// directory.
func (p *Project) resolvePath(path string) string {
	if path == "" || p.Dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Dir, path)
}

// versionAtLeast reports whether version "have" is greater than or equal
// to version "want". Versions are dotted integer sequences ("1.4.2");
// a missing component counts as zero.
func versionAtLeast(have, want string) (bool, error) {
	haveParts, err := parseVersion(have)
	if err != nil {
		return false, err
	}
	wantParts, err := parseVersion(want)
	if err != nil {
		return false, err
	}

	n := len(haveParts)
	if len(wantParts) > n {
		n = len(wantParts)
	}
	for i := 0; i < n; i++ {
		h, w := 0, 0
		if i < len(haveParts) {
			h = haveParts[i]
		}
		if i < len(wantParts) {
			w = wantParts[i]
		}
		if h != w {
			return h > w, nil
		}
	}
	return true, nil
}

// parseVersion splits a dotted version string into integer components.
// A leading "v" is tolerated.
func parseVersion(version string) ([]int, error) {
	version = strings.TrimPrefix(version, "v")
	parts := strings.Split(version, ".")
	nums := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid version component %q in %q", part, version)
		}
		nums[i] = n
	}
	return nums, nil
}
