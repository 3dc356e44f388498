// Package style models the style-check configuration: the set of excluded
// rule codes, the maximum cyclomatic-complexity threshold, and the path
// globs excluded from checking.
//
// The style checker itself is an external tool. This package owns the
// configuration surface and how the tool is invoked: it validates rule
// codes against the checker's code grammar, builds the command-line
// arguments, and filters the source tree against the exclusion globs.
package style

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// DefaultEnvironment is the environment name conventionally used for the
// style check when the configuration does not override it.
const DefaultEnvironment = "style"

// defaultCommand is the external checker invoked when the configuration
// declares no command of its own.
const defaultCommand = "flake8"

// defaultExcludes are the path globs excluded from style checking when
// the configuration declares none. These cover VCS metadata, build
// output, and the tool's own workspace.
var defaultExcludes = []string{".git", ".envrunner", "vendor", "build", "dist"}

// ruleCodeRegex matches checker rule codes: one to three uppercase
// letters followed by one to four digits (E501, W503, C901, H301, N804).
var ruleCodeRegex = regexp.MustCompile(`^[A-Z]{1,3}[0-9]{1,4}$`)

// Config holds the style-check settings from the project configuration.
type Config struct {
	// Environment is the name of the test environment that performs the
	// style check. Defaults to "style".
	Environment string `yaml:"environment,omitempty" json:"environment,omitempty"`

	// Command is the external checker invocation, without arguments.
	// Defaults to "flake8".
	Command string `yaml:"command,omitempty" json:"command,omitempty"`

	// Ignore lists rule codes excluded from checking (e.g., E125, W503).
	Ignore []string `yaml:"ignore,omitempty" json:"ignore,omitempty"`

	// MaxComplexity is the maximum allowed cyclomatic complexity.
	// Zero disables the complexity check entirely.
	MaxComplexity int `yaml:"max_complexity,omitempty" json:"maxComplexity,omitempty"`

	// Exclude lists path globs excluded from checking. A pattern matches
	// a file when it matches the base name or any path segment, so bare
	// directory names like ".git" exclude whole subtrees.
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
}

// DefaultConfig returns the style configuration used when the project
// file declares no style section.
func DefaultConfig() *Config {
	return &Config{
		Environment: DefaultEnvironment,
		Command:     defaultCommand,
		Exclude:     append([]string(nil), defaultExcludes...),
	}
}

// EnvironmentName returns the configured style environment name,
// falling back to the default when unset.
func (c *Config) EnvironmentName() string {
	if c.Environment == "" {
		return DefaultEnvironment
	}
	return c.Environment
}

// CheckerCommand returns the configured checker invocation, falling back
// to the default when unset. A whitespace-only command counts as unset,
// so callers can always split the result into at least one word.
func (c *Config) CheckerCommand() string {
	if strings.TrimSpace(c.Command) == "" {
		return defaultCommand
	}
	return c.Command
}

// EffectiveExcludes returns the exclusion globs, falling back to the
// defaults when the configuration declares none.
func (c *Config) EffectiveExcludes() []string {
	if len(c.Exclude) == 0 {
		return append([]string(nil), defaultExcludes...)
	}
	return c.Exclude
}

// ValidateRuleCode checks a single rule code against the checker's code
// grammar: an uppercase letter prefix followed by digits.
func ValidateRuleCode(code string) error {
	if !ruleCodeRegex.MatchString(code) {
		return fmt.Errorf("invalid rule code %q: expected letter prefix followed by digits (e.g., E125, W503, C901)", code)
	}
	return nil
}

// Validate checks the style configuration for internal consistency.
// It returns all problems found rather than stopping at the first one,
// so a single validate pass can report everything.
func (c *Config) Validate() []error {
	var errs []error

	for _, code := range c.Ignore {
		if err := ValidateRuleCode(code); err != nil {
			errs = append(errs, err)
		}
	}

	if c.MaxComplexity < 0 {
		errs = append(errs, fmt.Errorf("max_complexity must not be negative (got %d)", c.MaxComplexity))
	}

	for _, pattern := range c.Exclude {
		// filepath.Match reports ErrBadPattern for malformed globs.
		// The probe string is irrelevant; only pattern syntax matters.
		if _, err := filepath.Match(pattern, "probe"); err != nil {
			errs = append(errs, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err))
		}
	}

	return errs
}

// Args builds the checker command-line arguments from the configuration.
// The ignore list, complexity threshold, and exclude globs each become
// one flag; a zero MaxComplexity omits the complexity flag.
func (c *Config) Args() []string {
	var args []string

	if len(c.Ignore) > 0 {
		args = append(args, "--ignore="+strings.Join(c.Ignore, ","))
	}
	if c.MaxComplexity > 0 {
		args = append(args, "--max-complexity="+strconv.Itoa(c.MaxComplexity))
	}
	if excludes := c.EffectiveExcludes(); len(excludes) > 0 {
		args = append(args, "--exclude="+strings.Join(excludes, ","))
	}

	return args
}

// CommandLine returns the full shell command string for the style check:
// the checker invocation followed by the configured flags. This is the
// command synthesized for the style environment when it declares no
// explicit commands of its own.
func (c *Config) CommandLine() string {
	parts := append([]string{c.CheckerCommand()}, c.Args()...)
	return strings.Join(parts, " ")
}
