// Package cli — validate.go implements the "envrunner validate" command.
//
// The validate command checks the project configuration without running
// anything: file syntax, envlist references, per-environment commands,
// style-check rule codes and globs, and the declared dependency files.
// All findings are reported in one pass; the command exits zero only for
// a clean configuration.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/envrunner/internal/config"
	"github.com/mmr-tortoise/envrunner/internal/deps"
	"github.com/mmr-tortoise/envrunner/internal/model"
)

// validateFinding is one reported configuration problem.
type validateFinding struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewValidateCommand creates the "validate" cobra command.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the project configuration",
		Long: `Parse and validate the project configuration file.

All problems are reported together: undefined envlist entries,
environments without commands, malformed style rule codes, invalid
exclusion globs, and missing or malformed dependency files.

Examples:
  envrunner validate
  envrunner validate --config ci/envrunner.yaml
  envrunner validate --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate()
		},
	}

	return cmd
}

// runValidate loads the configuration and reports every finding.
func runValidate() error {
	project, err := loadProject()
	if err != nil {
		// Parse and discovery errors already carry the right exit code.
		return err
	}

	var findings []validateFinding
	for _, e := range project.Validate() {
		findings = append(findings, validateFinding{Field: e.Field, Message: e.Message})
	}
	findings = append(findings, validateDependencyFiles(project)...)

	if IsJSONOutput() {
		out := struct {
			Valid    bool              `json:"valid"`
			Findings []validateFinding `json:"findings,omitempty"`
		}{
			Valid:    len(findings) == 0,
			Findings: findings,
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
	} else if len(findings) == 0 {
		fmt.Println("Configuration is valid.")
	} else {
		for _, f := range findings {
			fmt.Printf("  %s: %s\n", f.Field, f.Message)
		}
		fmt.Printf("\n%d problem(s) found.\n", len(findings))
	}

	if len(findings) > 0 {
		return model.NewCLIError(model.ExitConfigInvalid, fmt.Sprintf("configuration has %d problem(s)", len(findings)))
	}
	return nil
}

// validateDependencyFiles parses each declared dependency file so that
// malformed requirement lines and include cycles surface during
// validation rather than mid-run. Missing files are already reported by
// the configuration's own validation.
func validateDependencyFiles(project *config.Project) []validateFinding {
	var findings []validateFinding

	seen := make(map[string]bool)
	for _, name := range project.EnvNames() {
		env, err := project.Environment(name)
		if err != nil || env.Requirements == "" || seen[env.Requirements] {
			continue
		}
		seen[env.Requirements] = true

		if _, statErr := os.Stat(env.Requirements); statErr != nil {
			// Existence problems are reported by Project.Validate with
			// a better field path; avoid duplicating them here.
			continue
		}

		if _, parseErr := deps.ParseFile(env.Requirements); parseErr != nil {
			findings = append(findings, validateFinding{
				Field:   "requirements",
				Message: parseErr.Error(),
			})
		}
	}

	return findings
}
