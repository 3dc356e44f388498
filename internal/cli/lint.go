// Package cli — lint.go implements the "envrunner lint" command.
//
// The lint command runs the style check directly, without going through
// a full environment run: it builds the checker invocation from the
// style configuration (rule-code exclusions and complexity threshold),
// pre-filters the source tree against the exclusion globs, and hands the
// surviving files to the external checker.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/envrunner/internal/model"
	"github.com/mmr-tortoise/envrunner/internal/style"
)

// lintFlags holds the flag values for the lint command.
type lintFlags struct {
	// suffixes restricts which files are handed to the checker.
	suffixes []string

	// listOnly prints the files that would be checked without invoking
	// the checker. Useful for debugging exclusion globs.
	listOnly bool
}

// NewLintCommand creates the "lint" cobra command.
func NewLintCommand() *cobra.Command {
	flags := &lintFlags{}

	cmd := &cobra.Command{
		Use:   "lint [path]",
		Short: "Run the style check",
		Long: `Run the configured style checker over the project source tree.

The checker is invoked with the configured rule-code exclusions and
maximum-complexity threshold. Files matching the configured exclusion
globs are filtered out before the checker sees them, so exclusions apply
regardless of the checker's own exclusion support.

An optional positional argument restricts checking to a subtree.

Examples:
  envrunner lint
  envrunner lint src/
  envrunner lint --list-files
  envrunner lint --suffix .py --suffix .pyi`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) == 1 {
				root = args[0]
			}
			return runLint(cmd.Context(), root, flags)
		},
	}

	cmd.Flags().StringSliceVar(&flags.suffixes, "suffix", []string{".py"}, "File suffixes handed to the checker")
	cmd.Flags().BoolVar(&flags.listOnly, "list-files", false, "Print the files that would be checked and exit")

	return cmd
}

// runLint executes the style check.
func runLint(ctx context.Context, root string, flags *lintFlags) error {
	project, err := loadProject()
	if err != nil {
		return err
	}
	if err := project.ValidateStrict(); err != nil {
		return err
	}

	styleCfg := project.StyleConfig()
	log := newLogger()

	excluder, err := style.NewExcluder(styleCfg.EffectiveExcludes())
	if err != nil {
		return model.WrapCLIError(model.ExitConfigInvalid, "invalid style exclusion globs", err)
	}

	if root == "" {
		root = project.Dir
	}

	files, err := excluder.Collect(root, flags.suffixes)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to collect source files", err)
	}

	log.WithField("files", len(files)).Debug("collected files for style check")

	if flags.listOnly {
		for _, f := range files {
			fmt.Println(f)
		}
		return nil
	}

	if len(files) == 0 {
		fmt.Println("No files to check.")
		return nil
	}

	// The checker command may itself carry arguments ("python -m flake8"),
	// so it is split on whitespace before appending the configured flags
	// and the file list.
	parts := strings.Fields(styleCfg.CheckerCommand())
	args := append(parts[1:], styleCfg.Args()...)
	args = append(args, files...)

	cmd := exec.CommandContext(ctx, parts[0], args...)
	cmd.Dir = root
	// The checker's own output is the user-facing result; pass it
	// through unmodified.
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	log.WithField("command", styleCfg.CommandLine()).Debug("invoking style checker")

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return model.NewCLIError(
				model.ExitStyleViolations,
				fmt.Sprintf("style check reported violations (%s exited %d)", parts[0], exitErr.ExitCode()),
			)
		}
		return model.WrapCLIError(model.ExitGeneralError, "failed to invoke style checker", err)
	}

	fmt.Println("Style check passed.")
	return nil
}
