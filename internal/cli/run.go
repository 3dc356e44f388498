// Package cli — run.go implements the "envrunner run" command.
//
// The run command is the primary user-facing operation. It resolves the
// requested environment selection (or the configured envlist), executes
// each environment via the runner, and prints the run summary.
//
// Orchestration steps:
//  1. Load and validate the project configuration
//  2. Resolve the environment selection against the envlist
//  3. Execute the environments (host or container mode, optionally in
//     parallel)
//  4. Print the summary (text or JSON) and translate failures into the
//     appropriate exit code
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mmr-tortoise/envrunner/internal/model"
	"github.com/mmr-tortoise/envrunner/internal/report"
	"github.com/mmr-tortoise/envrunner/internal/runner"
)

// runFlags holds the flag values for the run command.
type runFlags struct {
	parallel  int  // --parallel: max environments running concurrently
	container bool // --container: run environments in Docker containers
	keep      bool // --keep: keep run containers after the run
}

// NewRunCommand creates the "run" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewRunCommand() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [env ...]",
		Short: "Run test environments",
		Long: `Run the named test environments, or the configured envlist when no
environments are named.

Each environment installs its dependency file and executes its commands in
order, stopping at the first failure. With --container, environments that
declare an image run inside a fresh Docker container with the project
mounted.

Examples:
  envrunner run
  envrunner run py3 style
  envrunner run --parallel 4
  envrunner run --container --keep py3`,

		// Positional arguments are environment names; zero means
		// "run the envlist".
		Args: cobra.ArbitraryArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), args, flags)
		},
	}

	// The parallel default comes from the user settings file, which is
	// loaded in PersistentPreRunE — after flag registration. A zero value
	// therefore means "not set on the command line" and is resolved
	// against viper at run time.
	cmd.Flags().IntVarP(&flags.parallel, "parallel", "p", 0, "Maximum number of environments to run concurrently")
	cmd.Flags().BoolVar(&flags.container, "container", false, "Run environments in Docker containers")
	cmd.Flags().BoolVar(&flags.keep, "keep", false, "Keep run containers after the run (container mode)")

	return cmd
}

// runRun is the main orchestration function for the run command.
func runRun(ctx context.Context, selection []string, flags *runFlags) error {
	// Ctrl-C cancels the context, which propagates to child processes
	// and containers.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	project, err := loadProject()
	if err != nil {
		return err
	}
	if err := project.ValidateStrict(); err != nil {
		return err
	}

	envs, err := project.Resolve(selection)
	if err != nil {
		return err
	}

	parallel := flags.parallel
	if parallel == 0 {
		parallel = viper.GetInt("parallel")
	}

	log := newLogger()
	r := runner.New(project, runner.Options{
		Container:    flags.container,
		DefaultImage: viper.GetString("default_image"),
		Keep:         flags.keep,
		Parallel:     parallel,
		Installer:    viper.GetString("installer"),
	}, log)

	start := time.Now()
	results, err := r.Run(ctx, envs)
	if err != nil {
		return err
	}

	summary := report.New(results, time.Since(start))
	printSummary(summary)

	styleEnv := project.StyleConfig().EnvironmentName()
	if code := summary.ExitCode(styleEnv); code != model.ExitSuccess {
		// The summary already shows what failed; the returned error just
		// carries the exit code and a one-line recap.
		return model.NewCLIError(code, fmt.Sprintf("%d environment(s) failed", summary.Failed))
	}
	return nil
}

// printSummary outputs the run summary in text or JSON format.
func printSummary(summary *report.Summary) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Print(summary.Render())

	// Show the captured output of failing commands after the table, so
	// failures are diagnosable without re-running.
	for _, failure := range summary.FailureOutputs() {
		fmt.Println()
		if failure.Command != "" {
			fmt.Printf("--- %s: %q exited %d\n", failure.Env, failure.Command, failure.ExitStatus)
		} else {
			fmt.Printf("--- %s\n", failure.Env)
		}
		if failure.Output != "" {
			fmt.Println(failure.Output)
		}
	}
}
