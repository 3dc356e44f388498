// Package cli implements the cobra-based CLI commands for envrunner.
//
// Each subcommand (run, list, lint, validate, clean) is defined in its
// own file within this package. This file defines the root command that
// serves as the parent for all subcommands, handles global flags, loads
// the user-level settings file, and owns error-to-exit-code translation.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mmr-tortoise/envrunner/internal/config"
	"github.com/mmr-tortoise/envrunner/internal/model"
)

// Global flag variables shared across all subcommands. These are bound
// to cobra persistent flags on the root command, which makes them
// available to every subcommand automatically.
var (
	// jsonOutput controls whether command output is formatted as JSON.
	// When true, all output uses structured JSON for machine consumption.
	jsonOutput bool

	// verbose enables debug-level logging on stderr.
	verbose bool

	// configPath overrides configuration file discovery with an explicit
	// path. Empty means discover in the current directory.
	configPath string
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
//
// The root command itself does not perform any action — it only provides
// help text, global flags, and user-settings loading. Actual
// functionality is provided by subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "envrunner",
		Short: "Containerized test-environment orchestrator",
		Long: `envrunner runs a project's named test environments — each a list of shell
commands with its own dependencies and optional container image — from a
single declarative configuration file.

Environments run directly on the host or inside isolated Docker containers,
and the style-check environment applies the configured rule exclusions,
complexity threshold, and path exclusions.`,

		// We handle error output ourselves for cleaner UX, so cobra's
		// automatic usage/error printing is silenced.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		// User-level settings load before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initSettings()
		},
	}

	// PersistentFlags are inherited by all subcommands.
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the project configuration file")

	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewListCommand())
	rootCmd.AddCommand(NewLintCommand())
	rootCmd.AddCommand(NewValidateCommand())
	rootCmd.AddCommand(NewCleanCommand())

	return rootCmd
}

// initSettings loads the user-level defaults file (~/.envrunner.yaml)
// and environment-variable overrides via viper. The file is optional;
// only read errors on an existing file are reported.
//
// Recognized settings:
//
//	installer:     install command prefix (default "pip install -r")
//	default_image: fallback container image for --container runs
//	parallel:      default parallelism for "run --parallel"
func initSettings() error {
	home, err := homedir.Dir()
	if err == nil {
		viper.AddConfigPath(home)
	}
	viper.SetConfigName(".envrunner")
	viper.SetConfigType("yaml")

	viper.SetDefault("installer", "pip install -r")
	viper.SetDefault("default_image", "")
	viper.SetDefault("parallel", 1)

	// ENVRUNNER_INSTALLER etc. override the settings file.
	viper.SetEnvPrefix("envrunner")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return model.WrapCLIError(model.ExitGeneralError, "failed to read user settings", err)
	}
	return nil
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// It inspects errors returned by cobra commands and translates them into
// OS exit codes. CLIError values carry their own exit codes; other
// errors default to exit code 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		if cliErr, ok := err.(*model.CLIError); ok {
			printError(cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}

		printError(err.Error(), nil)
		os.Exit(int(model.ExitGeneralError))
	}
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// Errors go to stderr even in JSON mode, because stdout is
		// reserved for successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

// newLogger builds the logrus logger used by subcommands. Debug level
// when --verbose is set, warnings only otherwise; JSON formatting
// follows the --json flag so machine consumers get structured logs too.
func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}

	if jsonOutput {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}

	return log
}

// loadProject locates and parses the project configuration, honoring the
// --config override. Subcommands that need a usable configuration call
// this and then ValidateStrict.
func loadProject() (*config.Project, error) {
	path := configPath
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, model.WrapCLIError(model.ExitGeneralError, "failed to get current directory", err)
		}
		found, err := config.Find(cwd)
		if err != nil {
			return nil, err
		}
		path = found
	}

	return config.Load(path)
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}
