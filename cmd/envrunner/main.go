// Package main is the entry point for the envrunner CLI.
//
// This binary runs a project's named test environments from a declarative
// configuration file. It delegates all functionality to the internal/cli
// package, which defines cobra commands.
//
// Build-time variables (version, commit, date) are injected via ldflags
// by GoReleaser during the release process. During development, they
// default to "dev", "none", and "unknown" respectively.
package main

import (
	"github.com/mmr-tortoise/envrunner/internal/cli"
	"github.com/mmr-tortoise/envrunner/internal/config"
)

// version, commit, and date are set by GoReleaser at build time via
// ldflags. They provide binary identification for the --version flag
// output and for configuration minversion checks.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Inject build-time version info into the CLI and config packages.
	// This decouples the build system (GoReleaser ldflags) from the
	// packages that consume the version, keeping main.go minimal.
	cli.Version = version
	cli.Commit = commit
	cli.Date = date
	config.Version = version

	// Create the root command with all subcommands registered, then
	// execute it. Execute handles error formatting and exit codes.
	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
