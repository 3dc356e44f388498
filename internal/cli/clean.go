// Package cli — clean.go implements the "envrunner clean" command.
//
// The clean command removes everything a run leaves behind: the
// per-environment workspace directories under .envrunner/ and any kept
// run containers.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/envrunner/internal/docker"
	"github.com/mmr-tortoise/envrunner/internal/model"
)

// cleanFlags holds the flag values for the clean command.
type cleanFlags struct {
	// force also removes containers that are still running.
	force bool

	// containersOnly leaves the workspace directories in place.
	containersOnly bool
}

// NewCleanCommand creates the "clean" cobra command.
func NewCleanCommand() *cobra.Command {
	flags := &cleanFlags{}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove workspaces and kept run containers",
		Long: `Remove the per-environment workspace directories (.envrunner/) and all
kept run containers.

Running containers are only removed with --force.

Examples:
  envrunner clean
  envrunner clean --force
  envrunner clean --containers-only`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.force, "force", false, "Also remove running containers")
	cmd.Flags().BoolVar(&flags.containersOnly, "containers-only", false, "Remove containers but keep workspace directories")

	return cmd
}

// runClean removes workspaces and kept containers, then reports what
// was removed.
func runClean(ctx context.Context, flags *cleanFlags) error {
	project, err := loadProject()
	if err != nil {
		return err
	}

	log := newLogger()

	workspacesRemoved := false
	if !flags.containersOnly {
		workspaceDir := filepath.Join(project.Dir, ".envrunner")
		if _, err := os.Stat(workspaceDir); err == nil {
			if err := os.RemoveAll(workspaceDir); err != nil {
				return model.WrapCLIError(model.ExitGeneralError, "failed to remove workspace directory", err)
			}
			workspacesRemoved = true
			log.WithField("dir", workspaceDir).Debug("removed workspace directory")
		}
	}

	// Container cleanup is best-effort when Docker is unavailable: a
	// project that never used container mode has nothing to remove.
	containersRemoved := 0
	if cli, err := docker.NewClient(); err == nil {
		defer func() { _ = cli.Close() }()
		removed, err := docker.RemoveRuns(ctx, cli, flags.force)
		if err != nil {
			return err
		}
		containersRemoved = removed
	} else {
		log.WithError(err).Debug("Docker not available, skipping container cleanup")
	}

	if IsJSONOutput() {
		out := struct {
			WorkspacesRemoved bool `json:"workspacesRemoved"`
			ContainersRemoved int  `json:"containersRemoved"`
		}{workspacesRemoved, containersRemoved}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Removed %d container(s).\n", containersRemoved)
	if workspacesRemoved {
		fmt.Println("Removed workspace directory.")
	}
	return nil
}
