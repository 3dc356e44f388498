// Package cli — list.go implements the "envrunner list" command.
//
// The list command displays the environments defined in the project
// configuration: name, container image, command count, and whether the
// environment is part of the default envlist. When kept run containers
// exist, their most recent status per environment is shown as well,
// reconstructed purely from Docker labels.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/envrunner/internal/config"
	"github.com/mmr-tortoise/envrunner/internal/docker"
	"github.com/mmr-tortoise/envrunner/internal/model"
)

// listFlags holds the flag values for the list command.
type listFlags struct {
	// status filters environments by their last containerized run
	// status. Empty means no filtering.
	status string
}

// envListing is the per-environment row assembled for output.
type envListing struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Commands    int    `json:"commands"`
	InEnvList   bool   `json:"inEnvlist"`
	LastRun     string `json:"lastRun,omitempty"`
}

// NewListCommand creates the "list" cobra command.
func NewListCommand() *cobra.Command {
	flags := &listFlags{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured test environments",
		Long: `List all environments defined in the project configuration.

Environments in the default envlist are marked with "*". When kept run
containers exist (from "run --container --keep"), the most recent run
status per environment is shown.

Examples:
  envrunner list
  envrunner list --status failed
  envrunner list --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.status, "status", "", "Filter by last containerized run status (passed, failed, running, skipped)")

	return cmd
}

// runList assembles and prints the environment listing.
func runList(ctx context.Context, flags *listFlags) error {
	project, err := loadProject()
	if err != nil {
		return err
	}

	if flags.status != "" {
		if _, err := model.ParseEnvStatus(flags.status); err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "invalid --status value", err)
		}
	}

	lastRuns := lastRunStatuses(ctx, project)

	listings, err := buildListings(project, lastRuns, flags.status)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(listings, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	printListText(listings)
	return nil
}

// buildListings assembles the per-environment rows from the resolved
// configuration and the last containerized run statuses, applying the
// optional status filter.
func buildListings(project *config.Project, lastRuns map[string]string, statusFilter string) ([]envListing, error) {
	inEnvList := make(map[string]bool, len(project.EnvList))
	for _, name := range project.EnvList {
		inEnvList[name] = true
	}

	var listings []envListing
	for _, name := range project.EnvNames() {
		env, err := project.Environment(name)
		if err != nil {
			return nil, err
		}

		listing := envListing{
			Name:        name,
			Description: env.Settings.Description,
			Image:       env.Settings.Image,
			Commands:    len(env.Settings.Commands),
			InEnvList:   inEnvList[name],
			LastRun:     lastRuns[name],
		}

		if statusFilter != "" && listing.LastRun != statusFilter {
			continue
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// lastRunStatuses queries Docker for kept run containers belonging to
// this project and returns the most recent status per environment.
//
// Docker being unavailable is not an error for list — the command then
// simply shows the configuration without run state.
func lastRunStatuses(ctx context.Context, project *config.Project) map[string]string {
	log := newLogger()

	cli, err := docker.NewClient()
	if err != nil {
		log.WithError(err).Debug("Docker not available, listing configuration only")
		return nil
	}
	defer func() { _ = cli.Close() }()

	records, err := docker.ListRuns(ctx, cli)
	if err != nil {
		log.WithError(err).Debug("could not list run containers")
		return nil
	}

	statuses := make(map[string]string)
	latest := make(map[string]int64)
	for _, record := range records {
		if record.Project != project.Dir {
			continue
		}
		ts := record.StartedAt.Unix()
		if ts >= latest[record.Env] {
			latest[record.Env] = ts
			statuses[record.Env] = record.Status.String()
		}
	}
	return statuses
}

// printListText renders the listing as an aligned text table.
func printListText(listings []envListing) {
	if len(listings) == 0 {
		fmt.Println("No environments to show.")
		return
	}

	nameWidth := len("NAME")
	for _, l := range listings {
		if len(l.Name) > nameWidth {
			nameWidth = len(l.Name)
		}
	}

	fmt.Printf("  %-*s  %-8s  %-24s  %s\n", nameWidth, "NAME", "LAST RUN", "IMAGE", "DESCRIPTION")
	for _, l := range listings {
		marker := " "
		if l.InEnvList {
			marker = "*"
		}
		lastRun := l.LastRun
		if lastRun == "" {
			lastRun = "-"
		}
		image := l.Image
		if image == "" {
			image = "(host)"
		}
		fmt.Printf("%s %-*s  %-8s  %-24s  %s\n", marker, nameWidth, l.Name, lastRun, image, l.Description)
	}
}
