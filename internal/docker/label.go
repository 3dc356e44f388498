package docker

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmr-tortoise/envrunner/internal/model"
)

// Label key constants define the Docker label keys used to persist test
// environment run metadata on containers. Labels are the only record a
// containerized run leaves behind, so the "list" command can reconstruct
// past runs purely from Docker API queries.
//
// All keys share the "envrunner." prefix to namespace them and avoid
// collisions with labels set by other tools.
const (
	// LabelPrefix is the common prefix for all envrunner labels.
	LabelPrefix = "envrunner."

	// LabelManagedBy identifies containers created by envrunner.
	// Key: "envrunner.managed-by", Value: always "envrunner".
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelEnv stores the test environment name.
	// Key: "envrunner.env", Value: environment name (e.g., "py3").
	LabelEnv = LabelPrefix + "env"

	// LabelProject stores the absolute path of the project directory the
	// environment ran against.
	LabelProject = LabelPrefix + "project"

	// LabelStatus stores the environment run status at container exit.
	// Key: "envrunner.status", Value: one of the model.EnvStatus values.
	LabelStatus = LabelPrefix + "status"

	// LabelStartedAt stores the RFC3339 timestamp of run start.
	LabelStartedAt = LabelPrefix + "started-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
const ManagedByValue = "envrunner"

// RunRecord is the metadata persisted on a containerized environment run,
// reconstructed from the container's labels.
type RunRecord struct {
	// ContainerID is the Docker container identifier.
	ContainerID string

	// Env is the test environment name.
	Env string

	// Project is the project directory the run was launched from.
	Project string

	// Status is the environment status recorded at launch time. For
	// containers that are still running it reads "running"; the terminal
	// status is derived from the container exit code by the caller.
	Status model.EnvStatus

	// StartedAt is the run start timestamp.
	StartedAt time.Time
}

// BuildLabels constructs the Docker label map applied to an environment's
// container. The full run context can be rebuilt from these labels alone.
func BuildLabels(envName, projectDir string, startedAt time.Time) map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelEnv:       envName,
		LabelProject:   projectDir,
		LabelStatus:    model.StatusRunning.String(),
		// RFC3339 in UTC keeps timestamps comparable regardless of the
		// host machine's timezone.
		LabelStartedAt: startedAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels reconstructs a RunRecord from Docker container labels.
// This is the inverse of BuildLabels.
//
// Required labels: managed-by, env, project, status, started-at.
// Missing labels are reported together in a single error.
func ParseLabels(labels map[string]string) (*RunRecord, error) {
	requiredKeys := []string{
		LabelManagedBy,
		LabelEnv,
		LabelProject,
		LabelStatus,
		LabelStartedAt,
	}

	var missing []string
	for _, key := range requiredKeys {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf(
			"label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue,
		)
	}

	status, err := model.ParseEnvStatus(labels[LabelStatus])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelStatus, err)
	}

	startedAt, err := time.Parse(time.RFC3339, labels[LabelStartedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelStartedAt, err)
	}

	return &RunRecord{
		Env:       labels[LabelEnv],
		Project:   labels[LabelProject],
		Status:    status,
		StartedAt: startedAt,
	}, nil
}
