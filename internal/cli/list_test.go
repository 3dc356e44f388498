package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/envrunner/internal/config"
)

// listProject builds the project fixture used by the listing tests: two
// envlist environments plus one extra.
func listProject() *config.Project {
	return &config.Project{
		EnvList: []string{"py3", "style"},
		Envs: map[string]config.EnvSettings{
			"py3": {
				Description: "Unit tests",
				Image:       "python:3.12",
				Commands:    []string{"pytest -q", "pytest -q --slow"},
			},
			"style": {Commands: []string{"flake8"}},
			"docs":  {Commands: []string{"sphinx-build doc/source doc/build"}},
		},
	}
}

// --- buildListings tests ---

// TestBuildListings verifies the assembled rows: envlist ordering,
// the envlist membership marker, command counts, and last-run statuses
// joined in by environment name.
func TestBuildListings(t *testing.T) {
	lastRuns := map[string]string{"py3": "failed"}

	listings, err := buildListings(listProject(), lastRuns, "")
	require.NoError(t, err)
	require.Len(t, listings, 3)

	assert.Equal(t, "py3", listings[0].Name)
	assert.Equal(t, "Unit tests", listings[0].Description)
	assert.Equal(t, "python:3.12", listings[0].Image)
	assert.Equal(t, 2, listings[0].Commands)
	assert.True(t, listings[0].InEnvList)
	assert.Equal(t, "failed", listings[0].LastRun)

	assert.Equal(t, "style", listings[1].Name)
	assert.True(t, listings[1].InEnvList)
	assert.Empty(t, listings[1].LastRun, "environments without kept runs have no status")

	// Environments outside the envlist come last and are unmarked.
	assert.Equal(t, "docs", listings[2].Name)
	assert.False(t, listings[2].InEnvList)
}

// TestBuildListings_StatusFilter verifies that the status filter keeps
// only environments whose last run matches.
func TestBuildListings_StatusFilter(t *testing.T) {
	lastRuns := map[string]string{"py3": "failed", "style": "passed"}

	listings, err := buildListings(listProject(), lastRuns, "failed")
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "py3", listings[0].Name)
}

// TestBuildListings_NoLastRuns verifies listing a project that has never
// run in container mode: all rows present, none with a status.
func TestBuildListings_NoLastRuns(t *testing.T) {
	listings, err := buildListings(listProject(), nil, "")
	require.NoError(t, err)
	require.Len(t, listings, 3)
	for _, l := range listings {
		assert.Empty(t, l.LastRun)
	}
}
