package docker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/envrunner/internal/model"
)

// --- BuildLabels tests ---

// TestBuildLabels verifies the label map applied to a run container:
// all keys present, the managed-by marker set, and the timestamp in
// RFC3339 UTC.
func TestBuildLabels(t *testing.T) {
	startedAt := time.Date(2026, 8, 27, 10, 30, 0, 0, time.UTC)

	labels := BuildLabels("py3", "/home/user/project", startedAt)

	assert.Equal(t, "envrunner", labels[LabelManagedBy])
	assert.Equal(t, "py3", labels[LabelEnv])
	assert.Equal(t, "/home/user/project", labels[LabelProject])
	assert.Equal(t, "running", labels[LabelStatus])
	assert.Equal(t, "2026-08-27T10:30:00Z", labels[LabelStartedAt])
}

// TestBuildLabels_ConvertsToUTC verifies that non-UTC start times are
// normalized so label values compare consistently across hosts.
func TestBuildLabels_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("JST", 9*60*60)
	startedAt := time.Date(2026, 8, 27, 19, 30, 0, 0, loc)

	labels := BuildLabels("py3", "/p", startedAt)
	assert.Equal(t, "2026-08-27T10:30:00Z", labels[LabelStartedAt])
}

// --- ParseLabels tests ---

// TestParseLabels_RoundTrip verifies that ParseLabels reconstructs the
// run record from labels built by BuildLabels.
func TestParseLabels_RoundTrip(t *testing.T) {
	startedAt := time.Date(2026, 8, 27, 10, 30, 0, 0, time.UTC)
	labels := BuildLabels("py3", "/home/user/project", startedAt)

	record, err := ParseLabels(labels)
	require.NoError(t, err)

	assert.Equal(t, "py3", record.Env)
	assert.Equal(t, "/home/user/project", record.Project)
	assert.Equal(t, model.StatusRunning, record.Status)
	assert.True(t, record.StartedAt.Equal(startedAt))
}

// TestParseLabels_MissingKeys verifies that all missing required labels
// are reported together in a single error.
func TestParseLabels_MissingKeys(t *testing.T) {
	labels := map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelEnv:       "py3",
	}

	_, err := ParseLabels(labels)
	require.Error(t, err)
	assert.Contains(t, err.Error(), LabelProject)
	assert.Contains(t, err.Error(), LabelStatus)
	assert.Contains(t, err.Error(), LabelStartedAt)
}

// TestParseLabels_ForeignContainer verifies rejection of containers with
// a different managed-by value, so other tools' containers are never
// mistaken for run containers.
func TestParseLabels_ForeignContainer(t *testing.T) {
	labels := BuildLabels("py3", "/p", time.Now())
	labels[LabelManagedBy] = "other-tool"

	_, err := ParseLabels(labels)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "other-tool")
}

// TestParseLabels_InvalidStatus verifies rejection of unknown status
// label values.
func TestParseLabels_InvalidStatus(t *testing.T) {
	labels := BuildLabels("py3", "/p", time.Now())
	labels[LabelStatus] = "exploded"

	_, err := ParseLabels(labels)
	assert.Error(t, err)
}

// TestParseLabels_InvalidTimestamp verifies rejection of unparseable
// started-at label values.
func TestParseLabels_InvalidTimestamp(t *testing.T) {
	labels := BuildLabels("py3", "/p", time.Now())
	labels[LabelStartedAt] = "yesterday"

	_, err := ParseLabels(labels)
	assert.Error(t, err)
}
