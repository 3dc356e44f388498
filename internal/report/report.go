// Package report aggregates environment run results into a run summary
// and renders it for CLI output.
//
// The summary owns the overall exit-code decision: test failures and
// style-check failures map to distinct exit codes so CI systems can tell
// them apart without parsing output.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mmr-tortoise/envrunner/internal/model"
)

// Summary is the aggregate outcome of a run across all environments.
type Summary struct {
	// Results holds the per-environment outcomes in execution order.
	Results []*model.EnvResult `json:"results"`

	// Passed, Failed, Skipped count terminal statuses. Errored
	// environments count as failed.
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`

	// Duration is the total wall-clock time of the run.
	Duration time.Duration `json:"duration"`
}

// New builds a Summary from environment results.
func New(results []*model.EnvResult, duration time.Duration) *Summary {
	s := &Summary{
		Results:  results,
		Duration: duration,
	}
	for _, r := range results {
		switch {
		case r.Failed():
			s.Failed++
		case r.Status == model.StatusSkipped:
			s.Skipped++
		case r.Status == model.StatusPassed:
			s.Passed++
		}
	}
	return s
}

// Succeeded reports whether no environment failed. Skipped environments
// do not count against success.
func (s *Summary) Succeeded() bool {
	return s.Failed == 0
}

// ExitCode computes the process exit code for the run. Failures of
// ordinary test environments take precedence over style failures, so a
// run with both reports ExitEnvFailed.
func (s *Summary) ExitCode(styleEnvName string) model.ExitCode {
	styleFailed := false
	for _, r := range s.Results {
		if !r.Failed() {
			continue
		}
		if r.Name == styleEnvName {
			styleFailed = true
			continue
		}
		return model.ExitEnvFailed
	}
	if styleFailed {
		return model.ExitStyleViolations
	}
	return model.ExitSuccess
}

// Render formats the summary as human-readable text: one line per
// environment followed by a totals line, in the style of CI check
// output.
func (s *Summary) Render() string {
	var b strings.Builder

	nameWidth := 0
	for _, r := range s.Results {
		if len(r.Name) > nameWidth {
			nameWidth = len(r.Name)
		}
	}

	for _, r := range s.Results {
		line := fmt.Sprintf("  %-*s  %-7s  %s",
			nameWidth, r.Name, statusGlyph(r.Status), r.Duration.Round(time.Millisecond))
		if r.Reason != "" {
			line += "  (" + r.Reason + ")"
		}
		b.WriteString(line + "\n")
	}

	b.WriteString(fmt.Sprintf("\n%s in %s\n", s.totalsLine(), s.Duration.Round(time.Millisecond)))
	return b.String()
}

// totalsLine builds the "N passed, N failed, N skipped" fragment,
// omitting zero counts except for passed (which always shows so an
// all-skipped run still reads sensibly).
func (s *Summary) totalsLine() string {
	parts := []string{fmt.Sprintf("%d passed", s.Passed)}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
	}
	if s.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", s.Skipped))
	}
	return strings.Join(parts, ", ")
}

// FailureOutputs returns the captured output of every failed command in
// failed environments, keyed by environment name and sorted for
// deterministic display.
func (s *Summary) FailureOutputs() []FailureOutput {
	var failures []FailureOutput
	for _, r := range s.Results {
		if !r.Failed() {
			continue
		}
		for _, c := range r.Commands {
			if c.Succeeded() {
				continue
			}
			failures = append(failures, FailureOutput{
				Env:        r.Name,
				Command:    c.Command,
				ExitStatus: c.ExitStatus,
				Output:     c.Output,
			})
		}
		// Errored environments have no failing command; surface the
		// reason instead.
		if len(r.Commands) == 0 && r.Reason != "" {
			failures = append(failures, FailureOutput{
				Env:    r.Name,
				Output: r.Reason,
			})
		}
	}

	sort.Slice(failures, func(i, j int) bool { return failures[i].Env < failures[j].Env })
	return failures
}

// FailureOutput pairs a failed command with its captured output for
// display after the summary table.
type FailureOutput struct {
	Env        string `json:"env"`
	Command    string `json:"command,omitempty"`
	ExitStatus int    `json:"exitStatus,omitempty"`
	Output     string `json:"output,omitempty"`
}

// statusGlyph renders a status for the text summary.
func statusGlyph(status model.EnvStatus) string {
	switch status {
	case model.StatusPassed:
		return "ok"
	case model.StatusFailed:
		return "FAILED"
	case model.StatusError:
		return "ERROR"
	case model.StatusSkipped:
		return "skipped"
	default:
		return status.String()
	}
}
