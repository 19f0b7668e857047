package site

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// BuildOutcome summarizes how a build finished.
type BuildOutcome string

const (
	OutcomeSuccess BuildOutcome = "success"
	OutcomePartial BuildOutcome = "partial" // completed with warnings
	OutcomeFailed  BuildOutcome = "failed"
)

// Report captures metrics and diagnostics for one build.
type Report struct {
	BuildID        string                   `json:"build_id"`
	Start          time.Time                `json:"start"`
	End            time.Time                `json:"end"`
	Outcome        BuildOutcome             `json:"outcome"`
	Posts          int                      `json:"posts"`
	Pages          int                      `json:"pages"`
	GeneratedPages int                      `json:"generated_pages"`
	Assets         int                      `json:"assets"`
	Excluded       int                      `json:"excluded"`
	Unchanged      bool                     `json:"unchanged,omitempty"`
	StageDurations map[string]time.Duration `json:"stage_durations"`
	Warnings       []string                 `json:"warnings,omitempty"`
	Errors         []string                 `json:"errors,omitempty"`
}

func newReport() *Report {
	return &Report{
		BuildID:        uuid.NewString(),
		Start:          time.Now(),
		StageDurations: map[string]time.Duration{},
	}
}

func (r *Report) finish() {
	r.End = time.Now()
	switch {
	case len(r.Errors) > 0:
		r.Outcome = OutcomeFailed
	case len(r.Warnings) > 0:
		r.Outcome = OutcomePartial
	default:
		r.Outcome = OutcomeSuccess
	}
}

// Persist writes the report next to (not inside) the emitted site, so
// report churn never perturbs output idempotence.
func (r *Report) Persist(outputDir string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(outputDir)+".report.json", data, 0o644)
}
