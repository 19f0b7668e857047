// Package metrics defines the build observability surface. Components
// receive a Recorder by injection; the default NoopRecorder makes metrics
// collection strictly opt-in with zero overhead when disabled.
package metrics

import "time"

// OutcomeLabel is the label value recorded per finished build.
type OutcomeLabel string

const (
	OutcomeSuccess OutcomeLabel = "success"
	OutcomePartial OutcomeLabel = "partial"
	OutcomeFailed  OutcomeLabel = "failed"
)

// Recorder defines all metrics operations.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome OutcomeLabel)
	AddPagesRendered(n int)
	IncWatchRebuild()
}

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration) {}
func (NoopRecorder) IncBuildOutcome(OutcomeLabel)       {}
func (NoopRecorder) AddPagesRendered(int)               {}
func (NoopRecorder) IncWatchRebuild()                   {}
