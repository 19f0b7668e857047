package site

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StageName is a strongly-typed identifier for a build stage.
type StageName string

// Canonical stage names, in execution order.
const (
	StagePrepareOutput StageName = "prepare_output"
	StageLoadContent   StageName = "load_content"
	StagePermalinks    StageName = "permalinks"
	StageTransform     StageName = "transform"
	StagePaginate      StageName = "paginate"
	StageIndexes       StageName = "indexes"
	StageWritePages    StageName = "write_pages"
	StageCopyAssets    StageName = "copy_assets"
)

// Stage is a discrete unit of work in the site build.
type Stage func(ctx context.Context, bs *buildState) error

// StageErrorKind enumerates structured stage error categories.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Build must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying stage classification and cause.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func newFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}
func newWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}
func newCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// stageDef pairs a stage name with its executing function.
type stageDef struct {
	name StageName
	fn   Stage
}

// runStages executes stages in order, recording timing per stage and
// stopping on the first fatal or canceled error. Warnings are recorded
// and execution continues.
func runStages(ctx context.Context, bs *buildState, stages []stageDef) error {
	for _, st := range stages {
		select {
		case <-ctx.Done():
			se := newCanceledStageError(st.name, ctx.Err())
			bs.report.Errors = append(bs.report.Errors, se.Error())
			return se
		default:
		}

		t0 := time.Now()
		err := st.fn(ctx, bs)
		bs.report.StageDurations[string(st.name)] = time.Since(t0)

		if err == nil {
			continue
		}
		var se *StageError
		if !errors.As(err, &se) {
			se = newFatalStageError(st.name, err)
		}
		switch se.Kind {
		case StageErrorWarning:
			bs.report.Warnings = append(bs.report.Warnings, se.Error())
			continue
		default:
			bs.report.Errors = append(bs.report.Errors, se.Error())
			return se
		}
	}
	return nil
}
