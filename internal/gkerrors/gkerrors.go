// Package gkerrors defines the gatekeeper's typed error kinds: each
// carries a machine-readable tag alongside its human-readable reason,
// and converts directly into the models.Violation shape the
// Orchestrator collects into a verdict's critical_errors/warnings.
package gkerrors

import "github.com/pgEdge/data-gatekeeper/internal/models"

// Error is a typed, tagged failure raised by any pipeline stage.
type Error struct {
	TagValue models.ErrorTag
	Stage    string
	Msg      string
	Object   string
}

func (e *Error) Error() string { return e.Msg }

// Tag returns the machine-readable error kind.
func (e *Error) Tag() string { return e.TagValue.String() }

// Violation converts the error into the models.Violation carried in a
// RunRecord/Verdict, at the given severity.
func (e *Error) Violation(sev models.Severity) models.Violation {
	return models.Violation{
		Tag:        e.TagValue,
		Severity:   sev,
		Stage:      e.Stage,
		Message:    e.Msg,
		ObjectName: e.Object,
	}
}

func newErr(tag models.ErrorTag, stage, msg string) *Error {
	return &Error{TagValue: tag, Stage: stage, Msg: msg}
}

// Timeliness is raised by the File Metadata Probe for a missing, stale,
// or duplicate file.
func Timeliness(stage, msg string) *Error { return newErr(models.TagTimeliness, stage, msg) }

// LoadError is raised by the Tabular Loader for an unreadable or
// malformed input.
func LoadError(stage, msg string) *Error { return newErr(models.TagLoadError, stage, msg) }

// ConsistencyBreak is raised by the Consistency Checker when
// orphan_count > 0.
func ConsistencyBreak(stage, msg string) *Error { return newErr(models.TagConsistencyBreak, stage, msg) }

// QualityBlock is raised when the overall quality score falls below
// quality_score_block.
func QualityBlock(stage, msg string) *Error { return newErr(models.TagQualityBlock, stage, msg) }

// Cancelled is raised when a run's cancellation token fires mid-stage.
func Cancelled(stage string) *Error {
	return newErr(models.TagCancelled, stage, "run cancelled during "+stage)
}

// Timeout is raised when a per-stage deadline is exceeded.
func Timeout(stage string) *Error {
	return newErr(models.TagTimeout, stage, "timeout in stage "+stage)
}

// Internal wraps an unexpected panic or unhandled failure recovered by
// the Orchestrator; it is never re-raised to the caller.
func Internal(stage string, cause error) *Error {
	return newErr(models.TagInternal, stage, "internal error in "+stage+": "+cause.Error())
}
