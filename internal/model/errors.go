package model

import "fmt"

// Stable error codes. Every domain failure in this module is surfaced as a
// (code, message) pair so callers can branch on the code without parsing
// the message string.
const (
	// Validation errors (recoverable locally during run, fatal during submit).
	CodeSchemaInvalid      = "SCHEMA_INVALID"
	CodeUnknownAction      = "UNKNOWN_ACTION"
	CodeWorkflowGate       = "WORKFLOW_GATE"
	CodeBoundaryViolation  = "BOUNDARY_VIOLATION"

	// Workflow errors (projector-time).
	CodeNotLockOwner      = "NOT_LOCK_OWNER"
	CodeImmutableDone     = "IMMUTABLE_DONE"
	CodeLockedTask        = "LOCKED_TASK"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeTaskNotFound      = "TASK_NOT_FOUND"
	CodeDuplicateTask     = "DUPLICATE_TASK"
	CodeIssueNotFound     = "ISSUE_NOT_FOUND"

	// Environmental errors.
	CodeInitBlocked     = "INIT_BLOCKED"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeUnknownCommand  = "UNKNOWN_COMMAND"

	// Corruption codes (strictly stronger than domain errors; raised by
	// internal/eventlog during Parse as *ParseError). The projector also
	// returns EVENT_MISSING_FIELDS and UNKNOWN_ACTION as a *DomainError
	// for a payload without its id or an action it does not handle.
	CodeJSONLInvalid            = "JSONL_INVALID"
	CodeEventSeqInvalid         = "EVENT_SEQ_INVALID"
	CodeEventSeqNonMonotonic    = "EVENT_SEQ_NON_MONOTONIC"
	CodeEventIDDuplicate        = "EVENT_ID_DUPLICATE"
	CodeEventMissingFields      = "EVENT_MISSING_FIELDS"
)

// DomainError is a stable (code, message) pair. It is the error type
// returned by the projector, validator, and orchestrator for every
// recoverable failure named in spec §7.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds a DomainError with a formatted message.
func NewError(code, format string, args ...any) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the stable code carried by err, or "" if err does not wrap
// a *DomainError.
func CodeOf(err error) string {
	var de *DomainError
	if asDomainError(err, &de) {
		return de.Code
	}
	return ""
}

// asDomainError is a small errors.As wrapper kept local to avoid importing
// errors in every caller just to check a code.
func asDomainError(err error, target **DomainError) bool {
	for err != nil {
		if de, ok := err.(*DomainError); ok {
			*target = de
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
