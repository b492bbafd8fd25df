package models

import (
	"errors"
	"fmt"
)

// FailureReason names why an execution ended in the Failed state.
type FailureReason string

const (
	ReasonUnreadableSource  FailureReason = "UnreadableSource"
	ReasonUnsupportedFormat FailureReason = "UnsupportedFormat"
	ReasonStorageWriteError FailureReason = "StorageWriteError"
	ReasonSubmissionError   FailureReason = "SubmissionError"
	ReasonMalformedResult   FailureReason = "MalformedResult"
	ReasonPersistenceError  FailureReason = "PersistenceError"
	ReasonUpstreamJobFailed FailureReason = "UpstreamJobFailed"
	ReasonExhaustedRetries  FailureReason = "ExhaustedRetries"
	ReasonPayloadConflict   FailureReason = "PayloadConflict"
	ReasonStateWriteError   FailureReason = "StateWriteError"
	ReasonLeaseExpired      FailureReason = "LeaseExpired"
)

// StageError is a permanent stage failure tagged with its reason.
type StageError struct {
	Reason FailureReason
	Err    error
}

// Fail wraps err as a permanent failure with the given reason.
func Fail(reason FailureReason, err error) error {
	return &StageError{Reason: reason, Err: err}
}

// Failf is Fail with a formatted message.
func Failf(reason FailureReason, format string, args ...any) error {
	return &StageError{Reason: reason, Err: fmt.Errorf(format, args...)}
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ReasonOf extracts the failure reason carried by err, or returns fallback
// when err is unclassified.
func ReasonOf(err error, fallback FailureReason) FailureReason {
	var se *StageError
	if errors.As(err, &se) && se.Reason != "" {
		return se.Reason
	}
	return fallback
}
