package changelog

import (
	"errors"
	"fmt"
)

// RowErrorCode categorizes why a row was skipped.
type RowErrorCode string

const (
	// ErrCodeYearUnresolved indicates neither snapshot nor the timestamp gave a year.
	ErrCodeYearUnresolved RowErrorCode = "YEAR_UNRESOLVED"

	// ErrCodeMasterNotFound indicates the loader has no master for the year.
	ErrCodeMasterNotFound RowErrorCode = "MASTER_NOT_FOUND"

	// ErrCodeMasterUnavailable indicates the loader failed for another reason.
	ErrCodeMasterUnavailable RowErrorCode = "MASTER_UNAVAILABLE"

	// ErrCodeUnknownAction indicates the row's action is not one of the known actions.
	ErrCodeUnknownAction RowErrorCode = "UNKNOWN_ACTION"

	// ErrCodeRowUnreadable indicates the stored row could not be decoded.
	ErrCodeRowUnreadable RowErrorCode = "ROW_UNREADABLE"

	// ErrCodeRowPanic indicates building the row panicked.
	ErrCodeRowPanic RowErrorCode = "ROW_PANIC"
)

// RowError reports a row that could not be built and was skipped.
// Skipping one row never fails the batch.
type RowError struct {
	Code  RowErrorCode
	LogID string
	Year  int
	Err   error
}

// Error implements the error interface.
func (e *RowError) Error() string {
	msg := fmt.Sprintf("%s: log row %q", e.Code, e.LogID)
	if e.Year != 0 {
		msg += fmt.Sprintf(" (year=%d)", e.Year)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RowError) Unwrap() error {
	return e.Err
}

// IsRowError reports whether err is a RowError with the given code.
func IsRowError(err error, code RowErrorCode) bool {
	var re *RowError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}
