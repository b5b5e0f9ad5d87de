package casework

import (
	"errors"
	"fmt"
	"net/http"
)

// Store-level outcomes. The service translates these into an *Error.
var (
	ErrReportNotFound  = errors.New("report not found")
	ErrOfficerNotFound = errors.New("officer not found")
	ErrAtCapacity      = errors.New("officer at maximum case capacity")
	ErrAlreadyAssigned = errors.New("report already assigned")
)

// Kind classifies a failure so callers can decide whether to retry.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindNotFound
	KindCapacityExceeded
	KindConflict
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindNotFound:
		return "NotFound"
	case KindCapacityExceeded:
		return "CapacityExceeded"
	case KindConflict:
		return "Conflict"
	case KindUpstream:
		return "UpstreamError"
	}
	return "Unknown"
}

func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidInput, KindCapacityExceeded:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Retryable is true only for upstream failures; everything else is
// permanent for the same input.
func (k Kind) Retryable() bool { return k == KindUpstream }

// Error is returned by every Service operation.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind from err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
