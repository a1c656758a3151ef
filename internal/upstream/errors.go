package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport covers network failures, timeouts and cancelled requests.
	ErrTransport = errors.New("upstream unreachable")

	// ErrRejected is returned for any non-2xx response.
	ErrRejected = errors.New("upstream rejected request")

	// ErrMalformed is returned when a 2xx body cannot be decoded or lacks a required field.
	ErrMalformed = errors.New("malformed upstream response")
)

// Kind discriminates why an upstream call failed.
type Kind string

const (
	KindTransport Kind = "transport"
	KindRejected  Kind = "rejected"
	KindMalformed Kind = "malformed"
)

// Error describes a failed upstream call.
type Error struct {
	Op         string
	Kind       Kind
	StatusCode int
	// Message is the upstream's own error text, when the body carried one.
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Kind, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the package sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrRejected:
		return e.Kind == KindRejected
	case ErrMalformed:
		return e.Kind == KindMalformed
	}
	return false
}

// KindOf returns the failure kind of err. Errors that did not come from this
// package count as transport failures.
func KindOf(err error) Kind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return KindTransport
}
