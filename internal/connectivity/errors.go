package connectivity

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRejected is returned by a Driver when the access point refuses the credentials.
	ErrAuthRejected = errors.New("authentication rejected")
	// ErrJoinTimeout is returned by a Driver when association does not complete in time.
	ErrJoinTimeout = errors.New("join timed out")
)

// FailureKind distinguishes reconnection failures for diagnostics. The
// scheduler treats every kind the same way.
type FailureKind int

const (
	FailureTimeout FailureKind = iota
	FailureNotFound
	FailureAuthRejected
	FailureScan
)

func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureNotFound:
		return "network-not-found"
	case FailureAuthRejected:
		return "auth-rejected"
	case FailureScan:
		return "scan-failed"
	default:
		return "unknown"
	}
}

// Error is a classified reconnection failure.
type Error struct {
	Kind FailureKind
	SSID string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connectivity %s: %q", e.Kind, e.SSID)
	}
	return fmt.Sprintf("connectivity %s: %q: %v", e.Kind, e.SSID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the failure kind of err, or false if err is not an *Error.
func KindOf(err error) (FailureKind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

func classifyJoin(ssid string, err error) *Error {
	if errors.Is(err, ErrAuthRejected) {
		return &Error{Kind: FailureAuthRejected, SSID: ssid, Err: err}
	}
	return &Error{Kind: FailureTimeout, SSID: ssid, Err: err}
}
