package collector

import (
	"errors"
	"fmt"
)

// NetworkError covers timeouts, refused connections and non-success statuses.
type NetworkError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Timeout    bool
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("network: %s: timeout: %v", e.URL, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("network: %s: status %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("network: %s: %v", e.URL, e.Err)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError means the payload arrived but had an unexpected shape.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err is, or wraps, a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsDecodeError reports whether err is, or wraps, a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
