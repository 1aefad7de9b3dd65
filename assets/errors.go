package assets

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch matches every FetchError
	ErrFetch = errors.New("fetch failed")
	// ErrDecode matches every DecodeError
	ErrDecode = errors.New("decode failed")
)

// FetchError is returned when the network round-trip fails or answers non-2xx.
// An expired presigned link shows up here as a 403.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// DecodeError is returned when the payload is not decodable audio
type DecodeError struct {
	URL    string
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("decode %s as %s: %v", e.URL, e.Format, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Kind returns "fetch", "decode" or "other" for metrics labels
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrDecode):
		return "decode"
	default:
		return "other"
	}
}
