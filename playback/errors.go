package playback

import (
	"errors"
	"fmt"
)

var (
	// ErrDestroyed matches every LifecycleError
	ErrDestroyed = errors.New("engine destroyed")
	// ErrSuperseded is returned by Play when a Stop or a newer Play won while loading
	ErrSuperseded = errors.New("play superseded")
	// ErrLevelRange is returned for gains outside [0,1] or levels outside [0,100]
	ErrLevelRange = errors.New("level out of range")
)

// LifecycleError reports an operation on a destroyed engine. It is a programming
// error in the caller and must not be swallowed.
type LifecycleError struct {
	Op string
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, ErrDestroyed)
}

func (e *LifecycleError) Is(target error) bool { return target == ErrDestroyed }

// LoadError wraps an assets fetch or decode failure on one channel
type LoadError struct {
	Role Role
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s channel: %v", e.Role, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
