package playback

import (
	"fmt"
	"strings"

	"github.com/gopxl/beep/v2"
)

// Role identifies one of the two playback streams
type Role int

const (
	Background Role = iota
	Voiceover
)

// Roles lists every role in graph order
var Roles = []Role{Background, Voiceover}

func (r Role) String() string {
	switch r {
	case Background:
		return "background"
	case Voiceover:
		return "voiceover"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ParseRole parses "background" or "voiceover"
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "background":
		return Background, nil
	case "voiceover":
		return Voiceover, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// PlayOptions controls one Play call on a channel
type PlayOptions struct {
	// Loop repeats the clip until stopped. OnEnded never fires for looping plays.
	Loop bool
	// OnEnded fires once when a non-looping clip ends naturally or fails to load.
	// It runs on its own goroutine and never after a manual stop.
	OnEnded func()
}

// MixState is the pair of user-facing level controls, both 0-100
type MixState struct {
	MixRatio     int `json:"mixRatio"`
	MasterVolume int `json:"masterVolume"`
}

// Output is the audio device the engine graph is played into.
// Lock must exclude the goroutine that pulls samples from the graph.
type Output interface {
	Play(s beep.Streamer)
	Lock()
	Unlock()
	Close() error
}
