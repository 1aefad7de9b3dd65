package playback

import "github.com/gopxl/beep/v2"

// source is the one clip a channel is currently playing.
// All fields are guarded by the output lock.
type source struct {
	streamer beep.StreamSeeker
	loop     bool
	stopped  bool
	drained  bool
	// onDrain runs once, on a new goroutine, when a non-looping clip reaches its end
	onDrain func()
}

var _ beep.Streamer = (*source)(nil)

func (s *source) Stream(samples [][2]float64) (n int, ok bool) {
	if s.stopped || s.drained {
		return 0, false
	}

	for n < len(samples) {
		m, more := s.streamer.Stream(samples[n:])
		n += m
		if more && m > 0 {
			continue
		}
		if s.loop && s.streamer.Len() > 0 {
			if err := s.streamer.Seek(0); err == nil {
				continue
			}
		}
		s.drained = true
		break
	}

	if s.drained && s.onDrain != nil {
		f := s.onDrain
		s.onDrain = nil
		// never call back into the engine while the output lock is held
		go f()
	}

	if n == 0 {
		return 0, false
	}
	return n, true
}

func (s *source) Err() error {
	return s.streamer.Err()
}

// playing reports whether the clip is still before its known end
func (s *source) playing() bool {
	if s.stopped || s.drained {
		return false
	}
	return s.loop || s.streamer.Position() < s.streamer.Len()
}
