package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mixdeck/assets"
	"mixdeck/metrics"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/jonboulle/clockwork"
)

// Channel owns the single playing source of one role and that role's gain stage.
//
// Lock order is c.mu, then the output lock. Nothing that holds the output lock
// may take c.mu.
type Channel struct {
	role   Role
	loader assets.Loader
	output Output
	clock  clockwork.Clock
	grace  time.Duration
	logger *slog.Logger

	input *beep.Mixer
	gain  *effects.Gain

	mu         sync.Mutex
	gen        uint64
	active     *source
	cancelLoad context.CancelFunc
	graceTimer clockwork.Timer
	level      float64
	closed     bool
}

func newChannel(role Role, loader assets.Loader, output Output, clock clockwork.Clock, grace time.Duration, logger *slog.Logger) *Channel {
	input := &beep.Mixer{}
	return &Channel{
		role:   role,
		loader: loader,
		output: output,
		clock:  clock,
		grace:  grace,
		logger: logger.With(slog.String("channel", role.String())),
		input:  input,
		gain:   &effects.Gain{Streamer: input},
		level:  1,
	}
}

// Role returns the stream this channel plays
func (c *Channel) Role() Role { return c.role }

// node is the channel's output into the mix bus
func (c *Channel) node() beep.Streamer { return c.gain }

// Play replaces whatever this channel plays with the clip at url.
// The previous source is stopped before the load starts. Play blocks for the
// fetch and decode; a Stop or a newer Play issued meanwhile wins and Play
// returns ErrSuperseded without starting anything.
func (c *Channel) Play(ctx context.Context, url string, opts PlayOptions) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return &LifecycleError{Op: "play " + c.role.String()}
	}
	// a caller that was already cancelled must not displace the current source
	if err := ctx.Err(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.stopLocked()
	c.gen++
	gen := c.gen
	loadCtx, cancel := context.WithCancel(ctx)
	c.cancelLoad = cancel
	c.mu.Unlock()
	defer cancel()

	audio, err := c.loader.Load(loadCtx, url)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &LifecycleError{Op: "play " + c.role.String()}
	}
	if gen != c.gen {
		return ErrSuperseded
	}
	c.cancelLoad = nil

	if err != nil {
		metrics.RecordLoadFailure(c.role.String(), assets.Kind(err))
		c.logger.Error("Failed to load track, treating it as ended", slog.Any("error", err))
		if !opts.Loop && opts.OnEnded != nil {
			c.graceTimer = c.clock.AfterFunc(c.grace, c.ended(gen, nil, opts.OnEnded))
		}
		return &LoadError{Role: c.role, Err: err}
	}

	src := &source{streamer: audio.Streamer(), loop: opts.Loop}
	if !opts.Loop {
		src.onDrain = c.ended(gen, src, opts.OnEnded)
	}

	c.output.Lock()
	c.input.Add(src)
	c.output.Unlock()

	c.active = src
	metrics.RecordTrackStarted(c.role.String())
	c.logger.Debug("Track started",
		slog.Duration("duration", audio.Duration()),
		slog.Bool("loop", opts.Loop))

	return nil
}

// ended builds the completion hook for one Play call. It only acts while that
// call is still the channel's current generation, so a stop or a newer play
// silences it.
func (c *Channel) ended(gen uint64, src *source, onEnded func()) func() {
	return func() {
		c.mu.Lock()
		current := gen == c.gen && !c.closed
		if current {
			if src != nil && c.active == src {
				c.active = nil
				c.output.Lock()
				c.input.Clear()
				c.output.Unlock()
			}
			c.graceTimer = nil
		}
		c.mu.Unlock()

		if !current {
			return
		}
		if src != nil {
			metrics.RecordTrackEnded(c.role.String())
		}
		if onEnded != nil {
			onEnded()
		}
	}
}

// Stop halts the active source and cancels any in-flight load. Safe when idle.
func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.gen++
}

func (c *Channel) stopLocked() {
	if c.cancelLoad != nil {
		c.cancelLoad()
		c.cancelLoad = nil
	}
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
	if c.active != nil {
		c.output.Lock()
		c.active.stopped = true
		c.input.Clear()
		c.output.Unlock()
		c.active = nil
	}
}

// close stops the channel for good; later Plays fail with a LifecycleError
func (c *Channel) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.gen++
	c.closed = true
}

// SetGain sets the channel gain stage, audible immediately
func (c *Channel) SetGain(level float64) error {
	if level < 0 || level > 1 {
		return fmt.Errorf("channel gain %v: %w", level, ErrLevelRange)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.output.Lock()
	c.gain.Gain = level - 1
	c.output.Unlock()
	c.level = level
	return nil
}

// Gain returns the current channel gain in [0,1]
func (c *Channel) Gain() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// IsActive reports whether a source is assigned and has not yet reached its end
func (c *Channel) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return false
	}
	c.output.Lock()
	defer c.output.Unlock()
	return c.active.playing()
}

// IsLoadError reports whether err came from a failed fetch or decode
func IsLoadError(err error) bool {
	var loadErr *LoadError
	return errors.As(err, &loadErr)
}
