package playback

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"mixdeck/assets"

	"github.com/jonboulle/clockwork"
)

// DefaultFailureGrace is how long a failed load waits before reporting the track as ended
const DefaultFailureGrace = 100 * time.Millisecond

// Options configures an Engine
type Options struct {
	Loader assets.Loader
	Output Output
	// Clock drives the failure grace timer; defaults to the real clock
	Clock        clockwork.Clock
	FailureGrace time.Duration
	// Rand seeds the voiceover shuffle; nil picks a random seed
	Rand   *rand.Rand
	Logger *slog.Logger
}

// Engine composes the mix bus, the two channels and their sequencers behind
// one control surface. Once Destroy has run, every method returns a LifecycleError.
type Engine struct {
	output     Output
	bus        *MixBus
	channels   map[Role]*Channel
	sequencers map[Role]Sequencer
	logger     *slog.Logger

	mu        sync.RWMutex
	destroyed bool
}

// New builds the audio graph and starts playing it into opts.Output
func New(opts Options) (*Engine, error) {
	if opts.Loader == nil {
		return nil, errors.New("engine needs a loader")
	}
	if opts.Output == nil {
		return nil, errors.New("engine needs an output")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.FailureGrace <= 0 {
		opts.FailureGrace = DefaultFailureGrace
	}
	if opts.Logger == nil {
		opts.Logger = slog.With("component", "engine")
	}

	bg := newChannel(Background, opts.Loader, opts.Output, opts.Clock, opts.FailureGrace, opts.Logger)
	vo := newChannel(Voiceover, opts.Loader, opts.Output, opts.Clock, opts.FailureGrace, opts.Logger)

	e := &Engine{
		output: opts.Output,
		bus:    newMixBus(opts.Output, bg, vo),
		channels: map[Role]*Channel{
			Background: bg,
			Voiceover:  vo,
		},
		sequencers: map[Role]Sequencer{
			Background: NewLoopSequencer(),
			Voiceover:  NewShuffleSequencer(opts.Rand),
		},
		logger: opts.Logger,
	}

	// Equal mix, full master until the caller applies its own levels.
	if err := e.bus.SetMixRatio(50); err != nil {
		return nil, err
	}

	opts.Output.Play(e.bus.node())
	return e, nil
}

func (e *Engine) check(op string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.destroyed {
		return &LifecycleError{Op: op}
	}
	return nil
}

// Play starts url on the channel for role, replacing whatever it played
func (e *Engine) Play(ctx context.Context, role Role, url string, opts PlayOptions) error {
	if err := e.check("play " + role.String()); err != nil {
		return err
	}
	ch, ok := e.channels[role]
	if !ok {
		return errors.New("unknown role " + role.String())
	}
	return ch.Play(ctx, url, opts)
}

// PlayBackground starts a background clip, optionally looping it
func (e *Engine) PlayBackground(ctx context.Context, url string, loop bool) error {
	return e.Play(ctx, Background, url, PlayOptions{Loop: loop})
}

// PlayVoiceover starts a one-shot voiceover clip; onEnded fires once when it completes
func (e *Engine) PlayVoiceover(ctx context.Context, url string, onEnded func()) error {
	return e.Play(ctx, Voiceover, url, PlayOptions{OnEnded: onEnded})
}

// Stop stops one channel
func (e *Engine) Stop(role Role) error {
	if err := e.check("stop " + role.String()); err != nil {
		return err
	}
	e.channels[role].Stop()
	return nil
}

// StopAll stops both channels
func (e *Engine) StopAll() error {
	if err := e.check("stop all"); err != nil {
		return err
	}
	for _, role := range Roles {
		e.channels[role].Stop()
	}
	return nil
}

// SetMixRatio balances background (0) against voiceover (100)
func (e *Engine) SetMixRatio(ratio int) error {
	if err := e.check("set mix ratio"); err != nil {
		return err
	}
	return e.bus.SetMixRatio(ratio)
}

// SetMasterVolume sets the master level, 0-100
func (e *Engine) SetMasterVolume(volume int) error {
	if err := e.check("set master volume"); err != nil {
		return err
	}
	return e.bus.SetMasterVolume(volume)
}

// MixState returns the current level controls
func (e *Engine) MixState() (MixState, error) {
	if err := e.check("mix state"); err != nil {
		return MixState{}, err
	}
	return e.bus.State(), nil
}

// Gains returns the effective background, voiceover and master gains
func (e *Engine) Gains() (background, voiceover, master float64, err error) {
	if err := e.check("gains"); err != nil {
		return 0, 0, 0, err
	}
	return e.channels[Background].Gain(), e.channels[Voiceover].Gain(), e.bus.MasterGain(), nil
}

// IsPlaying reports whether either channel has a source before its end
func (e *Engine) IsPlaying() (bool, error) {
	if err := e.check("is playing"); err != nil {
		return false, err
	}
	return e.channels[Background].IsActive() || e.channels[Voiceover].IsActive(), nil
}

// IsActive reports whether the channel for role has a source before its end
func (e *Engine) IsActive(role Role) (bool, error) {
	if err := e.check("is active"); err != nil {
		return false, err
	}
	return e.channels[role].IsActive(), nil
}

// Sequencer returns the next-track policy for role
func (e *Engine) Sequencer(role Role) (Sequencer, error) {
	if err := e.check("sequencer"); err != nil {
		return nil, err
	}
	return e.sequencers[role], nil
}

// Destroy stops everything and releases the output. It may run once.
func (e *Engine) Destroy() error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return &LifecycleError{Op: "destroy"}
	}
	e.destroyed = true
	e.mu.Unlock()

	for _, role := range Roles {
		e.channels[role].close()
	}
	if err := e.output.Close(); err != nil {
		e.logger.Warn("Failed to close audio output", slog.Any("error", err))
		return err
	}
	e.logger.Info("Engine destroyed")
	return nil
}
