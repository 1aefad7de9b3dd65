package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"mixdeck/metrics"
	"mixdeck/playback"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// DefaultVoiceoverGap is the pause between two voiceover clips
const DefaultVoiceoverGap = 500 * time.Millisecond

var (
	ErrAlreadyPlaying = errors.New("session already playing")
	ErrNotPlaying     = errors.New("no session playing")
	ErrClosed         = errors.New("controller closed")
)

// Clip is one playable entry of a pool
type Clip struct {
	ID  string `json:"id"`
	URL string `json:"url"`
	// DurationHint is informational only; end of playback is detected from the decoded length
	DurationHint time.Duration `json:"durationHint,omitempty"`
}

// Engine is the part of playback.Engine the controller drives
type Engine interface {
	Play(ctx context.Context, role playback.Role, url string, opts playback.PlayOptions) error
	StopAll() error
	SetMixRatio(ratio int) error
	SetMasterVolume(volume int) error
	MixState() (playback.MixState, error)
	IsActive(role playback.Role) (bool, error)
	Sequencer(role playback.Role) (playback.Sequencer, error)
}

// Options configures a Controller
type Options struct {
	Engine Engine
	Clock  clockwork.Clock
	// PrerollDelay holds the first voiceover back after Start; 0 starts it immediately
	PrerollDelay time.Duration
	// VoiceoverGap is the pause after a voiceover ends; 0 uses DefaultVoiceoverGap
	VoiceoverGap time.Duration
	Logger       *slog.Logger
}

// Status is a snapshot of the controller for the control surface
type Status struct {
	Playing   bool              `json:"playing"`
	SessionID string            `json:"sessionId,omitempty"`
	StartedAt *time.Time        `json:"startedAt,omitempty"`
	Mix       playback.MixState `json:"mix"`
	Streams   []StreamStatus    `json:"streams"`
}

// StreamStatus describes one role inside a Status
type StreamStatus struct {
	Role     string `json:"role"`
	PoolSize int    `json:"poolSize"`
	Index    int    `json:"index"`
	Clip     *Clip  `json:"clip,omitempty"`
	Active   bool   `json:"active"`
}

// play is one Start..Stop span. Deferred callbacks carry its id and
// do nothing once another play (or none) is current.
type play struct {
	id        uuid.UUID
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	// token counts launches per role; only the latest launch may advance
	token   map[playback.Role]uint64
	pending map[playback.Role]clockwork.Timer
}

// Controller drives the engine through the two pools: background clips play
// in order one after another, voiceover clips play shuffled with a gap between them.
type Controller struct {
	engine     Engine
	clock      clockwork.Clock
	preroll    time.Duration
	gap        time.Duration
	logger     *slog.Logger
	sequencers map[playback.Role]playback.Sequencer

	mu      sync.Mutex
	pools   map[playback.Role][]Clip
	current *play
	closed  bool
	wg      sync.WaitGroup
}

// New creates a controller with empty pools
func New(opts Options) (*Controller, error) {
	if opts.Engine == nil {
		return nil, errors.New("controller needs an engine")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.VoiceoverGap <= 0 {
		opts.VoiceoverGap = DefaultVoiceoverGap
	}
	if opts.Logger == nil {
		opts.Logger = slog.With("component", "session")
	}

	c := &Controller{
		engine:     opts.Engine,
		clock:      opts.Clock,
		preroll:    opts.PrerollDelay,
		gap:        opts.VoiceoverGap,
		logger:     opts.Logger,
		sequencers: make(map[playback.Role]playback.Sequencer, len(playback.Roles)),
		pools:      make(map[playback.Role][]Clip, len(playback.Roles)),
	}
	for _, role := range playback.Roles {
		seq, err := opts.Engine.Sequencer(role)
		if err != nil {
			return nil, fmt.Errorf("sequencer for %s: %w", role, err)
		}
		c.sequencers[role] = seq
	}
	return c, nil
}

// SetPool replaces the clips of one role. A voiceover pool that goes from
// empty to non-empty gets a fresh shuffle; any other change keeps the order.
// If a play is running and the role was idle for lack of clips, it starts now,
// or for voiceover once the rest of the pre-roll has elapsed.
func (c *Controller) SetPool(role playback.Role, clips []Clip) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	seq, ok := c.sequencers[role]
	if !ok {
		return fmt.Errorf("unknown role %s", role)
	}

	prev := len(c.pools[role])
	c.pools[role] = slices.Clone(clips)
	n := len(clips)
	if prev == 0 && n > 0 {
		seq.Reset(n)
	} else {
		seq.Resize(n)
	}
	metrics.SetPoolSize(role.String(), n)
	c.logger.Debug("Pool updated",
		slog.String("role", role.String()),
		slog.Int("previous", prev),
		slog.Int("size", n))

	if p := c.current; p != nil && prev == 0 && n > 0 && p.pending[role] == nil {
		if active, _ := c.engine.IsActive(role); !active {
			if wait := c.prerollLeft(p, role); wait > 0 {
				c.scheduleLocked(p, role, wait, func() { c.first(p.id, role) })
			} else if idx, ok := seq.First(); ok {
				c.launchLocked(p, role, idx)
			}
		}
	}
	return nil
}

// prerollLeft is how long role still has to wait before its first clip of play p
func (c *Controller) prerollLeft(p *play, role playback.Role) time.Duration {
	if role != playback.Voiceover || c.preroll <= 0 {
		return 0
	}
	return c.preroll - c.clock.Since(p.startedAt)
}

// Pool returns a copy of the clips of one role
func (c *Controller) Pool(role playback.Role) []Clip {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.pools[role])
}

// Start begins a play: background immediately, voiceover after the pre-roll delay
func (c *Controller) Start() (uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return uuid.Nil, ErrClosed
	}
	if c.current != nil {
		return c.current.id, ErrAlreadyPlaying
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &play{
		id:        uuid.New(),
		startedAt: c.clock.Now(),
		ctx:       ctx,
		cancel:    cancel,
		token:     make(map[playback.Role]uint64, len(playback.Roles)),
		pending:   make(map[playback.Role]clockwork.Timer, len(playback.Roles)),
	}
	c.current = p
	metrics.RecordSessionStart()
	c.logger.Info("Session started",
		slog.String("session", p.id.String()),
		slog.Int("background", len(c.pools[playback.Background])),
		slog.Int("voiceover", len(c.pools[playback.Voiceover])))

	if idx, ok := c.sequencers[playback.Background].First(); ok {
		c.launchLocked(p, playback.Background, idx)
	}

	if len(c.pools[playback.Voiceover]) > 0 {
		if c.preroll > 0 {
			c.scheduleLocked(p, playback.Voiceover, c.preroll, func() { c.first(p.id, playback.Voiceover) })
		} else if idx, ok := c.sequencers[playback.Voiceover].First(); ok {
			c.launchLocked(p, playback.Voiceover, idx)
		}
	}
	return p.id, nil
}

// Stop ends the current play: pending timers and loads are cancelled and both channels stop
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.current
	if p == nil {
		return ErrNotPlaying
	}
	c.current = nil
	for role, t := range p.pending {
		t.Stop()
		delete(p.pending, role)
	}
	p.cancel()

	// channels are silenced before another Start can take the lock
	err := c.engine.StopAll()

	metrics.RecordSessionStop()
	c.logger.Info("Session stopped",
		slog.String("session", p.id.String()),
		slog.Duration("elapsed", c.clock.Since(p.startedAt)))
	return err
}

// Close stops any play and waits for in-flight loads to return
func (c *Controller) Close() error {
	err := c.Stop()
	if errors.Is(err, ErrNotPlaying) {
		err = nil
	}
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.wg.Wait()
	return err
}

// Playing reports whether a play is running
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// SetMixRatio sets the background/voiceover balance, 0-100
func (c *Controller) SetMixRatio(ratio int) error {
	return c.engine.SetMixRatio(ratio)
}

// SetMasterVolume sets the master level, 0-100
func (c *Controller) SetMasterVolume(volume int) error {
	return c.engine.SetMasterVolume(volume)
}

// Status returns a snapshot of the play, the pools and the levels
func (c *Controller) Status() (Status, error) {
	mix, err := c.engine.MixState()
	if err != nil {
		return Status{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{Mix: mix}
	if p := c.current; p != nil {
		st.Playing = true
		st.SessionID = p.id.String()
		started := p.startedAt
		st.StartedAt = &started
	}
	for _, role := range playback.Roles {
		pool := c.pools[role]
		ss := StreamStatus{
			Role:     role.String(),
			PoolSize: len(pool),
			Index:    c.sequencers[role].Current(),
		}
		if ss.Index >= 0 && ss.Index < len(pool) {
			clip := pool[ss.Index]
			ss.Clip = &clip
		}
		ss.Active, _ = c.engine.IsActive(role)
		st.Streams = append(st.Streams, ss)
	}
	return st, nil
}

// launchLocked plays clip idx of role on its own goroutine
func (c *Controller) launchLocked(p *play, role playback.Role, idx int) {
	clip := c.pools[role][idx]
	p.token[role]++
	token := p.token[role]

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.play(p, role, clip, token)
	}()
}

func (c *Controller) play(p *play, role playback.Role, clip Clip, token uint64) {
	log := c.logger.With(
		slog.String("session", p.id.String()),
		slog.String("role", role.String()),
		slog.String("clip", clip.ID))

	err := c.engine.Play(p.ctx, role, clip.URL, playback.PlayOptions{
		OnEnded: func() { c.ended(p.id, role, token) },
	})
	switch {
	case err == nil:
		log.Debug("Clip started")
	case errors.Is(err, playback.ErrSuperseded), errors.Is(err, context.Canceled):
		log.Debug("Clip superseded before it started")
	case playback.IsLoadError(err):
		// the channel reports the end after its grace period, which advances the pool
		log.Warn("Clip failed to load, skipping", slog.Any("error", err))
	default:
		log.Error("Failed to play clip", slog.Any("error", err))
	}
}

// ended runs when the latest launch of role finished or failed
func (c *Controller) ended(id uuid.UUID, role playback.Role, token uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.current
	if p == nil || p.id != id || p.token[role] != token || p.pending[role] != nil {
		return
	}
	if role == playback.Voiceover && c.gap > 0 {
		c.scheduleLocked(p, role, c.gap, func() { c.advance(id, role) })
		return
	}
	c.advanceLocked(p, role)
}

func (c *Controller) advance(id uuid.UUID, role playback.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.current
	if p == nil || p.id != id {
		return
	}
	delete(p.pending, role)
	c.advanceLocked(p, role)
}

func (c *Controller) advanceLocked(p *play, role playback.Role) {
	idx, ok := c.sequencers[role].Advance()
	if !ok {
		c.logger.Debug("Pool empty, stream idle", slog.String("role", role.String()))
		return
	}
	c.launchLocked(p, role, idx)
}

// first starts role at the head of its order once the pre-roll has elapsed
func (c *Controller) first(id uuid.UUID, role playback.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.current
	if p == nil || p.id != id {
		return
	}
	delete(p.pending, role)
	if idx, ok := c.sequencers[role].First(); ok {
		c.launchLocked(p, role, idx)
	}
}

func (c *Controller) scheduleLocked(p *play, role playback.Role, d time.Duration, f func()) {
	p.pending[role] = c.clock.AfterFunc(d, f)
}
