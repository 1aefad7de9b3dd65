package machine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mixdeck/playback"
	"mixdeck/session"
	"mixdeck/storage"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Lister lists stored clips of one kind with playable URLs
type Lister interface {
	List(ctx context.Context, kind string) ([]storage.Object, error)
}

// PoolSetter receives refreshed pools
type PoolSetter interface {
	SetPool(role playback.Role, clips []session.Clip) error
}

// LibraryMonitor keeps the session pools in sync with the object store.
// Presigned URLs expire, so pools are refreshed on an interval as well as on demand.
type LibraryMonitor struct {
	lister   Lister
	pools    PoolSetter
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	wg       *sync.WaitGroup
	// refreshes are serialized so pools are never set out of order
	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewLibraryMonitor creates a monitor; interval <= 0 disables periodic refresh
func NewLibraryMonitor(lister Lister, pools PoolSetter, interval time.Duration, clock clockwork.Clock, wg *sync.WaitGroup) *LibraryMonitor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LibraryMonitor{
		lister:   lister,
		pools:    pools,
		interval: interval,
		clock:    clock,
		logger:   slog.With("component", "library-monitor"),
		wg:       wg,
		cancel:   func() {},
	}
}

// Refresh lists both pools and hands them to the session. A role whose
// listing fails keeps its previous pool.
func (l *LibraryMonitor) Refresh(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	results := make([][]storage.Object, len(playback.Roles))
	errs := make([]error, len(playback.Roles))

	var g errgroup.Group
	for i, role := range playback.Roles {
		g.Go(func() error {
			results[i], errs[i] = l.lister.List(ctx, role.String())
			return nil
		})
	}
	g.Wait()

	for i, role := range playback.Roles {
		if errs[i] != nil {
			errs[i] = fmt.Errorf("list %s: %w", role, errs[i])
			continue
		}
		clips := make([]session.Clip, 0, len(results[i]))
		for _, obj := range results[i] {
			clips = append(clips, session.Clip{ID: obj.Key, URL: obj.URL})
		}
		if err := l.pools.SetPool(role, clips); err != nil {
			errs[i] = fmt.Errorf("set %s pool: %w", role, err)
			continue
		}
		l.logger.Debug("Pool refreshed", slog.String("role", role.String()), slog.Int("clips", len(clips)))
	}
	return errors.Join(errs...)
}

// Start refreshes once, then on every interval until ctx is done or Stop is called
func (l *LibraryMonitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		l.logger.Info("Starting library monitoring", slog.Duration("interval", l.interval))
		l.refresh(ctx)

		if l.interval <= 0 {
			<-ctx.Done()
			return
		}

		ticker := l.clock.NewTicker(l.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.Chan():
				l.refresh(ctx)
			case <-ctx.Done():
				l.logger.Info("Library monitoring stopped")
				return
			}
		}
	}()
}

// Stop stops periodic refresh
func (l *LibraryMonitor) Stop() {
	l.cancel()
}

func (l *LibraryMonitor) refresh(ctx context.Context) {
	if err := l.Refresh(ctx); err != nil && ctx.Err() == nil {
		l.logger.Error("Failed to refresh library", slog.Any("error", err))
	}
}
