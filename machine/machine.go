package machine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"mixdeck/api"
	"mixdeck/assets"
	"mixdeck/config"
	"mixdeck/playback"
	"mixdeck/session"
	"mixdeck/storage"

	"github.com/gopxl/beep/v2"
)

// Machine represents the main application state
type Machine struct {
	config    *config.Config
	store     *storage.Client
	engine    *playback.Engine
	session   *session.Controller
	monitor   *LibraryMonitor
	api       *api.Server
	newOutput func(cfg config.MixerConfig) (playback.Output, error)
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	errorChan chan error
}

// New creates a new Machine instance
func New(cfg *config.Config) *Machine {
	ctx, cancel := context.WithCancel(context.Background())

	return &Machine{
		config:    cfg,
		newOutput: speakerOutput,
		logger:    slog.With("component", "machine"),
		ctx:       ctx,
		cancel:    cancel,
		errorChan: make(chan error, 10),
	}
}

func speakerOutput(cfg config.MixerConfig) (playback.Output, error) {
	return playback.NewSpeakerOutput(beep.SampleRate(cfg.SampleRate), cfg.BufferSize)
}

// Initialize sets up the machine components
func (m *Machine) Initialize() error {
	m.logger.Info("Initializing machine...")

	store, err := storage.New(m.ctx, m.config.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	m.store = store

	output, err := m.newOutput(m.config.Mixer)
	if err != nil {
		return fmt.Errorf("failed to open audio output: %w", err)
	}

	loader := assets.NewHTTPLoader(&http.Client{Timeout: m.config.Mixer.LoadTimeout}, beep.SampleRate(m.config.Mixer.SampleRate))
	engine, err := playback.New(playback.Options{
		Loader:       loader,
		Output:       output,
		FailureGrace: m.config.Mixer.FailureGrace,
	})
	if err != nil {
		output.Close()
		return fmt.Errorf("failed to create engine: %w", err)
	}
	m.engine = engine

	if err := engine.SetMixRatio(m.config.Mixer.MixRatio); err != nil {
		return fmt.Errorf("failed to apply mix ratio: %w", err)
	}
	if err := engine.SetMasterVolume(m.config.Mixer.MasterVolume); err != nil {
		return fmt.Errorf("failed to apply master volume: %w", err)
	}

	ctrl, err := session.New(session.Options{
		Engine:       engine,
		PrerollDelay: m.config.Session.PrerollDelay,
		VoiceoverGap: m.config.Session.VoiceoverGap,
	})
	if err != nil {
		return fmt.Errorf("failed to create session controller: %w", err)
	}
	m.session = ctrl

	m.monitor = NewLibraryMonitor(store, ctrl, m.config.Library.RefreshInterval, nil, &m.wg)

	m.api = api.New(api.Options{
		Library:         store,
		Player:          ctrl,
		OnLibraryChange: m.monitor.Refresh,
		MaxUploadBytes:  m.config.HTTP.MaxUploadBytes,
		UploadRPM:       m.config.HTTP.UploadRPM,
	})

	m.logger.Info("Machine initialized successfully")
	return nil
}

// Start begins all machine operations
func (m *Machine) Start() error {
	m.logger.Info("Starting machine operations...")

	// Pools fill in the background; an empty pool simply stays idle
	m.monitor.Start(m.ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.api.Serve(m.ctx, m.config.HTTP.Listen); err != nil {
			m.logger.Error("HTTP server failed", slog.Any("error", err))
			select {
			case m.errorChan <- err:
			default:
			}
		}
	}()

	if m.config.Session.AutoStart {
		if _, err := m.session.Start(); err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}
	}

	m.logger.Info("Machine started successfully")
	return nil
}

// Stop gracefully shuts down the machine
func (m *Machine) Stop() error {
	m.logger.Info("Stopping machine...")

	// Cancel context to stop the server and the monitor
	m.cancel()

	if m.monitor != nil {
		m.monitor.Stop()
	}

	var errs []error
	if m.session != nil {
		errs = append(errs, m.session.Close())
	}
	if m.engine != nil {
		errs = append(errs, m.engine.Destroy())
	}

	// Wait for all goroutines to finish
	m.wg.Wait()

	m.logger.Info("Machine stopped")
	return errors.Join(errs...)
}

// Wait blocks until the machine is stopped
func (m *Machine) Wait() error {
	select {
	case <-m.ctx.Done():
		return m.ctx.Err()
	case err := <-m.errorChan:
		return err
	}
}

// Session returns the play session controller
func (m *Machine) Session() *session.Controller {
	return m.session
}

// Error returns the error channel for monitoring errors
func (m *Machine) Error() <-chan error {
	return m.errorChan
}
