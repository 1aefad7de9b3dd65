package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"mixdeck/session"
	"mixdeck/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxUploadBytes caps the size of one uploaded clip
const DefaultMaxUploadBytes = 50 << 20

// Library is the clip store behind the file endpoints
type Library interface {
	Upload(ctx context.Context, kind, name, contentType string, body io.Reader, size int64) (string, error)
	List(ctx context.Context, kind string) ([]storage.Object, error)
	Delete(ctx context.Context, key string) error
}

// Player is the play session behind the playback endpoints
type Player interface {
	Start() (uuid.UUID, error)
	Stop() error
	SetMixRatio(ratio int) error
	SetMasterVolume(volume int) error
	Status() (session.Status, error)
}

// Options configures a Server
type Options struct {
	Library Library
	Player  Player
	// OnLibraryChange runs after a successful upload or delete
	OnLibraryChange func(ctx context.Context) error
	MaxUploadBytes  int64
	// UploadRPM limits uploads per client IP per minute; 0 disables the limit
	UploadRPM int
	Logger    *slog.Logger
}

// Server is the HTTP control surface: clip library and playback controls
type Server struct {
	library   Library
	player    Player
	onChange  func(ctx context.Context) error
	maxUpload int64
	uploadRPM int
	logger    *slog.Logger
}

// New creates a Server
func New(opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.With("component", "api")
	}
	return &Server{
		library:   opts.Library,
		player:    opts.Player,
		onChange:  opts.OnLibraryChange,
		maxUpload: opts.MaxUploadBytes,
		uploadRPM: opts.UploadRPM,
		logger:    opts.Logger,
	}
}

// Handler returns the router with every route mounted
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.uploadRPM > 0 {
				r.Use(uploadLimit(s.uploadRPM, time.Minute))
			}
			r.Post("/upload", s.handleUpload)
		})
		r.Get("/files", s.handleListFiles)
		r.Delete("/delete", s.handleDelete)

		r.Route("/playback", func(r chi.Router) {
			r.Post("/start", s.handleStart)
			r.Post("/stop", s.handleStop)
			r.Put("/mix", s.handleMix)
			r.Put("/volume", s.handleVolume)
			r.Get("/state", s.handleState)
		})
	})
	return r
}

func uploadLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			writeError(w, http.StatusTooManyRequests, "Too many uploads, try again later")
		}),
	)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "HTTP request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// Serve runs the server on addr until ctx is done
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
