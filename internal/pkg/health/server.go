package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Vodeneev/acewatch/internal/pkg/health/handlers"
	"github.com/Vodeneev/acewatch/internal/pkg/performance"
)

// Options configures the status server.
type Options struct {
	Addr              string
	Service           string
	ReadHeaderTimeout time.Duration
	AllowedOrigins    []string

	// StaleAfter fails /health when no cycle finished for this long after
	// start; zero disables the check.
	StaleAfter time.Duration

	Board   *StatusBoard
	Metrics *performance.Tracker
	// Trigger requests an immediate poll cycle; nil disables POST /trigger.
	Trigger func() bool
}

// NewRouter builds the HTTP routes.
func NewRouter(opts Options) http.Handler {
	if opts.Board == nil {
		opts.Board = NewStatusBoard(opts.Service, time.Now())
	}
	if opts.Metrics == nil {
		opts.Metrics = performance.GetTracker()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	status := func() any { return opts.Board.Snapshot() }

	r.Get("/", handlers.HandleIndex(func() handlers.IndexView {
		s := opts.Board.Snapshot()
		v := handlers.IndexView{Service: s.Service, StartedAt: s.StartedAt, Cycles: s.Cycles, LastError: s.LastError}
		if s.LastCycleAt != nil {
			v.LastCycleAt = *s.LastCycleAt
		}
		if s.LastCycle != nil {
			v.Cards = s.LastCycle.Cards
			v.Appended = s.LastCycle.Appended
			v.Skipped = s.LastCycle.Skipped
			v.Errors = s.LastCycle.Errors
		}
		return v
	}))
	r.Get("/status", handlers.HandleJSON(status))
	r.Get("/ping", handlers.HandlePing)
	r.Get("/health", handlers.HandleHealth(func() error { return opts.Board.Stale(time.Now(), opts.StaleAfter) }))
	r.Get("/metrics", handlers.HandleJSON(func() any { return opts.Metrics.GetMetrics() }))
	if opts.Trigger != nil {
		r.Post("/trigger", handlers.HandleTrigger(opts.Trigger))
	}
	return r
}

// Run serves until ctx is cancelled. It returns once the listener is
// started; listen errors after that are logged.
func Run(ctx context.Context, opts Options) error {
	if opts.ReadHeaderTimeout <= 0 {
		return errors.New("read_header_timeout must be specified in config")
	}

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           NewRouter(opts),
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		slog.Info("Health server listening", "service", opts.Service, "addr", opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Health server error", "service", opts.Service, "error", err)
		}
	}()
	return nil
}

// AddrFor returns the listen address for port.
func AddrFor(port int) (string, error) {
	if port <= 0 {
		return "", fmt.Errorf("port must be greater than 0, got %d", port)
	}
	return fmt.Sprintf(":%d", port), nil
}
