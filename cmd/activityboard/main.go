package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opus-domini/activityboard/internal/api"
	"github.com/opus-domini/activityboard/internal/board"
	"github.com/opus-domini/activityboard/internal/config"
	"github.com/opus-domini/activityboard/internal/events"
	"github.com/opus-domini/activityboard/internal/httpui"
	"github.com/opus-domini/activityboard/internal/security"
)

func main() {
	os.Exit(runCLI(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type commandContext struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func serve(ctx commandContext) int {
	cfg, err := loadConfigFn()
	if err != nil {
		writef(ctx.stderr, "config: %v\n", err)
		return 1
	}
	logger := newLogger(ctx.stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := security.ValidateRemoteExposure(cfg.ListenAddr, cfg.AllowedOrigins); err != nil {
		slog.Warn("security baseline warning",
			"listen", cfg.ListenAddr,
			"allowed_origins", len(cfg.AllowedOrigins),
			"err", err,
		)
	}

	b := board.New(newAPIFn(cfg), board.Options{Unregister: cfg.Unregister, Logger: logger})
	mux := http.NewServeMux()
	httpui.Register(mux, b, security.New(cfg.AllowedOrigins), httpui.Options{
		Logger: logger,
		Events: events.NewHub(),
	})
	return run(cfg, mux)
}

func run(cfg config.Config, mux *http.ServeMux) int {
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      requestLog(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Timeout*2 + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)

	go func() {
		<-shutdownCh
		slog.Info("shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "err", err)
		}
	}()

	slog.Info("activityboard started",
		"listen", cfg.ListenAddr,
		"server", cfg.Server,
		"data_dir", cfg.DataDir,
		"unregister", cfg.Unregister,
		"log_level", cfg.LogLevel,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("activityboard stopped")
	return 0
}

func newAPI(cfg config.Config) board.API {
	return api.New(cfg.Server, api.Options{
		Token:     cfg.Token,
		Timeout:   cfg.Timeout,
		UserAgent: "activityboard/" + currentVersionFn(),
	})
}

func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start).Truncate(time.Millisecond))
	})
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lv slog.Level
	switch level {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv}))
}
