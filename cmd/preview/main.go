// Command preview serves the archive, stored results and the run journal over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"newsdigest/internal/archive"
	"newsdigest/internal/config"
	"newsdigest/internal/output"
	"newsdigest/internal/preview"
	"newsdigest/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if config.IsHelp(err) {
			fmt.Fprintln(os.Stdout, err)
			return
		}
		slog.Error("load config", "error", err)
		os.Exit(2)
	}

	log := newLogger(cfg.LogLevel)

	opts := preview.Options{
		Archive: archive.New(cfg.ArchivePath, cfg.ArchiveLimit, log),
		Results: output.New(cfg.OutputDir),
		APIKey:  cfg.PreviewAPIKey,
		Log:     log,
	}

	if cfg.DatabasePath != "" {
		if _, err := os.Stat(cfg.DatabasePath); err == nil {
			journal, err := storage.NewSQLite(cfg.DatabasePath)
			if err != nil {
				log.Error("open journal", "path", cfg.DatabasePath, "error", err)
				os.Exit(1)
			}
			defer func() { _ = journal.Close() }()
			opts.Runs = journal
		} else {
			log.Warn("journal not found, run endpoints disabled", "path", cfg.DatabasePath)
		}
	}

	srv := &http.Server{
		Addr:              cfg.PreviewAddr,
		Handler:           preview.NewServer(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", "error", err)
		}
	}()

	log.Info("preview server listening", "addr", cfg.PreviewAddr, "auth", cfg.PreviewAPIKey != "")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("serve", "error", err)
		os.Exit(1)
	}
	log.Info("preview server stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
