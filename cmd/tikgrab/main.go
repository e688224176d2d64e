package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"

	"github.com/tikgrab/tikgrab/internal/config"
	"github.com/tikgrab/tikgrab/internal/extract"
	"github.com/tikgrab/tikgrab/internal/geoip"
	"github.com/tikgrab/tikgrab/internal/metrics"
	"github.com/tikgrab/tikgrab/internal/retention"
	"github.com/tikgrab/tikgrab/internal/server"
	"github.com/tikgrab/tikgrab/internal/storage"
	"github.com/tikgrab/tikgrab/web"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, arg.ErrHelp) {
		config.WriteHelp(os.Stdout)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "tikgrab: %v\n", err)
		os.Exit(2)
	}

	slog.SetDefault(newLogger(cfg.LogFormat, os.Stderr))

	if err := run(cfg); err != nil {
		slog.Error("tikgrab: fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	if cfg.InstallYtdlp {
		installCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		executable, version, err := extract.Install(installCtx)
		cancel()
		if err != nil {
			return err
		}
		slog.Info("yt-dlp ready", "executable", executable, "version", version)
	}

	store, err := storage.New(cfg.StorageDir)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	slog.Info("storage directory ready", "path", store.Root())

	recorder := metrics.NewProm("tikgrab", nil)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	scheduler := retention.NewScheduler(recorder)
	scheduler.Start(bgCtx)
	retention.StartSweepLoop(bgCtx, store.Root(), cfg.Retention, cfg.SweepInterval, recorder)

	locator := geoip.Open(cfg.GeoIPDBPath)
	defer locator.Close()

	var webFS fs.FS
	if sub, err := fs.Sub(web.DistFS, "dist"); err == nil {
		webFS = sub
		slog.Info("embedded frontend loaded")
	} else {
		slog.Warn("no embedded frontend found, static serving disabled", "error", err)
	}

	srv := server.New(server.Config{
		Store: store,
		Fetcher: extract.New(extract.Options{
			Format:        cfg.Format,
			ExtractorArgs: cfg.ExtractorArgs,
			Timeout:       cfg.ExtractTimeout,
		}),
		Scheduler:      scheduler,
		Retention:      cfg.Retention,
		Locator:        locator,
		Metrics:        recorder,
		MetricsHandler: metrics.Handler(),
		WebFS:          webFS,
		BaseURL:        cfg.BaseURL,
		SubmitRate:     cfg.SubmitRate,
		SubmitBurst:    cfg.SubmitBurst,
	})
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout(cfg.ExtractTimeout),
		IdleTimeout:       120 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("tikgrab listening", "addr", httpServer.Addr, "retention", cfg.Retention.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return err
	case <-shutdownCh:
	}
	slog.Info("shutting down...", "pending_deletions", scheduler.Pending())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	slog.Info("shutdown complete")
	return nil
}

func newLogger(format string, w io.Writer) *slog.Logger {
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, nil))
	}
	return slog.New(slog.NewTextHandler(w, nil))
}

// writeTimeout leaves room past the extraction bound for writing the
// submit response.
func writeTimeout(extract time.Duration) time.Duration {
	return extract + 30*time.Second
}
