// Package main implements the tzclock web server: a single clock session that
// clients drive by posting picked coordinates and poll for rendered frames.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/codeGROOVE-dev/tzclock/pkg/clock"
	"github.com/codeGROOVE-dev/tzclock/pkg/config"
	"github.com/codeGROOVE-dev/tzclock/pkg/httpcache"
	"github.com/codeGROOVE-dev/tzclock/pkg/resolver"
	"github.com/codeGROOVE-dev/tzclock/pkg/tzlookup"
)

var (
	port         = flag.String("port", "8080", "Port for web server")
	configPath   = flag.String("config", "", "Settings file (or set TZCLOCK_CONFIG)")
	timeout      = flag.Duration("timeout", 0, "Lookup timeout (default from settings, 2s)")
	discardStale = flag.Bool("discard-stale", false, "Drop resolutions that complete after a newer one")
	verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	version      = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("tzclock Server v1.0.0")
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *configPath == "" {
		*configPath = os.Getenv("TZCLOCK_CONFIG")
	}
	settings, err := config.Load(*configPath, logger)
	if err != nil {
		logger.Error("Failed to load settings", "error", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "timeout":
			settings.Timeout = config.Duration{Duration: *timeout}
		case "discard-stale":
			settings.DiscardStale = *discardStale
		}
	})
	local, err := settings.Location()
	if err != nil {
		logger.Error("Invalid local zone", "error", err)
		os.Exit(1)
	}

	logger.Info("Server configuration",
		"port", *port,
		"verbose", *verbose,
		"config", *configPath,
		"timeout", settings.Timeout.Duration,
		"discard_stale", settings.DiscardStale,
		"local_zone", local.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache := httpcache.NewMemoryCache(settings.CacheTTL.Duration, logger)
	client := tzlookup.NewClient(
		tzlookup.WithHTTPClient(httpcache.NewClient(cache, &http.Client{Timeout: 30 * time.Second}, logger)),
		tzlookup.WithBaseURLs(settings.TimezoneURL, settings.ReverseURL, settings.SearchURL),
		tzlookup.WithLogger(logger),
	)
	res := resolver.New(client,
		resolver.WithTimeout(settings.Timeout.Duration),
		resolver.WithDiscardStale(settings.DiscardStale),
		resolver.WithLogger(logger),
	)
	ticker := clock.NewTicker(clock.NewRenderer(local, logger), res,
		clock.WithHour24(settings.Hour24),
		clock.WithTickerLogger(logger),
	)
	go func() {
		if err := ticker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Ticker stopped", "error", err)
		}
	}()
	if *configPath != "" {
		go func() {
			err := config.Watch(ctx, *configPath, func(s config.Settings) { ticker.SetHour24(s.Hour24) }, logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("Settings watcher stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + *port,
		Handler:           newServer(ctx, client, res, ticker, logger).routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", *port)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", "error", err)
	}
	logger.Info("Server stopped")
}
