// Package main implements the tzclock CLI: pick a place by coordinate or
// search, then watch its local time next to yours.
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
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/codeGROOVE-dev/tzclock/pkg/clock"
	"github.com/codeGROOVE-dev/tzclock/pkg/config"
	"github.com/codeGROOVE-dev/tzclock/pkg/display"
	"github.com/codeGROOVE-dev/tzclock/pkg/geo"
	"github.com/codeGROOVE-dev/tzclock/pkg/httpcache"
	"github.com/codeGROOVE-dev/tzclock/pkg/resolver"
	"github.com/codeGROOVE-dev/tzclock/pkg/tzlookup"
)

var (
	lat          = flag.Float64("lat", 0, "Latitude of the target location")
	lon          = flag.Float64("lon", 0, "Longitude of the target location")
	label        = flag.String("label", "", "Place name for the target (skips reverse geocoding)")
	search       = flag.String("search", "", "Search for a place by name and use the best match")
	hour24       = flag.Bool("24h", false, "Use a 24-hour clock")
	timeout      = flag.Duration("timeout", 0, "Lookup timeout (or set TZCLOCK_TIMEOUT; default 2s)")
	configPath   = flag.String("config", "", "Settings file (or set TZCLOCK_CONFIG)")
	cacheDir     = flag.String("cache-dir", "", "Cache directory (or set CACHE_DIR)")
	noCache      = flag.Bool("no-cache", false, "Disable caching")
	discardStale = flag.Bool("discard-stale", false, "Drop resolutions that complete after a newer one")
	once         = flag.Bool("once", false, "Print a single frame after resolving and exit")
	verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	version      = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("tzclock CLI v1.0.0")
		return
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger); err != nil {
		logger.Error("tzclock failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if *configPath == "" {
		*configPath = os.Getenv("TZCLOCK_CONFIG")
	}
	if *configPath == "" {
		if p, err := config.DefaultPath(); err == nil {
			*configPath = p
		} else {
			logger.Debug("could not determine config directory", "error", err)
		}
	}
	if *cacheDir == "" {
		*cacheDir = os.Getenv("CACHE_DIR")
	}

	settings, err := config.Load(*configPath, logger)
	if err != nil {
		return err
	}
	if !set["timeout"] {
		if v := os.Getenv("TZCLOCK_TIMEOUT"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("TZCLOCK_TIMEOUT: %w", err)
			}
			*timeout = d
			set["timeout"] = true
		}
	}
	if set["timeout"] {
		settings.Timeout = config.Duration{Duration: *timeout}
	}
	if set["24h"] {
		settings.Hour24 = *hour24
	}
	if set["discard-stale"] {
		settings.DiscardStale = *discardStale
	}

	local, err := settings.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache := openCache(ctx, settings, logger)
	if cache != nil {
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Error("failed to close cache", "error", err)
			}
		}()
	}

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
		clock.WithSink(display.NewTerminal(os.Stdout, !*once)),
		clock.WithTickerLogger(logger),
	)

	handle, err := pick(ctx, client, res, set, logger)
	if err != nil {
		return err
	}

	if *once {
		if handle != nil {
			wctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if _, err := handle.Wait(wctx); err != nil {
				return fmt.Errorf("waiting for resolution: %w", err)
			}
		}
		ticker.Tick()
		return nil
	}

	if *configPath != "" {
		go func() {
			err := config.Watch(ctx, *configPath, func(s config.Settings) { ticker.SetHour24(s.Hour24) }, logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Debug("settings watcher stopped", "error", err)
			}
		}()
	}

	fmt.Print("\033[?25l") // hide cursor
	defer fmt.Print("\033[?25h\n")
	if err := ticker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// pick starts a resolution for the place named on the command line, if any.
func pick(ctx context.Context, client *tzlookup.Client, res *resolver.Resolver, set map[string]bool, logger *slog.Logger) (*resolver.Handle, error) {
	if *search != "" {
		places, err := client.Search(ctx, *search)
		if err != nil {
			return nil, err
		}
		if len(places) == 0 {
			return nil, fmt.Errorf("no places match %q (queries need at least %d characters)", *search, tzlookup.MinQueryLength)
		}
		for i, p := range places {
			logger.Debug("search candidate", "rank", i+1, "name", p.DisplayName, "lat", p.Coordinate.Latitude, "lon", p.Coordinate.Longitude)
		}
		name := places[0].Name
		if *label != "" {
			name = *label
		}
		return res.Resolve(ctx, places[0].Coordinate, name), nil
	}
	if set["lat"] || set["lon"] {
		return res.Resolve(ctx, geo.Coordinate{Latitude: *lat, Longitude: *lon}, *label), nil
	}
	return nil, nil
}

func openCache(ctx context.Context, settings config.Settings, logger *slog.Logger) *httpcache.Cache {
	if *noCache {
		logger.Info("caching disabled by --no-cache flag")
		return nil
	}
	dir := *cacheDir
	if dir == "" {
		userCacheDir, err := os.UserCacheDir()
		if err != nil {
			logger.Debug("could not determine user cache directory", "error", err)
			return httpcache.NewMemoryCache(settings.CacheTTL.Duration, logger)
		}
		dir = filepath.Join(userCacheDir, "tzclock")
	}
	cache, err := httpcache.NewDiskCache(ctx, dir, settings.CacheTTL.Duration, logger)
	if err != nil {
		logger.Warn("cache initialization failed", "error", err, "cache_dir", dir)
		return httpcache.NewMemoryCache(settings.CacheTTL.Duration, logger)
	}
	return cache
}
