// Package config loads tzclock settings from a TOML file and watches it for
// changes so the clock format can be toggled while the clock is running.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Settings is the contents of the settings file.
type Settings struct {
	LocalZone    string   `toml:"local_zone"`
	TimezoneURL  string   `toml:"timezone_url"`
	ReverseURL   string   `toml:"reverse_url"`
	SearchURL    string   `toml:"search_url"`
	Timeout      Duration `toml:"timeout"`
	CacheTTL     Duration `toml:"cache_ttl"`
	Hour24       bool     `toml:"hour24"`
	DiscardStale bool     `toml:"discard_stale"`
}

// Duration is a time.Duration written as a string such as "2s" or "1500ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("negative duration %q", text)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Timeout:  Duration{2 * time.Second},
		CacheTTL: Duration{24 * time.Hour},
	}
}

// DefaultPath returns the settings file location under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tzclock", "config.toml"), nil
}

// Load reads the settings at path on top of Default. A missing file is not an
// error. Unknown keys are logged and ignored.
func Load(path string, logger *slog.Logger) (Settings, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := Default()
	if path == "" {
		return s, nil
	}
	md, err := toml.DecodeFile(path, &s)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("no settings file", "path", path)
			return Default(), nil
		}
		return Default(), fmt.Errorf("decoding %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		logger.Warn("ignoring unknown settings", "path", path, "keys", keys)
	}
	return s, nil
}

// Location returns the configured local zone, or time.Local when unset.
func (s Settings) Location() (*time.Location, error) {
	if s.LocalZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.LocalZone)
	if err != nil {
		return nil, fmt.Errorf("local_zone %q: %w", s.LocalZone, err)
	}
	return loc, nil
}
