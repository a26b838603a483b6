package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(`
hour24 = true
timeout = "1500ms"
discard_stale = true
local_zone = "Asia/Kolkata"
reverse_url = "http://localhost:8088/reverse"
theme = "dark"
`), 0o600)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := Default()
	want.Hour24 = true
	want.Timeout = Duration{1500 * time.Millisecond}
	want.DiscardStale = true
	want.LocalZone = "Asia/Kolkata"
	want.ReverseURL = "http://localhost:8088/reverse"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}

	loc, err := got.Location()
	if err != nil || loc.String() != "Asia/Kolkata" {
		t.Errorf("Location() = %v, %v", loc, err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "absent.toml"), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(Default(), got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"syntax":            `hour24 = `,
		"bad duration":      `timeout = "soon"`,
		"negative duration": `timeout = "-1s"`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path, nil); err == nil {
				t.Error("Load() error = nil, want error")
			}
		})
	}
}

func TestLocationDefault(t *testing.T) {
	loc, err := Default().Location()
	if err != nil || loc != time.Local {
		t.Errorf("Location() = %v, %v; want time.Local", loc, err)
	}
	if _, err := (Settings{LocalZone: "Nowhere/Special"}).Location(); err == nil {
		t.Error("invalid local_zone accepted")
	}
}

func TestWatchAppliesChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("hour24 = false\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	applied := make(chan Settings, 8)
	started := make(chan error, 1)
	go func() {
		started <- Watch(ctx, path, func(s Settings) {
			select {
			case applied <- s:
			default:
			}
		}, nil)
	}()

	// The watcher is registered asynchronously; keep rewriting until a
	// change is observed.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case s := <-applied:
			if !s.Hour24 {
				t.Errorf("Hour24 = false after enabling it")
			}
			cancel()
			if err := <-started; err != context.Canceled {
				t.Errorf("Watch() error = %v", err)
			}
			return
		case err := <-started:
			t.Fatalf("Watch() returned early: %v", err)
		case <-tick.C:
			if err := os.WriteFile(path, []byte("hour24 = true\n"), 0o600); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("no settings change observed")
		}
	}
}
