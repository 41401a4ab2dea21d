package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shenwei356/cgdist/distmode"
)

func TestLoadOverridesOnlyGivenFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cgdist.toml")
	body := `
hasher = "sha256"

[scoring]
match_score = 3
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Hasher != "sha256" {
		t.Fatalf("expected hasher override, got %q", cfg.Hasher)
	}
	if cfg.Scoring.MatchScore != 3 {
		t.Fatalf("expected match_score override, got %d", cfg.Scoring.MatchScore)
	}
	// Untouched fields keep their defaults.
	if cfg.Scoring.GapOpen != 5 {
		t.Fatalf("expected default gap_open to survive, got %d", cfg.Scoring.GapOpen)
	}
	if cfg.DistanceMode != string(distmode.SnpsOnly) {
		t.Fatalf("expected default distance_mode to survive, got %q", cfg.DistanceMode)
	}
}

func TestModeRejectsUnknownValue(t *testing.T) {
	cfg := Default()
	cfg.DistanceMode = "Bogus"
	if _, err := cfg.Mode(); err == nil {
		t.Fatal("expected an error for an unknown distance_mode")
	}
}

func TestResolveCachePathExpandsTilde(t *testing.T) {
	cfg := Default()
	cfg.CachePath = "~/cache.bin"
	resolved, err := cfg.ResolveCachePath()
	if err != nil {
		t.Fatal(err)
	}
	if resolved == cfg.CachePath {
		t.Fatal("expected ~ to be expanded")
	}
}
