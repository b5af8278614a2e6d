package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/signalsfoundry/schoolbus-tracker/core"
)

var envKeys = []string{
	"TICK_PERIOD_MS", "FRAME_RATE", "ANIMATION_DURATION_MS",
	"STATUS_CHANGE_PROBABILITY", "POSITION_JITTER", "SEED",
	"HTTP_ADDR", "GRPC_ADDR", "METRICS_ADDR", "CORS_ALLOWED_ORIGINS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.TickPeriod != 5*time.Second {
		t.Fatalf("TickPeriod = %v, want 5s", cfg.TickPeriod)
	}
	if cfg.FrameRate != 60 || cfg.FrameInterval() != time.Second/60 {
		t.Fatalf("FrameRate = %d, interval %v", cfg.FrameRate, cfg.FrameInterval())
	}
	if cfg.AnimationDuration != 2*time.Second {
		t.Fatalf("AnimationDuration = %v, want 2s", cfg.AnimationDuration)
	}
	if cfg.StatusChangeProbability != 0.2 || cfg.PositionJitter != 0.0025 {
		t.Fatalf("probability/jitter = %v/%v", cfg.StatusChangeProbability, cfg.PositionJitter)
	}
	if cfg.HTTPAddr != ":8081" || cfg.GRPCAddr != ":50051" || cfg.MetricsAddr != ":9090" {
		t.Fatalf("unexpected addresses: %+v", cfg)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "http://localhost:5173" {
		t.Fatalf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	if cfg.Engine().Seed == 0 {
		t.Fatalf("zero seed was not replaced")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TICK_PERIOD_MS", "1000")
	t.Setenv("FRAME_RATE", "30")
	t.Setenv("ANIMATION_DURATION_MS", "0")
	t.Setenv("STATUS_CHANGE_PROBABILITY", "1")
	t.Setenv("POSITION_JITTER", "0.01")
	t.Setenv("SEED", "42")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	eng := cfg.Engine()
	if eng.TickPeriod != time.Second || eng.Seed != 42 {
		t.Fatalf("engine config = %+v", eng)
	}
	if eng.Simulator.AnimationDuration != 0 || eng.Simulator.StatusChangeProbability != 1 || eng.Simulator.Jitter != 0.01 {
		t.Fatalf("simulator config = %+v", eng.Simulator)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("TICK_PERIOD_MS", "soon")
	t.Setenv("POSITION_JITTER", "lots")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.TickPeriod != core.DefaultTickPeriod || cfg.PositionJitter != core.DefaultJitter {
		t.Fatalf("malformed values not defaulted: %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		key, value string
		want       error
	}{
		{"ANIMATION_DURATION_MS", "-5", core.ErrInvalidDuration},
		{"TICK_PERIOD_MS", "0", core.ErrInvalidPeriod},
		{"STATUS_CHANGE_PROBABILITY", "1.5", core.ErrInvalidProbability},
		{"POSITION_JITTER", "-0.1", core.ErrInvalidJitter},
		{"FRAME_RATE", "-1", ErrInvalidFrameRate},
	}
	for _, tc := range cases {
		clearEnv(t)
		t.Setenv(tc.key, tc.value)
		if _, err := Load(); !errors.Is(err, tc.want) {
			t.Fatalf("%s=%s: Load error = %v, want %v", tc.key, tc.value, err, tc.want)
		}
	}
}

func TestLoadDotEnvLocalOverrides(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("HTTP_ADDR")
	os.Unsetenv("GRPC_ADDR")

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("HTTP_ADDR=:1111\nGRPC_ADDR=:2222\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env.local"), []byte("HTTP_ADDR=:3333\n"), 0o600); err != nil {
		t.Fatalf("write .env.local: %v", err)
	}

	LoadDotEnv(dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.HTTPAddr != ":3333" || cfg.GRPCAddr != ":2222" {
		t.Fatalf("addresses = %s / %s, want :3333 / :2222", cfg.HTTPAddr, cfg.GRPCAddr)
	}
}
