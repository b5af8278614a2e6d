package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/signalsfoundry/schoolbus-tracker/core"
	"github.com/signalsfoundry/schoolbus-tracker/timectrl"
)

// Config holds all configuration for the tracker daemon and simulator.
type Config struct {
	// Simulation
	TickPeriod              time.Duration
	FrameRate               int
	AnimationDuration       time.Duration
	StatusChangeProbability float64
	PositionJitter          float64
	Seed                    uint64

	// Listeners
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	// CORS
	CORSAllowedOrigins []string
}

// LoadDotEnv reads .env and then .env.local from dir, the latter overriding
// the former. Missing files are ignored.
func LoadDotEnv(dir string) {
	_ = godotenv.Load(dir + "/.env")
	_ = godotenv.Overload(dir + "/.env.local")
}

// Load reads configuration from environment variables with sensible defaults
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		TickPeriod:              time.Duration(getEnvInt("TICK_PERIOD_MS", int(core.DefaultTickPeriod/time.Millisecond))) * time.Millisecond,
		FrameRate:               getEnvInt("FRAME_RATE", timectrl.DefaultFrameRate),
		AnimationDuration:       time.Duration(getEnvInt("ANIMATION_DURATION_MS", int(core.DefaultAnimationDuration/time.Millisecond))) * time.Millisecond,
		StatusChangeProbability: getEnvFloat("STATUS_CHANGE_PROBABILITY", core.DefaultStatusChangeProbability),
		PositionJitter:          getEnvFloat("POSITION_JITTER", core.DefaultJitter),
		Seed:                    getEnvUint64("SEED", 0),

		HTTPAddr:    getEnv("HTTP_ADDR", ":8081"),
		GRPCAddr:    getEnv("GRPC_ADDR", ":50051"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ErrInvalidFrameRate is returned for a non-positive frame rate.
var ErrInvalidFrameRate = errors.New("frame rate must be positive")

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.FrameRate <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidFrameRate, c.FrameRate)
	}
	return c.Engine().Validate()
}

// Engine returns the engine configuration. A zero seed is replaced by a
// time-based one.
func (c *Config) Engine() core.EngineConfig {
	seed := c.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return core.EngineConfig{
		TickPeriod: c.TickPeriod,
		Seed:       seed,
		Simulator: core.SimulatorConfig{
			StatusChangeProbability: c.StatusChangeProbability,
			Jitter:                  c.PositionJitter,
			AnimationDuration:       c.AnimationDuration,
		},
	}
}

// FrameInterval returns the time between animation frames.
func (c *Config) FrameInterval() time.Duration {
	return timectrl.FrameInterval(c.FrameRate)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
