package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(String("component", "simulator")).Info(context.Background(), "tick complete",
		Int("buses", 4),
		Err(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec["msg"] != "tick complete" {
		t.Fatalf("msg = %v, want tick complete", rec["msg"])
	}
	if rec["component"] != "simulator" {
		t.Fatalf("component = %v, want simulator", rec["component"])
	}
	if rec["buses"] != float64(4) {
		t.Fatalf("buses = %v, want 4", rec["buses"])
	}
	if rec["error"] != "boom" {
		t.Fatalf("error = %v, want boom", rec["error"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info(context.Background(), "dropped")
	if buf.Len() != 0 {
		t.Fatalf("info line written at warn level: %q", buf.String())
	}
	log.Warn(context.Background(), "kept")
	if buf.Len() == 0 {
		t.Fatalf("warn line missing at warn level")
	}
}

func TestEnsureRequestIDGeneratesUUID(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("request id %q is not a UUID: %v", id, err)
	}
	if got := RequestIDFromContext(ctx); got != id {
		t.Fatalf("RequestIDFromContext = %q, want %q", got, id)
	}

	_, again := EnsureRequestID(ctx)
	if again != id {
		t.Fatalf("EnsureRequestID replaced an existing id: %q -> %q", id, again)
	}
}

func TestLoggerFromContext(t *testing.T) {
	if LoggerFromContext(context.Background()) != nil {
		t.Fatalf("expected nil logger on empty context")
	}
	ctx := ContextWithLogger(context.Background(), nil)
	if LoggerFromContext(ctx) == nil {
		t.Fatalf("ContextWithLogger(nil) should store a noop logger")
	}
}
