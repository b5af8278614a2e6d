package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestTracingConfigFromEnvDefaults(t *testing.T) {
	for _, k := range []string{EnvTracingEnabled, EnvTracingExporter, EnvTracingServiceName, EnvTracingSampleRatio, EnvTracingEndpoint} {
		t.Setenv(k, "")
	}
	cfg := TracingConfigFromEnv()
	if cfg.Enabled || cfg.Exporter != "stdout" || cfg.ServiceName != "schoolbus-tracker" || cfg.SampleRatio != 1 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestTracingConfigFromEnvOverrides(t *testing.T) {
	t.Setenv(EnvTracingEnabled, "TRUE")
	t.Setenv(EnvTracingExporter, "OTLP")
	t.Setenv(EnvTracingServiceName, "tracker-test")
	t.Setenv(EnvTracingSampleRatio, "0.25")
	t.Setenv(EnvTracingEndpoint, "collector:4317")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.ServiceName != "tracker-test" || cfg.SampleRatio != 0.25 || cfg.Endpoint != "collector:4317" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	t.Setenv(EnvTracingSampleRatio, "7")
	if got := TracingConfigFromEnv().SampleRatio; got != 1 {
		t.Fatalf("out-of-range ratio accepted: %v", got)
	}
}

func TestInitTracingStdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "tracker-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Writer:      &buf,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "simulator.Tick")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "simulator.Tick") {
		t.Fatalf("span not exported: %s", buf.String())
	}

	if _, err := InitTracing(context.Background(), TracingConfig{}, nil); err != nil {
		t.Fatalf("disabled InitTracing: %v", err)
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Fatalf("expected error for unsupported exporter")
	}
}
