package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

type noopTraceExporter struct{}

func (noopTraceExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (noopTraceExporter) Shutdown(context.Context) error                             { return nil }

type noopMetricExporter struct{}

func (noopMetricExporter) Temporality(sdkmetric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

func (noopMetricExporter) Aggregation(sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.AggregationDefault{}
}

func (noopMetricExporter) Export(context.Context, *metricdata.ResourceMetrics) error { return nil }
func (noopMetricExporter) ForceFlush(context.Context) error                          { return nil }
func (noopMetricExporter) Shutdown(context.Context) error                            { return nil }

func testConfig() Config {
	return Config{
		ServiceName:    "orders-api",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		SampleRate:     1.0,
	}
}

// initialize starts telemetry with no-op exporters and shuts it down when
// the test ends.
func initialize(t *testing.T, cfg Config) *Telemetry {
	t.Helper()

	tel, err := Initialize(context.Background(), cfg,
		WithTraceExporter(noopTraceExporter{}),
		WithMetricExporter(noopMetricExporter{}),
	)
	if err != nil {
		t.Fatalf("failed to initialize telemetry: %v", err)
	}

	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			t.Errorf("shutdown failed: %v", err)
		}
		otel.SetTracerProvider(noop.NewTracerProvider())
	})

	return tel
}

// recordSpans installs an in-memory tracer provider for the test.
func recordSpans(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exp := tracetest.NewInMemoryExporter()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp)))
	t.Cleanup(func() {
		otel.SetTracerProvider(noop.NewTracerProvider())
	})

	return exp
}
