package observability

import (
	"context"
	"errors"
	"testing"

	"aurafeed/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestTracingConfigFrom(t *testing.T) {
	cfg := &config.Config{Env: "development", TracingEnabled: true, TracingExporter: "otlp", OTLPEndpoint: "collector:4318"}
	tc := TracingConfigFrom(cfg, "aurafeed", "1.2.3")
	assert.True(t, tc.Enabled)
	assert.Equal(t, "otlp", tc.Exporter)
	assert.Equal(t, "collector:4318", tc.OTLPEndpoint)
	assert.InDelta(t, 1.0, tc.SamplerRatio, 1e-9)

	cfg.Env = "production"
	assert.InDelta(t, 0.1, TracingConfigFrom(cfg, "aurafeed", "1.2.3").SamplerRatio, 1e-9)
}

func TestDisabledTracingIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{ServiceName: "aurafeed-test"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	span, ctx := StartSpan(context.Background(), "feed.refresh", attribute.String("feed.source", "mock"))
	require.NotNil(t, ctx)
	span.AddAttributes(attribute.Int("feed.posts", 6))
	span.Event("noop")
	span.SetError(errors.New("boom"))
	span.End()
}

func TestNilSpanIsSafe(t *testing.T) {
	var span *Span
	assert.NotPanics(t, func() {
		span.AddAttributes(attribute.Bool("x", true))
		span.Event("x")
		span.SetError(errors.New("x"))
		span.End()
	})
}
