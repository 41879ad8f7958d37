package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracing_NoEndpoint(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracing(ctx, TracingConfig{ServiceName: "test"})
	require.NoError(t, err)
	require.NotNil(t, tp.Tracer())
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestTracerProvider_ShutdownNilProvider(t *testing.T) {
	tp := &TracerProvider{}
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(0).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(-1).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.5).Description(), sampler(0.5).Description())
}

func TestSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	ctx, parent := Start(context.Background(), SpanQuery, attribute.Int("query.n_result", 3))
	_, child := StartClient(ctx, SpanStoreQuery)
	RecordError(child, errors.New("store down"))
	child.End()
	RecordError(parent, nil)
	parent.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, SpanStoreQuery, spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())

	assert.Equal(t, SpanQuery, spans[1].Name())
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
	assert.Contains(t, spans[1].Attributes(), attribute.Int("query.n_result", 3))
}
