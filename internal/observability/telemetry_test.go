package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestInstallExportsSpans(t *testing.T) {
	defer otel.SetTracerProvider(noop.NewTracerProvider())

	exp := tracetest.NewInMemoryExporter()
	tp, err := Install(context.Background(), exp, "soilsim-test")
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	_, span := Tracer().Start(context.Background(), "session.dig")
	span.End()

	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "session.dig", spans[0].Name)
	assert.Equal(t, InstrumentationName, spans[0].InstrumentationScope.Name)
}

func TestTracerWithoutProviderIsNoop(t *testing.T) {
	otel.SetTracerProvider(noop.NewTracerProvider())

	_, span := Tracer().Start(context.Background(), "session.remesh")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid(), "без провайдера спаны не записываются")
}
