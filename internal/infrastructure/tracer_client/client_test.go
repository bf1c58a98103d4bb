package tracer_client

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewTracerClient_WithExporter(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	shutdown, err := NewTracerClient(WithServiceName("perceptor-bringup"), WithExporter(exp))
	require.NoError(t, err)
	require.NotNil(t, Provider())

	_, failed := Tracer("mapping").Start(context.Background(), "cuvslam")
	EndSpan(failed, errors.New("exit code 1"))
	_, span := Tracer("mapping").Start(context.Background(), "occupancy")
	EndSpan(span, nil)

	require.NoError(t, Provider().ForceFlush(context.Background()))
	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "cuvslam", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, codes.Ok, spans[1].Status.Code)

	require.NoError(t, shutdown(context.Background()))
	assert.Nil(t, Provider())
}
