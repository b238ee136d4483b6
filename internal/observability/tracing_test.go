package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickflow/internal/sim"
	tftestutil "github.com/roach88/tickflow/internal/testutil"
)

func TestInitTracingWritesTickSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer, shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled: true,
		Writer:  &buf,
		Program: "flow",
	})
	require.NoError(t, err)

	p := flowProgram()
	_, err = sim.NewRunner(p, sim.WithTracer(tracer)).Run(context.Background(), tftestutil.MustInitialState(p), 3)
	require.NoError(t, err)
	ShutdownWithTimeout(context.Background(), shutdown)

	dec := json.NewDecoder(&buf)
	var names []string
	for dec.More() {
		var span struct {
			Name string `json:"Name"`
		}
		require.NoError(t, dec.Decode(&span))
		names = append(names, span.Name)
	}
	assert.Equal(t, []string{"sim.tick", "sim.tick", "sim.tick"}, names)
}

func TestInitTracingDisabled(t *testing.T) {
	tracer, shutdown, err := InitTracing(context.Background(), TracingConfig{})
	require.NoError(t, err)
	require.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracingRequiresWriter(t *testing.T) {
	_, _, err := InitTracing(context.Background(), TracingConfig{Enabled: true})
	assert.Error(t, err)
}
