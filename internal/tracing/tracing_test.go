package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dndj/dndj/internal/config"
)

func TestSetup_Stdout(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), config.TracingConfig{Exporter: config.ExporterStdout}, &buf)
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "music.play_track_list")
	Fail(span, errors.New("missing file"))
	span.End()

	require.NoError(t, shutdown(context.Background()))
	require.Contains(t, buf.String(), "music.play_track_list")
	require.Contains(t, buf.String(), "missing file")
}

func TestSetup_None(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracingConfig{Exporter: config.ExporterNone}, nil)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_Unknown(t *testing.T) {
	_, err := Setup(context.Background(), config.TracingConfig{Exporter: "zipkin"}, nil)
	require.Error(t, err)
}
