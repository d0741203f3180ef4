package apm_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/fd1az/dexswap/internal/apm"
	"github.com/fd1az/dexswap/internal/logger"
)

func TestNoneExporter(t *testing.T) {
	tp, err := apm.NewTraceProvider(context.Background(), logger.NewNop(), apm.Options{Exporter: apm.ExporterNone})
	require.NoError(t, err)
	assert.NoError(t, tp.Stop())
}

func TestUnknownExporter(t *testing.T) {
	_, err := apm.NewTraceProvider(context.Background(), logger.NewNop(), apm.Options{Exporter: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestStdoutExporterFlushesOnStop(t *testing.T) {
	var buf bytes.Buffer
	tp, err := apm.NewTraceProvider(context.Background(), logger.NewNop(), apm.Options{
		ServiceName: "dexswap-test",
		Exporter:    apm.ExporterStdout,
		Writer:      &buf,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("apm-test").Start(context.Background(), "trade.estimate")
	span.End()

	require.NoError(t, tp.Stop())
	assert.Contains(t, buf.String(), "trade.estimate")
}
