// SPDX-License-Identifier: MIT
package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)

	// Noop provider still yields usable tracers.
	tracer := Tracer("test")
	_, span := tracer.Start(context.Background(), "op")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderRejectsUnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "careshift",
		ExporterType: "carrier-pigeon",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported exporter type")
}

func TestScheduleAttributes(t *testing.T) {
	attrs := ScheduleAttributes("replan", 42, 7, 1)
	require.Len(t, attrs, 4)
	assert.Equal(t, ScheduleTriggerKey, string(attrs[0].Key))
	assert.Equal(t, "replan", attrs[0].Value.AsString())
	assert.Equal(t, int64(42), attrs[1].Value.AsInt64())
}
