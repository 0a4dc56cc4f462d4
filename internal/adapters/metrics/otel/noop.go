package otel

import (
	"context"

	"github.com/bnema/healthline/internal/ports"
)

var _ ports.MetricsRecorder = NoOpRecorder{}

// NoOpRecorder drops every measurement. It stands in when no collector is
// configured.
type NoOpRecorder struct{}

func (NoOpRecorder) RecordGather(context.Context, ports.GatherMetrics) {}

func (NoOpRecorder) Close(context.Context) error {
	return nil
}
