package ports

import (
	"context"
	"time"
)

type SourceOutcome string

const (
	SourceOK       SourceOutcome = "ok"
	SourceFailed   SourceOutcome = "failed"
	SourceTimedOut SourceOutcome = "timed_out"
	SourceSkipped  SourceOutcome = "skipped"
)

type GatherMetrics struct {
	Duration time.Duration
	Outcomes map[string]SourceOutcome
	Changed  bool
}

type MetricsRecorder interface {
	RecordGather(ctx context.Context, m GatherMetrics)
	Close(ctx context.Context) error
}
