package ports

import (
	"context"
	"time"

	"github.com/bnema/healthline/internal/domain"
)

type UsageWindow struct {
	Utilization float64
	ResetsAt    time.Time
}

type UsageReport struct {
	FiveHour UsageWindow
	SevenDay UsageWindow
}

type UsageClient interface {
	FetchUsage(ctx context.Context, accessToken string) (UsageReport, error)
}

type TranscriptScanner interface {
	Scan(ctx context.Context, path string) (domain.Transcript, error)
}

// CostLedger prices every assistant turn recorded after since in the
// transcripts below roots.
type CostLedger interface {
	CostSince(ctx context.Context, roots []string, since time.Time) (float64, error)
}

type GitInspector interface {
	Status(ctx context.Context, dir string) (domain.Git, error)
}

// Spawner starts a detached copy of the current binary and returns its pid.
type Spawner interface {
	Spawn(ctx context.Context, args ...string) (int, error)
}
