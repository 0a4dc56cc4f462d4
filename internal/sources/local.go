package sources

import (
	"context"
	"strings"
	"time"

	"github.com/bnema/healthline/internal/domain"
	"github.com/bnema/healthline/internal/freshness"
	"github.com/bnema/healthline/internal/ports"
	"github.com/bnema/healthline/internal/registry"
)

func transcriptSource(timeout time.Duration, scanner ports.TranscriptScanner) registry.Descriptor {
	return registry.NewDescriptor(
		registry.Meta{ID: IDTranscript, Tier: registry.TierLocal, Category: freshness.CategoryTranscript, Timeout: timeout},
		registry.TranscriptSection,
		func(ctx context.Context, gc domain.GatherContext) (domain.Transcript, error) {
			if strings.TrimSpace(gc.TranscriptPath) == "" {
				return domain.Transcript{}, errNoTranscript
			}
			return scanner.Scan(ctx, gc.TranscriptPath)
		},
		func(dst *domain.Transcript, t domain.Transcript) { *dst = t },
	)
}

func gitSource(timeout time.Duration, inspector ports.GitInspector, clock ports.Clock) registry.Descriptor {
	return registry.NewDescriptor(
		registry.Meta{ID: IDGit, Tier: registry.TierLocal, Category: freshness.CategoryGitStatus, Timeout: timeout},
		registry.GitSection,
		func(ctx context.Context, gc domain.GatherContext) (domain.Git, error) {
			dir := gc.WorkingDir
			if dir == "" {
				dir = gc.ProjectPath
			}
			if dir == "" {
				return domain.Git{}, errNoWorkingDir
			}

			git, err := inspector.Status(ctx, dir)
			if err != nil {
				return domain.Git{}, err
			}
			git.LastChecked = clock.Now()
			return git, nil
		},
		func(dst *domain.Git, g domain.Git) { *dst = g },
	)
}

// sessionCostSource prefers the cost the assistant reports and falls back to
// pricing the transcript scanned earlier in the cycle.
func sessionCostSource(timeout time.Duration) registry.Descriptor {
	return registry.NewDescriptor(
		registry.Meta{
			ID:        IDSessionCost,
			Tier:      registry.TierRemote,
			Category:  freshness.CategorySessionCost,
			Timeout:   timeout,
			DependsOn: []string{IDTranscript},
		},
		registry.BillingSection,
		func(_ context.Context, gc domain.GatherContext) (float64, error) {
			if gc.Input != nil && gc.Input.Cost.TotalCostUSD > 0 {
				return gc.Input.Cost.TotalCostUSD, nil
			}
			if gc.Upstream != nil && gc.Upstream.Transcript.Exists {
				return gc.Upstream.Transcript.CostUSD, nil
			}
			return 0, errNoSessionCost
		},
		func(dst *domain.Billing, cost float64) { dst.SessionCost = cost },
	)
}
