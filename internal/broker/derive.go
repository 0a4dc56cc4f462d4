package broker

import (
	"fmt"
	"sort"
	"time"

	"github.com/bnema/healthline/internal/domain"
	"github.com/bnema/healthline/internal/freshness"
	"github.com/bnema/healthline/internal/ports"
)

const (
	contextWarnPercent     = 80
	contextCriticalPercent = 95
	transcriptSourceID     = "transcript"
)

// derive recomputes every field that depends on more than one source or on
// the passage of time.
func (b *Broker) derive(s *domain.Snapshot, gc domain.GatherContext, outcomes map[string]ports.SourceOutcome, now time.Time) {
	s.Identity.LastUpdate = now
	if !s.Identity.FirstSeen.IsZero() {
		s.Identity.SessionDuration = now.Sub(s.Identity.FirstSeen)
	}

	s.Billing.IsFresh = b.fresh.Status(s.Billing.LastFetched, freshness.CategoryBillingLocal) == freshness.StatusFresh
	if s.Quota.Resolved {
		s.Quota.IsStale = b.fresh.Status(s.Quota.LastFetched, freshness.CategoryQuotaBroker) != freshness.StatusFresh
	}

	transcriptStatus := b.fresh.Status(s.Transcript.LastModified, freshness.CategoryTranscript)
	s.Alerts = domain.Alerts{
		SecretsDetected: s.Transcript.SecretsDetected,
		TranscriptStale: s.Transcript.Exists && transcriptStatus == freshness.StatusCritical,
	}
	transcriptMissing := gc.TranscriptPath != "" && !s.Transcript.Exists && outcomes[transcriptSourceID] == ports.SourceOK
	s.Alerts.DataLossRisk = transcriptMissing || (s.Alerts.TranscriptStale && s.Context.NearCompaction)

	var critical, warnings []string
	if s.Alerts.SecretsDetected {
		critical = append(critical, "secrets detected in transcript")
	}
	if transcriptMissing {
		critical = append(critical, "transcript file missing")
	} else if s.Alerts.DataLossRisk {
		critical = append(critical, "transcript stale near compaction")
	}
	if s.Quota.Resolved && (s.Quota.FiveHourPercent >= 100 || s.Quota.SevenDayPercent >= 100) {
		critical = append(critical, fmt.Sprintf("quota exhausted on %s", s.Quota.SlotID))
	}
	switch pct := s.Context.PercentUsed; {
	case pct >= contextCriticalPercent:
		critical = append(critical, fmt.Sprintf("context %d%% used", pct))
	case pct >= contextWarnPercent:
		warnings = append(warnings, fmt.Sprintf("context %d%% used", pct))
	}

	if s.Quota.SwitchMessage != "" {
		warnings = append(warnings, s.Quota.SwitchMessage)
	}
	if !s.Billing.LastFetched.IsZero() && !s.Billing.IsFresh {
		warnings = append(warnings, "billing data stale")
	}
	if s.Quota.Resolved && s.Quota.IsStale {
		warnings = append(warnings, "quota data stale")
	}
	if s.Alerts.TranscriptStale && !s.Alerts.DataLossRisk {
		warnings = append(warnings, "transcript idle")
	}

	var unavailable []string
	okCount := 0
	for id, outcome := range outcomes {
		switch outcome {
		case ports.SourceOK:
			okCount++
		case ports.SourceFailed, ports.SourceTimedOut:
			unavailable = append(unavailable, id)
		}
	}
	sort.Strings(unavailable)
	for _, id := range unavailable {
		warnings = append(warnings, id+" unavailable")
	}

	s.Health.Issues = append(critical, warnings...)
	switch {
	case okCount == 0 && gc.Existing == nil:
		s.Health.Status = domain.HealthUnknown
	case len(critical) > 0:
		s.Health.Status = domain.HealthCritical
	case len(warnings) > 0:
		s.Health.Status = domain.HealthWarning
	default:
		s.Health.Status = domain.HealthHealthy
	}
}
