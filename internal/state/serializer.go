package state

import (
	"encoding/json"
	"math"
	"time"

	"github.com/bnema/healthline/internal/domain"
)

var healthCodes = map[domain.HealthStatus]string{
	domain.HealthHealthy:  "h",
	domain.HealthWarning:  "w",
	domain.HealthCritical: "c",
	domain.HealthUnknown:  "u",
}

var slotCodes = map[domain.SlotStatus]string{
	domain.SlotActive:   "a",
	domain.SlotInactive: "i",
}

// Serialize compacts a snapshot. The result is trimmed until it fits MaxSize.
func Serialize(s *domain.Snapshot) DurableState {
	if s == nil {
		s = &domain.Snapshot{}
	}

	d := DurableState{
		Version:     SchemaVersion,
		SessionID:   s.Identity.SessionID,
		ProjectPath: s.Identity.ProjectPath,
		ConfigDir:   s.Identity.ConfigDir,
		FirstSeen:   millis(s.Identity.FirstSeen),
		Health: HealthBlock{
			Status: healthCode(s.Health.Status),
			Issues: truncateIssues(s.Health.Issues),
		},
		Billing: BillingBlock{
			CostToday:         cents(s.Billing.CostToday),
			SessionCost:       cents(s.Billing.SessionCost),
			BurnRate:          cents(s.Billing.BurnRatePerHour),
			BudgetRemainingMn: int64(s.Billing.BudgetRemaining / time.Minute),
			BudgetPercentUsed: s.Billing.BudgetPercentUsed,
			ResetTime:         s.Billing.ResetTime,
			Fresh:             s.Billing.IsFresh,
			History:           DeltaEncode(lastN(s.Billing.History, MaxHistory)),
			LastFetched:       millis(s.Billing.LastFetched),
		},
		Model: ModelBlock{
			ID:          s.Model.ID,
			Name:        s.Model.DisplayName,
			TokensUsed:  s.Context.TokensUsed,
			WindowSize:  s.Context.WindowSize,
			PercentUsed: s.Context.PercentUsed,
			Near:        s.Context.NearCompaction,
		},
		Transcript: TranscriptBlock{
			Exists:       s.Transcript.Exists,
			SizeBytes:    s.Transcript.SizeBytes,
			Messages:     s.Transcript.MessageCount,
			Input:        s.Transcript.Usage.InputTokens,
			Output:       s.Transcript.Usage.OutputTokens,
			CacheRead:    s.Transcript.Usage.CacheReadTokens,
			CacheWrite:   s.Transcript.Usage.CacheWriteTokens,
			Secrets:      s.Transcript.SecretsDetected,
			LastModified: millis(s.Transcript.LastModified),
			LastModel:    s.Transcript.LastModel,
		},
		Alerts: alertMask(s.Alerts),
	}

	if s.Quota.Resolved {
		d.SlotID = s.Quota.SlotID
		d.Weekly = &WeeklyBlock{
			Email:          s.Quota.Email,
			Strategy:       s.Quota.Strategy,
			Status:         slotCodes[s.Quota.Status],
			FiveHour:       int(math.Round(s.Quota.FiveHourPercent)),
			SevenDay:       int(math.Round(s.Quota.SevenDayPercent)),
			RemainingTenth: int64(math.Round(s.Quota.WeeklyBudgetRemainingHours * 10)),
			ResetDay:       s.Quota.WeeklyResetDay,
			DailyReset:     s.Quota.DailyResetTime,
			Stale:          s.Quota.IsStale,
			Switch:         s.Quota.SwitchMessage,
			LastFetched:    millis(s.Quota.LastFetched),
		}
	}

	if s.Git.IsRepo {
		d.Git = &GitBlock{
			Branch:      s.Git.Branch,
			Ahead:       s.Git.Ahead,
			Behind:      s.Git.Behind,
			Dirty:       s.Git.Dirty,
			LastChecked: millis(s.Git.LastChecked),
		}
	}

	fit(&d)
	return d
}

// Deserialize rebuilds the snapshot fields the durable state carries.
func Deserialize(d DurableState) *domain.Snapshot {
	s := &domain.Snapshot{
		Identity: domain.Identity{
			SessionID:   d.SessionID,
			ProjectPath: d.ProjectPath,
			ConfigDir:   d.ConfigDir,
			FirstSeen:   fromMillis(d.FirstSeen),
			LastUpdate:  fromMillis(d.Meta.UpdatedAt),
		},
		Health: domain.Health{
			Status: healthStatus(d.Health.Status),
			Issues: append([]string(nil), d.Health.Issues...),
		},
		Billing: domain.Billing{
			CostToday:         dollars(d.Billing.CostToday),
			SessionCost:       dollars(d.Billing.SessionCost),
			BurnRatePerHour:   dollars(d.Billing.BurnRate),
			BudgetRemaining:   time.Duration(d.Billing.BudgetRemainingMn) * time.Minute,
			BudgetPercentUsed: d.Billing.BudgetPercentUsed,
			ResetTime:         d.Billing.ResetTime,
			IsFresh:           d.Billing.Fresh,
			History:           DeltaDecode(d.Billing.History),
			LastFetched:       fromMillis(d.Billing.LastFetched),
		},
		Model: domain.Model{
			ID:          d.Model.ID,
			DisplayName: d.Model.Name,
		},
		Context: domain.ContextWindow{
			TokensUsed:     d.Model.TokensUsed,
			WindowSize:     d.Model.WindowSize,
			PercentUsed:    d.Model.PercentUsed,
			NearCompaction: d.Model.Near,
		},
		Transcript: domain.Transcript{
			Exists:       d.Transcript.Exists,
			SizeBytes:    d.Transcript.SizeBytes,
			MessageCount: d.Transcript.Messages,
			Usage: domain.Usage{
				InputTokens:      d.Transcript.Input,
				OutputTokens:     d.Transcript.Output,
				CacheReadTokens:  d.Transcript.CacheRead,
				CacheWriteTokens: d.Transcript.CacheWrite,
			},
			SecretsDetected: d.Transcript.Secrets,
			LastModified:    fromMillis(d.Transcript.LastModified),
			LastModel:       d.Transcript.LastModel,
		},
		Alerts: domain.Alerts{
			SecretsDetected: d.Alerts&alertSecrets != 0,
			TranscriptStale: d.Alerts&alertTranscriptStale != 0,
			DataLossRisk:    d.Alerts&alertDataLoss != 0,
		},
	}

	if w := d.Weekly; w != nil {
		s.Quota = domain.Quota{
			Resolved:                   true,
			SlotID:                     d.SlotID,
			Email:                      w.Email,
			Strategy:                   w.Strategy,
			Status:                     slotStatus(w.Status),
			FiveHourPercent:            float64(w.FiveHour),
			SevenDayPercent:            float64(w.SevenDay),
			WeeklyBudgetRemainingHours: float64(w.RemainingTenth) / 10,
			WeeklyResetDay:             w.ResetDay,
			DailyResetTime:             w.DailyReset,
			IsStale:                    w.Stale,
			SwitchMessage:              w.Switch,
			LastFetched:                fromMillis(w.LastFetched),
		}
	}

	if g := d.Git; g != nil {
		s.Git = domain.Git{
			IsRepo:      true,
			Branch:      g.Branch,
			Ahead:       g.Ahead,
			Behind:      g.Behind,
			Dirty:       g.Dirty,
			LastChecked: fromMillis(g.LastChecked),
		}
	}

	return s
}

// Size is the encoded length in bytes.
func Size(d DurableState) int {
	data, err := json.Marshal(d)
	if err != nil {
		return 0
	}
	return len(data)
}

// fit drops the least important content until the record is under MaxSize.
func fit(d *DurableState) {
	steps := []func(){
		func() { d.Billing.History = nil },
		func() {
			if len(d.Health.Issues) > 1 {
				d.Health.Issues = d.Health.Issues[:1]
			}
		},
		func() {
			if d.Weekly != nil {
				d.Weekly.Switch = ""
			}
		},
		func() { d.ProjectPath, d.ConfigDir = "", "" },
		func() { d.Transcript.LastModel, d.Model.ID = "", "" },
		func() {
			d.Model.Name = clip(d.Model.Name, MaxFieldLen)
			if d.Git != nil {
				d.Git.Branch = clip(d.Git.Branch, MaxFieldLen)
			}
			if d.Weekly != nil {
				d.Weekly.Email = clip(d.Weekly.Email, MaxFieldLen)
				d.Weekly.Strategy = clip(d.Weekly.Strategy, MaxFieldLen)
			}
			d.SlotID = clip(d.SlotID, MaxFieldLen)
		},
	}

	for _, step := range steps {
		if Size(*d) < MaxSize {
			return
		}
		step()
	}
}

func truncateIssues(issues []string) []string {
	if len(issues) == 0 {
		return nil
	}
	if len(issues) > MaxIssues {
		issues = issues[:MaxIssues]
	}

	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, clip(issue, MaxIssueLen))
	}
	return out
}

// clip shortens s to at most n runes, marking the cut with an ellipsis.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func alertMask(a domain.Alerts) uint8 {
	var mask uint8
	if a.SecretsDetected {
		mask |= alertSecrets
	}
	if a.TranscriptStale {
		mask |= alertTranscriptStale
	}
	if a.DataLossRisk {
		mask |= alertDataLoss
	}
	return mask
}

func healthCode(status domain.HealthStatus) string {
	if code, ok := healthCodes[status]; ok {
		return code
	}
	return "u"
}

func healthStatus(code string) domain.HealthStatus {
	for status, c := range healthCodes {
		if c == code {
			return status
		}
	}
	return domain.HealthUnknown
}

func slotStatus(code string) domain.SlotStatus {
	for status, c := range slotCodes {
		if c == code {
			return status
		}
	}
	return domain.SlotActive
}

func lastN(values []int64, n int) []int64 {
	if len(values) > n {
		return values[len(values)-n:]
	}
	return values
}

func cents(usd float64) int64 {
	return int64(math.Round(usd * 100))
}

func dollars(c int64) float64 {
	return float64(c) / 100
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
