package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/healthline/internal/domain"
)

const staleGlyph = "⚠"

// Line renders the single status line shown under the prompt.
func Line(snap *domain.Snapshot) string {
	if snap == nil {
		return ""
	}
	s := newStyles()

	segments := []string{healthBadge(snap.Health.Status, s) + " " + s.title.Render(modelLabel(snap))}

	if snap.Context.WindowSize > 0 {
		segments = append(segments, percentStyle(snap.Context.PercentUsed, 80, 95, s).Render(fmt.Sprintf("ctx %d%%", snap.Context.PercentUsed)))
	}

	if cost := billingSegment(snap.Billing); cost != "" {
		segments = append(segments, s.detail.Render(cost))
	}

	if snap.Quota.Resolved {
		segments = append(segments, quotaSegment(snap.Quota, s))
	}

	if snap.Git.IsRepo {
		segments = append(segments, s.faint.Render(gitSegment(snap.Git)))
	}

	if snap.Health.Status != domain.HealthHealthy && len(snap.Health.Issues) > 0 {
		style := s.warning
		if snap.Health.Status == domain.HealthCritical {
			style = s.critical
		}
		segments = append(segments, style.Render(snap.Health.Issues[0]))
	}

	return strings.Join(segments, s.separator.Render(" │ "))
}

func healthBadge(status domain.HealthStatus, s styles) string {
	switch status {
	case domain.HealthHealthy:
		return s.healthy.Render("●")
	case domain.HealthWarning:
		return s.warning.Render("●")
	case domain.HealthCritical:
		return s.critical.Render("●")
	default:
		return s.faint.Render("○")
	}
}

func modelLabel(snap *domain.Snapshot) string {
	switch {
	case snap.Model.DisplayName != "":
		return snap.Model.DisplayName
	case snap.Model.ID != "":
		return snap.Model.ID
	case snap.Transcript.LastModel != "":
		return snap.Transcript.LastModel
	default:
		return "unknown model"
	}
}

func billingSegment(b domain.Billing) string {
	parts := make([]string, 0, 2)
	if b.SessionCost > 0 {
		parts = append(parts, fmt.Sprintf("$%.2f", b.SessionCost))
	}
	if !b.LastFetched.IsZero() {
		today := fmt.Sprintf("$%.2f/day", b.CostToday)
		if b.BudgetPercentUsed > 0 {
			today += fmt.Sprintf(" (%d%%)", b.BudgetPercentUsed)
		}
		if !b.IsFresh {
			today += " " + staleGlyph
		}
		parts = append(parts, today)
	}
	return strings.Join(parts, " · ")
}

func quotaSegment(q domain.Quota, s styles) string {
	worst := max(q.FiveHourPercent, q.SevenDayPercent)
	text := fmt.Sprintf("5h %.0f%% 7d %.0f%%", q.FiveHourPercent, q.SevenDayPercent)
	if q.SlotID != "" {
		text += " " + q.SlotID
	}
	if q.IsStale {
		text += " " + staleGlyph
	}
	return percentStyle(int(worst), 80, 100, s).Render(text)
}

func gitSegment(g domain.Git) string {
	var b strings.Builder
	b.WriteString(g.Branch)
	if g.Ahead > 0 {
		fmt.Fprintf(&b, " ↑%d", g.Ahead)
	}
	if g.Behind > 0 {
		fmt.Fprintf(&b, " ↓%d", g.Behind)
	}
	if g.Dirty > 0 {
		fmt.Fprintf(&b, " *%d", g.Dirty)
	}
	return b.String()
}

func percentStyle(pct, warn, crit int, s styles) lipgloss.Style {
	switch {
	case pct >= crit:
		return s.critical
	case pct >= warn:
		return s.warning
	default:
		return s.detail
	}
}

func formatAgo(ts, now time.Time) string {
	if ts.IsZero() {
		return "never"
	}
	if now.IsZero() || now.Before(ts) {
		return ts.Format("15:04")
	}

	age := now.Sub(ts)
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}
