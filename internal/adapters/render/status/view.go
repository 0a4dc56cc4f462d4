package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/healthline/internal/domain"
)

type RenderOptions struct {
	Now time.Time
}

func renderView(snap *domain.Snapshot, opts RenderOptions, s styles) string {
	if snap == nil {
		return s.empty.Render("No session state recorded yet.")
	}

	lines := []string{
		s.title.Render(fmt.Sprintf("Session %s", snap.Identity.SessionID)),
		s.header.Render(headerLine(snap, opts)),
	}

	sections := [][]string{
		healthLines(snap.Health, s),
		contextLines(snap, s),
		billingLines(snap.Billing, opts, s),
		quotaLines(snap.Quota, opts, s),
		workspaceLines(snap, opts, s),
	}
	for _, section := range sections {
		if len(section) == 0 {
			continue
		}
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, section...)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func headerLine(snap *domain.Snapshot, opts RenderOptions) string {
	parts := []string{}
	if snap.Identity.ProjectPath != "" {
		parts = append(parts, snap.Identity.ProjectPath)
	}
	if snap.Identity.SessionDuration > 0 {
		parts = append(parts, "running "+snap.Identity.SessionDuration.Round(time.Minute).String())
	}
	parts = append(parts, "updated "+formatAgo(snap.Identity.LastUpdate, opts.Now))
	return strings.Join(parts, " · ")
}

func healthLines(h domain.Health, s styles) []string {
	status := h.Status
	if status == "" {
		status = domain.HealthUnknown
	}

	lines := []string{healthBadge(status, s) + " " + s.label.Render("health: ") + s.detail.Render(string(status))}
	for _, issue := range h.Issues {
		style := s.warning
		if status == domain.HealthCritical {
			style = s.critical
		}
		lines = append(lines, "  "+style.Render("- "+issue))
	}
	return lines
}

func contextLines(snap *domain.Snapshot, s styles) []string {
	lines := []string{s.label.Render("model: ") + s.detail.Render(modelLabel(snap))}
	if snap.Context.WindowSize > 0 {
		ctx := snap.Context
		line := lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.label.Render("context: "),
			renderProgressBar(float64(ctx.PercentUsed), 24, s),
			" ",
			percentStyle(ctx.PercentUsed, 80, 95, s).Render(fmt.Sprintf("%d%% used", ctx.PercentUsed)),
			" ",
			s.faint.Render(fmt.Sprintf("(%s / %s tokens)", domain.CompactNumber(ctx.TokensUsed), domain.CompactNumber(ctx.WindowSize))),
		)
		if ctx.NearCompaction {
			line += " " + s.warning.Render("[near compaction]")
		}
		lines = append(lines, line)
	}
	return lines
}

func billingLines(b domain.Billing, opts RenderOptions, s styles) []string {
	if b.LastFetched.IsZero() && b.SessionCost == 0 {
		return nil
	}

	lines := []string{s.label.Render("session cost: ") + s.detail.Render(fmt.Sprintf("$%.2f", b.SessionCost))}
	if b.LastFetched.IsZero() {
		return lines
	}

	today := fmt.Sprintf("$%.2f today, $%.2f/h", b.CostToday, b.BurnRatePerHour)
	lines = append(lines, s.label.Render("spend: ")+s.detail.Render(today))

	if b.BudgetPercentUsed > 0 {
		lines = append(lines, lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.label.Render("budget: "),
			renderProgressBar(float64(b.BudgetPercentUsed), 24, s),
			" ",
			percentStyle(b.BudgetPercentUsed, 80, 100, s).Render(fmt.Sprintf("%d%% used", b.BudgetPercentUsed)),
		))
	}
	if b.ResetTime != "" {
		lines = append(lines, s.faint.Render(fmt.Sprintf("resets at %s (in %s)", b.ResetTime, formatDuration(b.BudgetRemaining))))
	}
	if len(b.History) > 0 {
		lines = append(lines, s.label.Render("history: ")+s.faint.Render(sparkline(b.History)))
	}

	fetched := "fetched " + formatAgo(b.LastFetched, opts.Now)
	if !b.IsFresh {
		fetched += " " + s.warning.Render("[stale]")
	}
	lines = append(lines, s.faint.Render(fetched))

	return lines
}

func quotaLines(q domain.Quota, opts RenderOptions, s styles) []string {
	if !q.Resolved {
		return nil
	}

	title := q.SlotID
	if q.Email != "" {
		title = fmt.Sprintf("%s (%s)", q.SlotID, q.Email)
	}
	lines := []string{
		s.label.Render("slot: ") + s.detail.Render(title) + s.faint.Render(fmt.Sprintf(" via %s, %s", q.Strategy, q.Status)),
		limitLine("5h", q.FiveHourPercent, q.DailyResetTime, s),
		limitLine("7d", q.SevenDayPercent, q.WeeklyResetDay, s),
	}
	if q.WeeklyBudgetRemainingHours > 0 {
		lines = append(lines, s.faint.Render(fmt.Sprintf("weekly budget: %.1fh left", q.WeeklyBudgetRemainingHours)))
	}
	if q.SwitchMessage != "" {
		lines = append(lines, s.warning.Render(q.SwitchMessage))
	}

	fetched := "fetched " + formatAgo(q.LastFetched, opts.Now)
	if q.IsStale {
		fetched += " " + s.warning.Render("[stale]")
	}
	lines = append(lines, s.faint.Render(fetched))

	return lines
}

func limitLine(label string, usedPercent float64, reset string, s styles) string {
	leftPercent := clampPercent(100 - usedPercent)
	percentColor := interpolateColor(leftPercent, 0, 100)
	meta := lipgloss.NewStyle().Foreground(percentColor).Render(fmt.Sprintf("%2.0f%% left", leftPercent))

	parts := []string{
		s.label.Render(label + " limit:"),
		" ",
		renderProgressBar(usedPercent, 24, s),
		" ",
		meta,
	}
	if reset != "" {
		parts = append(parts, " ", s.faint.Render("(resets "+reset+")"))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func workspaceLines(snap *domain.Snapshot, opts RenderOptions, s styles) []string {
	var lines []string
	if snap.Git.IsRepo {
		lines = append(lines, s.label.Render("git: ")+s.detail.Render(gitSegment(snap.Git)))
	}

	t := snap.Transcript
	if t.Path != "" || t.Exists {
		if !t.Exists {
			lines = append(lines, s.label.Render("transcript: ")+s.critical.Render("missing"))
		} else {
			lines = append(lines, s.label.Render("transcript: ")+s.detail.Render(fmt.Sprintf(
				"%d messages, %s tokens, %s, modified %s",
				t.MessageCount,
				t.Usage.TotalCompact(),
				formatBytes(t.SizeBytes),
				formatAgo(t.LastModified, opts.Now),
			)))
		}
	}
	return lines
}

func renderProgressBar(usedPercent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	used := clampPercent(usedPercent)
	filled := int(math.Round(float64(width) * used / 100.0))
	filled = min(max(filled, 0), width)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp from 240 (faded) to 255 (bright).
	baseColor := 240.0
	targetColor := 255.0
	colorCode := int(baseColor + (targetColor-baseColor)*normalized)

	return lipgloss.Color(fmt.Sprintf("%d", colorCode))
}

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

func sparkline(values []int64) string {
	var peak int64
	for _, v := range values {
		peak = max(peak, v)
	}

	var b strings.Builder
	for _, v := range values {
		idx := 0
		if peak > 0 && v > 0 {
			idx = int(math.Round(float64(v) / float64(peak) * float64(len(sparkBlocks)-1)))
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0m"
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh%02dm", hours, minutes)
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
