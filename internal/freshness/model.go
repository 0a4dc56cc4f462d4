// Package freshness classifies data ages against per-category thresholds and
// tracks process-local fetch cooldowns.
package freshness

import (
	"sync"
	"time"

	"github.com/bnema/healthline/internal/ports"
)

type Status string

const (
	StatusFresh    Status = "fresh"
	StatusStale    Status = "stale"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
)

const (
	CategoryBillingLocal = "billing_local"
	CategoryGitStatus    = "git_status"
	CategoryQuotaBroker  = "quota_broker"
	CategoryTranscript   = "transcript"
	CategoryDefault      = "default"

	// Cooldown-only categories. They use the default thresholds but keep
	// their own failure record, so an expected miss in one source never
	// holds back another.
	CategoryInputModel   = "input_model"
	CategoryInputContext = "input_context"
	CategorySessionCost  = "session_cost"
)

type Category struct {
	Name     string
	Fresh    time.Duration
	Stale    time.Duration
	Cooldown time.Duration
}

type Config struct {
	Default    Category
	Categories map[string]Category
}

func DefaultConfig() Config {
	return Config{
		Default: Category{Name: CategoryDefault, Fresh: time.Minute, Stale: 5 * time.Minute, Cooldown: 30 * time.Second},
		Categories: map[string]Category{
			CategoryBillingLocal: {Name: CategoryBillingLocal, Fresh: 2 * time.Minute, Stale: 10 * time.Minute, Cooldown: time.Minute},
			CategoryGitStatus:    {Name: CategoryGitStatus, Fresh: 30 * time.Second, Stale: 5 * time.Minute, Cooldown: 10 * time.Second},
			CategoryQuotaBroker:  {Name: CategoryQuotaBroker, Fresh: 5 * time.Minute, Stale: 15 * time.Minute, Cooldown: time.Minute},
			CategoryTranscript:   {Name: CategoryTranscript, Fresh: 30 * time.Second, Stale: 5 * time.Minute, Cooldown: 5 * time.Second},
		},
	}
}

// Model is safe for concurrent use. Cooldown state lives only in this
// process.
type Model struct {
	cfg   Config
	clock ports.Clock

	mu          sync.Mutex
	lastFailure map[string]time.Time
}

func New(cfg Config, clock ports.Clock) *Model {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if cfg.Categories == nil {
		cfg.Categories = map[string]Category{}
	}

	return &Model{
		cfg:         cfg,
		clock:       clock,
		lastFailure: map[string]time.Time{},
	}
}

// Category returns the thresholds for name, or the default category when
// name is not configured.
func (m *Model) Category(name string) Category {
	if c, ok := m.cfg.Categories[name]; ok {
		return c
	}
	return m.cfg.Default
}

func (m *Model) Age(ts time.Time) time.Duration {
	if ts.IsZero() {
		return 0
	}
	age := m.clock.Now().Sub(ts)
	if age < 0 {
		return 0
	}
	return age
}

// Status classifies ts. Boundaries are exclusive below: an age equal to the
// fresh threshold is already stale.
func (m *Model) Status(ts time.Time, category string) Status {
	if ts.IsZero() {
		return StatusUnknown
	}

	c := m.Category(category)
	age := m.Age(ts)
	switch {
	case age < c.Fresh:
		return StatusFresh
	case age < c.Stale:
		return StatusStale
	default:
		return StatusCritical
	}
}

func (m *Model) Indicator(ts time.Time, category string) string {
	return Indicator(m.Status(ts, category))
}

func Indicator(status Status) string {
	switch status {
	case StatusFresh:
		return ""
	case StatusCritical:
		return "🔺"
	default:
		return "⚠"
	}
}

// ShouldRefetch is false while the category is cooling down after a failed
// fetch.
func (m *Model) ShouldRefetch(category string) bool {
	m.mu.Lock()
	failedAt, ok := m.lastFailure[category]
	m.mu.Unlock()
	if !ok {
		return true
	}

	return m.clock.Now().Sub(failedAt) >= m.Category(category).Cooldown
}

func (m *Model) RecordFetch(category string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if success {
		delete(m.lastFailure, category)
		return
	}
	m.lastFailure[category] = m.clock.Now()
}
