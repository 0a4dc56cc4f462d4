package domain

import "time"

type HealthStatus string

const (
	HealthUnknown  HealthStatus = "unknown"
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// Snapshot is the aggregate produced by one gather cycle. Each data source
// writes exactly one section.
type Snapshot struct {
	Identity         Identity
	Health           Health
	Billing          Billing
	Model            Model
	Context          ContextWindow
	Git              Git
	Transcript       Transcript
	Alerts           Alerts
	Quota            Quota
	GatherDurationMs int64
}

type Identity struct {
	SessionID       string
	ProjectPath     string
	ConfigDir       string
	KeychainKey     string
	FirstSeen       time.Time
	SessionDuration time.Duration
	LastUpdate      time.Time
}

type Health struct {
	Status HealthStatus
	Issues []string
}

type Billing struct {
	CostToday         float64
	SessionCost       float64
	BurnRatePerHour   float64
	BudgetRemaining   time.Duration
	BudgetPercentUsed int
	ResetTime         string
	IsFresh           bool
	LastFetched       time.Time
	// History holds daily cost samples in cents, oldest first.
	History []int64
}

type Model struct {
	ID          string
	DisplayName string
}

type ContextWindow struct {
	TokensUsed     int64
	WindowSize     int64
	PercentUsed    int
	NearCompaction bool
}

func (c ContextWindow) TokensLeft() int64 {
	if c.WindowSize <= c.TokensUsed {
		return 0
	}
	return c.WindowSize - c.TokensUsed
}

type Git struct {
	IsRepo      bool
	Branch      string
	Ahead       int
	Behind      int
	Dirty       int
	LastChecked time.Time
}

type Transcript struct {
	Path            string
	Exists          bool
	SizeBytes       int64
	LastModified    time.Time
	MessageCount    int
	LastModel       string
	Usage           Usage
	CostUSD         float64
	SecretsDetected bool
}

type Alerts struct {
	SecretsDetected bool
	TranscriptStale bool
	DataLossRisk    bool
}

type Quota struct {
	Resolved                   bool
	SlotID                     string
	Email                      string
	Strategy                   string
	Status                     SlotStatus
	FiveHourPercent            float64
	SevenDayPercent            float64
	WeeklyBudgetRemainingHours float64
	WeeklyResetDay             string
	DailyResetTime             string
	IsStale                    bool
	LastFetched                time.Time
	SwitchMessage              string
}

// Clone returns a deep copy so carry-forward never aliases the previous
// snapshot's slices.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	out := *s
	if s.Health.Issues != nil {
		out.Health.Issues = append([]string(nil), s.Health.Issues...)
	}
	if s.Billing.History != nil {
		out.Billing.History = append([]int64(nil), s.Billing.History...)
	}

	return &out
}
