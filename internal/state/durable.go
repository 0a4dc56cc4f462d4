// Package state converts gather snapshots into the compact record persisted
// per session and detects when that record actually changed.
package state

const (
	SchemaVersion = 1
	MaxSize       = 5120
	MaxIssues     = 3
	MaxIssueLen   = 50
	MaxFieldLen   = 64
	MaxHistory    = 12
)

const (
	alertSecrets uint8 = 1 << iota
	alertTranscriptStale
	alertDataLoss
)

// DurableState is the on-disk session record. Money is in integer cents and
// every *ts field is unix milliseconds.
type DurableState struct {
	Version     int             `json:"v"`
	SessionID   string          `json:"sid"`
	SlotID      string          `json:"aid,omitempty"`
	ProjectPath string          `json:"p,omitempty"`
	ConfigDir   string          `json:"cd,omitempty"`
	FirstSeen   int64           `json:"fs,omitempty"`
	Health      HealthBlock     `json:"h"`
	Billing     BillingBlock    `json:"b"`
	Weekly      *WeeklyBlock    `json:"wb,omitempty"`
	Git         *GitBlock       `json:"g,omitempty"`
	Model       ModelBlock      `json:"m"`
	Transcript  TranscriptBlock `json:"t"`
	Alerts      uint8           `json:"al"`
	Meta        Meta            `json:"meta"`
}

type HealthBlock struct {
	Status string   `json:"s"`
	Issues []string `json:"i,omitempty"`
}

type BillingBlock struct {
	CostToday         int64   `json:"c"`
	SessionCost       int64   `json:"sc"`
	BurnRate          int64   `json:"br"`
	BudgetRemainingMn int64   `json:"bm"`
	BudgetPercentUsed int     `json:"bp"`
	ResetTime         string  `json:"rt,omitempty"`
	Fresh             bool    `json:"f"`
	History           []int64 `json:"hd,omitempty"`
	LastFetched       int64   `json:"ts,omitempty"`
}

type WeeklyBlock struct {
	Email          string `json:"e,omitempty"`
	Strategy       string `json:"via,omitempty"`
	Status         string `json:"st"`
	FiveHour       int    `json:"h5"`
	SevenDay       int    `json:"d7"`
	RemainingTenth int64  `json:"rh"`
	ResetDay       string `json:"rd,omitempty"`
	DailyReset     string `json:"dr,omitempty"`
	Stale          bool   `json:"s"`
	Switch         string `json:"sw,omitempty"`
	LastFetched    int64  `json:"ts,omitempty"`
}

type GitBlock struct {
	Branch      string `json:"br"`
	Ahead       int    `json:"a,omitempty"`
	Behind      int    `json:"b,omitempty"`
	Dirty       int    `json:"d,omitempty"`
	LastChecked int64  `json:"ts,omitempty"`
}

type ModelBlock struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"n,omitempty"`
	TokensUsed  int64  `json:"cu"`
	WindowSize  int64  `json:"cs"`
	PercentUsed int    `json:"cp"`
	Near        bool   `json:"nc,omitempty"`
}

type TranscriptBlock struct {
	Exists       bool   `json:"x"`
	SizeBytes    int64  `json:"sz"`
	Messages     int    `json:"mc"`
	Input        int64  `json:"ti,omitempty"`
	Output       int64  `json:"to,omitempty"`
	CacheRead    int64  `json:"tr,omitempty"`
	CacheWrite   int64  `json:"tw,omitempty"`
	Secrets      bool   `json:"sx,omitempty"`
	LastModified int64  `json:"ts,omitempty"`
	LastModel    string `json:"lm,omitempty"`
}

type Meta struct {
	Hash      string `json:"h"`
	Count     int64  `json:"n"`
	UpdatedAt int64  `json:"ts"`
}
