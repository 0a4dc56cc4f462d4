package domain

import "time"

// StructuredInput is the JSON document the assistant pipes to the status line
// command on stdin.
type StructuredInput struct {
	SessionID      string              `json:"session_id"`
	TranscriptPath string              `json:"transcript_path"`
	Cwd            string              `json:"cwd"`
	Model          InputModel          `json:"model"`
	Workspace      InputWorkspace      `json:"workspace"`
	Cost           InputCost           `json:"cost"`
	ContextWindow  *InputContextWindow `json:"context_window,omitempty"`
}

type InputModel struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type InputWorkspace struct {
	CurrentDir string `json:"current_dir"`
	ProjectDir string `json:"project_dir"`
}

type InputCost struct {
	TotalCostUSD    float64 `json:"total_cost_usd"`
	TotalDurationMs int64   `json:"total_duration_ms"`
}

type InputContextWindow struct {
	TotalInputTokens  int64    `json:"total_input_tokens"`
	TotalOutputTokens int64    `json:"total_output_tokens"`
	ContextWindowSize int64    `json:"context_window_size"`
	UsedPercentage    *float64 `json:"used_percentage,omitempty"`
}

// GatherContext is the read-only input of one gather cycle. Sources receive
// it by value.
type GatherContext struct {
	SessionID      string
	TranscriptPath string
	WorkingDir     string
	ProjectPath    string
	ConfigDir      string
	KeychainKey    string
	Email          string
	Input          *StructuredInput
	Deadline       time.Time
	// Existing is the previous cycle's snapshot, if any.
	Existing *Snapshot
	// Upstream is a copy of the snapshot as merged by earlier tiers of the
	// current cycle.
	Upstream *Snapshot
}
