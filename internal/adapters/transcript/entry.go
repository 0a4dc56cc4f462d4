// Package transcript reads the assistant's JSONL session transcripts.
package transcript

import (
	"bufio"
	"encoding/json"
	"io"
	"regexp"
	"time"

	"github.com/bnema/healthline/internal/domain"
)

const maxLineBytes = 10 * 1024 * 1024

type rawEntry struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
	Message   *rawMessage `json:"message,omitempty"`
}

type rawMessage struct {
	ID    string    `json:"id"`
	Role  string    `json:"role"`
	Model string    `json:"model"`
	Usage *rawUsage `json:"usage,omitempty"`
}

type rawUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

func (u *rawUsage) toDomain() domain.Usage {
	if u == nil {
		return domain.Usage{}
	}
	return domain.Usage{
		InputTokens:      u.InputTokens,
		OutputTokens:     u.OutputTokens,
		CacheReadTokens:  u.CacheReadInputTokens,
		CacheWriteTokens: u.CacheCreationInputTokens,
	}
}

// turn is one billable assistant response. Streaming writes the same message
// several times, so turns are keyed by message and request id.
type turn struct {
	key       string
	model     string
	usage     domain.Usage
	timestamp time.Time
}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`\bsk-[a-zA-Z0-9]{32,}`),
	regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
	regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}`),
	regexp.MustCompile(`\bxox[abprs]-[A-Za-z0-9-]{10,}`),
	regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH |DSA )?PRIVATE KEY-----`),
}

func containsSecret(line []byte) bool {
	for _, re := range secretPatterns {
		if re.Match(line) {
			return true
		}
	}
	return false
}

type scanStats struct {
	messages int
	secrets  bool
	turns    []turn
}

// scanLines walks the transcript once. Malformed lines are skipped. The last
// occurrence of a turn wins because streamed usage grows monotonically.
func scanLines(r io.Reader, detectSecrets bool) (scanStats, error) {
	var stats scanStats
	index := map[string]int{}

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry rawEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}

		switch entry.Type {
		case "user", "assistant":
			stats.messages++
		default:
			continue
		}

		if detectSecrets && !stats.secrets && containsSecret(line) {
			stats.secrets = true
		}

		if entry.Type != "assistant" || entry.Message == nil || entry.Message.Usage == nil {
			continue
		}

		t := turn{
			key:   entry.Message.ID + ":" + entry.RequestID,
			model: entry.Message.Model,
			usage: entry.Message.Usage.toDomain(),
		}
		if ts, err := time.Parse(time.RFC3339Nano, entry.Timestamp); err == nil {
			t.timestamp = ts
		}
		if entry.Message.ID == "" {
			t.key = ""
		}

		if i, ok := index[t.key]; ok && t.key != "" {
			stats.turns[i] = t
			continue
		}
		if t.key != "" {
			index[t.key] = len(stats.turns)
		}
		stats.turns = append(stats.turns, t)
	}

	if err := scanner.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

func costOf(t turn) float64 {
	return domain.PricingFor(t.model).CalculateCost(t.usage)
}
