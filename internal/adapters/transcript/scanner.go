package transcript

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/healthline/internal/domain"
	"github.com/bnema/healthline/internal/ports"
)

// Scanner summarises a single session transcript.
type Scanner struct {
	detectSecrets bool
}

var _ ports.TranscriptScanner = (*Scanner)(nil)

func NewScanner(detectSecrets bool) *Scanner {
	return &Scanner{detectSecrets: detectSecrets}
}

// Scan reports Exists=false without error when the file is missing so the
// caller can flag data loss.
func (s *Scanner) Scan(ctx context.Context, path string) (domain.Transcript, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return domain.Transcript{}, errors.New("transcript path is empty")
	}
	path = filepath.Clean(path)
	out := domain.Transcript{Path: path}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return out, fmt.Errorf("stat transcript: %w", err)
	}
	out.Exists = true
	out.SizeBytes = info.Size()
	out.LastModified = info.ModTime()

	if err := ctx.Err(); err != nil {
		return out, err
	}

	file, err := os.Open(path)
	if err != nil {
		return out, fmt.Errorf("open transcript: %w", err)
	}
	defer file.Close()

	stats, err := scanLines(contextReader{ctx: ctx, r: file}, s.detectSecrets)
	if err != nil {
		return out, fmt.Errorf("read transcript: %w", err)
	}

	out.MessageCount = stats.messages
	out.SecretsDetected = stats.secrets
	for _, t := range stats.turns {
		out.Usage = out.Usage.Add(t.usage)
		out.CostUSD += costOf(t)
		if t.model != "" && t.model != "<synthetic>" {
			out.LastModel = t.model
		}
	}

	return out, nil
}
