package transcript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/healthline/internal/ports"
)

// Ledger prices assistant turns across every transcript below a set of
// config directories.
type Ledger struct{}

var _ ports.CostLedger = (*Ledger)(nil)

func NewLedger() *Ledger {
	return &Ledger{}
}

// CostSince walks <root>/projects and sums turns stamped at or after since.
// Files last modified before since are not opened.
func (l *Ledger) CostSince(ctx context.Context, roots []string, since time.Time) (float64, error) {
	seen := map[string]struct{}{}
	var total float64

	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		projects := filepath.Join(filepath.Clean(root), "projects")
		if _, ok := seen[projects]; ok {
			continue
		}
		seen[projects] = struct{}{}

		err := filepath.WalkDir(projects, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				if errors.Is(walkErr, fs.ErrNotExist) {
					return nil
				}
				return walkErr
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() || filepath.Ext(path) != ".jsonl" {
				return nil
			}

			info, err := d.Info()
			if err != nil || info.ModTime().Before(since) {
				return nil
			}

			cost, err := costOfFile(ctx, path, since)
			if err != nil {
				slog.Debug("transcript: skip unreadable file", "path", path, "error", err)
				return nil
			}
			total += cost
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("walk %s: %w", projects, err)
		}
	}

	return total, nil
}

func costOfFile(ctx context.Context, path string, since time.Time) (float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	stats, err := scanLines(contextReader{ctx: ctx, r: file}, false)
	if err != nil {
		return 0, err
	}

	var cost float64
	for _, t := range stats.turns {
		if t.timestamp.IsZero() || t.timestamp.Before(since) {
			continue
		}
		cost += costOf(t)
	}
	return cost, nil
}

// contextReader stops a long scan once the caller gives up.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
