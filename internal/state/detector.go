package state

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"

	"github.com/bnema/healthline/internal/ports"
)

// Hash fingerprints the content of d. Timestamps, countdowns derived from the
// clock and the meta block are left out so a cycle that only observes the
// same data again hashes the same.
func Hash(d DurableState) string {
	d.FirstSeen = 0
	d.Meta = Meta{}
	d.Billing.LastFetched = 0
	d.Billing.BudgetRemainingMn = 0
	d.Transcript.LastModified = 0
	if d.Weekly != nil {
		w := *d.Weekly
		w.LastFetched = 0
		w.RemainingTenth = 0
		d.Weekly = &w
	}
	if d.Git != nil {
		g := *d.Git
		g.LastChecked = 0
		d.Git = &g
	}

	data, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])[:8]
}

type ChangeDetector struct {
	clock ports.Clock
}

func NewChangeDetector(clock ports.Clock) *ChangeDetector {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &ChangeDetector{clock: clock}
}

// Stamp writes the meta block of next and reports whether its content differs
// from the state that carried prev.
func (c *ChangeDetector) Stamp(next *DurableState, prev Meta) bool {
	hash := Hash(*next)
	if prev.Hash != "" && hash == prev.Hash {
		next.Meta = prev
		return false
	}

	next.Meta = Meta{
		Hash:      hash,
		Count:     prev.Count + 1,
		UpdatedAt: c.clock.Now().UnixMilli(),
	}
	return true
}
