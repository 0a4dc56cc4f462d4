// Package sources defines the data sources the broker gathers each cycle and
// registers them with a registry.
package sources

import (
	"errors"
	"fmt"
	"time"

	"github.com/bnema/healthline/internal/billing"
	"github.com/bnema/healthline/internal/coord"
	"github.com/bnema/healthline/internal/freshness"
	"github.com/bnema/healthline/internal/ports"
	"github.com/bnema/healthline/internal/quota"
	"github.com/bnema/healthline/internal/registry"
)

const (
	IDInputModel   = "input_model"
	IDInputContext = "input_context"
	IDTranscript   = "transcript"
	IDGit          = "git"
	IDSessionCost  = "session_cost"
	IDBilling      = "billing"
	IDQuota        = "quota"
)

var (
	errNoInput       = errors.New("no structured input")
	errNoTranscript  = errors.New("no transcript path")
	errNoWorkingDir  = errors.New("no working directory")
	errNoSessionCost = errors.New("no session cost available")
)

func DefaultTimeouts() map[string]time.Duration {
	return map[string]time.Duration{
		IDInputModel:   50 * time.Millisecond,
		IDInputContext: 50 * time.Millisecond,
		IDTranscript:   300 * time.Millisecond,
		IDGit:          200 * time.Millisecond,
		IDSessionCost:  100 * time.Millisecond,
		IDBilling:      200 * time.Millisecond,
		IDQuota:        500 * time.Millisecond,
	}
}

// Deps holds what the sources read from. A nil collaborator leaves the
// sources that need it unregistered.
type Deps struct {
	Clock     ports.Clock
	Freshness *freshness.Model

	Transcripts ports.TranscriptScanner
	Git         ports.GitInspector

	Billing     *billing.CacheStore
	Budget      billing.Budget
	BillingGate *coord.RefreshGate

	Quota       *quota.CacheStore
	Slots       ports.SessionRegistryRepository
	Resolver    *quota.Resolver
	Recommender *quota.Recommender
	QuotaGate   *coord.RefreshGate

	Coordinator *coord.Coordinator

	// NearCompactionPercent marks the context window as close to automatic
	// compaction.
	NearCompactionPercent int
	// Timeouts overrides DefaultTimeouts per source id.
	Timeouts map[string]time.Duration
}

// Register adds every source whose dependencies are present.
func Register(reg *registry.Registry, deps Deps) error {
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if deps.Freshness == nil {
		deps.Freshness = freshness.New(freshness.DefaultConfig(), deps.Clock)
	}
	if deps.NearCompactionPercent <= 0 {
		deps.NearCompactionPercent = DefaultNearCompactionPercent
	}

	timeouts := DefaultTimeouts()
	for id, timeout := range deps.Timeouts {
		if timeout > 0 {
			timeouts[id] = timeout
		}
	}

	descriptors := []registry.Descriptor{
		inputModelSource(timeouts[IDInputModel]),
		inputContextSource(timeouts[IDInputContext], deps.NearCompactionPercent),
	}
	if deps.Transcripts != nil {
		descriptors = append(descriptors,
			transcriptSource(timeouts[IDTranscript], deps.Transcripts),
			sessionCostSource(timeouts[IDSessionCost]),
		)
	}
	if deps.Git != nil {
		descriptors = append(descriptors, gitSource(timeouts[IDGit], deps.Git, deps.Clock))
	}
	if deps.Billing != nil {
		descriptors = append(descriptors, billingSource(timeouts[IDBilling], deps))
	}
	if deps.Quota != nil && deps.Resolver != nil {
		descriptors = append(descriptors, quotaSource(timeouts[IDQuota], deps))
	}

	for _, d := range descriptors {
		if err := reg.Register(d); err != nil {
			return fmt.Errorf("register source %s: %w", d.ID, err)
		}
	}
	return nil
}
