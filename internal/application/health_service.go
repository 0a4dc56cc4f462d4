package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bnema/healthline/internal/broker"
	"github.com/bnema/healthline/internal/domain"
	"github.com/bnema/healthline/internal/ports"
	"github.com/bnema/healthline/internal/state"
)

var ErrNoSession = errors.New("session id is required")

// GatherRequest describes the session a status line is being drawn for.
// Fields left empty are taken from Input when it carries them.
type GatherRequest struct {
	Input          *domain.StructuredInput
	SessionID      string
	TranscriptPath string
	WorkingDir     string
	ConfigDir      string
	KeychainKey    string
	Email          string
	Deadline       time.Time
}

type GatherResult struct {
	CycleID  string
	Snapshot *domain.Snapshot
	State    state.DurableState
	Changed  bool
	Outcomes map[string]ports.SourceOutcome
}

type HealthService struct {
	broker   *broker.Broker
	store    *state.Store
	detector *state.ChangeDetector
	metrics  ports.MetricsRecorder
	clock    ports.Clock
}

func NewHealthService(b *broker.Broker, store *state.Store, clock ports.Clock, metrics ports.MetricsRecorder) *HealthService {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &HealthService{
		broker:   b,
		store:    store,
		detector: state.NewChangeDetector(clock),
		metrics:  metrics,
		clock:    clock,
	}
}

// Gather runs one cycle for the session and persists its durable state when
// the content changed. Source failures only show up in the snapshot.
func (s *HealthService) Gather(ctx context.Context, req GatherRequest) (GatherResult, error) {
	gc := buildGatherContext(req)
	if gc.SessionID == "" {
		return GatherResult{}, ErrNoSession
	}

	var prevMeta state.Meta
	prev, ok, err := s.store.Load(gc.SessionID)
	switch {
	case errors.Is(err, state.ErrInvalidSessionID):
		return GatherResult{}, err
	case err != nil:
		slog.Debug("health: previous state unreadable", "session", gc.SessionID, "error", err)
	case ok:
		gc.Existing = state.Deserialize(prev)
		prevMeta = prev.Meta
	}

	res := s.broker.Gather(ctx, gc)

	next := state.Serialize(res.Snapshot)
	changed := s.detector.Stamp(&next, prevMeta)
	if changed {
		if err := s.store.Save(next); err != nil {
			slog.Warn("health: save session state", "session", gc.SessionID, "error", err)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordGather(ctx, ports.GatherMetrics{
			Duration: time.Duration(res.Snapshot.GatherDurationMs) * time.Millisecond,
			Outcomes: res.Outcomes,
			Changed:  changed,
		})
	}

	return GatherResult{
		CycleID:  res.CycleID,
		Snapshot: res.Snapshot,
		State:    next,
		Changed:  changed,
		Outcomes: res.Outcomes,
	}, nil
}

// Snapshot returns the last persisted state of a session. An empty id picks
// the most recently updated session.
func (s *HealthService) Snapshot(_ context.Context, sessionID string) (*domain.Snapshot, error) {
	if sessionID == "" {
		ids, err := s.store.Sessions()
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, nil
		}
		sessionID = ids[0]
	}

	d, ok, err := s.store.Load(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if !ok {
		return nil, nil
	}

	snap := state.Deserialize(d)
	if !snap.Identity.FirstSeen.IsZero() && snap.Identity.LastUpdate.After(snap.Identity.FirstSeen) {
		snap.Identity.SessionDuration = snap.Identity.LastUpdate.Sub(snap.Identity.FirstSeen)
	}
	return snap, nil
}

func (s *HealthService) Sessions(context.Context) ([]string, error) {
	return s.store.Sessions()
}

func buildGatherContext(req GatherRequest) domain.GatherContext {
	gc := domain.GatherContext{
		SessionID:      req.SessionID,
		TranscriptPath: req.TranscriptPath,
		WorkingDir:     req.WorkingDir,
		ConfigDir:      req.ConfigDir,
		KeychainKey:    req.KeychainKey,
		Email:          req.Email,
		Input:          req.Input,
		Deadline:       req.Deadline,
	}

	if in := req.Input; in != nil {
		if gc.SessionID == "" {
			gc.SessionID = in.SessionID
		}
		if gc.TranscriptPath == "" {
			gc.TranscriptPath = in.TranscriptPath
		}
		if gc.WorkingDir == "" {
			gc.WorkingDir = firstNonEmpty(in.Workspace.CurrentDir, in.Cwd)
		}
		gc.ProjectPath = in.Workspace.ProjectDir
	}
	if gc.ProjectPath == "" {
		gc.ProjectPath = gc.WorkingDir
	}

	return gc
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
