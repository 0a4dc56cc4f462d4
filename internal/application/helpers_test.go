package application

import (
	"context"
	"sync"
	"time"

	"github.com/bnema/healthline/internal/domain"
	"github.com/bnema/healthline/internal/ports"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

var testNow = time.Date(2026, 10, 6, 14, 30, 0, 0, time.UTC)

type memorySlots struct {
	mu  sync.Mutex
	reg domain.SessionRegistry
	err error
}

func (m *memorySlots) Load(context.Context) (domain.SessionRegistry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.SessionRegistry{}, m.err
	}
	out := m.reg
	out.Slots = append([]domain.RegistrySlot(nil), m.reg.Slots...)
	return out, nil
}

func (m *memorySlots) Save(_ context.Context, reg domain.SessionRegistry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reg = reg
	return nil
}

func (m *memorySlots) Update(ctx context.Context, fn func(*domain.SessionRegistry) error) error {
	reg, err := m.Load(ctx)
	if err != nil {
		return err
	}
	if err := fn(&reg); err != nil {
		return err
	}
	return m.Save(ctx, reg)
}

type recordingMetrics struct {
	mu    sync.Mutex
	calls []ports.GatherMetrics
}

func (m *recordingMetrics) RecordGather(_ context.Context, g ports.GatherMetrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, g)
}

func (m *recordingMetrics) Close(context.Context) error { return nil }
