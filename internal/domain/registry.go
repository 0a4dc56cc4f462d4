package domain

import (
	"fmt"
	"strings"
	"time"
)

// SessionRegistry records which credential slots exist and whether they are
// in rotation. It is edited by hand as often as by the CLI.
type SessionRegistry struct {
	Active string
	Slots  []RegistrySlot
}

type RegistrySlot struct {
	ID                 string
	Email              string
	ConfigDir          string
	KeychainKey        string
	Status             SlotStatus
	DeactivatedAt      time.Time
	DeactivationReason string
	ReactivatedAt      time.Time
}

func (s RegistrySlot) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("id is required")
	}
	switch s.Status {
	case "", SlotActive, SlotInactive:
	default:
		return fmt.Errorf("unsupported status %q", s.Status)
	}

	return nil
}

func (r SessionRegistry) Slot(id string) (RegistrySlot, bool) {
	for _, slot := range r.Slots {
		if slot.ID == id {
			return slot, true
		}
	}
	return RegistrySlot{}, false
}

// StatusOf reports the lifecycle status of a slot. Slots the registry does
// not know are considered active.
func (r SessionRegistry) StatusOf(id string) SlotStatus {
	slot, ok := r.Slot(id)
	if !ok || slot.Status == "" {
		return SlotActive
	}
	return slot.Status
}

func (r *SessionRegistry) Deactivate(id, reason string, now time.Time) error {
	for i := range r.Slots {
		if r.Slots[i].ID != id {
			continue
		}
		r.Slots[i].Status = SlotInactive
		r.Slots[i].DeactivatedAt = now
		r.Slots[i].DeactivationReason = strings.TrimSpace(reason)
		return nil
	}
	return ErrSlotNotFound
}

func (r *SessionRegistry) Activate(id string, now time.Time) error {
	for i := range r.Slots {
		if r.Slots[i].ID != id {
			continue
		}
		if r.Slots[i].Status == SlotInactive {
			r.Slots[i].ReactivatedAt = now
		}
		r.Slots[i].Status = SlotActive
		r.Slots[i].DeactivationReason = ""
		return nil
	}
	return ErrSlotNotFound
}

// Upsert replaces the slot with the same id or appends it.
func (r *SessionRegistry) Upsert(slot RegistrySlot) {
	for i := range r.Slots {
		if r.Slots[i].ID == slot.ID {
			r.Slots[i] = slot
			return
		}
	}
	r.Slots = append(r.Slots, slot)
}
