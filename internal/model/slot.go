package model

import (
	"time"

	"github.com/google/uuid"
)

type SlotState string

const (
	SlotStateFree      SlotState = "free"
	SlotStateHeld      SlotState = "held"
	SlotStateCommitted SlotState = "committed"
)

type SlotKind string

const (
	SlotKindRecurring SlotKind = "recurring"
	SlotKindAdHoc     SlotKind = "ad_hoc"
)

// Slot is a bookable unit of a professional's time. A slot is uniquely
// keyed by (tenant, professional, day, start, end). HeldUntil is set
// iff State is held. Committed slots are immutable; rescheduling
// supersedes them with a new row.
type Slot struct {
	Base
	ProfessionalID uuid.UUID  `db:"professional_id" json:"professional_id"`
	Day            time.Time  `db:"day" json:"day"`
	StartTime      time.Time  `db:"start_time" json:"start_time"`
	EndTime        time.Time  `db:"end_time" json:"end_time"`
	State          SlotState  `db:"state" json:"state"`
	HeldUntil      *time.Time `db:"held_until" json:"held_until,omitempty"`
	Kind           SlotKind   `db:"kind" json:"kind"`
}

// Window returns the slot's time window.
func (s *Slot) Window() TimeSlot {
	return TimeSlot{Start: s.StartTime, End: s.EndTime}
}

type ReserveSlotRequest struct {
	HoldSeconds int `json:"hold_seconds" validate:"omitempty,min=1,max=3600"`
}

type SlotReservation struct {
	SlotID    uuid.UUID `json:"slot_id"`
	HeldUntil time.Time `json:"held_until"`
}
