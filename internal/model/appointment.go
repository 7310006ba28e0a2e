package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending    AppointmentStatus = "pending"
	AppointmentStatusConfirmed  AppointmentStatus = "confirmed"
	AppointmentStatusCheckedIn  AppointmentStatus = "checked_in"
	AppointmentStatusInProgress AppointmentStatus = "in_progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
	AppointmentStatusNoShow     AppointmentStatus = "no_show"
)

// Terminal reports whether the status has no outgoing transitions.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

// Valid reports whether s is a known status value.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusCheckedIn,
		AppointmentStatusInProgress, AppointmentStatusCompleted, AppointmentStatusCancelled,
		AppointmentStatusNoShow:
		return true
	}
	return false
}

// Appointment is a client's booked service instance. Rows are never
// hard-deleted; cancellation is a state, not a row removal. SlotID is
// nil for walk-ins created without a pre-existing slot.
type Appointment struct {
	Base
	ClientID        uuid.UUID         `db:"client_id" json:"client_id"`
	ProfessionalID  uuid.UUID         `db:"professional_id" json:"professional_id"`
	ServiceID       uuid.UUID         `db:"service_id" json:"service_id"`
	SlotID          *uuid.UUID        `db:"slot_id" json:"slot_id,omitempty"`
	Day             time.Time         `db:"day" json:"day"`
	StartTime       time.Time         `db:"start_time" json:"start_time"`
	EndTime         time.Time         `db:"end_time" json:"end_time"`
	Status          AppointmentStatus `db:"status" json:"status"`
	FinalPrice      *float64          `db:"final_price" json:"final_price,omitempty"`
	Paid            bool              `db:"paid" json:"paid"`
	CancelReason    *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CompletionNotes *string           `db:"completion_notes" json:"completion_notes,omitempty"`
	ConfirmedAt     *time.Time        `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CheckedInAt     *time.Time        `db:"checked_in_at" json:"checked_in_at,omitempty"`
	StartedAt       *time.Time        `db:"started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt     *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// StateChange carries the caller-supplied context for a transition.
type StateChange struct {
	FinalPrice   *float64
	CancelReason *string
	Notes        *string
	At           time.Time
}

type BookingDetails struct {
	ClientID  uuid.UUID `json:"client_id" validate:"required"`
	ServiceID uuid.UUID `json:"service_id" validate:"required"`
	Notes     string    `json:"notes" validate:"max=1000"`
}

type ConfirmBookingRequest struct {
	SlotID  uuid.UUID      `json:"slot_id" validate:"required"`
	Details BookingDetails `json:"details" validate:"required"`
	// AutoConfirm creates the appointment directly in confirmed;
	// staff-initiated bookings skip the client confirmation round trip.
	AutoConfirm bool `json:"auto_confirm"`
}

type WalkInRequest struct {
	ProfessionalID uuid.UUID      `json:"professional_id" validate:"required"`
	Details        BookingDetails `json:"details" validate:"required"`
	Duration       int            `json:"duration_minutes" validate:"required,min=5,max=480"`
}

type TransitionRequest struct {
	TargetState  AppointmentStatus `json:"target_state" validate:"required"`
	FinalPrice   *float64          `json:"final_price" validate:"omitempty,gte=0"`
	CancelReason *string           `json:"cancel_reason"`
	Notes        *string           `json:"notes"`
}

type RescheduleRequest struct {
	SlotID      uuid.UUID `json:"slot_id" validate:"required"`
	HoldSeconds int       `json:"hold_seconds" validate:"omitempty,min=1,max=3600"`
}

type AppointmentFilters struct {
	ProfessionalID uuid.UUID
	ClientID       uuid.UUID
	Status         AppointmentStatus
	StartDate      time.Time
	EndDate        time.Time
}
