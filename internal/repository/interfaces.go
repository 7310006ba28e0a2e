package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/booking-api/internal/model"
)

// SlotRepository owns slot rows. All state transitions are conditional
// writes: the UPDATE re-asserts the expected prior state and zero rows
// affected means the caller lost the race.
type SlotRepository interface {
	Create(ctx context.Context, slot *model.Slot) error
	Get(ctx context.Context, id uuid.UUID) (*model.Slot, error)

	// Hold transitions free -> held with the given expiry.
	Hold(ctx context.Context, id uuid.UUID, heldUntil time.Time) (*model.Slot, error)

	// Release transitions held -> free. Releasing an already-free slot
	// returns the slot unchanged.
	Release(ctx context.Context, id uuid.UUID) (*model.Slot, error)

	// CommitHeld transitions held -> committed, only while the hold is
	// still live at now.
	CommitHeld(ctx context.Context, id uuid.UUID, now time.Time) (*model.Slot, error)

	// ExpireHeldBefore returns held slots with held_until < now to free
	// and reports how many were reclaimed.
	ExpireHeldBefore(ctx context.Context, now time.Time) (int64, error)

	FindFree(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*model.Slot, error)
}

// AppointmentRepository owns appointment rows. TransitionState applies
// the same conditional-write discipline to the status column.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *model.Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)

	// TransitionState writes to conditioned on status still being from.
	TransitionState(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus, change *model.StateChange) (*model.Appointment, error)

	// UpdateSchedule moves the appointment to a new slot/time while the
	// status is one of allowed.
	UpdateSchedule(ctx context.Context, id uuid.UUID, slotID *uuid.UUID, day, start, end time.Time, allowed []model.AppointmentStatus) (*model.Appointment, error)

	// FindActiveOverlapping returns non-terminal appointments of the
	// professional intersecting [start, end).
	FindActiveOverlapping(ctx context.Context, professionalID uuid.UUID, start, end time.Time) ([]*model.Appointment, error)
}

// WorkingHoursRepository is the read-only Availability Rule Source.
type WorkingHoursRepository interface {
	ListForProfessional(ctx context.Context, professionalID uuid.UUID) ([]*model.WorkingHours, error)
}

type AuditRepository interface {
	Create(ctx context.Context, entry *model.TransitionAudit) error
	ListForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.TransitionAudit, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, event *model.OutboxEvent) error
	GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
