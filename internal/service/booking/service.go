// Package booking composes slot reservation, availability rules and the
// appointment lifecycle into the two booking entry points: scheduled
// bookings against a held slot, and walk-ins.
package booking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/slotwise/booking-api/internal/model"
	"github.com/slotwise/booking-api/internal/repository"
	"github.com/slotwise/booking-api/internal/service/availability"
	slotService "github.com/slotwise/booking-api/internal/service/slot"
	apperrors "github.com/slotwise/booking-api/pkg/errors"
)

type Service struct {
	slots        *slotService.Service
	appointments repository.AppointmentRepository
	availability *availability.Service
	outbox       repository.OutboxRepository
	now          func() time.Time
}

func NewService(
	slots *slotService.Service,
	appointments repository.AppointmentRepository,
	avail *availability.Service,
	outbox repository.OutboxRepository,
) *Service {
	return &Service{
		slots:        slots,
		appointments: appointments,
		availability: avail,
		outbox:       outbox,
		now:          time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// FindCandidates lists the slots a booking attempt may try to hold.
func (s *Service) FindCandidates(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*model.Slot, error) {
	return s.availability.ResolveCandidates(ctx, professionalID, from, to)
}

// Reserve places a temporary hold; the caller has until held_until to
// confirm before the reaper reclaims the slot.
func (s *Service) Reserve(ctx context.Context, slotID uuid.UUID, holdDuration time.Duration) (*model.SlotReservation, error) {
	slot, err := s.slots.ReserveTemporary(ctx, slotID, holdDuration)
	if err != nil {
		return nil, err
	}
	return &model.SlotReservation{
		SlotID:    slot.ID,
		HeldUntil: *slot.HeldUntil,
	}, nil
}

// Release hands a held slot back without booking it.
func (s *Service) Release(ctx context.Context, slotID uuid.UUID) (*model.Slot, error) {
	return s.slots.ReleaseReservation(ctx, slotID)
}

// Confirm turns a live hold into a committed slot plus an appointment.
// The appointment is created first so a lost race against the reaper
// leaves only a cancelled appointment row, never a committed slot
// without a booking.
func (s *Service) Confirm(ctx context.Context, req *model.ConfirmBookingRequest) (*model.Appointment, error) {
	slot, err := s.slots.Get(ctx, req.SlotID)
	if err != nil {
		return nil, err
	}
	if slot.State != model.SlotStateHeld {
		return nil, apperrors.InvalidState("slot is not held; reserve it before confirming")
	}

	now := s.now()
	status := model.AppointmentStatusPending
	var confirmedAt *time.Time
	if req.AutoConfirm {
		status = model.AppointmentStatusConfirmed
		confirmedAt = &now
	}

	appt := &model.Appointment{
		ClientID:       req.Details.ClientID,
		ProfessionalID: slot.ProfessionalID,
		ServiceID:      req.Details.ServiceID,
		SlotID:         &slot.ID,
		Day:            slot.Day,
		StartTime:      slot.StartTime,
		EndTime:        slot.EndTime,
		Status:         status,
		ConfirmedAt:    confirmedAt,
	}
	if err := s.appointments.Create(ctx, appt); err != nil {
		return nil, err
	}

	if _, err := s.slots.Commit(ctx, req.SlotID); err != nil {
		// The hold expired between reserve and confirm. Void the
		// appointment we just created; the booking attempt restarts.
		reason := "slot hold expired before confirmation"
		if _, txErr := s.appointments.TransitionState(ctx, appt.ID, status, model.AppointmentStatusCancelled, &model.StateChange{
			CancelReason: &reason,
			At:           s.now(),
		}); txErr != nil {
			log.Error().Err(txErr).Str("appointment_id", appt.ID.String()).Msg("failed to void appointment after commit failure")
		}
		return nil, err
	}

	s.emit(ctx, model.EventAppointmentCreated, appt)
	return appt, nil
}

// WalkIn books an immediately-starting appointment without a
// pre-existing slot. The working-hours guard still applies, in the
// professional's local timezone. When the professional is busy the
// walk-in is queued as pending instead of checked in.
func (s *Service) WalkIn(ctx context.Context, req *model.WalkInRequest) (*model.Appointment, error) {
	now := s.now()
	start := now
	end := now.Add(time.Duration(req.Duration) * time.Minute)

	inHours, err := s.availability.WithinWorkingHours(ctx, req.ProfessionalID, start, end)
	if err != nil {
		return nil, err
	}
	if !inHours {
		return nil, apperrors.GuardFailed("walk-in falls outside the professional's working hours")
	}

	busy, err := s.appointments.FindActiveOverlapping(ctx, req.ProfessionalID, start, end)
	if err != nil {
		return nil, err
	}

	status := model.AppointmentStatusCheckedIn
	var checkedInAt *time.Time
	if len(busy) > 0 {
		status = model.AppointmentStatusPending
	} else {
		checkedInAt = &now
	}

	loc, err := s.availability.Location(ctx, req.ProfessionalID)
	if err != nil {
		return nil, err
	}
	y, m, d := start.In(loc).Date()

	appt := &model.Appointment{
		ClientID:       req.Details.ClientID,
		ProfessionalID: req.ProfessionalID,
		ServiceID:      req.Details.ServiceID,
		Day:            time.Date(y, m, d, 0, 0, 0, 0, loc),
		StartTime:      start,
		EndTime:        end,
		Status:         status,
		CheckedInAt:    checkedInAt,
	}
	if err := s.appointments.Create(ctx, appt); err != nil {
		return nil, err
	}

	s.emit(ctx, model.EventAppointmentCreated, appt)
	return appt, nil
}

func (s *Service) emit(ctx context.Context, eventType string, appt *model.Appointment) {
	payload, err := json.Marshal(appt)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal booking event")
		return
	}
	if err := s.outbox.Create(ctx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   payload,
	}); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to enqueue booking event")
	}
}
