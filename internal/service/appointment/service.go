// Package appointment guards the booked-appointment lifecycle. The
// transition table in machine.go decides reachability; the service
// layers time and business guards on top and persists transitions with
// the conditional-write discipline.
package appointment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/slotwise/booking-api/internal/model"
	"github.com/slotwise/booking-api/internal/repository"
	"github.com/slotwise/booking-api/internal/service/audit"
	slotService "github.com/slotwise/booking-api/internal/service/slot"
	apperrors "github.com/slotwise/booking-api/pkg/errors"
	"github.com/slotwise/booking-api/pkg/metrics"
)

// TimezoneSource resolves the local timezone a professional's schedule
// is defined in. Time guards must compare wall clocks in that zone,
// never raw UTC.
type TimezoneSource interface {
	Location(ctx context.Context, professionalID uuid.UUID) (*time.Location, error)
}

type Service struct {
	repo    repository.AppointmentRepository
	slots   *slotService.Service
	tz      TimezoneSource
	auditor *audit.Service
	outbox  repository.OutboxRepository
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(
	repo repository.AppointmentRepository,
	slots *slotService.Service,
	tz TimezoneSource,
	auditor *audit.Service,
	outbox repository.OutboxRepository,
	m *metrics.Metrics,
) *Service {
	return &Service{
		repo:    repo,
		slots:   slots,
		tz:      tz,
		auditor: auditor,
		outbox:  outbox,
		metrics: m,
		now:     time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) History(ctx context.Context, id uuid.UUID) ([]*model.TransitionAudit, error) {
	// Existence check first so unknown ids surface as not-found rather
	// than an empty history.
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.auditor.History(ctx, id)
}

// Transition moves an appointment to target, enforcing the table and
// the business guards. The stored state is never mutated on rejection.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, req *model.TransitionRequest) (*model.Appointment, error) {
	if req == nil || !req.TargetState.Valid() {
		return nil, apperrors.BadRequest("unknown target state", nil)
	}

	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	target := req.TargetState
	if !CanTransition(appt.Status, target) {
		s.metrics.TransitionRejections.WithLabelValues("invalid_transition").Inc()
		return nil, apperrors.InvalidTransition(string(appt.Status), string(target))
	}

	if err := s.guard(ctx, appt, target, req); err != nil {
		s.metrics.TransitionRejections.WithLabelValues("guard_failed").Inc()
		return nil, err
	}

	change := &model.StateChange{
		FinalPrice:   req.FinalPrice,
		CancelReason: req.CancelReason,
		Notes:        req.Notes,
		At:           s.now(),
	}

	updated, err := s.repo.TransitionState(ctx, id, appt.Status, target, change)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrConflict) {
			s.metrics.TransitionRejections.WithLabelValues("concurrent_change").Inc()
		}
		return nil, err
	}

	s.metrics.AppointmentTransitions.WithLabelValues(string(appt.Status), string(target)).Inc()
	s.auditor.Record(ctx, updated, appt.Status, target, req.CancelReason)
	s.emit(ctx, updated, appt.Status)

	return updated, nil
}

// guard enforces the business rules layered on top of the table.
func (s *Service) guard(ctx context.Context, appt *model.Appointment, target model.AppointmentStatus, req *model.TransitionRequest) error {
	switch target {
	case model.AppointmentStatusCheckedIn:
		// No check-in before the scheduled date, measured on the
		// professional's local calendar.
		loc, err := s.tz.Location(ctx, appt.ProfessionalID)
		if err != nil {
			return err
		}
		localNow := s.now().In(loc)
		ny, nm, nd := localNow.Date()
		ay, am, ad := appt.Day.In(loc).Date()
		today := time.Date(ny, nm, nd, 0, 0, 0, 0, loc)
		scheduled := time.Date(ay, am, ad, 0, 0, 0, 0, loc)
		if today.Before(scheduled) {
			return apperrors.GuardFailed("cannot check in before the scheduled date")
		}

	case model.AppointmentStatusCompleted:
		if req.FinalPrice == nil && appt.FinalPrice == nil {
			return apperrors.GuardFailed("a final price is required to complete the appointment")
		}
	}
	return nil
}

// Reschedule changes the appointment's date/time while it is still
// pending or confirmed. The old slot is released and the new one is
// held and committed, so the move obeys the same reservation race
// rules as the original booking.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req *model.RescheduleRequest) (*model.Appointment, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Reschedulable(appt.Status) {
		return nil, apperrors.GuardFailed("only pending or confirmed appointments can be rescheduled")
	}

	holdDuration := time.Duration(req.HoldSeconds) * time.Second
	newSlot, err := s.slots.ReserveTemporary(ctx, req.SlotID, holdDuration)
	if err != nil {
		return nil, err
	}

	// The schedule write runs while the slot is merely held: a held
	// slot can always be handed back, a committed one cannot.
	updated, err := s.repo.UpdateSchedule(ctx, id, &newSlot.ID, newSlot.Day, newSlot.StartTime, newSlot.EndTime, ReschedulableStates)
	if err != nil {
		if _, relErr := s.slots.ReleaseReservation(ctx, req.SlotID); relErr != nil {
			log.Error().Err(relErr).Str("slot_id", req.SlotID.String()).Msg("failed to release slot after reschedule failure")
		}
		return nil, err
	}

	if _, err := s.slots.Commit(ctx, req.SlotID); err != nil {
		// The hold expired under us. Put the appointment back on its
		// old slot; the expired hold is the reaper's to reclaim.
		if _, revErr := s.repo.UpdateSchedule(ctx, id, appt.SlotID, appt.Day, appt.StartTime, appt.EndTime, ReschedulableStates); revErr != nil {
			log.Error().Err(revErr).Str("appointment_id", id.String()).Msg("failed to restore schedule after commit failure")
		}
		return nil, err
	}

	// Committed slots are immutable; the superseded slot stays
	// committed and a free replacement row takes its place.
	if appt.SlotID != nil {
		if _, err := s.slots.ReleaseReservation(ctx, *appt.SlotID); err != nil && !apperrors.IsCode(err, apperrors.ErrInvalidState) {
			log.Error().Err(err).Str("slot_id", appt.SlotID.String()).Msg("failed to release superseded slot")
		}
	}

	return updated, nil
}

func (s *Service) emit(ctx context.Context, appt *model.Appointment, from model.AppointmentStatus) {
	eventType := model.EventAppointmentTransition
	switch appt.Status {
	case model.AppointmentStatusConfirmed:
		eventType = model.EventAppointmentConfirmed
	case model.AppointmentStatusCompleted:
		// Completion triggers downstream commission computation; that
		// side effect lives with the consumer, not here.
		eventType = model.EventAppointmentCompleted
	case model.AppointmentStatusCancelled:
		eventType = model.EventAppointmentCancelled
	case model.AppointmentStatusNoShow:
		eventType = model.EventAppointmentNoShow
	}

	payload, err := json.Marshal(map[string]interface{}{
		"appointment": appt,
		"from_state":  from,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal transition event")
		return
	}

	if err := s.outbox.Create(ctx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   payload,
	}); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to enqueue transition event")
	}
}
