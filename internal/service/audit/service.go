// Package audit records appointment state transitions for the
// per-transition audit trail.
package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/slotwise/booking-api/internal/model"
	"github.com/slotwise/booking-api/internal/repository"
	"github.com/slotwise/booking-api/internal/requestid"
)

type Service struct {
	repo repository.AuditRepository
}

func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo}
}

// Record persists one transition. Audit failures are logged, never
// propagated: the transition itself has already committed.
func (s *Service) Record(ctx context.Context, appt *model.Appointment, from, to model.AppointmentStatus, reason *string) {
	entry := &model.TransitionAudit{
		TenantID:      appt.TenantID,
		AppointmentID: appt.ID,
		FromState:     string(from),
		ToState:       string(to),
		Reason:        reason,
		OccurredAt:    appt.UpdatedAt,
	}
	if requestID, ok := requestid.FromContext(ctx); ok {
		entry.RequestID = &requestID
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		log.Error().Err(err).
			Str("appointment_id", appt.ID.String()).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("failed to record transition audit")
	}
}

func (s *Service) History(ctx context.Context, appointmentID uuid.UUID) ([]*model.TransitionAudit, error) {
	return s.repo.ListForAppointment(ctx, appointmentID)
}
