package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/booking-api/internal/model"
	"github.com/slotwise/booking-api/internal/repository"
)

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, entry *model.TransitionAudit) error {
	query := `
		INSERT INTO transition_audits (
			id, tenant_id, appointment_id, from_state, to_state,
			reason, occurred_at, request_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.TenantID,
		entry.AppointmentID,
		entry.FromState,
		entry.ToState,
		entry.Reason,
		entry.OccurredAt,
		entry.RequestID,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transition audit: %w", err)
	}
	return nil
}

func (r *auditRepository) ListForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.TransitionAudit, error) {
	tenantID, bypass, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, tenant_id, appointment_id, from_state, to_state,
			   reason, occurred_at, request_id, created_at
		FROM transition_audits
		WHERE appointment_id = $1
	`
	args := []interface{}{appointmentID}
	if !bypass {
		query += ` AND tenant_id = $2`
		args = append(args, tenantID)
	}
	query += ` ORDER BY occurred_at ASC`

	var entries []*model.TransitionAudit
	err = r.db.SelectContext(ctx, &entries, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transition audits: %w", err)
	}
	return entries, nil
}

func (r *auditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM transition_audits WHERE created_at < $1`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old transition audits: %w", err)
	}
	return result.RowsAffected()
}
