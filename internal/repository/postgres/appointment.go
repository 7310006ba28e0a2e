package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/booking-api/internal/model"
	"github.com/slotwise/booking-api/internal/repository"
	apperrors "github.com/slotwise/booking-api/pkg/errors"
)

const appointmentColumns = `id, tenant_id, client_id, professional_id, service_id, slot_id,
	day, start_time, end_time, status, final_price, paid, cancel_reason, completion_notes,
	confirmed_at, checked_in_at, started_at, completed_at, cancelled_at, created_at, updated_at`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func (r *appointmentRepository) Create(ctx context.Context, appt *model.Appointment) error {
	tenantID, bypass, err := r.scope(ctx)
	if err != nil {
		return err
	}
	if !bypass {
		appt.TenantID = tenantID
	}
	if appt.TenantID == uuid.Nil {
		return apperrors.TenantViolation("appointment created without tenant")
	}

	query := `
		INSERT INTO appointments (
			id, tenant_id, client_id, professional_id, service_id, slot_id,
			day, start_time, end_time, status, final_price, paid,
			cancel_reason, completion_notes, confirmed_at, checked_in_at,
			started_at, completed_at, cancelled_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21
		)
	`
	appt.ID = uuid.New()
	appt.CreatedAt = time.Now()
	appt.UpdatedAt = time.Now()

	_, err = r.db.ExecContext(ctx, query,
		appt.ID,
		appt.TenantID,
		appt.ClientID,
		appt.ProfessionalID,
		appt.ServiceID,
		appt.SlotID,
		appt.Day,
		appt.StartTime,
		appt.EndTime,
		appt.Status,
		appt.FinalPrice,
		appt.Paid,
		appt.CancelReason,
		appt.CompletionNotes,
		appt.ConfirmedAt,
		appt.CheckedInAt,
		appt.StartedAt,
		appt.CompletedAt,
		appt.CancelledAt,
		appt.CreatedAt,
		appt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	tenantID, bypass, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	args := []interface{}{id}
	if !bypass {
		query += ` AND tenant_id = $2`
		args = append(args, tenantID)
	}

	var appt model.Appointment
	err = r.db.GetContext(ctx, &appt, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("appointment", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appt, nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	tenantID, bypass, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if !bypass {
		query += fmt.Sprintf(" AND tenant_id = $%d", argCount)
		args = append(args, tenantID)
		argCount++
	}
	if filters != nil {
		if filters.ProfessionalID != uuid.Nil {
			query += fmt.Sprintf(" AND professional_id = $%d", argCount)
			args = append(args, filters.ProfessionalID)
			argCount++
		}
		if filters.ClientID != uuid.Nil {
			query += fmt.Sprintf(" AND client_id = $%d", argCount)
			args = append(args, filters.ClientID)
			argCount++
		}
		if filters.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, filters.Status)
			argCount++
		}
		if !filters.StartDate.IsZero() {
			query += fmt.Sprintf(" AND start_time >= $%d", argCount)
			args = append(args, filters.StartDate)
			argCount++
		}
		if !filters.EndDate.IsZero() {
			query += fmt.Sprintf(" AND end_time <= $%d", argCount)
			args = append(args, filters.EndDate)
			argCount++
		}
	}
	query += " ORDER BY start_time ASC"

	var appointments []*model.Appointment
	err = r.db.SelectContext(ctx, &appointments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// TransitionState is the appointment counterpart of the slot conditional
// write: the UPDATE re-asserts that status is still from, so concurrent
// transition attempts on the same row resolve to one winner.
func (r *appointmentRepository) TransitionState(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus, change *model.StateChange) (*model.Appointment, error) {
	tenantID, bypass, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}
	if change == nil {
		change = &model.StateChange{At: time.Now()}
	}
	at := change.At
	if at.IsZero() {
		at = time.Now()
	}

	query := `
		UPDATE appointments
		SET status = $1,
			final_price = COALESCE($2, final_price),
			cancel_reason = COALESCE($3, cancel_reason),
			completion_notes = COALESCE($4, completion_notes),
			paid = CASE WHEN $1 = 'completed' THEN TRUE ELSE paid END,
			confirmed_at = CASE WHEN $1 = 'confirmed' THEN $5 ELSE confirmed_at END,
			checked_in_at = CASE WHEN $1 = 'checked_in' THEN $5 ELSE checked_in_at END,
			started_at = CASE WHEN $1 = 'in_progress' THEN $5 ELSE started_at END,
			completed_at = CASE WHEN $1 = 'completed' THEN $5 ELSE completed_at END,
			cancelled_at = CASE WHEN $1 IN ('cancelled', 'no_show') THEN $5 ELSE cancelled_at END,
			updated_at = NOW()
		WHERE id = $6 AND status = $7
	`
	args := []interface{}{to, change.FinalPrice, change.CancelReason, change.Notes, at, id, from}
	if !bypass {
		query += ` AND tenant_id = $8`
		args = append(args, tenantID)
	}
	query += ` RETURNING ` + appointmentColumns

	var appt model.Appointment
	err = r.db.GetContext(ctx, &appt, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		if _, gerr := r.Get(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, apperrors.Conflict("appointment state changed concurrently")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to transition appointment: %w", err)
	}
	return &appt, nil
}

func (r *appointmentRepository) UpdateSchedule(ctx context.Context, id uuid.UUID, slotID *uuid.UUID, day, start, end time.Time, allowed []model.AppointmentStatus) (*model.Appointment, error) {
	tenantID, bypass, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}
	if len(allowed) == 0 {
		return nil, apperrors.BadRequest("no states permit rescheduling", nil)
	}

	query := `
		UPDATE appointments
		SET slot_id = $1, day = $2, start_time = $3, end_time = $4, updated_at = NOW()
		WHERE id = $5
	`
	args := []interface{}{slotID, day, start, end, id}
	argCount := 6

	states := "("
	for i, s := range allowed {
		if i > 0 {
			states += ", "
		}
		states += fmt.Sprintf("$%d", argCount)
		args = append(args, s)
		argCount++
	}
	states += ")"
	query += " AND status IN " + states

	if !bypass {
		query += fmt.Sprintf(" AND tenant_id = $%d", argCount)
		args = append(args, tenantID)
	}
	query += ` RETURNING ` + appointmentColumns

	var appt model.Appointment
	err = r.db.GetContext(ctx, &appt, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		cur, gerr := r.Get(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, apperrors.InvalidState(fmt.Sprintf("appointment in state %s cannot be rescheduled", cur.Status))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reschedule appointment: %w", err)
	}
	return &appt, nil
}

func (r *appointmentRepository) FindActiveOverlapping(ctx context.Context, professionalID uuid.UUID, start, end time.Time) ([]*model.Appointment, error) {
	tenantID, bypass, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE professional_id = $1
		AND status NOT IN ('completed', 'cancelled', 'no_show')
		AND start_time < $2
		AND end_time > $3
	`
	args := []interface{}{professionalID, end, start}
	if !bypass {
		query += ` AND tenant_id = $4`
		args = append(args, tenantID)
	}
	query += ` ORDER BY start_time ASC`

	var appointments []*model.Appointment
	err = r.db.SelectContext(ctx, &appointments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping appointments: %w", err)
	}
	return appointments, nil
}
