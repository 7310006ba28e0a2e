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

const slotColumns = `id, tenant_id, professional_id, day, start_time, end_time, state, held_until, kind, created_at, updated_at`

type slotRepository struct {
	BaseRepository
}

func NewSlotRepository(base BaseRepository) repository.SlotRepository {
	return &slotRepository{base}
}

func (r *slotRepository) Create(ctx context.Context, slot *model.Slot) error {
	tenantID, bypass, err := r.scope(ctx)
	if err != nil {
		return err
	}
	if !bypass {
		slot.TenantID = tenantID
	}
	if slot.TenantID == uuid.Nil {
		return apperrors.TenantViolation("slot created without tenant")
	}

	query := `
		INSERT INTO slots (
			id, tenant_id, professional_id, day, start_time, end_time,
			state, held_until, kind, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	slot.ID = uuid.New()
	slot.CreatedAt = time.Now()
	slot.UpdatedAt = time.Now()
	if slot.State == "" {
		slot.State = model.SlotStateFree
	}

	_, err = r.db.ExecContext(ctx, query,
		slot.ID,
		slot.TenantID,
		slot.ProfessionalID,
		slot.Day,
		slot.StartTime,
		slot.EndTime,
		slot.State,
		slot.HeldUntil,
		slot.Kind,
		slot.CreatedAt,
		slot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}
	return nil
}

func (r *slotRepository) Get(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	tenantID, bypass, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`
	args := []interface{}{id}
	if !bypass {
		query += ` AND tenant_id = $2`
		args = append(args, tenantID)
	}

	var slot model.Slot
	err = r.db.GetContext(ctx, &slot, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("slot", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return &slot, nil
}

// Hold is the core conditional write: the UPDATE only fires while the
// slot is still free, so under N concurrent callers exactly one wins.
func (r *slotRepository) Hold(ctx context.Context, id uuid.UUID, heldUntil time.Time) (*model.Slot, error) {
	tenantID, bypass, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE slots
		SET state = $1, held_until = $2, updated_at = NOW()
		WHERE id = $3 AND state = $4
	`
	args := []interface{}{model.SlotStateHeld, heldUntil, id, model.SlotStateFree}
	if !bypass {
		query += ` AND tenant_id = $5`
		args = append(args, tenantID)
	}
	query += ` RETURNING ` + slotColumns

	var slot model.Slot
	err = r.db.GetContext(ctx, &slot, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		// Zero rows means the precondition no longer held. Distinguish
		// a lost race from an unknown (or cross-tenant) id.
		if _, gerr := r.Get(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, apperrors.SlotConflict(id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hold slot: %w", err)
	}
	return &slot, nil
}

func (r *slotRepository) Release(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	tenantID, bypass, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE slots
		SET state = $1, held_until = NULL, updated_at = NOW()
		WHERE id = $2 AND state = $3
	`
	args := []interface{}{model.SlotStateFree, id, model.SlotStateHeld}
	if !bypass {
		query += ` AND tenant_id = $4`
		args = append(args, tenantID)
	}
	query += ` RETURNING ` + slotColumns

	var slot model.Slot
	err = r.db.GetContext(ctx, &slot, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		cur, gerr := r.Get(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		// Already free: releasing twice is a no-op, not an error.
		if cur.State == model.SlotStateFree {
			return cur, nil
		}
		return nil, apperrors.InvalidState(fmt.Sprintf("slot %s is %s and cannot be released", id, cur.State))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to release slot: %w", err)
	}
	return &slot, nil
}

func (r *slotRepository) CommitHeld(ctx context.Context, id uuid.UUID, now time.Time) (*model.Slot, error) {
	tenantID, bypass, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}

	// A hold that expired but has not been reaped yet is still not
	// committable; the held_until check makes expire-vs-commit races
	// resolve deterministically.
	query := `
		UPDATE slots
		SET state = $1, held_until = NULL, updated_at = NOW()
		WHERE id = $2 AND state = $3 AND held_until >= $4
	`
	args := []interface{}{model.SlotStateCommitted, id, model.SlotStateHeld, now}
	if !bypass {
		query += ` AND tenant_id = $5`
		args = append(args, tenantID)
	}
	query += ` RETURNING ` + slotColumns

	var slot model.Slot
	err = r.db.GetContext(ctx, &slot, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		cur, gerr := r.Get(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		switch cur.State {
		case model.SlotStateHeld:
			return nil, apperrors.InvalidState(fmt.Sprintf("hold on slot %s has expired", id))
		case model.SlotStateCommitted:
			return nil, apperrors.InvalidState(fmt.Sprintf("slot %s is already committed", id))
		default:
			return nil, apperrors.InvalidState(fmt.Sprintf("slot %s is not held", id))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to commit slot: %w", err)
	}
	return &slot, nil
}

func (r *slotRepository) ExpireHeldBefore(ctx context.Context, now time.Time) (int64, error) {
	tenantID, bypass, err := r.scope(ctx)
	if err != nil {
		return 0, err
	}

	query := `
		UPDATE slots
		SET state = $1, held_until = NULL, updated_at = NOW()
		WHERE state = $2 AND held_until < $3
	`
	args := []interface{}{model.SlotStateFree, model.SlotStateHeld, now}
	if !bypass {
		query += ` AND tenant_id = $4`
		args = append(args, tenantID)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to expire held slots: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

func (r *slotRepository) FindFree(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*model.Slot, error) {
	tenantID, bypass, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE professional_id = $1 AND state = $2
		AND start_time >= $3 AND end_time <= $4
	`
	args := []interface{}{professionalID, model.SlotStateFree, from, to}
	if !bypass {
		query += ` AND tenant_id = $5`
		args = append(args, tenantID)
	}
	query += ` ORDER BY start_time ASC`

	var slots []*model.Slot
	err = r.db.SelectContext(ctx, &slots, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find free slots: %w", err)
	}
	return slots, nil
}
