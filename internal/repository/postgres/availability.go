package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/slotwise/booking-api/internal/model"
	"github.com/slotwise/booking-api/internal/repository"
)

type workingHoursRepository struct {
	BaseRepository
}

// NewWorkingHoursRepository returns the read-only availability rule
// source. Working hours are maintained by an external system; the core
// only queries them.
func NewWorkingHoursRepository(base BaseRepository) repository.WorkingHoursRepository {
	return &workingHoursRepository{base}
}

func (r *workingHoursRepository) ListForProfessional(ctx context.Context, professionalID uuid.UUID) ([]*model.WorkingHours, error) {
	tenantID, bypass, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, tenant_id, professional_id, weekday, start_time, end_time, timezone
		FROM working_hours
		WHERE professional_id = $1
	`
	args := []interface{}{professionalID}
	if !bypass {
		query += ` AND tenant_id = $2`
		args = append(args, tenantID)
	}
	query += ` ORDER BY weekday, start_time`

	var hours []*model.WorkingHours
	err = r.db.SelectContext(ctx, &hours, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list working hours: %w", err)
	}
	return hours, nil
}
