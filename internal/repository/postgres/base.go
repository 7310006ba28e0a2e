package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/slotwise/booking-api/internal/tenant"
	apperrors "github.com/slotwise/booking-api/pkg/errors"
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

// GetDB returns the database instance
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// scope resolves the tenant for ctx. A missing tenant without bypass is
// an isolation defect: it fails closed and logs critical.
func (r *BaseRepository) scope(ctx context.Context) (uuid.UUID, bool, error) {
	if tenant.IsBypass(ctx) {
		return uuid.Nil, true, nil
	}
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		log.Error().Str("severity", "critical").Msg("query attempted without tenant scope")
		return uuid.Nil, false, apperrors.TenantViolation("operation not scoped to a tenant")
	}
	return tenantID, false, nil
}
