// Package slot implements the reservation lifecycle of a bookable time
// slot: free -> held -> committed, with expired holds reaped back to
// free. All mutual exclusion is delegated to conditional writes in the
// store, so the service itself carries no locks.
package slot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/slotwise/booking-api/internal/model"
	"github.com/slotwise/booking-api/internal/repository"
	apperrors "github.com/slotwise/booking-api/pkg/errors"
	"github.com/slotwise/booking-api/pkg/metrics"
)

const (
	DefaultHoldDuration = 5 * time.Minute
	MaxHoldDuration     = time.Hour
)

type Service struct {
	repo        repository.SlotRepository
	metrics     *metrics.Metrics
	defaultHold time.Duration
	now         func() time.Time
}

func NewService(repo repository.SlotRepository, m *metrics.Metrics) *Service {
	return &Service{
		repo:        repo,
		metrics:     m,
		defaultHold: DefaultHoldDuration,
		now:         time.Now,
	}
}

// WithClock replaces the service clock. Tests use it to pin time.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithDefaultHold overrides the hold duration applied when a
// reservation does not ask for one. Out-of-range values keep the
// built-in default.
func (s *Service) WithDefaultHold(d time.Duration) *Service {
	if d > 0 && d <= MaxHoldDuration {
		s.defaultHold = d
	}
	return s
}

// ReserveTemporary places a time-boxed hold on a free slot. Under
// concurrent attempts on the same slot exactly one caller wins; the
// rest receive a conflict, which is expected and observed as a metric
// rather than logged as an error.
func (s *Service) ReserveTemporary(ctx context.Context, slotID uuid.UUID, holdDuration time.Duration) (*model.Slot, error) {
	if holdDuration <= 0 {
		holdDuration = s.defaultHold
	}
	if holdDuration > MaxHoldDuration {
		return nil, apperrors.BadRequest(fmt.Sprintf("hold duration cannot exceed %v", MaxHoldDuration), nil)
	}

	heldUntil := s.now().Add(holdDuration)
	slot, err := s.repo.Hold(ctx, slotID, heldUntil)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrConflict) {
			s.metrics.SlotConflicts.Inc()
			s.metrics.SlotReservations.WithLabelValues("conflict").Inc()
			log.Debug().Str("slot_id", slotID.String()).Msg("lost race for slot")
		} else {
			s.metrics.SlotReservations.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	s.metrics.SlotReservations.WithLabelValues("success").Inc()
	return slot, nil
}

// ReleaseReservation returns a held slot to free. It does not check
// hold ownership and is idempotent: releasing a free slot is a no-op.
func (s *Service) ReleaseReservation(ctx context.Context, slotID uuid.UUID) (*model.Slot, error) {
	return s.repo.Release(ctx, slotID)
}

// Commit finalizes a live hold into a committed slot. Committing a slot
// whose hold has already expired fails: the reaper (or the next
// reservation) owns it now.
func (s *Service) Commit(ctx context.Context, slotID uuid.UUID) (*model.Slot, error) {
	slot, err := s.repo.CommitHeld(ctx, slotID, s.now())
	if err != nil {
		s.metrics.SlotCommits.WithLabelValues("rejected").Inc()
		return nil, err
	}
	s.metrics.SlotCommits.WithLabelValues("success").Inc()
	return slot, nil
}

// ExpireHeld reclaims every hold that has timed out as of now. Safe to
// call concurrently with itself and with reservation attempts; each
// slot's reclamation is a conditional write.
func (s *Service) ExpireHeld(ctx context.Context, now time.Time) (int64, error) {
	if now.IsZero() {
		now = s.now()
	}
	count, err := s.repo.ExpireHeldBefore(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire held slots: %w", err)
	}
	if count > 0 {
		s.metrics.SlotsReclaimed.Add(float64(count))
	}
	return count, nil
}

func (s *Service) Get(ctx context.Context, slotID uuid.UUID) (*model.Slot, error) {
	return s.repo.Get(ctx, slotID)
}
