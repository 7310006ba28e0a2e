package slot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotwise/booking-api/internal/model"
	apperrors "github.com/slotwise/booking-api/pkg/errors"
	"github.com/slotwise/booking-api/pkg/metrics"
)

// fakeSlotRepo mimics the store's conditional-write semantics: each
// transition checks the expected prior state under a lock, so exactly
// one concurrent caller can win a free slot.
type fakeSlotRepo struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*model.Slot
}

func newFakeSlotRepo() *fakeSlotRepo {
	return &fakeSlotRepo{slots: make(map[uuid.UUID]*model.Slot)}
}

func (r *fakeSlotRepo) add(slot *model.Slot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[slot.ID] = slot
}

func copySlot(s *model.Slot) *model.Slot {
	cp := *s
	if s.HeldUntil != nil {
		h := *s.HeldUntil
		cp.HeldUntil = &h
	}
	return &cp
}

func (r *fakeSlotRepo) Create(_ context.Context, slot *model.Slot) error {
	r.add(slot)
	return nil
}

func (r *fakeSlotRepo) Get(_ context.Context, id uuid.UUID) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, apperrors.NotFound("slot", nil)
	}
	return copySlot(s), nil
}

func (r *fakeSlotRepo) Hold(_ context.Context, id uuid.UUID, heldUntil time.Time) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, apperrors.NotFound("slot", nil)
	}
	if s.State != model.SlotStateFree {
		return nil, apperrors.SlotConflict(id.String())
	}
	s.State = model.SlotStateHeld
	s.HeldUntil = &heldUntil
	return copySlot(s), nil
}

func (r *fakeSlotRepo) Release(_ context.Context, id uuid.UUID) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, apperrors.NotFound("slot", nil)
	}
	switch s.State {
	case model.SlotStateFree:
		return copySlot(s), nil
	case model.SlotStateCommitted:
		return nil, apperrors.InvalidState("committed slots cannot be released")
	}
	s.State = model.SlotStateFree
	s.HeldUntil = nil
	return copySlot(s), nil
}

func (r *fakeSlotRepo) CommitHeld(_ context.Context, id uuid.UUID, now time.Time) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, apperrors.NotFound("slot", nil)
	}
	if s.State != model.SlotStateHeld {
		return nil, apperrors.InvalidState("slot is not held")
	}
	if s.HeldUntil == nil || s.HeldUntil.Before(now) {
		return nil, apperrors.InvalidState("hold has expired")
	}
	s.State = model.SlotStateCommitted
	s.HeldUntil = nil
	return copySlot(s), nil
}

func (r *fakeSlotRepo) ExpireHeldBefore(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, s := range r.slots {
		if s.State == model.SlotStateHeld && s.HeldUntil != nil && s.HeldUntil.Before(now) {
			s.State = model.SlotStateFree
			s.HeldUntil = nil
			count++
		}
	}
	return count, nil
}

func (r *fakeSlotRepo) FindFree(_ context.Context, professionalID uuid.UUID, from, to time.Time) ([]*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Slot
	for _, s := range r.slots {
		if s.ProfessionalID == professionalID && s.State == model.SlotStateFree &&
			s.StartTime.Before(to) && s.EndTime.After(from) {
			out = append(out, copySlot(s))
		}
	}
	return out, nil
}

func freeSlot() *model.Slot {
	now := time.Now().UTC().Truncate(time.Hour)
	return &model.Slot{
		Base: model.Base{
			ID:       uuid.New(),
			TenantID: uuid.New(),
		},
		ProfessionalID: uuid.New(),
		Day:            now.Truncate(24 * time.Hour),
		StartTime:      now,
		EndTime:        now.Add(30 * time.Minute),
		State:          model.SlotStateFree,
		Kind:           model.SlotKindRecurring,
	}
}

func newTestService(repo *fakeSlotRepo) *Service {
	return NewService(repo, metrics.New("slot_test"))
}

func TestReserveTemporaryExactlyOneWinner(t *testing.T) {
	repo := newFakeSlotRepo()
	slot := freeSlot()
	repo.add(slot)
	svc := newTestService(repo)

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ReserveTemporary(context.Background(), slot.ID, time.Minute)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		require.True(t, apperrors.IsCode(err, apperrors.ErrConflict), "unexpected error: %v", err)
		conflicts++
	}

	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, conflicts)

	stored, err := repo.Get(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStateHeld, stored.State)
	require.NotNil(t, stored.HeldUntil)
}

func TestReserveTemporaryDefaultsHoldDuration(t *testing.T) {
	repo := newFakeSlotRepo()
	slot := freeSlot()
	repo.add(slot)

	base := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	svc := newTestService(repo).WithClock(func() time.Time { return base })

	held, err := svc.ReserveTemporary(context.Background(), slot.ID, 0)
	require.NoError(t, err)
	require.NotNil(t, held.HeldUntil)
	assert.Equal(t, base.Add(DefaultHoldDuration), *held.HeldUntil)
}

func TestReserveTemporaryConfiguredDefaultHold(t *testing.T) {
	repo := newFakeSlotRepo()
	slot := freeSlot()
	repo.add(slot)

	base := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	svc := newTestService(repo).
		WithClock(func() time.Time { return base }).
		WithDefaultHold(90 * time.Second)

	held, err := svc.ReserveTemporary(context.Background(), slot.ID, 0)
	require.NoError(t, err)
	require.NotNil(t, held.HeldUntil)
	assert.Equal(t, base.Add(90*time.Second), *held.HeldUntil)

	// Out-of-range overrides fall back to the built-in default.
	other := freeSlot()
	repo.add(other)
	svc2 := newTestService(repo).
		WithClock(func() time.Time { return base }).
		WithDefaultHold(-time.Second)
	held, err = svc2.ReserveTemporary(context.Background(), other.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, base.Add(DefaultHoldDuration), *held.HeldUntil)
}

func TestReserveTemporaryRejectsExcessiveHold(t *testing.T) {
	repo := newFakeSlotRepo()
	slot := freeSlot()
	repo.add(slot)
	svc := newTestService(repo)

	_, err := svc.ReserveTemporary(context.Background(), slot.ID, MaxHoldDuration+time.Second)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))

	stored, err := repo.Get(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStateFree, stored.State)
}

func TestReserveTemporaryUnknownSlot(t *testing.T) {
	svc := newTestService(newFakeSlotRepo())

	_, err := svc.ReserveTemporary(context.Background(), uuid.New(), time.Minute)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestReleaseReservationIsIdempotent(t *testing.T) {
	repo := newFakeSlotRepo()
	slot := freeSlot()
	repo.add(slot)
	svc := newTestService(repo)

	_, err := svc.ReserveTemporary(context.Background(), slot.ID, time.Minute)
	require.NoError(t, err)

	released, err := svc.ReleaseReservation(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStateFree, released.State)
	assert.Nil(t, released.HeldUntil)

	// Releasing again is a no-op, not an error.
	released, err = svc.ReleaseReservation(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStateFree, released.State)
}

func TestReleaseCommittedSlotFails(t *testing.T) {
	repo := newFakeSlotRepo()
	slot := freeSlot()
	repo.add(slot)
	svc := newTestService(repo)

	_, err := svc.ReserveTemporary(context.Background(), slot.ID, time.Minute)
	require.NoError(t, err)
	_, err = svc.Commit(context.Background(), slot.ID)
	require.NoError(t, err)

	_, err = svc.ReleaseReservation(context.Background(), slot.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidState))
}

func TestCommitFailsAfterHoldExpiry(t *testing.T) {
	repo := newFakeSlotRepo()
	slot := freeSlot()
	repo.add(slot)

	clock := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	svc := newTestService(repo).WithClock(func() time.Time { return clock })

	_, err := svc.ReserveTemporary(context.Background(), slot.ID, time.Minute)
	require.NoError(t, err)

	// Advance past the hold expiry before committing.
	clock = clock.Add(2 * time.Minute)
	_, err = svc.Commit(context.Background(), slot.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidState))
}

func TestExpireHeldReclaimsOnlyTimedOutHolds(t *testing.T) {
	repo := newFakeSlotRepo()
	expired := freeSlot()
	live := freeSlot()
	repo.add(expired)
	repo.add(live)

	clock := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	svc := newTestService(repo).WithClock(func() time.Time { return clock })

	_, err := svc.ReserveTemporary(context.Background(), expired.ID, time.Minute)
	require.NoError(t, err)
	_, err = svc.ReserveTemporary(context.Background(), live.ID, 10*time.Minute)
	require.NoError(t, err)

	clock = clock.Add(5 * time.Minute)
	count, err := svc.ExpireHeld(context.Background(), clock)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	reclaimed, err := repo.Get(context.Background(), expired.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStateFree, reclaimed.State)

	stillHeld, err := repo.Get(context.Background(), live.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStateHeld, stillHeld.State)
}

func TestExpireThenReserveHandsSlotToNewCaller(t *testing.T) {
	repo := newFakeSlotRepo()
	slot := freeSlot()
	repo.add(slot)

	clock := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	svc := newTestService(repo).WithClock(func() time.Time { return clock })

	_, err := svc.ReserveTemporary(context.Background(), slot.ID, time.Minute)
	require.NoError(t, err)

	clock = clock.Add(2 * time.Minute)
	_, err = svc.ExpireHeld(context.Background(), clock)
	require.NoError(t, err)

	// A fresh caller can now take the slot.
	held, err := svc.ReserveTemporary(context.Background(), slot.ID, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStateHeld, held.State)
}
