package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotwise/booking-api/internal/model"
	"github.com/slotwise/booking-api/internal/tenant"
	"github.com/slotwise/booking-api/pkg/cache"
	apperrors "github.com/slotwise/booking-api/pkg/errors"
)

type countingHoursRepo struct {
	hours map[uuid.UUID][]*model.WorkingHours
	calls int
}

func (r *countingHoursRepo) ListForProfessional(_ context.Context, professionalID uuid.UUID) ([]*model.WorkingHours, error) {
	r.calls++
	return r.hours[professionalID], nil
}

type staticSlotRepo struct {
	free []*model.Slot
}

func (r *staticSlotRepo) Create(_ context.Context, _ *model.Slot) error { return nil }

func (r *staticSlotRepo) Get(_ context.Context, _ uuid.UUID) (*model.Slot, error) {
	return nil, apperrors.NotFound("slot", nil)
}

func (r *staticSlotRepo) Hold(_ context.Context, _ uuid.UUID, _ time.Time) (*model.Slot, error) {
	return nil, apperrors.NotFound("slot", nil)
}

func (r *staticSlotRepo) Release(_ context.Context, _ uuid.UUID) (*model.Slot, error) {
	return nil, apperrors.NotFound("slot", nil)
}

func (r *staticSlotRepo) CommitHeld(_ context.Context, _ uuid.UUID, _ time.Time) (*model.Slot, error) {
	return nil, apperrors.NotFound("slot", nil)
}

func (r *staticSlotRepo) ExpireHeldBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (r *staticSlotRepo) FindFree(_ context.Context, _ uuid.UUID, _, _ time.Time) ([]*model.Slot, error) {
	return r.free, nil
}

func window(professionalID uuid.UUID, wd time.Weekday, start, end, tz string) *model.WorkingHours {
	return &model.WorkingHours{
		ID:             uuid.New(),
		ProfessionalID: professionalID,
		Weekday:        wd,
		Start:          start,
		End:            end,
		Timezone:       tz,
	}
}

func TestWorkingHoursAreCachedPerTenant(t *testing.T) {
	professionalID := uuid.New()
	repo := &countingHoursRepo{hours: map[uuid.UUID][]*model.WorkingHours{
		professionalID: {window(professionalID, time.Monday, "09:00", "17:00", "UTC")},
	}}
	svc := NewService(repo, &staticSlotRepo{}, cache.New(cache.DefaultConfig()))

	ctx := tenant.WithTenant(context.Background(), uuid.New())
	monday := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		ok, err := svc.WithinWorkingHours(ctx, professionalID, monday, monday.Add(30*time.Minute))
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, repo.calls, "repeated lookups must hit the cache")

	svc.Invalidate(ctx, professionalID)
	_, err := svc.WithinWorkingHours(ctx, professionalID, monday, monday.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}

func TestWithinWorkingHoursTimezoneBoundary(t *testing.T) {
	professionalID := uuid.New()
	// Tuesday 09:00-12:00 in Tokyo. Tuesday 01:00 UTC is Tuesday 10:00
	// local, inside the window; Tuesday 09:30 UTC is Tuesday 18:30
	// local, outside it.
	repo := &countingHoursRepo{hours: map[uuid.UUID][]*model.WorkingHours{
		professionalID: {window(professionalID, time.Tuesday, "09:00", "12:00", "Asia/Tokyo")},
	}}
	svc := NewService(repo, &staticSlotRepo{}, cache.New(cache.DefaultConfig()))
	ctx := tenant.WithTenant(context.Background(), uuid.New())

	inside := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	ok, err := svc.WithinWorkingHours(ctx, professionalID, inside, inside.Add(30*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	outside := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	ok, err = svc.WithinWorkingHours(ctx, professionalID, outside, outside.Add(30*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithinWorkingHoursNoSchedule(t *testing.T) {
	repo := &countingHoursRepo{hours: map[uuid.UUID][]*model.WorkingHours{}}
	svc := NewService(repo, &staticSlotRepo{}, cache.New(cache.DefaultConfig()))
	ctx := tenant.WithTenant(context.Background(), uuid.New())

	now := time.Now().UTC()
	ok, err := svc.WithinWorkingHours(ctx, uuid.New(), now, now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocation(t *testing.T) {
	professionalID := uuid.New()
	repo := &countingHoursRepo{hours: map[uuid.UUID][]*model.WorkingHours{
		professionalID: {window(professionalID, time.Monday, "09:00", "17:00", "America/Sao_Paulo")},
	}}
	svc := NewService(repo, &staticSlotRepo{}, cache.New(cache.DefaultConfig()))
	ctx := tenant.WithTenant(context.Background(), uuid.New())

	loc, err := svc.Location(ctx, professionalID)
	require.NoError(t, err)
	assert.Equal(t, "America/Sao_Paulo", loc.String())

	_, err = svc.Location(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestResolveCandidates(t *testing.T) {
	professionalID := uuid.New()
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC) // a Monday

	inHours := &model.Slot{
		Base:           model.Base{ID: uuid.New()},
		ProfessionalID: professionalID,
		Day:            day,
		StartTime:      day.Add(10 * time.Hour),
		EndTime:        day.Add(10*time.Hour + 30*time.Minute),
		State:          model.SlotStateFree,
	}
	atNight := &model.Slot{
		Base:           model.Base{ID: uuid.New()},
		ProfessionalID: professionalID,
		Day:            day,
		StartTime:      day.Add(23 * time.Hour),
		EndTime:        day.Add(23*time.Hour + 30*time.Minute),
		State:          model.SlotStateFree,
	}

	repo := &countingHoursRepo{hours: map[uuid.UUID][]*model.WorkingHours{
		professionalID: {window(professionalID, time.Monday, "09:00", "17:00", "UTC")},
	}}
	svc := NewService(repo, &staticSlotRepo{free: []*model.Slot{inHours, atNight}}, cache.New(cache.DefaultConfig()))
	ctx := tenant.WithTenant(context.Background(), uuid.New())

	candidates, err := svc.ResolveCandidates(ctx, professionalID, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, inHours.ID, candidates[0].ID)
}
