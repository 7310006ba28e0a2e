// Package availability consumes the external working-hours rule source.
// It answers two questions for the rest of the core: which free slots
// are bookable for a professional, and whether a given window falls
// inside the professional's working hours in their local timezone.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/booking-api/internal/model"
	"github.com/slotwise/booking-api/internal/repository"
	"github.com/slotwise/booking-api/internal/tenant"
	"github.com/slotwise/booking-api/pkg/cache"
	apperrors "github.com/slotwise/booking-api/pkg/errors"
)

type Service struct {
	hours repository.WorkingHoursRepository
	slots repository.SlotRepository
	cache *cache.Service
}

func NewService(hours repository.WorkingHoursRepository, slots repository.SlotRepository, c *cache.Service) *Service {
	return &Service{
		hours: hours,
		slots: slots,
		cache: c,
	}
}

func hoursCacheKey(ctx context.Context, professionalID uuid.UUID) string {
	tenantID, _ := tenant.FromContext(ctx)
	return fmt.Sprintf("working_hours:%s:%s", tenantID, professionalID)
}

func (s *Service) workingHours(ctx context.Context, professionalID uuid.UUID) ([]*model.WorkingHours, error) {
	key := hoursCacheKey(ctx, professionalID)
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]*model.WorkingHours), nil
	}

	hours, err := s.hours.ListForProfessional(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, hours)
	return hours, nil
}

// Invalidate drops the cached working hours of one professional,
// e.g. after the external schedule admin changes them.
func (s *Service) Invalidate(ctx context.Context, professionalID uuid.UUID) {
	s.cache.Invalidate(hoursCacheKey(ctx, professionalID))
}

// Location returns the timezone the professional's schedule is defined
// in. Professionals without working hours have no usable schedule.
func (s *Service) Location(ctx context.Context, professionalID uuid.UUID) (*time.Location, error) {
	hours, err := s.workingHours(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	if len(hours) == 0 {
		return nil, apperrors.NotFound("working hours", nil)
	}
	loc, err := time.LoadLocation(hours[0].Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", hours[0].Timezone, err)
	}
	return loc, nil
}

// WithinWorkingHours reports whether [start, end) falls entirely inside
// one of the professional's working windows. The comparison happens in
// the schedule's own timezone; comparing raw UTC instants against local
// wall-clock windows silently shifts the boundary.
func (s *Service) WithinWorkingHours(ctx context.Context, professionalID uuid.UUID, start, end time.Time) (bool, error) {
	hours, err := s.workingHours(ctx, professionalID)
	if err != nil {
		return false, err
	}
	if len(hours) == 0 {
		return false, nil
	}

	for _, wh := range hours {
		loc, err := time.LoadLocation(wh.Timezone)
		if err != nil {
			return false, fmt.Errorf("invalid timezone %q: %w", wh.Timezone, err)
		}
		localStart := start.In(loc)
		if localStart.Weekday() != wh.Weekday {
			continue
		}
		window, err := wh.WindowOn(localStart, loc)
		if err != nil {
			return false, err
		}
		if !localStart.Before(window.Start) && !end.In(loc).After(window.End) {
			return true, nil
		}
	}
	return false, nil
}

// ResolveCandidates returns the free slots of a professional within
// [from, to) that also fall inside working hours. These are the slots a
// booking attempt may try to hold.
func (s *Service) ResolveCandidates(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*model.Slot, error) {
	free, err := s.slots.FindFree(ctx, professionalID, from, to)
	if err != nil {
		return nil, err
	}

	var candidates []*model.Slot
	for _, slot := range free {
		ok, err := s.WithinWorkingHours(ctx, professionalID, slot.StartTime, slot.EndTime)
		if err != nil {
			return nil, err
		}
		if ok {
			candidates = append(candidates, slot)
		}
	}
	return candidates, nil
}
