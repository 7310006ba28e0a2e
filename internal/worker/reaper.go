package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/slotwise/booking-api/internal/tenant"
)

// HoldExpirer is the slice of the slot service the reaper needs.
type HoldExpirer interface {
	ExpireHeld(ctx context.Context, now time.Time) (int64, error)
}

// Reaper periodically returns timed-out holds to free. It owns only the
// cadence; each reclamation is an atomic conditional write, so running
// several reapers at once is safe.
type Reaper struct {
	expirer  HoldExpirer
	interval time.Duration
}

func NewReaper(expirer HoldExpirer, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reaper{
		expirer:  expirer,
		interval: interval,
	}
}

func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.interval).Msg("starting hold reaper")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down hold reaper")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one reclamation pass across all tenants.
func (r *Reaper) Sweep(ctx context.Context) {
	count, err := r.expirer.ExpireHeld(tenant.WithBypass(ctx), time.Now())
	if err != nil {
		log.Error().Err(err).Msg("hold sweep failed")
		return
	}
	if count > 0 {
		log.Info().Int64("reclaimed", count).Msg("reclaimed expired holds")
	}
}
