package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WorkingHours is one recurring working window of a professional for a
// weekday. Start and End are wall-clock times ("09:00") interpreted in
// Timezone; they must never be compared against raw UTC instants.
type WorkingHours struct {
	ID             uuid.UUID    `db:"id" json:"id"`
	TenantID       uuid.UUID    `db:"tenant_id" json:"tenant_id"`
	ProfessionalID uuid.UUID    `db:"professional_id" json:"professional_id"`
	Weekday        time.Weekday `db:"weekday" json:"weekday"`
	Start          string       `db:"start_time" json:"start"`
	End            string       `db:"end_time" json:"end"`
	Timezone       string       `db:"timezone" json:"timezone"`
}

const clockLayout = "15:04"

// WindowOn resolves the working window for the given local date. The
// date's year/month/day are combined with the wall-clock Start/End in
// the window's own timezone.
func (w *WorkingHours) WindowOn(date time.Time, loc *time.Location) (TimeSlot, error) {
	start, err := time.Parse(clockLayout, w.Start)
	if err != nil {
		return TimeSlot{}, fmt.Errorf("invalid working hours start %q: %w", w.Start, err)
	}
	end, err := time.Parse(clockLayout, w.End)
	if err != nil {
		return TimeSlot{}, fmt.Errorf("invalid working hours end %q: %w", w.End, err)
	}

	y, m, d := date.In(loc).Date()
	return TimeSlot{
		Start: time.Date(y, m, d, start.Hour(), start.Minute(), 0, 0, loc),
		End:   time.Date(y, m, d, end.Hour(), end.Minute(), 0, 0, loc),
	}, nil
}
