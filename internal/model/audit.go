package model

import (
	"time"

	"github.com/google/uuid"
)

// TransitionAudit records one appointment state transition for the
// per-transition audit trail.
type TransitionAudit struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	TenantID      uuid.UUID  `db:"tenant_id" json:"tenant_id"`
	AppointmentID uuid.UUID  `db:"appointment_id" json:"appointment_id"`
	FromState     string     `db:"from_state" json:"from_state"`
	ToState       string     `db:"to_state" json:"to_state"`
	Reason        *string    `db:"reason" json:"reason,omitempty"`
	OccurredAt    time.Time  `db:"occurred_at" json:"occurred_at"`
	RequestID     *string    `db:"request_id" json:"request_id,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}
