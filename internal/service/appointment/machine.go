package appointment

import (
	"github.com/slotwise/booking-api/internal/model"
)

// transitions is the closed transition table. Anything absent here is
// rejected before any guard runs. Terminal states have no entry.
var transitions = map[model.AppointmentStatus][]model.AppointmentStatus{
	model.AppointmentStatusPending: {
		model.AppointmentStatusConfirmed,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	},
	model.AppointmentStatusConfirmed: {
		model.AppointmentStatusCheckedIn,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
		// Re-opening a confirmed appointment back to pending is allowed
		// so a disputed confirmation can be revisited.
		model.AppointmentStatusPending,
	},
	model.AppointmentStatusCheckedIn: {
		model.AppointmentStatusInProgress,
		model.AppointmentStatusCancelled,
	},
	model.AppointmentStatusInProgress: {
		model.AppointmentStatusCompleted,
	},
}

// CanTransition reports whether the table allows from -> to.
func CanTransition(from, to model.AppointmentStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedTargets returns the table row for from; nil for terminals.
func AllowedTargets(from model.AppointmentStatus) []model.AppointmentStatus {
	return transitions[from]
}

// ReschedulableStates are the only states in which an appointment's
// date/time may change.
var ReschedulableStates = []model.AppointmentStatus{
	model.AppointmentStatusPending,
	model.AppointmentStatusConfirmed,
}

func Reschedulable(s model.AppointmentStatus) bool {
	for _, allowed := range ReschedulableStates {
		if allowed == s {
			return true
		}
	}
	return false
}
