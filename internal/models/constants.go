package models

import "strings"

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"

	// statusCompleted is accepted from older clients and stored as confirmed.
	statusCompleted = "completed"
)

// DefaultTimeSlots are the bookable start times of a studio day.
var DefaultTimeSlots = []string{
	"9:00 AM", "10:00 AM", "11:00 AM",
	"1:00 PM", "2:00 PM", "3:00 PM", "4:00 PM", "5:00 PM",
}

var EventTypes = []string{"solo", "group", "event", "others"}

var PaymentMethods = []string{"gcash", "cash"}

const (
	// ReferencePrefix prefixes every booking reference.
	ReferencePrefix = "LL"

	DefaultUpcomingDays = 7
	MaxUpcomingDays     = 90
)

// NormalizeStatus lowercases a status and maps legacy names onto the
// canonical vocabulary. The second result is false for unknown values.
func NormalizeStatus(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case StatusPending:
		return StatusPending, true
	case StatusConfirmed, statusCompleted:
		return StatusConfirmed, true
	case StatusCancelled, "canceled":
		return StatusCancelled, true
	default:
		return "", false
	}
}

// CanTransition reports whether a booking may move from one status to another.
// Re-applying the current status is always allowed.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCancelled
	default:
		return false
	}
}

// ContainsSlot reports whether slot is one of slots.
func ContainsSlot(slots []string, slot string) bool {
	for _, s := range slots {
		if s == slot {
			return true
		}
	}
	return false
}
