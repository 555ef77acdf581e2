// Package availability derives calendar availability from a flat list of
// bookings. Every function is pure; callers pass the booking list they want
// evaluated, whichever store it came from.
package availability

import (
	"sort"

	"studiobook/internal/models"
)

// PendingOnly is the filter the booking form uses: only pending bookings
// still hold a slot.
var PendingOnly = NewStatusSet(models.StatusPending)

// Blocking counts every booking the backend's slot index counts: anything
// not cancelled.
var Blocking = NewStatusSet(models.StatusPending, models.StatusConfirmed)

// StatusSet is a set of booking statuses used as a filter.
type StatusSet map[string]struct{}

// NewStatusSet builds a set from status names. Unknown names are dropped and
// legacy names are normalized.
func NewStatusSet(statuses ...string) StatusSet {
	set := make(StatusSet, len(statuses))
	for _, s := range statuses {
		if norm, ok := models.NormalizeStatus(s); ok {
			set[norm] = struct{}{}
		}
	}
	return set
}

// Counts reports whether a booking with status s is counted by the filter.
// Cancelled bookings are never counted.
func (s StatusSet) Counts(status string) bool {
	if status == models.StatusCancelled {
		return false
	}
	_, ok := s[status]
	return ok
}

// Slice returns the statuses in sorted order.
func (s StatusSet) Slice() []string {
	out := make([]string, 0, len(s))
	for status := range s {
		out = append(out, status)
	}
	sort.Strings(out)
	return out
}

// DateSet is a set of YYYY-MM-DD strings.
type DateSet map[string]struct{}

func (d DateSet) Has(date models.LocalDate) bool {
	_, ok := d[models.FormatLocalDate(date)]
	return ok
}

// Sorted returns the dates in calendar order.
func (d DateSet) Sorted() []string {
	out := make([]string, 0, len(d))
	for date := range d {
		out = append(out, date)
	}
	sort.Strings(out)
	return out
}

// OccupiedDates returns every date that has at least one counted booking.
func OccupiedDates(bookings []models.Booking, statuses StatusSet) DateSet {
	dates := make(DateSet)
	for _, b := range bookings {
		if statuses.Counts(b.Status) {
			dates[models.FormatLocalDate(b.SelectedDate)] = struct{}{}
		}
	}
	return dates
}

// OccupiedSlots returns the time slot of every counted booking on date.
// Duplicates are kept; use IsSlotFree or FreeSlots for membership.
func OccupiedSlots(bookings []models.Booking, date models.LocalDate, statuses StatusSet) []string {
	slots := []string{}
	for _, b := range bookings {
		if b.SelectedDate == date && statuses.Counts(b.Status) {
			slots = append(slots, b.SelectedTime)
		}
	}
	return slots
}

// FullyBookedDates returns the occupied dates whose occupied slot count
// reaches the number of defined slots.
func FullyBookedDates(bookings []models.Booking, statuses StatusSet, allSlots []string) DateSet {
	perDate := make(map[models.LocalDate]int)
	for _, b := range bookings {
		if statuses.Counts(b.Status) {
			perDate[b.SelectedDate]++
		}
	}

	full := make(DateSet)
	for date, taken := range perDate {
		if taken >= len(allSlots) {
			full[models.FormatLocalDate(date)] = struct{}{}
		}
	}
	return full
}

// IsSlotFree reports whether no counted booking holds slot on date.
func IsSlotFree(bookings []models.Booking, date models.LocalDate, slot string, statuses StatusSet) bool {
	return !models.ContainsSlot(OccupiedSlots(bookings, date, statuses), slot)
}

// FreeSlots returns the defined slots that are not occupied on date, in the
// order they are defined.
func FreeSlots(bookings []models.Booking, date models.LocalDate, statuses StatusSet, allSlots []string) []string {
	taken := OccupiedSlots(bookings, date, statuses)
	free := make([]string, 0, len(allSlots))
	for _, slot := range allSlots {
		if !models.ContainsSlot(taken, slot) {
			free = append(free, slot)
		}
	}
	return free
}

// Upcoming returns non-cancelled bookings dated from today through
// today+daysAhead inclusive, ordered by date and then by slot order.
func Upcoming(bookings []models.Booking, today models.LocalDate, daysAhead int, allSlots []string) []models.Booking {
	until := today.AddDays(daysAhead)
	out := make([]models.Booking, 0)
	for _, b := range bookings {
		if b.IsCancelled() || b.SelectedDate.Before(today) || b.SelectedDate.After(until) {
			continue
		}
		out = append(out, b)
	}

	slotIndex := make(map[string]int, len(allSlots))
	for i, s := range allSlots {
		slotIndex[s] = i
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].SelectedDate.Compare(out[j].SelectedDate); c != 0 {
			return c < 0
		}
		return slotIndex[out[i].SelectedTime] < slotIndex[out[j].SelectedTime]
	})
	return out
}
