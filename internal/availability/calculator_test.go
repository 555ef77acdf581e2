package availability

import (
	"testing"
	"time"

	"studiobook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var june5 = models.LocalDate{Year: 2025, Month: time.June, Day: 5}

func booking(date models.LocalDate, slot, status string) models.Booking {
	return models.Booking{
		ID:           models.NewReference(time.Now()),
		Email:        "client@example.com",
		SelectedDate: date,
		SelectedTime: slot,
		Status:       status,
	}
}

func TestOccupiedDates_IgnoresCancelled(t *testing.T) {
	bookings := []models.Booking{booking(june5, "9:00 AM", models.StatusCancelled)}

	assert.Empty(t, OccupiedDates(bookings, PendingOnly))
	assert.Empty(t, OccupiedDates(bookings, NewStatusSet(models.StatusConfirmed)))
	// even an explicit cancelled filter never counts cancelled bookings
	assert.Empty(t, OccupiedDates(bookings, NewStatusSet(models.StatusCancelled)))
}

func TestOccupiedDates_Filters(t *testing.T) {
	june6 := june5.AddDays(1)
	june7 := june5.AddDays(2)
	bookings := []models.Booking{
		booking(june5, "9:00 AM", models.StatusPending),
		booking(june5, "10:00 AM", models.StatusPending),
		booking(june6, "9:00 AM", models.StatusConfirmed),
		booking(june7, "9:00 AM", models.StatusCancelled),
	}

	pending := OccupiedDates(bookings, PendingOnly)
	assert.Equal(t, []string{"2025-06-05"}, pending.Sorted())

	both := OccupiedDates(bookings, NewStatusSet("pending", "completed"))
	assert.Equal(t, []string{"2025-06-05", "2025-06-06"}, both.Sorted())
	assert.True(t, both.Has(june6))
	assert.False(t, both.Has(june7))
}

func TestFullyBookedDates_AllSlotsTaken(t *testing.T) {
	var bookings []models.Booking
	for _, slot := range models.DefaultTimeSlots {
		bookings = append(bookings, booking(june5, slot, models.StatusPending))
	}
	bookings = append(bookings, booking(june5.AddDays(1), "9:00 AM", models.StatusPending))

	full := FullyBookedDates(bookings, PendingOnly, models.DefaultTimeSlots)
	assert.Equal(t, []string{"2025-06-05"}, full.Sorted())

	occupied := OccupiedDates(bookings, PendingOnly)
	assert.Equal(t, []string{"2025-06-05", "2025-06-06"}, occupied.Sorted())

	for date := range full {
		_, ok := occupied[date]
		assert.True(t, ok, "fully booked date %s must be occupied", date)
	}
}

func TestFullyBookedDates_OnlyPendingAll8(t *testing.T) {
	var bookings []models.Booking
	for _, slot := range models.DefaultTimeSlots {
		bookings = append(bookings, booking(june5, slot, models.StatusPending))
	}

	assert.Equal(t, []string{"2025-06-05"}, FullyBookedDates(bookings, PendingOnly, models.DefaultTimeSlots).Sorted())
	assert.Equal(t, []string{"2025-06-05"}, OccupiedDates(bookings, PendingOnly).Sorted())
}

func TestFullyBookedDates_CancelledFreesDate(t *testing.T) {
	var bookings []models.Booking
	for _, slot := range models.DefaultTimeSlots {
		bookings = append(bookings, booking(june5, slot, models.StatusPending))
	}
	bookings[3].Status = models.StatusCancelled

	assert.Empty(t, FullyBookedDates(bookings, PendingOnly, models.DefaultTimeSlots))
}

func TestFullyBookedDates_DuplicateSlotsStillFull(t *testing.T) {
	slots := []string{"9:00 AM", "10:00 AM"}
	bookings := []models.Booking{
		booking(june5, "9:00 AM", models.StatusPending),
		booking(june5, "9:00 AM", models.StatusPending),
		booking(june5, "10:00 AM", models.StatusPending),
	}
	assert.Equal(t, []string{"2025-06-05"}, FullyBookedDates(bookings, PendingOnly, slots).Sorted())
}

func TestOccupiedSlots(t *testing.T) {
	bookings := []models.Booking{
		booking(june5, "9:00 AM", models.StatusPending),
		booking(june5, "1:00 PM", models.StatusPending),
		booking(june5, "1:00 PM", models.StatusPending),
		booking(june5, "2:00 PM", models.StatusCancelled),
		booking(june5, "3:00 PM", models.StatusConfirmed),
		booking(june5.AddDays(1), "4:00 PM", models.StatusPending),
	}

	slots := OccupiedSlots(bookings, june5, PendingOnly)
	assert.ElementsMatch(t, []string{"9:00 AM", "1:00 PM", "1:00 PM"}, slots)

	assert.NotNil(t, OccupiedSlots(nil, june5, PendingOnly))
	assert.Empty(t, OccupiedSlots(nil, june5, PendingOnly))
}

func TestIsSlotFreeAndFreeSlots(t *testing.T) {
	bookings := []models.Booking{
		booking(june5, "9:00 AM", models.StatusPending),
		booking(june5, "10:00 AM", models.StatusCancelled),
		booking(june5, "11:00 AM", models.StatusConfirmed),
	}

	assert.False(t, IsSlotFree(bookings, june5, "9:00 AM", PendingOnly))
	assert.True(t, IsSlotFree(bookings, june5, "10:00 AM", PendingOnly))
	assert.True(t, IsSlotFree(bookings, june5, "11:00 AM", PendingOnly))
	assert.False(t, IsSlotFree(bookings, june5, "11:00 AM", NewStatusSet(models.StatusPending, models.StatusConfirmed)))
	assert.True(t, IsSlotFree(bookings, june5.AddDays(1), "9:00 AM", PendingOnly))

	free := FreeSlots(bookings, june5, PendingOnly, models.DefaultTimeSlots)
	require.Len(t, free, 7)
	assert.Equal(t, "10:00 AM", free[0])
	assert.NotContains(t, free, "9:00 AM")
}

func TestUpcoming(t *testing.T) {
	today := june5
	bookings := []models.Booking{
		booking(today.AddDays(-1), "9:00 AM", models.StatusPending),
		booking(today.AddDays(2), "1:00 PM", models.StatusPending),
		booking(today, "5:00 PM", models.StatusConfirmed),
		booking(today, "9:00 AM", models.StatusPending),
		booking(today.AddDays(3), "9:00 AM", models.StatusCancelled),
		booking(today.AddDays(7), "9:00 AM", models.StatusPending),
		booking(today.AddDays(8), "9:00 AM", models.StatusPending),
	}

	got := Upcoming(bookings, today, 7, models.DefaultTimeSlots)
	require.Len(t, got, 4)
	assert.Equal(t, today, got[0].SelectedDate)
	assert.Equal(t, "9:00 AM", got[0].SelectedTime)
	assert.Equal(t, "5:00 PM", got[1].SelectedTime)
	assert.Equal(t, today.AddDays(2), got[2].SelectedDate)
	assert.Equal(t, today.AddDays(7), got[3].SelectedDate)
}

func TestStatusSet(t *testing.T) {
	set := NewStatusSet("completed", "bogus", "pending")
	assert.Equal(t, []string{"confirmed", "pending"}, set.Slice())
	assert.True(t, set.Counts(models.StatusConfirmed))
	assert.False(t, set.Counts(models.StatusCancelled))
}
