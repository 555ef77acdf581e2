package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"studiobook/internal/availability"
	"studiobook/internal/client"
	"studiobook/internal/models"
)

var errConnRefused = errors.New("dial tcp 127.0.0.1:8080: connect: connection refused")

// fakeRemote behaves like the booking service: it rejects a second
// non-cancelled booking for the same date and slot.
type fakeRemote struct {
	mu       sync.Mutex
	bookings []models.Booking
	seq      int
	fail     atomic.Bool
	calls    atomic.Int32
}

func (f *fakeRemote) check() error {
	f.calls.Add(1)
	if f.fail.Load() {
		return errConnRefused
	}
	return nil
}

func (f *fakeRemote) ListBookings(ctx context.Context) ([]models.Booking, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Booking{}, f.bookings...), nil
}

func (f *fakeRemote) FindByEmail(ctx context.Context, email string) ([]models.Booking, error) {
	list, err := f.ListBookings(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Booking
	for _, b := range list {
		if strings.EqualFold(b.Email, email) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRemote) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	list, err := f.ListBookings(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range list {
		if strings.EqualFold(b.ID, id) {
			return &b, nil
		}
	}
	return nil, client.ErrNotFound
}

func (f *fakeRemote) CreateBooking(ctx context.Context, in models.BookingInput) (models.Booking, error) {
	if err := f.check(); err != nil {
		return models.Booking{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if !b.IsCancelled() && b.SelectedDate == in.SelectedDate && b.SelectedTime == in.SelectedTime {
			return models.Booking{}, client.ErrSlotTaken
		}
	}
	f.seq++
	b := models.NewBooking(models.NewReference(time.Now()), in, time.Now())
	f.bookings = append(f.bookings, b)
	return b, nil
}

func (f *fakeRemote) UpdateStatus(ctx context.Context, id, status string) (models.Booking, error) {
	if err := f.check(); err != nil {
		return models.Booking{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.bookings {
		if f.bookings[i].ID != id {
			continue
		}
		if !models.CanTransition(f.bookings[i].Status, status) {
			return models.Booking{}, client.ErrInvalidTransition
		}
		f.bookings[i].Status = status
		return f.bookings[i], nil
	}
	return models.Booking{}, client.ErrNotFound
}

func (f *fakeRemote) OccupiedDates(ctx context.Context, statuses []string) ([]string, error) {
	list, err := f.ListBookings(ctx)
	if err != nil {
		return nil, err
	}
	return availability.OccupiedDates(list, availability.NewStatusSet(statuses...)).Sorted(), nil
}

func (f *fakeRemote) OccupiedSlots(ctx context.Context, date models.LocalDate, statuses []string) ([]string, error) {
	list, err := f.ListBookings(ctx)
	if err != nil {
		return nil, err
	}
	return availability.OccupiedSlots(list, date, availability.NewStatusSet(statuses...)), nil
}

func (f *fakeRemote) seed(bookings ...models.Booking) {
	f.mu.Lock()
	f.bookings = append(f.bookings, bookings...)
	f.mu.Unlock()
}
