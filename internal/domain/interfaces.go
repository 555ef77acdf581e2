package domain

import (
	"context"
	"time"

	"studiobook/internal/availability"
	"studiobook/internal/models"
)

// BookingRemote is the remote booking service as seen by the booking store.
type BookingRemote interface {
	ListBookings(ctx context.Context) ([]models.Booking, error)
	FindByEmail(ctx context.Context, email string) ([]models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	CreateBooking(ctx context.Context, in models.BookingInput) (models.Booking, error)
	UpdateStatus(ctx context.Context, id, status string) (models.Booking, error)
	OccupiedDates(ctx context.Context, statuses []string) ([]string, error)
	OccupiedSlots(ctx context.Context, date models.LocalDate, statuses []string) ([]string, error)
}

// BookingStore is the remote-first booking store with session fallback.
type BookingStore interface {
	Create(ctx context.Context, in models.BookingInput) (models.Booking, models.Source, error)
	ListAll(ctx context.Context) ([]models.Booking, models.Source)
	DatesWithStatus(ctx context.Context, statuses availability.StatusSet) (availability.DateSet, models.Source)
	SlotsForDateWithStatus(ctx context.Context, date models.LocalDate, statuses availability.StatusSet) ([]string, models.Source)
	UpdateStatus(ctx context.Context, id, status string) (bool, models.Source, error)
	FindByIdentifierOrEmail(ctx context.Context, term string) (*models.Booking, models.Source)
}

// Repository is the booking service's persistent storage.
type Repository interface {
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, email string) ([]models.Booking, error)
	OccupiedDates(ctx context.Context, statuses []string) ([]string, error)
	OccupiedSlots(ctx context.Context, date models.LocalDate, statuses []string) ([]string, error)
	UpdateBookingStatus(ctx context.Context, id, status string) (*models.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	PingContext(ctx context.Context) error
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SheetsWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID, status string) error
	DeleteBooking(ctx context.Context, bookingID string) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType, bookingID string, booking *models.Booking, status string) error
}
