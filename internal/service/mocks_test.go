package service

import (
	"context"
	"time"

	"studiobook/internal/availability"
	"studiobook/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Create(ctx context.Context, in models.BookingInput) (models.Booking, models.Source, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(models.Booking), args.Get(1).(models.Source), args.Error(2)
}

func (m *mockStore) ListAll(ctx context.Context) ([]models.Booking, models.Source) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Booking), args.Get(1).(models.Source)
}

func (m *mockStore) DatesWithStatus(ctx context.Context, statuses availability.StatusSet) (availability.DateSet, models.Source) {
	args := m.Called(ctx, statuses)
	return args.Get(0).(availability.DateSet), args.Get(1).(models.Source)
}

func (m *mockStore) SlotsForDateWithStatus(ctx context.Context, date models.LocalDate, statuses availability.StatusSet) ([]string, models.Source) {
	args := m.Called(ctx, date, statuses)
	return args.Get(0).([]string), args.Get(1).(models.Source)
}

func (m *mockStore) UpdateStatus(ctx context.Context, id, status string) (bool, models.Source, error) {
	args := m.Called(ctx, id, status)
	return args.Bool(0), args.Get(1).(models.Source), args.Error(2)
}

func (m *mockStore) FindByIdentifierOrEmail(ctx context.Context, term string) (*models.Booking, models.Source) {
	args := m.Called(ctx, term)
	if args.Get(0) == nil {
		return nil, args.Get(1).(models.Source)
	}
	return args.Get(0).(*models.Booking), args.Get(1).(models.Source)
}

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) CreateBookingWithLock(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockRepo) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockRepo) ListBookings(ctx context.Context, email string) ([]models.Booking, error) {
	args := m.Called(ctx, email)
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockRepo) OccupiedDates(ctx context.Context, statuses []string) ([]string, error) {
	args := m.Called(ctx, statuses)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockRepo) OccupiedSlots(ctx context.Context, date models.LocalDate, statuses []string) ([]string, error) {
	args := m.Called(ctx, date, statuses)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockRepo) UpdateBookingStatus(ctx context.Context, id, status string) (*models.Booking, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockRepo) DeleteBooking(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRepo) PingContext(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type mockSyncWorker struct {
	mock.Mock
}

func (m *mockSyncWorker) EnqueueTask(ctx context.Context, taskType, bookingID string, booking *models.Booking, status string) error {
	return m.Called(ctx, taskType, bookingID, booking, status).Error(0)
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}
