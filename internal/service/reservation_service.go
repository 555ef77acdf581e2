package service

import (
	"context"
	"errors"
	"time"

	"studiobook/internal/database"
	"studiobook/internal/domain"
	"studiobook/internal/events"
	"studiobook/internal/models"

	"github.com/rs/zerolog"
)

// ErrUnknownStatus is returned for a status outside the booking vocabulary.
var ErrUnknownStatus = errors.New("unknown booking status")

// ReservationService is the booking service behind the remote API. It owns
// the database, mirrors every change to the sheets worker and publishes
// booking events.
type ReservationService struct {
	repo         domain.Repository
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	slots        []string
	logger       *zerolog.Logger
}

func NewReservationService(repo domain.Repository, eventBus domain.EventPublisher, sheetsWorker domain.SyncWorker, slots []string, logger *zerolog.Logger) *ReservationService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ReservationService{
		repo:         repo,
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		slots:        slots,
		logger:       logger,
	}
}

// Create stores a pending booking. database.ErrSlotTaken is returned when a
// non-cancelled booking already holds the slot.
func (s *ReservationService) Create(ctx context.Context, in models.BookingInput) (*models.Booking, error) {
	normalizeInput(&in)

	verr := &ValidationError{}
	if in.FullName == "" {
		verr.add("fullName", "is required")
	}
	if in.Email == "" {
		verr.add("email", "is required")
	}
	if in.SelectedDate.IsZero() {
		verr.add("selectedDate", "is required")
	}
	if !models.ContainsSlot(s.slots, in.SelectedTime) {
		verr.add("selectedTime", "is not a bookable time slot")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	booking := models.NewBooking("", in, time.Now())
	if err := s.repo.CreateBookingWithLock(ctx, &booking); err != nil {
		if errors.Is(err, database.ErrSlotTaken) {
			publish(s.eventBus, s.logger, events.EventSlotConflict, booking, models.SourceRemote)
		}
		return nil, err
	}

	publish(s.eventBus, s.logger, events.EventBookingCreated, booking, models.SourceRemote)
	s.enqueueSync(ctx, booking, models.SyncTaskUpsert)
	return &booking, nil
}

// Slots returns the bookable time slots in display order.
func (s *ReservationService) Slots() []string {
	return s.slots
}

func (s *ReservationService) Get(ctx context.Context, id string) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

// List returns every booking, or the bookings of one email when given.
func (s *ReservationService) List(ctx context.Context, email string) ([]models.Booking, error) {
	return s.repo.ListBookings(ctx, email)
}

func (s *ReservationService) OccupiedDates(ctx context.Context, statuses []string) ([]string, error) {
	return s.repo.OccupiedDates(ctx, statuses)
}

func (s *ReservationService) OccupiedSlots(ctx context.Context, date models.LocalDate, statuses []string) ([]string, error) {
	return s.repo.OccupiedSlots(ctx, date, statuses)
}

// UpdateStatus applies a status change. Re-applying the current status
// succeeds without side effects.
func (s *ReservationService) UpdateStatus(ctx context.Context, id, status string) (*models.Booking, error) {
	norm, ok := models.NormalizeStatus(status)
	if !ok {
		return nil, ErrUnknownStatus
	}

	prev, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateBookingStatus(ctx, id, norm)
	if err != nil {
		return nil, err
	}

	if prev.Status != updated.Status {
		publish(s.eventBus, s.logger, events.EventBookingStatusChanged, *updated, models.SourceRemote)
		s.enqueueSync(ctx, *updated, models.SyncTaskUpdateStatus)
	}
	return updated, nil
}

// Delete removes a booking for good. Cancelling is the normal way out.
func (s *ReservationService) Delete(ctx context.Context, id string) error {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteBooking(ctx, id); err != nil {
		return err
	}

	publish(s.eventBus, s.logger, events.EventBookingDeleted, *booking, models.SourceRemote)
	s.enqueueSync(ctx, *booking, models.SyncTaskDelete)
	return nil
}

func (s *ReservationService) Ping(ctx context.Context) error {
	return s.repo.PingContext(ctx)
}

func (s *ReservationService) enqueueSync(ctx context.Context, booking models.Booking, taskType string) {
	if s.sheetsWorker == nil {
		return
	}

	var status string
	if taskType == models.SyncTaskUpdateStatus {
		status = booking.Status
	}

	if err := s.sheetsWorker.EnqueueTask(ctx, taskType, booking.ID, &booking, status); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}

func publish(bus domain.EventPublisher, logger *zerolog.Logger, eventType string, booking models.Booking, source models.Source) {
	if bus == nil {
		return
	}
	if err := bus.PublishJSON(eventType, events.NewBookingPayload(booking, source)); err != nil {
		logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}
