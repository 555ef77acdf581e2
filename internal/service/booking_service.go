package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"studiobook/internal/availability"
	"studiobook/internal/domain"
	"studiobook/internal/events"
	"studiobook/internal/models"
	"studiobook/internal/store"

	"github.com/rs/zerolog"
)

type BookingOptions struct {
	Rules        BookingRules
	UpcomingDays int
	// Hold is the status filter for calendar availability. Defaults to
	// pending and confirmed.
	Hold availability.StatusSet
	Now  func() time.Time
}

// BookingService serves the booking form: it validates requests, asks the
// booking store for bookings and derives availability from them.
type BookingService struct {
	store        domain.BookingStore
	eventBus     domain.EventPublisher
	rules        BookingRules
	upcomingDays int
	hold         availability.StatusSet
	now          func() time.Time
	logger       *zerolog.Logger
}

func NewBookingService(bookingStore domain.BookingStore, eventBus domain.EventPublisher, opts BookingOptions, logger *zerolog.Logger) *BookingService {
	if opts.UpcomingDays <= 0 {
		opts.UpcomingDays = models.DefaultUpcomingDays
	}
	if len(opts.Hold) == 0 {
		opts.Hold = availability.Blocking
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.Rules.Slots) == 0 {
		opts.Rules.Slots = models.DefaultTimeSlots
	}
	if len(opts.Rules.Packages) == 0 {
		opts.Rules.Packages = models.DefaultPackages
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BookingService{
		store:        bookingStore,
		eventBus:     eventBus,
		rules:        opts.Rules,
		upcomingDays: opts.UpcomingDays,
		hold:         opts.Hold,
		now:          opts.Now,
		logger:       logger,
	}
}

type AvailabilityView struct {
	BookedDates      []string      `json:"booked_dates"`
	FullyBookedDates []string      `json:"fully_booked_dates"`
	Source           models.Source `json:"source"`
}

type SlotView struct {
	Date   string        `json:"date"`
	Free   []string      `json:"free"`
	Taken  []string      `json:"taken"`
	Source models.Source `json:"source"`
}

func (s *BookingService) Slots() []string {
	return s.rules.Slots
}

func (s *BookingService) Packages() []models.Package {
	return s.rules.Packages
}

func (s *BookingService) today() models.LocalDate {
	return models.LocalDateOf(s.now())
}

func (s *BookingService) filter(statuses []string) availability.StatusSet {
	if set := availability.NewStatusSet(statuses...); len(set) > 0 {
		return set
	}
	return s.hold
}

// Availability derives the booked and fully booked dates from one booking
// list, so a fully booked date is always also booked.
func (s *BookingService) Availability(ctx context.Context, statuses []string) AvailabilityView {
	bookings, src := s.store.ListAll(ctx)
	filter := s.filter(statuses)

	return AvailabilityView{
		BookedDates:      availability.OccupiedDates(bookings, filter).Sorted(),
		FullyBookedDates: availability.FullyBookedDates(bookings, filter, s.rules.Slots).Sorted(),
		Source:           src,
	}
}

// BookedDates asks the store for the occupied dates only.
func (s *BookingService) BookedDates(ctx context.Context, statuses []string) ([]string, models.Source) {
	dates, src := s.store.DatesWithStatus(ctx, s.filter(statuses))
	return dates.Sorted(), src
}

// SlotsForDate splits the defined slots of date into free and taken.
func (s *BookingService) SlotsForDate(ctx context.Context, date models.LocalDate, statuses []string) SlotView {
	taken, src := s.store.SlotsForDateWithStatus(ctx, date, s.filter(statuses))

	view := SlotView{Date: date.String(), Free: []string{}, Taken: []string{}, Source: src}
	for _, slot := range s.rules.Slots {
		if models.ContainsSlot(taken, slot) {
			view.Taken = append(view.Taken, slot)
		} else {
			view.Free = append(view.Free, slot)
		}
	}
	return view
}

// Book validates in and stores it. A *ValidationError or
// store.ErrSlotUnavailable is returned when nothing was created.
func (s *BookingService) Book(ctx context.Context, in models.BookingInput) (models.Booking, models.Source, error) {
	if err := s.rules.Validate(&in, s.today()); err != nil {
		return models.Booking{}, "", err
	}

	booking, src, err := s.store.Create(ctx, in)
	if err != nil {
		if errors.Is(err, store.ErrSlotUnavailable) {
			publish(s.eventBus, s.logger, events.EventSlotConflict, models.NewBooking("", in, s.now()), src)
		}
		return models.Booking{}, src, err
	}

	publish(s.eventBus, s.logger, events.EventBookingCreated, booking, src)
	return booking, src, nil
}

// Find looks a booking up by reference or email.
func (s *BookingService) Find(ctx context.Context, term string) (*models.Booking, models.Source, error) {
	if strings.TrimSpace(term) == "" {
		verr := &ValidationError{}
		verr.add("q", "a booking reference or email is required")
		return nil, "", verr
	}
	booking, src := s.store.FindByIdentifierOrEmail(ctx, term)
	return booking, src, nil
}

// Cancel cancels the booking id. The first result is false when no such
// booking exists.
func (s *BookingService) Cancel(ctx context.Context, id string) (bool, models.Source, error) {
	id = strings.TrimSpace(id)
	found, src, err := s.store.UpdateStatus(ctx, id, models.StatusCancelled)
	if err != nil || !found {
		return found, src, err
	}

	publish(s.eventBus, s.logger, events.EventBookingStatusChanged,
		models.Booking{ID: id, Status: models.StatusCancelled}, src)
	return true, src, nil
}

// Upcoming lists the non-cancelled bookings of the next days, today
// included. days is clamped to [1, MaxUpcomingDays]; zero means the default.
func (s *BookingService) Upcoming(ctx context.Context, days int) ([]models.Booking, models.Source) {
	switch {
	case days <= 0:
		days = s.upcomingDays
	case days > models.MaxUpcomingDays:
		days = models.MaxUpcomingDays
	}

	bookings, src := s.store.ListAll(ctx)
	return availability.Upcoming(bookings, s.today(), days, s.rules.Slots), src
}
