// Package store is the booking store client: it reads and writes bookings
// through the remote booking service and falls back to a per-process session
// cache whenever the service cannot be reached.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"studiobook/internal/availability"
	"studiobook/internal/client"
	"studiobook/internal/domain"
	"studiobook/internal/metrics"
	"studiobook/internal/models"

	"github.com/rs/zerolog"
)

var (
	// ErrSlotUnavailable means the date and slot were taken before the
	// booking could be stored. Nothing was created.
	ErrSlotUnavailable   = errors.New("the selected time slot is no longer available, please pick another time")
	ErrInvalidStatus     = errors.New("unknown booking status")
	ErrInvalidTransition = errors.New("booking status cannot change that way")
	ErrRejected          = errors.New("booking rejected by the booking service")
)

const (
	ModeLive    = "live"
	ModeOffline = "offline"

	defaultTimeout    = 5 * time.Second
	defaultRetryAfter = 30 * time.Second
)

type Options struct {
	Mode       string
	Slots      []string
	Timeout    time.Duration
	RetryAfter time.Duration
	// Hold is the status filter used when re-checking a slot before create.
	Hold availability.StatusSet
	Now  func() time.Time
}

// BookingStore is remote-first: every call goes to the remote service unless
// the store is offline or the remote failed within the last RetryAfter.
type BookingStore struct {
	remote     domain.BookingRemote
	cache      *SessionCache
	slots      []string
	hold       availability.StatusSet
	timeout    time.Duration
	retryAfter time.Duration
	offline    bool
	now        func() time.Time
	logger     zerolog.Logger

	createMu  sync.Mutex
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func New(remote domain.BookingRemote, cache *SessionCache, opts Options, logger *zerolog.Logger) *BookingStore {
	if cache == nil {
		cache = NewSessionCache()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = defaultRetryAfter
	}
	if len(opts.Hold) == 0 {
		opts.Hold = availability.Blocking
	}
	if len(opts.Slots) == 0 {
		opts.Slots = models.DefaultTimeSlots
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "booking_store").Logger()
	}
	return &BookingStore{
		remote:     remote,
		cache:      cache,
		slots:      opts.Slots,
		hold:       opts.Hold,
		timeout:    opts.Timeout,
		retryAfter: opts.RetryAfter,
		offline:    opts.Mode == ModeOffline || remote == nil,
		now:        opts.Now,
		logger:     l,
	}
}

// Slots returns the defined time slots in display order.
func (s *BookingStore) Slots() []string {
	return append([]string(nil), s.slots...)
}

// Cache exposes the session fallback cache.
func (s *BookingStore) Cache() *SessionCache {
	return s.cache
}

// Offline reports whether the store never calls the remote service.
func (s *BookingStore) Offline() bool {
	return s.offline
}

func (s *BookingStore) useRemote() bool {
	if s.offline {
		return false
	}
	if !s.isDown.Load() {
		return true
	}
	return s.now().Sub(time.Unix(0, s.lastCheck.Load())) >= s.retryAfter
}

func (s *BookingStore) markDown(op string, err error) {
	metrics.IncRemoteFailure(op)
	if !s.isDown.Swap(true) {
		s.logger.Warn().Err(err).Str("op", op).Dur("retry_after", s.retryAfter).
			Msg("Remote booking service unavailable, using session cache")
	} else {
		s.logger.Debug().Err(err).Str("op", op).Msg("Remote booking service still unavailable")
	}
	s.lastCheck.Store(s.now().UnixNano())
}

func (s *BookingStore) markUp() {
	if s.isDown.Swap(false) {
		s.logger.Info().Msg("Remote booking service recovered")
	}
}

func (s *BookingStore) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *BookingStore) record(op string, src models.Source) {
	metrics.IncStoreOp(op, string(src))
}

// ListAll returns every known booking.
func (s *BookingStore) ListAll(ctx context.Context) ([]models.Booking, models.Source) {
	if s.useRemote() {
		callCtx, cancel := s.callCtx(ctx)
		list, err := s.remote.ListBookings(callCtx)
		cancel()
		if err == nil {
			s.markUp()
			s.record("list", models.SourceRemote)
			return s.withCached(list), models.SourceRemote
		}
		s.markDown("list", err)
	}
	s.record("list", models.SourceFallback)
	return s.cache.Snapshot(), models.SourceFallback
}

// withCached adds the live bookings kept in the session cache to a remote
// list. They were taken while the remote was down and still hold their slot.
func (s *BookingStore) withCached(remote []models.Booking) []models.Booking {
	cached := s.cache.Snapshot()
	if len(cached) == 0 {
		return remote
	}
	seen := make(map[string]struct{}, len(remote))
	for _, b := range remote {
		seen[b.ID] = struct{}{}
	}
	out := append(make([]models.Booking, 0, len(remote)+len(cached)), remote...)
	for _, b := range cached {
		if _, dup := seen[b.ID]; dup || b.IsCancelled() {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Create re-checks the slot against a fresh booking list and stores the
// booking. ErrSlotUnavailable is returned when the slot is taken; any other
// remote failure degrades to a pending booking kept in the session cache.
func (s *BookingStore) Create(ctx context.Context, in models.BookingInput) (models.Booking, models.Source, error) {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	bookings, src := s.ListAll(ctx)
	if !availability.IsSlotFree(bookings, in.SelectedDate, in.SelectedTime, s.hold) {
		return s.conflict(in)
	}

	if src == models.SourceRemote {
		callCtx, cancel := s.callCtx(ctx)
		created, err := s.remote.CreateBooking(callCtx, in)
		cancel()
		switch {
		case err == nil:
			s.markUp()
			s.record("create", models.SourceRemote)
			metrics.IncBookingCreated(string(models.SourceRemote))
			s.logger.Info().Str("booking_id", created.ID).Str("date", created.SelectedDate.String()).
				Str("slot", created.SelectedTime).Msg("Booking created")
			return created, models.SourceRemote, nil
		case errors.Is(err, client.ErrSlotTaken):
			return s.conflict(in)
		case client.IsRejection(err):
			s.markUp()
			return models.Booking{}, "", fmt.Errorf("%w: %v", ErrRejected, err)
		default:
			s.markDown("create", err)
		}
	}

	now := s.now()
	booking := models.NewBooking(models.NewReference(now), in, now)
	s.cache.Append(booking)
	s.record("create", models.SourceFallback)
	metrics.IncBookingCreated(string(models.SourceFallback))
	s.logger.Info().Str("booking_id", booking.ID).Str("date", booking.SelectedDate.String()).
		Str("slot", booking.SelectedTime).Msg("Booking kept in session cache")
	return booking, models.SourceFallback, nil
}

func (s *BookingStore) conflict(in models.BookingInput) (models.Booking, models.Source, error) {
	metrics.IncSlotConflict()
	s.logger.Info().Str("date", in.SelectedDate.String()).Str("slot", in.SelectedTime).
		Msg("Slot taken before booking could be stored")
	return models.Booking{}, "", ErrSlotUnavailable
}

// DatesWithStatus returns the dates holding at least one booking counted by
// statuses.
func (s *BookingStore) DatesWithStatus(ctx context.Context, statuses availability.StatusSet) (availability.DateSet, models.Source) {
	if s.useRemote() {
		callCtx, cancel := s.callCtx(ctx)
		dates, err := s.remote.OccupiedDates(callCtx, statuses.Slice())
		cancel()
		if err == nil {
			s.markUp()
			s.record("dates", models.SourceRemote)
			set := availability.OccupiedDates(s.cache.Snapshot(), statuses)
			for _, d := range dates {
				set[d] = struct{}{}
			}
			return set, models.SourceRemote
		}
		s.markDown("dates", err)
	}
	s.record("dates", models.SourceFallback)
	return availability.OccupiedDates(s.cache.Snapshot(), statuses), models.SourceFallback
}

// SlotsForDateWithStatus returns the slots taken on date, one entry per
// counted booking.
func (s *BookingStore) SlotsForDateWithStatus(ctx context.Context, date models.LocalDate, statuses availability.StatusSet) ([]string, models.Source) {
	if s.useRemote() {
		callCtx, cancel := s.callCtx(ctx)
		slots, err := s.remote.OccupiedSlots(callCtx, date, statuses.Slice())
		cancel()
		if err == nil {
			s.markUp()
			s.record("slots", models.SourceRemote)
			return append(slots, availability.OccupiedSlots(s.cache.Snapshot(), date, statuses)...), models.SourceRemote
		}
		s.markDown("slots", err)
	}
	s.record("slots", models.SourceFallback)
	return availability.OccupiedSlots(s.cache.Snapshot(), date, statuses), models.SourceFallback
}

// UpdateStatus sets the status of booking id. It reports false when the
// booking is unknown to both the remote and the session cache. Applying the
// current status again succeeds.
func (s *BookingStore) UpdateStatus(ctx context.Context, id, status string) (bool, models.Source, error) {
	norm, ok := models.NormalizeStatus(status)
	if !ok {
		return false, "", ErrInvalidStatus
	}

	if s.useRemote() {
		callCtx, cancel := s.callCtx(ctx)
		_, err := s.remote.UpdateStatus(callCtx, id, norm)
		cancel()
		switch {
		case err == nil:
			s.markUp()
			s.record("update_status", models.SourceRemote)
			s.logger.Info().Str("booking_id", id).Str("status", norm).Msg("Booking status updated")
			return true, models.SourceRemote, nil
		case errors.Is(err, client.ErrInvalidTransition):
			s.markUp()
			return false, models.SourceRemote, ErrInvalidTransition
		case errors.Is(err, client.ErrNotFound):
			// the booking may have been created during an outage
			s.markUp()
			found, src, err := s.updateCached(id, norm)
			if !found && err == nil {
				return false, models.SourceRemote, nil
			}
			return found, src, err
		default:
			s.markDown("update_status", err)
		}
	}

	return s.updateCached(id, norm)
}

func (s *BookingStore) updateCached(id, status string) (bool, models.Source, error) {
	s.record("update_status", models.SourceFallback)
	_, found, err := s.cache.UpdateStatus(id, status)
	if err != nil {
		return false, models.SourceFallback, err
	}
	return found, models.SourceFallback, nil
}

// FindByIdentifierOrEmail returns the first booking whose reference or email
// equals term, ignoring case and surrounding whitespace. A nil booking means
// nothing matched.
func (s *BookingStore) FindByIdentifierOrEmail(ctx context.Context, term string) (*models.Booking, models.Source) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, models.SourceFallback
	}

	if s.useRemote() {
		b, err := s.findRemote(ctx, term)
		switch {
		case err == nil:
			s.markUp()
			s.record("find", models.SourceRemote)
			return b, models.SourceRemote
		case errors.Is(err, client.ErrNotFound):
			s.markUp()
			if b, ok := s.cache.Find(term); ok {
				s.record("find", models.SourceFallback)
				return &b, models.SourceFallback
			}
			s.record("find", models.SourceRemote)
			return nil, models.SourceRemote
		default:
			s.markDown("find", err)
		}
	}

	s.record("find", models.SourceFallback)
	if b, ok := s.cache.Find(term); ok {
		return &b, models.SourceFallback
	}
	return nil, models.SourceFallback
}

// findRemote looks term up as an email when it has an @, as a reference
// otherwise. A miss is client.ErrNotFound.
func (s *BookingStore) findRemote(ctx context.Context, term string) (*models.Booking, error) {
	callCtx, cancel := s.callCtx(ctx)
	defer cancel()

	if strings.Contains(term, "@") {
		list, err := s.remote.FindByEmail(callCtx, term)
		if err != nil {
			return nil, err
		}
		if b, ok := matchFirst(list, term); ok {
			return &b, nil
		}
		return nil, client.ErrNotFound
	}
	return s.remote.GetBooking(callCtx, term)
}

// Reset drops every booking held in the session cache.
func (s *BookingStore) Reset() {
	s.cache.Reset()
	s.logger.Info().Msg("Session booking cache cleared")
}
