package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"studiobook/internal/availability"
	"studiobook/internal/domain"
	"studiobook/internal/events"
	"studiobook/internal/models"
	"studiobook/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	fixedNow = time.Date(2025, time.June, 1, 10, 0, 0, 0, time.Local)
	june5    = models.LocalDate{Year: 2025, Month: time.June, Day: 5}
)

func validInput() models.BookingInput {
	return models.BookingInput{
		FullName:        "Ana Cruz",
		Email:           "ana@example.com",
		ContactNumber:   "09171234567",
		EventType:       "solo",
		EventLocation:   "Studio",
		SelectedPackage: "solo",
		SelectedDate:    june5,
		SelectedTime:    "9:00 AM",
		PaymentMethod:   "gcash",
	}
}

func newTestBookingService(st *mockStore, bus *mockPublisher) *BookingService {
	var pub domain.EventPublisher
	if bus != nil {
		pub = bus
	}
	return NewBookingService(st, pub, BookingOptions{
		Rules: BookingRules{
			Slots:          models.DefaultTimeSlots,
			Packages:       models.DefaultPackages,
			MaxAdvanceDays: 90,
		},
		Now: func() time.Time { return fixedNow },
	}, nil)
}

func at(date models.LocalDate, slot, status string) models.Booking {
	return models.Booking{ID: models.NewReference(fixedNow), SelectedDate: date, SelectedTime: slot, Status: status}
}

func TestBookingService_Book(t *testing.T) {
	st := new(mockStore)
	bus := new(mockPublisher)
	svc := newTestBookingService(st, bus)
	ctx := context.Background()

	in := validInput()
	in.FullName = "  Ana Cruz "
	in.PaymentMethod = "GCash"

	created := models.NewBooking("LL-1-AAAAA", validInput(), fixedNow)
	st.On("Create", ctx, validInput()).Return(created, models.SourceRemote, nil).Once()
	bus.On("PublishJSON", events.EventBookingCreated, mock.Anything).Return(nil).Once()

	booking, src, err := svc.Book(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "LL-1-AAAAA", booking.ID)
	assert.Equal(t, models.SourceRemote, src)
	st.AssertExpectations(t)
	bus.AssertExpectations(t)
}

func TestBookingService_Book_Validation(t *testing.T) {
	st := new(mockStore)
	svc := newTestBookingService(st, nil)

	tests := []struct {
		name   string
		mutate func(in *models.BookingInput)
		field  string
	}{
		{"missing name", func(in *models.BookingInput) { in.FullName = " " }, "fullName"},
		{"bad email", func(in *models.BookingInput) { in.Email = "not-an-email" }, "email"},
		{"missing contact", func(in *models.BookingInput) { in.ContactNumber = "" }, "contactNumber"},
		{"missing location", func(in *models.BookingInput) { in.EventLocation = "" }, "eventLocation"},
		{"unknown event type", func(in *models.BookingInput) { in.EventType = "wedding" }, "eventType"},
		{"missing package", func(in *models.BookingInput) { in.SelectedPackage = "" }, "selectedPackage"},
		{"unknown package", func(in *models.BookingInput) { in.SelectedPackage = "platinum" }, "selectedPackage"},
		{"missing date", func(in *models.BookingInput) { in.SelectedDate = models.LocalDate{} }, "selectedDate"},
		{"past date", func(in *models.BookingInput) { in.SelectedDate = june5.AddDays(-10) }, "selectedDate"},
		{"too far ahead", func(in *models.BookingInput) { in.SelectedDate = june5.AddDays(200) }, "selectedDate"},
		{"unknown slot", func(in *models.BookingInput) { in.SelectedTime = "12:00 PM" }, "selectedTime"},
		{"missing slot", func(in *models.BookingInput) { in.SelectedTime = "" }, "selectedTime"},
		{"bad payment", func(in *models.BookingInput) { in.PaymentMethod = "card" }, "paymentMethod"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			_, _, err := svc.Book(context.Background(), in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}

	st.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBookingService_Book_TodayAllowed(t *testing.T) {
	st := new(mockStore)
	svc := newTestBookingService(st, nil)

	in := validInput()
	in.SelectedDate = models.LocalDateOf(fixedNow)
	st.On("Create", mock.Anything, in).Return(models.NewBooking("LL-1-AAAAA", in, fixedNow), models.SourceFallback, nil)

	_, src, err := svc.Book(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, models.SourceFallback, src)
}

func TestBookingService_Book_SlotTaken(t *testing.T) {
	st := new(mockStore)
	bus := new(mockPublisher)
	svc := newTestBookingService(st, bus)

	st.On("Create", mock.Anything, mock.Anything).Return(models.Booking{}, models.Source(""), store.ErrSlotUnavailable)
	bus.On("PublishJSON", events.EventSlotConflict, mock.Anything).Return(nil).Once()

	_, _, err := svc.Book(context.Background(), validInput())
	assert.ErrorIs(t, err, store.ErrSlotUnavailable)
	bus.AssertExpectations(t)
}

func TestBookingService_Book_PublishErrorIgnored(t *testing.T) {
	st := new(mockStore)
	bus := new(mockPublisher)
	svc := newTestBookingService(st, bus)

	st.On("Create", mock.Anything, mock.Anything).Return(models.NewBooking("LL-1-AAAAA", validInput(), fixedNow), models.SourceRemote, nil)
	bus.On("PublishJSON", mock.Anything, mock.Anything).Return(errors.New("bus down"))

	_, _, err := svc.Book(context.Background(), validInput())
	assert.NoError(t, err)
}

func TestBookingService_Availability(t *testing.T) {
	st := new(mockStore)
	svc := newTestBookingService(st, nil)

	var bookings []models.Booking
	for _, slot := range models.DefaultTimeSlots {
		bookings = append(bookings, at(june5, slot, models.StatusPending))
	}
	bookings = append(bookings,
		at(june5.AddDays(1), "9:00 AM", models.StatusConfirmed),
		at(june5.AddDays(2), "9:00 AM", models.StatusCancelled),
	)
	st.On("ListAll", mock.Anything).Return(bookings, models.SourceRemote)

	view := svc.Availability(context.Background(), nil)
	assert.Equal(t, []string{"2025-06-05", "2025-06-06"}, view.BookedDates)
	assert.Equal(t, []string{"2025-06-05"}, view.FullyBookedDates)
	assert.Equal(t, models.SourceRemote, view.Source)

	pending := svc.Availability(context.Background(), []string{"pending"})
	assert.Equal(t, []string{"2025-06-05"}, pending.BookedDates)
}

func TestBookingService_BookedDates(t *testing.T) {
	st := new(mockStore)
	svc := newTestBookingService(st, nil)

	dates := availability.DateSet{"2025-06-06": {}, "2025-06-05": {}}
	st.On("DatesWithStatus", mock.Anything, availability.PendingOnly).Return(dates, models.SourceFallback)

	got, src := svc.BookedDates(context.Background(), []string{"pending", "bogus"})
	assert.Equal(t, []string{"2025-06-05", "2025-06-06"}, got)
	assert.Equal(t, models.SourceFallback, src)
}

func TestBookingService_SlotsForDate(t *testing.T) {
	st := new(mockStore)
	svc := newTestBookingService(st, nil)

	st.On("SlotsForDateWithStatus", mock.Anything, june5, availability.Blocking).
		Return([]string{"1:00 PM", "9:00 AM", "9:00 AM"}, models.SourceRemote)

	view := svc.SlotsForDate(context.Background(), june5, nil)
	assert.Equal(t, "2025-06-05", view.Date)
	assert.Equal(t, []string{"9:00 AM", "1:00 PM"}, view.Taken)
	assert.Len(t, view.Free, len(models.DefaultTimeSlots)-2)
	assert.Equal(t, "10:00 AM", view.Free[0])
}

func TestBookingService_Find(t *testing.T) {
	st := new(mockStore)
	svc := newTestBookingService(st, nil)

	b := at(june5, "9:00 AM", models.StatusPending)
	st.On("FindByIdentifierOrEmail", mock.Anything, "ana@example.com").Return(&b, models.SourceRemote)
	st.On("FindByIdentifierOrEmail", mock.Anything, "nobody@example.com").Return(nil, models.SourceRemote)

	got, _, err := svc.Find(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	got, _, err = svc.Find(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, _, err = svc.Find(context.Background(), "  ")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestBookingService_Cancel(t *testing.T) {
	st := new(mockStore)
	bus := new(mockPublisher)
	svc := newTestBookingService(st, bus)

	st.On("UpdateStatus", mock.Anything, "LL-1-AAAAA", models.StatusCancelled).Return(true, models.SourceRemote, nil)
	st.On("UpdateStatus", mock.Anything, "LL-404", models.StatusCancelled).Return(false, models.SourceRemote, nil)
	bus.On("PublishJSON", events.EventBookingStatusChanged, mock.MatchedBy(func(p events.BookingEventPayload) bool {
		return p.BookingID == "LL-1-AAAAA" && p.Status == models.StatusCancelled && p.Date == ""
	})).Return(nil).Once()

	found, src, err := svc.Cancel(context.Background(), " LL-1-AAAAA ")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.SourceRemote, src)

	found, _, err = svc.Cancel(context.Background(), "LL-404")
	require.NoError(t, err)
	assert.False(t, found)
	bus.AssertExpectations(t)
}

func TestBookingService_Upcoming(t *testing.T) {
	st := new(mockStore)
	svc := newTestBookingService(st, nil)

	today := models.LocalDateOf(fixedNow)
	bookings := []models.Booking{
		at(today.AddDays(3), "9:00 AM", models.StatusPending),
		at(today, "5:00 PM", models.StatusConfirmed),
		at(today.AddDays(10), "9:00 AM", models.StatusPending),
		at(today.AddDays(1), "9:00 AM", models.StatusCancelled),
	}
	st.On("ListAll", mock.Anything).Return(bookings, models.SourceRemote)

	got, _ := svc.Upcoming(context.Background(), 0)
	require.Len(t, got, 2)
	assert.Equal(t, today, got[0].SelectedDate)

	got, _ = svc.Upcoming(context.Background(), 1000)
	assert.Len(t, got, 3)
}

func TestValidationError_Message(t *testing.T) {
	verr := &ValidationError{}
	verr.add("email", "is required")
	verr.add("fullName", "is required")
	verr.add("email", "ignored second message")
	assert.Equal(t, "invalid booking: email: is required; fullName: is required", verr.Error())
	assert.Nil(t, (&ValidationError{}).orNil())
}

func TestSubmissionLimiter(t *testing.T) {
	lim := new(mockLimiter)
	s := NewSubmissionLimiter(lim, 2, time.Minute, nil)
	ctx := context.Background()

	lim.On("CheckRateLimit", ctx, "submit:1.2.3.4", 2, time.Minute).Return(true, nil).Once()
	lim.On("CheckRateLimit", ctx, "submit:1.2.3.4", 2, time.Minute).Return(false, nil).Once()
	lim.On("CheckRateLimit", ctx, "submit:5.6.7.8", 2, time.Minute).Return(false, errors.New("redis down")).Once()

	assert.True(t, s.Allow(ctx, "1.2.3.4"))
	assert.False(t, s.Allow(ctx, "1.2.3.4"))
	assert.True(t, s.Allow(ctx, "5.6.7.8"))
	lim.AssertExpectations(t)

	var disabled *SubmissionLimiter
	assert.True(t, disabled.Allow(ctx, "anyone"))
}
