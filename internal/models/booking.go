package models

import "time"

type Booking struct {
	ID              string    `json:"id"`
	FullName        string    `json:"fullName"`
	Email           string    `json:"email"`
	ContactNumber   string    `json:"contactNumber"`
	EventType       string    `json:"eventType"`
	EventLocation   string    `json:"eventLocation"`
	AdditionalNotes string    `json:"additionalNotes"`
	SelectedPackage string    `json:"selectedPackage"`
	SelectedDate    LocalDate `json:"selectedDate"`
	SelectedTime    string    `json:"selectedTime"`
	PaymentMethod   string    `json:"paymentMethod"`
	CreatedAt       time.Time `json:"createdAt"`
	Status          string    `json:"status"` // pending, confirmed, cancelled
}

// BookingInput holds the caller supplied fields of a booking.
// ID, CreatedAt and Status are always assigned by the store.
type BookingInput struct {
	FullName        string    `json:"fullName" validate:"required,max=120"`
	Email           string    `json:"email" validate:"required,email,max=254"`
	ContactNumber   string    `json:"contactNumber" validate:"required,max=40"`
	EventType       string    `json:"eventType" validate:"omitempty,oneof=solo group event others"`
	EventLocation   string    `json:"eventLocation" validate:"required,max=200"`
	AdditionalNotes string    `json:"additionalNotes" validate:"max=2000"`
	SelectedPackage string    `json:"selectedPackage" validate:"required"`
	SelectedDate    LocalDate `json:"selectedDate"`
	SelectedTime    string    `json:"selectedTime" validate:"required"`
	PaymentMethod   string    `json:"paymentMethod" validate:"required,oneof=gcash cash"`
}

// NewBooking builds a pending booking from the input.
func NewBooking(id string, in BookingInput, createdAt time.Time) Booking {
	return Booking{
		ID:              id,
		FullName:        in.FullName,
		Email:           in.Email,
		ContactNumber:   in.ContactNumber,
		EventType:       in.EventType,
		EventLocation:   in.EventLocation,
		AdditionalNotes: in.AdditionalNotes,
		SelectedPackage: in.SelectedPackage,
		SelectedDate:    in.SelectedDate,
		SelectedTime:    in.SelectedTime,
		PaymentMethod:   in.PaymentMethod,
		CreatedAt:       createdAt,
		Status:          StatusPending,
	}
}

// Input returns the caller supplied part of the booking.
func (b Booking) Input() BookingInput {
	return BookingInput{
		FullName:        b.FullName,
		Email:           b.Email,
		ContactNumber:   b.ContactNumber,
		EventType:       b.EventType,
		EventLocation:   b.EventLocation,
		AdditionalNotes: b.AdditionalNotes,
		SelectedPackage: b.SelectedPackage,
		SelectedDate:    b.SelectedDate,
		SelectedTime:    b.SelectedTime,
		PaymentMethod:   b.PaymentMethod,
	}
}

func (b Booking) IsCancelled() bool {
	return b.Status == StatusCancelled
}
