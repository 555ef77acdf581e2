package service

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"studiobook/internal/models"

	"github.com/go-playground/validator/v10"
)

// ValidationError lists every invalid field of a booking request, keyed by
// the field's JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid booking: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// BookingRules are the checks a booking request passes before it reaches
// the store.
type BookingRules struct {
	Slots          []string
	Packages       []models.Package
	MaxAdvanceDays int
	AllowPast      bool
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		return name
	})
	return v
}

// Validate trims in and checks it against the rules for a booking made on
// today.
func (r BookingRules) Validate(in *models.BookingInput, today models.LocalDate) error {
	normalizeInput(in)

	verr := &ValidationError{}
	if err := validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			verr.add(fe.Field(), fieldMessage(fe))
		}
	}

	switch {
	case in.SelectedDate.IsZero():
		verr.add("selectedDate", "is required")
	case !r.AllowPast && in.SelectedDate.Before(today):
		verr.add("selectedDate", "cannot be in the past")
	case r.MaxAdvanceDays > 0 && in.SelectedDate.After(today.AddDays(r.MaxAdvanceDays)):
		verr.add("selectedDate", fmt.Sprintf("must be within %d days", r.MaxAdvanceDays))
	}

	if in.SelectedTime != "" && !models.ContainsSlot(r.Slots, in.SelectedTime) {
		verr.add("selectedTime", "is not a bookable time slot")
	}
	if in.SelectedPackage != "" {
		if _, ok := models.FindPackage(r.Packages, in.SelectedPackage); !ok {
			verr.add("selectedPackage", "is not a known package")
		}
	}
	return verr.orNil()
}

func normalizeInput(in *models.BookingInput) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.ContactNumber = strings.TrimSpace(in.ContactNumber)
	in.EventType = strings.ToLower(strings.TrimSpace(in.EventType))
	in.EventLocation = strings.TrimSpace(in.EventLocation)
	in.AdditionalNotes = strings.TrimSpace(in.AdditionalNotes)
	in.SelectedPackage = strings.TrimSpace(in.SelectedPackage)
	in.SelectedTime = strings.TrimSpace(in.SelectedTime)
	in.PaymentMethod = strings.ToLower(strings.TrimSpace(in.PaymentMethod))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}
