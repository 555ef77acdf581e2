package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"studiobook/internal/models"
	"studiobook/internal/service"
	"studiobook/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handler serves the booking form endpoints.
type Handler struct {
	bookings *service.BookingService
	limiter  *service.SubmissionLimiter
	logger   *zerolog.Logger
}

// NewHandler builds the handler set. limiter may be nil to disable
// submission limits.
func NewHandler(bookings *service.BookingService, limiter *service.SubmissionLimiter, logger *zerolog.Logger) *Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Handler{bookings: bookings, limiter: limiter, logger: logger}
}

func (h *Handler) Packages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"packages":        h.bookings.Packages(),
		"event_types":     models.EventTypes,
		"payment_methods": models.PaymentMethods,
	})
}

func (h *Handler) Slots(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"slots": h.bookings.Slots()})
}

func (h *Handler) Availability(c *gin.Context) {
	view := h.bookings.Availability(c.Request.Context(), statusQuery(c))
	c.JSON(http.StatusOK, view)
}

func (h *Handler) BookedDates(c *gin.Context) {
	dates, src := h.bookings.BookedDates(c.Request.Context(), statusQuery(c))
	c.JSON(http.StatusOK, gin.H{"dates": dates, "source": src})
}

func (h *Handler) SlotsForDate(c *gin.Context) {
	date, err := models.ParseLocalDate(c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date format; expected YYYY-MM-DD"})
		return
	}
	c.JSON(http.StatusOK, h.bookings.SlotsForDate(c.Request.Context(), date, statusQuery(c)))
}

func (h *Handler) CreateBooking(c *gin.Context) {
	if !h.limiter.Allow(c.Request.Context(), c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many booking requests, please try again later"})
		return
	}

	var in models.BookingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	booking, src, err := h.bookings.Book(c.Request.Context(), in)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.Fields})
		case errors.Is(err, store.ErrRejected):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, store.ErrSlotUnavailable):
			c.JSON(http.StatusConflict, gin.H{"error": "this time slot has just been booked, please pick another one"})
		default:
			h.logger.Error().Err(err).Msg("create booking failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save the booking"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"booking":   booking,
		"reference": booking.ID,
		"source":    src,
	})
}

func (h *Handler) SearchBooking(c *gin.Context) {
	booking, src, err := h.bookings.Find(c.Request.Context(), c.Query("q"))
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.Fields})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	if booking == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found", "source": src})
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking, "source": src})
}

func (h *Handler) Upcoming(c *gin.Context) {
	days := 0
	if raw := strings.TrimSpace(c.Query("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a number"})
			return
		}
		days = n
	}

	bookings, src := h.bookings.Upcoming(c.Request.Context(), days)
	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "source": src})
}

func (h *Handler) CancelBooking(c *gin.Context) {
	found, src, err := h.bookings.Cancel(c.Request.Context(), c.Param("id"))
	switch {
	case err != nil:
		h.logger.Error().Err(err).Str("booking_id", c.Param("id")).Msg("cancel booking failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not cancel the booking"})
	case !found:
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found", "source": src})
	default:
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": models.StatusCancelled, "source": src})
	}
}

// statusQuery reads ?status=a,b. The service falls back to its default hold
// when nothing valid is given.
func statusQuery(c *gin.Context) []string {
	raw := c.Query("status")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
