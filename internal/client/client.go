// Package client talks to the remote booking service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"studiobook/internal/models"

	"github.com/redis/go-redis/v9"
)

const cachePrefix = "studiobook:remote:"

var (
	ErrNotFound          = errors.New("remote: booking not found")
	ErrSlotTaken         = errors.New("remote: time slot already booked")
	ErrInvalidTransition = errors.New("remote: invalid status transition")
)

// StatusError is returned for unexpected HTTP statuses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Message)
}

// BookingClient is the HTTP client for the booking service API.
type BookingClient struct {
	baseURL    string
	apiKey     string
	apiExtra   string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewBookingClient constructs a client with baseURL, API key and extra header.
func NewBookingClient(baseURL, apiKey, apiExtra string, timeout time.Duration) *BookingClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BookingClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiExtra:   apiExtra,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UseRedisCache configures optional Redis caching for the availability lookups.
func (c *BookingClient) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

type bookingEnvelope struct {
	Booking models.Booking `json:"booking"`
}

type bookingsEnvelope struct {
	Bookings []models.Booking `json:"bookings"`
}

type datesEnvelope struct {
	Dates []string `json:"dates"`
}

type slotsEnvelope struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// ListBookings returns every booking the service holds.
func (c *BookingClient) ListBookings(ctx context.Context) ([]models.Booking, error) {
	var resp bookingsEnvelope
	if err := c.doGet(ctx, c.baseURL+"/api/v1/bookings", &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Bookings), nil
}

// FindByEmail returns the bookings made with email.
func (c *BookingClient) FindByEmail(ctx context.Context, email string) ([]models.Booking, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bookings?email=%s", c.baseURL, url.QueryEscape(email))
	var resp bookingsEnvelope
	if err := c.doGet(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Bookings), nil
}

// GetBooking fetches one booking by reference. A 404 yields ErrNotFound.
func (c *BookingClient) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bookings/%s", c.baseURL, url.PathEscape(id))
	var resp bookingEnvelope
	if err := c.doGet(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return &resp.Booking, nil
}

// CreateBooking asks the service to insert a booking. A 409 yields ErrSlotTaken.
func (c *BookingClient) CreateBooking(ctx context.Context, in models.BookingInput) (models.Booking, error) {
	var resp bookingEnvelope
	if err := c.doSend(ctx, http.MethodPost, c.baseURL+"/api/v1/bookings", in, &resp); err != nil {
		return models.Booking{}, err
	}
	c.invalidateCache(ctx)
	return resp.Booking, nil
}

// UpdateStatus sets a booking's status. A 404 yields ErrNotFound.
func (c *BookingClient) UpdateStatus(ctx context.Context, id, status string) (models.Booking, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bookings/%s/status", c.baseURL, url.PathEscape(id))
	var resp bookingEnvelope
	if err := c.doSend(ctx, http.MethodPatch, endpoint, statusRequest{Status: status}, &resp); err != nil {
		return models.Booking{}, err
	}
	c.invalidateCache(ctx)
	return resp.Booking, nil
}

// OccupiedDates returns the dates holding a booking with one of statuses.
func (c *BookingClient) OccupiedDates(ctx context.Context, statuses []string) ([]string, error) {
	status := strings.Join(statuses, ",")
	endpoint := fmt.Sprintf("%s/api/v1/bookings/dates?status=%s", c.baseURL, url.QueryEscape(status))
	cacheKey := cachePrefix + "dates:" + status
	var resp datesEnvelope

	if c.readCache(ctx, cacheKey, &resp) {
		return nonNil(resp.Dates), nil
	}

	if err := c.doGet(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, resp)
	return nonNil(resp.Dates), nil
}

// OccupiedSlots returns the slots taken on date by bookings with one of statuses.
func (c *BookingClient) OccupiedSlots(ctx context.Context, date models.LocalDate, statuses []string) ([]string, error) {
	status := strings.Join(statuses, ",")
	endpoint := fmt.Sprintf("%s/api/v1/bookings/slots?date=%s&status=%s",
		c.baseURL, url.QueryEscape(date.String()), url.QueryEscape(status))
	cacheKey := cachePrefix + "slots:" + date.String() + ":" + status
	var resp slotsEnvelope

	if c.readCache(ctx, cacheKey, &resp) {
		return nonNil(resp.Slots), nil
	}

	if err := c.doGet(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, resp)
	return nonNil(resp.Slots), nil
}

func (c *BookingClient) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *BookingClient) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

// invalidateCache drops every cached lookup after a write.
func (c *BookingClient) invalidateCache(ctx context.Context) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	iter := c.redis.Scan(ctx, 0, cachePrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		_ = c.redis.Del(ctx, keys...).Err()
	}
}

func (c *BookingClient) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *BookingClient) doSend(ctx context.Context, method, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *BookingClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return ErrSlotTaken
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return ErrInvalidTransition
	case resp.StatusCode >= 300:
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsRejection reports whether err is a 4xx answer about the request itself,
// other than the mapped sentinels. Auth failures, throttling and request
// timeouts are about this client or the moment, not the booking, and are
// not rejections.
func IsRejection(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) || se.Code < 400 || se.Code >= 500 {
		return false
	}
	switch se.Code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return true
}

func errorMessage(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&payload); err != nil {
		return ""
	}
	return payload.Error
}

func (c *BookingClient) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.apiExtra != "" {
		req.Header.Set("x-api-extra", c.apiExtra)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
