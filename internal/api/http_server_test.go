package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"studiobook/internal/config"
	"studiobook/internal/database"
	"studiobook/internal/models"
	"studiobook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var testDate = models.LocalDate{Year: 2030, Month: time.January, Day: 15}

func TestCreateAndGetBooking(t *testing.T) {
	ts := newTestServer(t, testAPIConfig())

	resp := postJSON(t, ts.URL+"/api/v1/bookings", bookingInput("9:00 AM"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Booking models.Booking `json:"booking"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotEmpty(t, created.Booking.ID)
	assert.Equal(t, models.StatusPending, created.Booking.Status)
	assert.Equal(t, testDate, created.Booking.SelectedDate)

	getResp, err := http.Get(ts.URL + "/api/v1/bookings/" + created.Booking.ID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
	assert.NotEmpty(t, getResp.Header.Get("X-Request-ID"))
}

func TestCreateBooking_SlotTaken(t *testing.T) {
	ts := newTestServer(t, testAPIConfig())

	first := postJSON(t, ts.URL+"/api/v1/bookings", bookingInput("9:00 AM"))
	first.Body.Close()
	require.Equal(t, http.StatusCreated, first.StatusCode)

	second := postJSON(t, ts.URL+"/api/v1/bookings", bookingInput("9:00 AM"))
	defer second.Body.Close()
	assert.Equal(t, http.StatusConflict, second.StatusCode)
}

func TestCreateBooking_Invalid(t *testing.T) {
	ts := newTestServer(t, testAPIConfig())

	in := bookingInput("7:00 PM")
	in.Email = ""
	resp := postJSON(t, ts.URL+"/api/v1/bookings", in)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Fields, "email")
	assert.Contains(t, body.Fields, "selectedTime")
}

func TestCreateBooking_UnknownField(t *testing.T) {
	ts := newTestServer(t, testAPIConfig())

	resp, err := http.Post(ts.URL+"/api/v1/bookings", "application/json", bytes.NewBufferString(`{"fullName":"A","bogus":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListBookings_ByEmail(t *testing.T) {
	ts := newTestServer(t, testAPIConfig())

	postJSON(t, ts.URL+"/api/v1/bookings", bookingInput("9:00 AM")).Body.Close()
	other := bookingInput("10:00 AM")
	other.Email = "other@example.com"
	postJSON(t, ts.URL+"/api/v1/bookings", other).Body.Close()

	var all, filtered struct {
		Bookings []models.Booking `json:"bookings"`
	}
	getJSON(t, ts.URL+"/api/v1/bookings", &all)
	getJSON(t, ts.URL+"/api/v1/bookings?email=other@example.com", &filtered)

	assert.Len(t, all.Bookings, 2)
	require.Len(t, filtered.Bookings, 1)
	assert.Equal(t, "10:00 AM", filtered.Bookings[0].SelectedTime)
}

func TestOccupiedDatesAndSlots(t *testing.T) {
	ts := newTestServer(t, testAPIConfig())

	b := createBooking(t, ts.URL, "9:00 AM")
	createBooking(t, ts.URL, "1:00 PM")
	patchStatus(t, ts.URL, b.ID, models.StatusConfirmed).Body.Close()

	var dates struct {
		Dates []string `json:"dates"`
	}
	getJSON(t, ts.URL+"/api/v1/bookings/dates", &dates)
	assert.Equal(t, []string{"2030-01-15"}, dates.Dates)

	var slots struct {
		Date  string   `json:"date"`
		Slots []string `json:"slots"`
	}
	getJSON(t, ts.URL+"/api/v1/bookings/slots?date=2030-01-15&status=pending", &slots)
	assert.Equal(t, "2030-01-15", slots.Date)
	assert.Equal(t, []string{"1:00 PM"}, slots.Slots)

	getJSON(t, ts.URL+"/api/v1/bookings/slots?date=2030-01-15&status=pending,completed", &slots)
	assert.ElementsMatch(t, []string{"9:00 AM", "1:00 PM"}, slots.Slots)
}

func TestOccupiedSlots_BadDate(t *testing.T) {
	ts := newTestServer(t, testAPIConfig())

	for _, q := range []string{"", "?date=2030-02-30", "?date=15-01-2030"} {
		resp, err := http.Get(ts.URL + "/api/v1/bookings/slots" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestUpdateStatus(t *testing.T) {
	ts := newTestServer(t, testAPIConfig())
	b := createBooking(t, ts.URL, "9:00 AM")

	resp := patchStatus(t, ts.URL, b.ID, "canceled")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Booking models.Booking `json:"booking"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, models.StatusCancelled, body.Booking.Status)

	back := patchStatus(t, ts.URL, b.ID, models.StatusPending)
	back.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, back.StatusCode)

	unknown := patchStatus(t, ts.URL, b.ID, "rescheduled")
	unknown.Body.Close()
	assert.Equal(t, http.StatusBadRequest, unknown.StatusCode)

	missing := patchStatus(t, ts.URL, "LL-0-NOPE0", models.StatusConfirmed)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestCancelledSlotCanBeRebooked(t *testing.T) {
	ts := newTestServer(t, testAPIConfig())
	b := createBooking(t, ts.URL, "9:00 AM")
	patchStatus(t, ts.URL, b.ID, models.StatusCancelled).Body.Close()

	resp := postJSON(t, ts.URL+"/api/v1/bookings", bookingInput("9:00 AM"))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestDeleteBooking(t *testing.T) {
	ts := newTestServer(t, testAPIConfig())
	b := createBooking(t, ts.URL, "9:00 AM")

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/bookings/"+b.ID, http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	again, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	again.Body.Close()
	assert.Equal(t, http.StatusNotFound, again.StatusCode)
}

func TestExport(t *testing.T) {
	ts := newTestServer(t, testAPIConfig())
	createBooking(t, ts.URL, "9:00 AM")

	resp, err := http.Get(ts.URL + "/api/v1/bookings/export.xlsx?from=2030-01-10&to=2030-01-20")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "bookings_2030-01-10_to_2030-01-20.xlsx")

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Schedule")
}

func TestExport_BadRange(t *testing.T) {
	ts := newTestServer(t, testAPIConfig())

	for _, q := range []string{"?from=2030-01-20&to=2030-01-10", "?from=bogus", "?from=2030-01-01&to=2031-01-01"} {
		resp, err := http.Get(ts.URL + "/api/v1/bookings/export.xlsx" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, testAPIConfig())

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadyz(t *testing.T) {
	db := newTestDB(t)
	server := newTestHTTPServer(testAPIConfig(), db)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, db.Close())
	resp, err = http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHTTPAuth(t *testing.T) {
	cfg := testAPIConfig()
	cfg.Auth = config.APIAuthConfig{
		Enabled:      true,
		HeaderAPIKey: "x-api-key",
		HeaderExtra:  "x-api-extra",
		APIKeys: []config.APIClientKey{
			{Key: "reader", Extra: "r", Permissions: []string{PermReadBookings}},
			{Key: "site", Extra: "s", Permissions: []string{PermWriteBookings}},
			{Key: "admin", Extra: "a", Permissions: []string{PermAdminBookings}},
		},
	}
	ts := newTestServer(t, cfg)

	do := func(method, path, key, extra string, body any) int {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req, err := http.NewRequest(method, ts.URL+path, &buf)
		require.NoError(t, err)
		if key != "" {
			req.Header.Set("x-api-key", key)
			req.Header.Set("x-api-extra", extra)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/api/v1/bookings", "", "", nil))
	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/api/v1/bookings", "reader", "wrong", nil))
	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/api/v1/bookings", "nobody", "x", nil))
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/v1/bookings", "reader", "r", nil))
	assert.Equal(t, http.StatusForbidden, do(http.MethodPost, "/api/v1/bookings", "reader", "r", bookingInput("9:00 AM")))
	assert.Equal(t, http.StatusCreated, do(http.MethodPost, "/api/v1/bookings", "site", "s", bookingInput("9:00 AM")))
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/v1/bookings/dates", "site", "s", nil))
	assert.Equal(t, http.StatusForbidden, do(http.MethodGet, "/api/v1/bookings/export.xlsx", "site", "s", nil))
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/v1/bookings/export.xlsx", "admin", "a", nil))
	assert.Equal(t, http.StatusForbidden, do(http.MethodDelete, "/api/v1/bookings/LL-1-X", "site", "s", nil))
	assert.Equal(t, http.StatusNotFound, do(http.MethodDelete, "/api/v1/bookings/LL-1-X", "admin", "a", nil))

	// probes bypass auth
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/healthz", "", "", nil))
}

func TestHTTPRateLimit(t *testing.T) {
	cfg := testAPIConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 1}
	ts := newTestServer(t, cfg)

	resp1, err := http.Get(ts.URL + "/api/v1/bookings")
	require.NoError(t, err)
	resp1.Body.Close()
	assert.Equal(t, http.StatusOK, resp1.StatusCode)

	resp2, err := http.Get(ts.URL + "/api/v1/bookings")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp2.StatusCode)
}

func TestHTTPServer_Shutdown(t *testing.T) {
	server := newTestHTTPServer(testAPIConfig(), newTestDB(t))
	assert.NoError(t, server.Shutdown(context.Background()))
}

func TestStatusFilter(t *testing.T) {
	tests := map[string][]string{
		"":                          {"confirmed", "pending"},
		"?status=pending":           {"pending"},
		"?status=bogus":             {"confirmed", "pending"},
		"?status=completed":         {"confirmed"},
		"?status=cancelled,pending": {"cancelled", "pending"},
	}
	for q, want := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/dates"+q, http.NoBody)
		assert.Equal(t, want, statusFilter(r), q)
	}
}

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, splitCSV(""))
	assert.Equal(t, []string{"a"}, splitCSV("a"))
	assert.Equal(t, []string{"a", "b"}, splitCSV("a, b,,"))
}

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true, Port: 0},
		Auth:    config.APIAuthConfig{Enabled: false},
	}
}

func newTestServer(t *testing.T, cfg config.APIConfig) *httptest.Server {
	t.Helper()
	server := newTestHTTPServer(cfg, newTestDB(t))
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newTestHTTPServer(cfg config.APIConfig, db *database.DB) *HTTPServer {
	logger := zerolog.New(io.Discard)
	svc := service.NewReservationService(db, nil, nil, models.DefaultTimeSlots, &logger)
	return NewHTTPServer(&cfg, svc, &logger)
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(path, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func bookingInput(slot string) models.BookingInput {
	return models.BookingInput{
		FullName:        "Ana Cruz",
		Email:           "ana@example.com",
		ContactNumber:   "09171234567",
		EventType:       "solo",
		EventLocation:   "Studio A",
		SelectedPackage: "solo",
		SelectedDate:    testDate,
		SelectedTime:    slot,
		PaymentMethod:   "gcash",
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, url)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func createBooking(t *testing.T, baseURL, slot string) models.Booking {
	t.Helper()
	resp := postJSON(t, baseURL+"/api/v1/bookings", bookingInput(slot))
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var body struct {
		Booking models.Booking `json:"booking"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Booking
}

func patchStatus(t *testing.T, baseURL, id, status string) *http.Response {
	t.Helper()
	raw, err := json.Marshal(statusRequest{Status: status})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPatch, baseURL+"/api/v1/bookings/"+id+"/status", bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}
