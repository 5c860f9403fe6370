package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/cache"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/repository/memory"
	"github.com/smarttransit/seat-reservation/internal/services"
	"github.com/smarttransit/seat-reservation/pkg/jwt"
	"github.com/smarttransit/seat-reservation/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret-key-123456789"

type testServer struct {
	router *gin.Engine
	store  *memory.Store
	jwt    *jwt.Service
	date   time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	now := time.Now()
	store := memory.NewStore()
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 2)
	store.AddTrip(models.TripInstance{
		ID:                "trip-1",
		RouteOrigin:       "Colombo",
		RouteDestination:  "Kandy",
		TravelDate:        date,
		DepartureDatetime: date.Add(6 * time.Hour),
		ArrivalDatetime:   date.Add(9 * time.Hour),
		BasePrice:         1500,
		Status:            models.TripStatusActive,
	})
	store.AddAssignment(models.VehicleAssignment{
		ID: "asg-1", TripID: "trip-1", PlateNumber: "WP-1111", CompanyName: "HillExpress", TotalSeats: 20, Status: models.TripStatusActive,
	})

	idem := cache.NewMemoryIdempotencyStore(time.Hour)
	t.Cleanup(idem.Stop)

	pricing := services.NewPricingService(store, logger)
	coordinator := services.NewReservationCoordinator(store, store, store, pricing, nil, logger)
	bookingService := services.NewBookingService(coordinator, store, idem, nil, validator.NewPhoneValidator(), "LKR", logger)
	reconciler := services.NewReconciliationService(store, nil, time.Hour, false, logger)
	jwtService := jwt.NewService(testSecret, time.Hour)

	router := gin.New()
	rt := &Router{
		Health: NewHealthHandler("test", map[string]HealthCheck{
			"store": func(ctx context.Context) error { return nil },
		}),
		Search:  NewSearchHandler(services.NewSearchService(store, logger), logger),
		Booking: NewBookingHandler(bookingService, logger),
		Admin:   NewAdminHandler(services.NewCronService(reconciler, "0 0 3 * * *", logger), logger),
		JWT:     jwtService,
	}
	rt.Register(router)

	return &testServer{router: router, store: store, jwt: jwtService, date: date}
}

func (s *testServer) token(t *testing.T, userID uuid.UUID, roles ...string) string {
	t.Helper()
	token, err := s.jwt.GenerateAccessToken(userID, "rider@example.com", "+94712345678", roles)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func bookingBody(seat int) map[string]interface{} {
	return map[string]interface{}{
		"schedule_id":       "trip-1",
		"bus_assignment_id": "asg-1",
		"seat_number":       seat,
		"passenger": map[string]interface{}{
			"first_name":     "Sunil",
			"last_name":      "Silva",
			"email":          "sunil@example.com",
			"phone":          "0771234567",
			"age":            41,
			"gender":         "M",
			"nationality":    "Sri Lankan",
			"boarding_point": "Pettah",
			"dropping_point": "Kandy Clock Tower",
		},
	}
}

type errorBody struct {
	Success bool `json:"success"`
	Error   struct {
		Kind    string `json:"kind"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func createBooking(t *testing.T, s *testServer, seat int, headers map[string]string) models.BookingConfirmation {
	t.Helper()
	w := s.do(http.MethodPost, "/api/v1/bookings", bookingBody(seat), headers)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var confirmation models.BookingConfirmation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &confirmation))
	return confirmation
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	failing := NewHealthHandler("test", map[string]HealthCheck{
		"database": func(ctx context.Context) error { return errors.New("connection refused") },
	})
	router := gin.New()
	router.GET("/health", failing.Health)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestSearchTrips(t *testing.T) {
	s := newTestServer(t)
	date := s.date.Format(models.DateLayout)

	t.Run("Found", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/trips/search?origin=colombo&destination=kandy&date="+date, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp models.SearchTripsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
		require.Len(t, resp.Trips[0].Buses, 1)
		assert.Equal(t, 20, resp.Trips[0].Buses[0].RemainingSeats)
	})

	t.Run("Unknown route", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/trips/search?origin=Galle&destination=Jaffna&date="+date, nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, "NO_TRIPS_FOUND", body.Error.Code)
		assert.Contains(t, body.Error.Message, "don't have buses operating")
	})

	t.Run("No trips that day", func(t *testing.T) {
		other := s.date.AddDate(0, 0, 1).Format(models.DateLayout)
		w := s.do(http.MethodGet, "/api/v1/trips/search?origin=Colombo&destination=Kandy&date="+other, nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, decodeError(t, w).Error.Message, "No buses available")
	})

	t.Run("Bad date", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/trips/search?origin=Colombo&destination=Kandy&date=2024-01-01", nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Missing query", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/trips/search?origin=Colombo", nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_REQUEST", decodeError(t, w).Error.Code)
	})
}

func TestCreateBookingHandler(t *testing.T) {
	t.Run("Guest booking", func(t *testing.T) {
		s := newTestServer(t)
		confirmation := createBooking(t, s, 4, map[string]string{"User-Agent": "Mozilla/5.0 (X11; Linux x86_64) Chrome/120.0"})

		assert.True(t, confirmation.Success)
		assert.Equal(t, 4, confirmation.SeatNumber)
		assert.Equal(t, 1500.0, confirmation.PricePaid)
		assert.Equal(t, "0771234567", confirmation.Contact.Phone)

		res, err := s.store.GetReservation(context.Background(), confirmation.BookingID)
		require.NoError(t, err)
		assert.True(t, res.IsGuest())
	})

	t.Run("Seat conflict is 409", func(t *testing.T) {
		s := newTestServer(t)
		createBooking(t, s, 4, nil)

		w := s.do(http.MethodPost, "/api/v1/bookings", bookingBody(4), nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		body := decodeError(t, w)
		assert.False(t, body.Success)
		assert.Equal(t, "CONFLICT", body.Error.Kind)
		assert.Equal(t, "SEAT_ALREADY_TAKEN", body.Error.Code)
	})

	t.Run("Seat out of range is 400", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(http.MethodPost, "/api/v1/bookings", bookingBody(21), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "SEAT_OUT_OF_RANGE", decodeError(t, w).Error.Code)
	})

	t.Run("Unknown trip is 404", func(t *testing.T) {
		s := newTestServer(t)
		body := bookingBody(1)
		body["schedule_id"] = "trip-404"
		w := s.do(http.MethodPost, "/api/v1/bookings", body, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "TRIP_NOT_FOUND", decodeError(t, w).Error.Code)
	})

	t.Run("Malformed body is 400", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(http.MethodPost, "/api/v1/bookings", map[string]interface{}{"schedule_id": "trip-1"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Invalid token is rejected", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(http.MethodPost, "/api/v1/bookings", bookingBody(1), bearer("not.a.token"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Idempotent retry", func(t *testing.T) {
		s := newTestServer(t)
		headers := map[string]string{IdempotencyKeyHeader: "abc-123"}
		first := createBooking(t, s, 9, headers)
		second := createBooking(t, s, 9, headers)
		assert.Equal(t, first.BookingID, second.BookingID)
	})

	t.Run("Key reused for another seat", func(t *testing.T) {
		s := newTestServer(t)
		headers := bearer(s.token(t, uuid.New(), "rider"))
		headers[IdempotencyKeyHeader] = "abc-456"
		createBooking(t, s, 9, headers)

		w := s.do(http.MethodPost, "/api/v1/bookings", bookingBody(10), headers)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "IDEMPOTENCY_KEY_REUSED", decodeError(t, w).Error.Code)
	})
}

func TestBookingLifecycle(t *testing.T) {
	s := newTestServer(t)
	owner := uuid.New()
	ownerAuth := bearer(s.token(t, owner, "rider"))
	adminAuth := bearer(s.token(t, uuid.New(), "admin"))
	strangerAuth := bearer(s.token(t, uuid.New(), "rider"))

	confirmation := createBooking(t, s, 7, ownerAuth)
	path := "/api/v1/bookings/" + confirmation.BookingID.String()

	// Reads
	w := s.do(http.MethodGet, path, nil, ownerAuth)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)

	w = s.do(http.MethodGet, path, nil, strangerAuth)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, w).Error.Code)

	w = s.do(http.MethodGet, "/api/v1/bookings/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/me/bookings", nil, ownerAuth)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	// Ticket
	w = s.do(http.MethodGet, path+"/ticket", nil, ownerAuth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), fmt.Sprintf("e-ticket-%s.pdf", confirmation.BookingID))

	// Rider update
	passenger := bookingBody(7)["passenger"].(map[string]interface{})
	passenger["dropping_point"] = "Peradeniya"
	w = s.do(http.MethodPut, path+"/rider", passenger, ownerAuth)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Peradeniya")

	// Payment is admin only
	payment := map[string]string{"payment_reference": "PG-9911"}
	w = s.do(http.MethodPatch, path+"/payment", payment, ownerAuth)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPatch, path+"/payment", payment, adminAuth)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"payment_state":"PAID"`)

	w = s.do(http.MethodPatch, path+"/payment", payment, adminAuth)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_PAID", decodeError(t, w).Error.Code)

	// Cancellation
	w = s.do(http.MethodPost, path+"/cancel", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, path+"/cancel", nil, strangerAuth)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, path+"/cancel", nil, ownerAuth)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, path+"/cancel", nil, ownerAuth)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_CANCELLED", decodeError(t, w).Error.Code)

	// The seat is free again
	w = s.do(http.MethodGet, "/api/v1/trips/trip-1/assignments/asg-1/seats", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var seatMap models.SeatMap
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &seatMap))
	assert.Empty(t, seatMap.TakenSeats)
	assert.Equal(t, 20, seatMap.RemainingSeats)
}

func TestAdminReconcile(t *testing.T) {
	s := newTestServer(t)
	adminAuth := bearer(s.token(t, uuid.New(), "admin"))

	w := s.do(http.MethodPost, "/api/v1/admin/reconcile", nil, bearer(s.token(t, uuid.New(), "rider")))
	assert.Equal(t, http.StatusForbidden, w.Code)

	require.True(t, s.store.SetRemainingSeats("asg-1", 18))
	w = s.do(http.MethodPost, "/api/v1/admin/reconcile", nil, adminAuth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"clean":false`)
	assert.Contains(t, w.Body.String(), `"assignment_id":"asg-1"`)

	w = s.do(http.MethodGet, "/api/v1/admin/reconcile", nil, adminAuth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"last_run_clean":false`)
}

func TestRespondError_HidesInternalCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	router := gin.New()
	router.GET("/boom", func(c *gin.Context) {
		respondError(c, logger, errors.New("pq: password authentication failed"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	assert.Equal(t, "INTERNAL", decodeError(t, w).Error.Code)
}
