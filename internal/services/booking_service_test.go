package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/smarttransit/seat-reservation/internal/cache"
	"github.com/smarttransit/seat-reservation/internal/events"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/repository/memory"
	"github.com/smarttransit/seat-reservation/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookingFixture struct {
	store       *memory.Store
	idempotency *cache.MemoryIdempotencyStore
	publisher   *recordingPublisher
	service     *BookingService
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()

	logger := newTestLogger()
	store := newTestStore(time.Now())
	pub := &recordingPublisher{}
	idem := cache.NewMemoryIdempotencyStore(time.Hour)
	t.Cleanup(idem.Stop)

	coordinator := NewReservationCoordinator(store, store, store, NewPricingService(store, logger), pub, logger)
	service := NewBookingService(coordinator, store, idem, pub, validator.NewPhoneValidator(), "LKR", logger)

	return &bookingFixture{store: store, idempotency: idem, publisher: pub, service: service}
}

func bookingRequest(seat int) *models.CreateBookingRequest {
	return &models.CreateBookingRequest{
		TripID:       testTripID,
		AssignmentID: testAssignmentID,
		SeatNumber:   seat,
		Passenger:    testPassenger(),
	}
}

func riderIdentity() *models.Identity {
	return &models.Identity{UserID: uuid.New(), Email: "kamal@example.com", Phone: "+94771112233", Roles: []string{"rider"}}
}

func adminIdentity() *models.Identity {
	return &models.Identity{UserID: uuid.New(), Roles: []string{"admin"}}
}

func TestCreateBooking_Guest(t *testing.T) {
	f := newBookingFixture(t)

	confirmation, err := f.service.CreateBooking(context.Background(), bookingRequest(12), nil, models.BookingSourceWeb, "")
	require.NoError(t, err)

	assert.True(t, confirmation.Success)
	assert.Equal(t, 12, confirmation.SeatNumber)
	assert.Equal(t, "LKR", confirmation.Currency)
	assert.Equal(t, 20000.0, confirmation.PricePaid)
	assert.Equal(t, "Colombo", confirmation.Schedule.Origin)
	assert.Equal(t, "NB-1234", confirmation.Bus.PlateNumber)
	assert.Equal(t, "SuperLine", confirmation.Bus.Company)
	assert.Equal(t, models.PaymentPending, confirmation.PaymentState)
	assert.True(t, confirmation.RiderAttached)
	require.NotNil(t, confirmation.Contact)
	assert.Equal(t, models.RiderGuest, confirmation.Contact.Kind)
	assert.Equal(t, "Nimal Perera", confirmation.Contact.Name)
}

func TestCreateBooking_RegisteredWithPromo(t *testing.T) {
	f := newBookingFixture(t)
	identity := riderIdentity()

	req := bookingRequest(2)
	req.PromoCode = "  save10 "

	confirmation, err := f.service.CreateBooking(context.Background(), req, identity, models.BookingSourceMobile, "")
	require.NoError(t, err)

	require.NotNil(t, confirmation.PromoCode)
	assert.Equal(t, "SAVE10", *confirmation.PromoCode)
	assert.Equal(t, 1000.0, confirmation.Discount)
	assert.Equal(t, 19000.0, confirmation.PricePaid)
	assert.True(t, confirmation.PromoUsageRecorded)
	assert.Equal(t, "kamal@example.com", confirmation.Contact.Email)

	res, err := f.store.GetReservation(context.Background(), confirmation.BookingID)
	require.NoError(t, err)
	assert.True(t, res.OwnedBy(identity.UserID))
	assert.Equal(t, models.BookingSourceMobile, res.BookingSource)
}

func TestCreateBooking_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *models.CreateBookingRequest)
		want   error
	}{
		{"Bad email", func(r *models.CreateBookingRequest) { r.Passenger.Email = "not-an-email" }, models.ErrInvalidRequest},
		{"Bad phone", func(r *models.CreateBookingRequest) { r.Passenger.Phone = "12ab" }, models.ErrInvalidRequest},
		{"Age out of range", func(r *models.CreateBookingRequest) { r.Passenger.Age = 0 }, models.ErrInvalidRequest},
		{"Unknown gender", func(r *models.CreateBookingRequest) { r.Passenger.Gender = "X" }, models.ErrInvalidRequest},
		{"Blank name", func(r *models.CreateBookingRequest) { r.Passenger.FirstName = "  " }, models.ErrInvalidRequest},
		{"Missing trip", func(r *models.CreateBookingRequest) { r.TripID = "" }, models.ErrInvalidRequest},
		{"Promo code too long", func(r *models.CreateBookingRequest) { r.PromoCode = "ABCDEFGHIJKLMNOPQRSTU" }, models.ErrInvalidRequest},
		{"Unknown promo", func(r *models.CreateBookingRequest) { r.PromoCode = "NOPE" }, models.ErrPromoNotFound},
		{"Expired promo", func(r *models.CreateBookingRequest) { r.PromoCode = "OLD" }, models.ErrPromoExpired},
		{"Unknown trip", func(r *models.CreateBookingRequest) { r.TripID = "trip-404" }, models.ErrTripNotFound},
		{"Seat out of range", func(r *models.CreateBookingRequest) { r.SeatNumber = 41 }, models.ErrSeatOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBookingFixture(t)
			req := bookingRequest(1)
			tt.mutate(req)

			_, err := f.service.CreateBooking(context.Background(), req, nil, models.BookingSourceWeb, "")
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 40, remainingSeats(t, f.store, testAssignmentID))
		})
	}
}

func TestCreateBooking_IdempotentReplay(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	first, err := f.service.CreateBooking(ctx, bookingRequest(5), nil, models.BookingSourceWeb, "key-1")
	require.NoError(t, err)

	second, err := f.service.CreateBooking(ctx, bookingRequest(5), nil, models.BookingSourceWeb, "key-1")
	require.NoError(t, err)

	assert.Equal(t, first.BookingID, second.BookingID)
	assert.Equal(t, 39, remainingSeats(t, f.store, testAssignmentID))
	assert.Len(t, f.publisher.ofType(events.ReservationCommitted), 1)

	// The same key from a registered rider is a different request
	_, err = f.service.CreateBooking(ctx, bookingRequest(5), riderIdentity(), models.BookingSourceWeb, "key-1")
	assert.ErrorIs(t, err, models.ErrSeatAlreadyTaken)
}

func TestCreateBooking_IdempotencyKeyInProgress(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	identity := riderIdentity()

	req := bookingRequest(5)
	details, err := f.service.validatePassenger(req.Passenger)
	require.NoError(t, err)
	fingerprint, err := requestFingerprint(req, details)
	require.NoError(t, err)

	key := scopedIdempotencyKey(identity, fingerprint, "busy")
	entry, err := f.idempotency.Acquire(ctx, key, fingerprint)
	require.NoError(t, err)
	require.Nil(t, entry)

	_, err = f.service.CreateBooking(ctx, req, identity, models.BookingSourceWeb, "busy")
	assert.ErrorIs(t, err, models.ErrRequestInProgress)

	// A different body under the in-flight key is a reuse, not a retry
	_, err = f.service.CreateBooking(ctx, bookingRequest(6), identity, models.BookingSourceWeb, "busy")
	assert.ErrorIs(t, err, models.ErrIdempotencyKeyReused)
	assert.Equal(t, 40, remainingSeats(t, f.store, testAssignmentID))
}

func TestCreateBooking_GuestsSharingAKeyBookSeparately(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	first, err := f.service.CreateBooking(ctx, bookingRequest(12), nil, models.BookingSourceWeb, "retry-1")
	require.NoError(t, err)

	other := bookingRequest(13)
	other.Passenger.FirstName = "Sunil"
	other.Passenger.LastName = "Silva"
	other.Passenger.Email = "sunil@example.com"
	second, err := f.service.CreateBooking(ctx, other, nil, models.BookingSourceMobile, "retry-1")
	require.NoError(t, err)

	assert.NotEqual(t, first.BookingID, second.BookingID)
	assert.Equal(t, 13, second.SeatNumber)
	require.NotNil(t, second.Contact)
	assert.Equal(t, "Sunil Silva", second.Contact.Name)
	assert.Equal(t, "sunil@example.com", second.Contact.Email)

	taken, err := f.store.ListTakenSeats(ctx, testAssignmentID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{12, 13}, taken)
	assert.Equal(t, 38, remainingSeats(t, f.store, testAssignmentID))
}

func TestCreateBooking_IdempotencyKeyReused(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	identity := riderIdentity()

	first, err := f.service.CreateBooking(ctx, bookingRequest(12), identity, models.BookingSourceWeb, "order-7")
	require.NoError(t, err)

	_, err = f.service.CreateBooking(ctx, bookingRequest(13), identity, models.BookingSourceWeb, "order-7")
	require.ErrorIs(t, err, models.ErrIdempotencyKeyReused)
	assert.Equal(t, models.ErrorKindConflict, models.KindOf(err))

	taken, err := f.store.ListTakenSeats(ctx, testAssignmentID)
	require.NoError(t, err)
	assert.Equal(t, []int{12}, taken)

	// Whitespace and case differences normalize to the same request
	same := bookingRequest(12)
	same.Passenger.Email = "  NIMAL@example.com "
	same.Passenger.Gender = "m"
	replayed, err := f.service.CreateBooking(ctx, same, identity, models.BookingSourceWeb, "order-7")
	require.NoError(t, err)
	assert.Equal(t, first.BookingID, replayed.BookingID)
}

func TestCreateBooking_FailureReleasesIdempotencyKey(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	req := bookingRequest(5)
	req.Passenger.Email = "broken"
	_, err := f.service.CreateBooking(ctx, req, nil, models.BookingSourceWeb, "retry-me")
	require.ErrorIs(t, err, models.ErrInvalidRequest)

	confirmation, err := f.service.CreateBooking(ctx, bookingRequest(5), nil, models.BookingSourceWeb, "retry-me")
	require.NoError(t, err)
	assert.Equal(t, 5, confirmation.SeatNumber)
}

func TestCancelBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("Owner cancels and the seat is bookable again", func(t *testing.T) {
		f := newBookingFixture(t)
		owner := riderIdentity()
		confirmation, err := f.service.CreateBooking(ctx, bookingRequest(8), owner, models.BookingSourceWeb, "")
		require.NoError(t, err)

		resp, err := f.service.CancelBooking(ctx, confirmation.BookingID, owner)
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, confirmation.BookingID, resp.BookingID)
		assert.Equal(t, 40, remainingSeats(t, f.store, testAssignmentID))
		assert.Len(t, f.publisher.ofType(events.ReservationCancelled), 1)

		_, err = f.service.CancelBooking(ctx, confirmation.BookingID, owner)
		assert.ErrorIs(t, err, models.ErrAlreadyCancelled)
		assert.Equal(t, 40, remainingSeats(t, f.store, testAssignmentID))

		_, err = f.service.CreateBooking(ctx, bookingRequest(8), nil, models.BookingSourceWeb, "")
		assert.NoError(t, err)
	})

	t.Run("Another rider is forbidden", func(t *testing.T) {
		f := newBookingFixture(t)
		confirmation, err := f.service.CreateBooking(ctx, bookingRequest(8), riderIdentity(), models.BookingSourceWeb, "")
		require.NoError(t, err)

		_, err = f.service.CancelBooking(ctx, confirmation.BookingID, riderIdentity())
		assert.ErrorIs(t, err, models.ErrForbidden)

		_, err = f.service.CancelBooking(ctx, confirmation.BookingID, nil)
		assert.ErrorIs(t, err, models.ErrForbidden)
		assert.Equal(t, 39, remainingSeats(t, f.store, testAssignmentID))
	})

	t.Run("Admin cancels a guest booking", func(t *testing.T) {
		f := newBookingFixture(t)
		confirmation, err := f.service.CreateBooking(ctx, bookingRequest(8), nil, models.BookingSourceWeb, "")
		require.NoError(t, err)

		_, err = f.service.CancelBooking(ctx, confirmation.BookingID, adminIdentity())
		require.NoError(t, err)
		assert.Equal(t, 40, remainingSeats(t, f.store, testAssignmentID))
	})

	t.Run("Unknown booking", func(t *testing.T) {
		f := newBookingFixture(t)
		_, err := f.service.CancelBooking(ctx, uuid.New(), adminIdentity())
		assert.ErrorIs(t, err, models.ErrReservationNotFound)
	})
}

func TestGetBooking_Authorization(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture(t)
	owner := riderIdentity()

	owned, err := f.service.CreateBooking(ctx, bookingRequest(1), owner, models.BookingSourceWeb, "")
	require.NoError(t, err)
	guest, err := f.service.CreateBooking(ctx, bookingRequest(2), nil, models.BookingSourceWeb, "")
	require.NoError(t, err)

	details, err := f.service.GetBooking(ctx, owned.BookingID, owner)
	require.NoError(t, err)
	assert.Equal(t, owned.BookingID, details.Reservation.ID)
	require.NotNil(t, details.Rider)
	assert.Equal(t, "Colombo Fort", details.Rider.BoardingPoint)
	require.NotNil(t, details.Contact)
	assert.Equal(t, "kamal@example.com", details.Contact.Email)

	_, err = f.service.GetBooking(ctx, owned.BookingID, riderIdentity())
	assert.ErrorIs(t, err, models.ErrForbidden)
	_, err = f.service.GetBooking(ctx, owned.BookingID, nil)
	assert.ErrorIs(t, err, models.ErrForbidden)
	_, err = f.service.GetBooking(ctx, owned.BookingID, adminIdentity())
	assert.NoError(t, err)

	details, err = f.service.GetBooking(ctx, guest.BookingID, nil)
	require.NoError(t, err)
	assert.True(t, details.Reservation.IsGuest())
	assert.Equal(t, "nimal@example.com", details.Contact.Email)

	_, err = f.service.GetBooking(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, models.ErrReservationNotFound)
}

func TestListMyBookings(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture(t)
	owner := riderIdentity()

	for _, seat := range []int{1, 2} {
		_, err := f.service.CreateBooking(ctx, bookingRequest(seat), owner, models.BookingSourceWeb, "")
		require.NoError(t, err)
	}
	_, err := f.service.CreateBooking(ctx, bookingRequest(3), nil, models.BookingSourceWeb, "")
	require.NoError(t, err)

	list, err := f.service.ListMyBookings(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.service.ListMyBookings(ctx, nil)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestMarkPaid(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture(t)

	confirmation, err := f.service.CreateBooking(ctx, bookingRequest(6), nil, models.BookingSourceWeb, "")
	require.NoError(t, err)

	_, err = f.service.MarkPaid(ctx, confirmation.BookingID, " ")
	assert.ErrorIs(t, err, models.ErrInvalidRequest)

	details, err := f.service.MarkPaid(ctx, confirmation.BookingID, "PAY-001")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, details.Reservation.PaymentState)
	assert.NotNil(t, details.Reservation.PaidAt)
	assert.Len(t, f.publisher.ofType(events.ReservationPaid), 1)

	_, err = f.service.MarkPaid(ctx, confirmation.BookingID, "PAY-002")
	assert.ErrorIs(t, err, models.ErrAlreadyPaid)

	_, err = f.service.MarkPaid(ctx, uuid.New(), "PAY-003")
	assert.ErrorIs(t, err, models.ErrReservationNotFound)
}

func TestAttachRider_ReplacesProfile(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture(t)
	owner := riderIdentity()

	confirmation, err := f.service.CreateBooking(ctx, bookingRequest(6), owner, models.BookingSourceWeb, "")
	require.NoError(t, err)

	passenger := testPassenger()
	passenger.DroppingPoint = "Vavuniya"
	profile, err := f.service.AttachRider(ctx, confirmation.BookingID, passenger, owner)
	require.NoError(t, err)
	assert.Equal(t, "Vavuniya", profile.DroppingPoint)

	stored, err := f.store.GetRider(ctx, confirmation.BookingID)
	require.NoError(t, err)
	assert.Equal(t, "Vavuniya", stored.DroppingPoint)

	_, err = f.service.AttachRider(ctx, confirmation.BookingID, passenger, riderIdentity())
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestAttachRider_GuestBookingByID(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture(t)

	confirmation, err := f.service.CreateBooking(ctx, bookingRequest(8), nil, models.BookingSourceWeb, "")
	require.NoError(t, err)

	passenger := testPassenger()
	passenger.BoardingPoint = "Maradana"
	profile, err := f.service.AttachRider(ctx, confirmation.BookingID, passenger, nil)
	require.NoError(t, err)
	assert.Equal(t, "Maradana", profile.BoardingPoint)

	_, err = f.service.CancelBooking(ctx, confirmation.BookingID, adminIdentity())
	require.NoError(t, err)

	_, err = f.service.AttachRider(ctx, confirmation.BookingID, passenger, nil)
	assert.ErrorIs(t, err, models.ErrAlreadyCancelled)

	_, err = f.service.AttachRider(ctx, uuid.New(), passenger, nil)
	assert.ErrorIs(t, err, models.ErrReservationNotFound)
}

func TestGetTicket(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture(t)

	confirmation, err := f.service.CreateBooking(ctx, bookingRequest(14), nil, models.BookingSourceWeb, "")
	require.NoError(t, err)

	pdf, filename, err := f.service.GetTicket(ctx, confirmation.BookingID, nil)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
	assert.Equal(t, "e-ticket-"+confirmation.BookingID.String()+".pdf", filename)

	_, err = f.service.CancelBooking(ctx, confirmation.BookingID, adminIdentity())
	require.NoError(t, err)

	_, _, err = f.service.GetTicket(ctx, confirmation.BookingID, nil)
	assert.ErrorIs(t, err, models.ErrAlreadyCancelled)
}
