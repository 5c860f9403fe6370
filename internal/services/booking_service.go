package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/cache"
	"github.com/smarttransit/seat-reservation/internal/events"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/repository"
	"github.com/smarttransit/seat-reservation/pkg/ticket"
	"github.com/smarttransit/seat-reservation/pkg/validator"
)

const maxPromoCodeLength = 20

// BookingService is the entry point for booking requests. It validates
// input, resolves the promotion and hands the attempt to the coordinator.
type BookingService struct {
	coordinator    *ReservationCoordinator
	catalog        repository.CatalogReader
	inventory      repository.InventoryStore
	reservations   repository.ReservationRepository
	promos         repository.PromotionStore
	idempotency    cache.IdempotencyStore
	publisher      events.Publisher
	phoneValidator *validator.PhoneValidator
	currency       string
	logger         *logrus.Logger
}

// NewBookingService creates a new booking service. idempotency may be nil.
func NewBookingService(
	coordinator *ReservationCoordinator,
	store repository.Store,
	idempotency cache.IdempotencyStore,
	publisher events.Publisher,
	phoneValidator *validator.PhoneValidator,
	currency string,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		coordinator:    coordinator,
		catalog:        store,
		inventory:      store,
		reservations:   store,
		promos:         store,
		idempotency:    idempotency,
		publisher:      publisher,
		phoneValidator: phoneValidator,
		currency:       currency,
		logger:         logger,
	}
}

// CreateBooking books one seat. With an idempotency key, a repeated request
// replays the first confirmation instead of booking again. A key reused with
// a different request body is rejected.
func (s *BookingService) CreateBooking(
	ctx context.Context,
	req *models.CreateBookingRequest,
	identity *models.Identity,
	source models.BookingSource,
	idempotencyKey string,
) (*models.BookingConfirmation, error) {
	details, err := s.validatePassenger(req.Passenger)
	if err != nil {
		return nil, err
	}
	if idempotencyKey == "" || s.idempotency == nil {
		return s.createBooking(ctx, req, details, identity, source)
	}

	fingerprint, err := requestFingerprint(req, details)
	if err != nil {
		return nil, models.ErrInternal.Wrap(err)
	}
	key := scopedIdempotencyKey(identity, fingerprint, idempotencyKey)
	entry, err := s.idempotency.Acquire(ctx, key, fingerprint)
	if err != nil {
		return nil, models.ErrInternal.Wrap(err)
	}
	if entry != nil {
		return s.replay(entry, fingerprint, idempotencyKey)
	}

	confirmation, err := s.createBooking(ctx, req, details, identity, source)
	storeCtx := context.WithoutCancel(ctx)
	if err != nil {
		if releaseErr := s.idempotency.Release(storeCtx, key); releaseErr != nil {
			s.logger.WithError(releaseErr).Warn("Failed to release idempotency key")
		}
		return nil, err
	}

	body, err := json.Marshal(confirmation)
	if err == nil {
		err = s.idempotency.Complete(storeCtx, key, fingerprint, http.StatusCreated, body)
	}
	if err != nil {
		s.logger.WithError(err).WithField("reservation_id", confirmation.BookingID).
			Warn("Failed to store booking confirmation for idempotent replay")
	}

	return confirmation, nil
}

// replay answers a request whose idempotency key is already taken
func (s *BookingService) replay(entry *cache.Entry, fingerprint, idempotencyKey string) (*models.BookingConfirmation, error) {
	if entry.IsPending() {
		// Redis may hand back a pending marker with no fingerprint when the
		// original entry expired mid-read
		if entry.Fingerprint != "" && !entry.Matches(fingerprint) {
			return nil, models.ErrIdempotencyKeyReused
		}
		return nil, models.ErrRequestInProgress
	}
	if !entry.Matches(fingerprint) {
		s.logger.WithField("idempotency_key", idempotencyKey).
			Warn("Idempotency key reused with a different booking request")
		return nil, models.ErrIdempotencyKeyReused
	}

	var confirmation models.BookingConfirmation
	if err := json.Unmarshal(entry.Body, &confirmation); err != nil {
		return nil, models.ErrInternal.Wrap(fmt.Errorf("failed to decode stored confirmation: %w", err))
	}
	s.logger.WithFields(logrus.Fields{
		"idempotency_key": idempotencyKey,
		"reservation_id":  confirmation.BookingID,
	}).Info("Replaying booking confirmation")
	return &confirmation, nil
}

func (s *BookingService) createBooking(
	ctx context.Context,
	req *models.CreateBookingRequest,
	details models.PassengerDetails,
	identity *models.Identity,
	source models.BookingSource,
) (*models.BookingConfirmation, error) {
	if strings.TrimSpace(req.TripID) == "" || strings.TrimSpace(req.AssignmentID) == "" {
		return nil, models.ErrInvalidRequest.WithMessage("schedule_id and bus_assignment_id are required")
	}

	var promo *models.Promotion
	var err error
	if code := req.NormalizedPromoCode(); code != nil {
		if len(*code) > maxPromoCodeLength {
			return nil, models.ErrInvalidRequest.WithMessage("promo code must be at most %d characters", maxPromoCodeLength)
		}
		promo, err = s.promos.GetByCode(ctx, *code)
		if err != nil {
			return nil, models.AsBookingError(err)
		}
	}

	result, err := s.coordinator.Reserve(ctx, ReserveRequest{
		TripID:       req.TripID,
		AssignmentID: req.AssignmentID,
		SeatNumber:   req.SeatNumber,
		Promotion:    promo,
		Rider:        models.NewRider(identity, details.ToProfile(uuid.Nil)),
		Source:       source,
	})
	if err != nil {
		return nil, err
	}

	contact := result.Contact
	return &models.BookingConfirmation{
		Success:            true,
		Detail:             "Booking successful",
		BookingID:          result.Reservation.ID,
		Schedule:           models.NewScheduleSummary(result.Trip),
		Bus:                models.BusSummary{PlateNumber: result.Assignment.PlateNumber, Company: result.Assignment.CompanyName},
		SeatNumber:         result.Reservation.SeatNumber,
		PricePaid:          result.Price.FinalPrice,
		OriginalPrice:      result.Price.OriginalPrice,
		Discount:           result.Price.Discount,
		Currency:           s.currency,
		PromoCode:          result.Price.PromoCode,
		PaymentState:       result.Reservation.PaymentState,
		RiderAttached:      result.RiderAttached,
		PromoUsageRecorded: result.PromoUsageRecorded,
		Contact:            &contact,
		CreatedAt:          result.Reservation.CreatedAt,
	}, nil
}

// GetBooking returns a booking with its trip, bus and rider. Guest bookings
// are readable by id; owned bookings only by the owner or an admin.
func (s *BookingService) GetBooking(ctx context.Context, id uuid.UUID, identity *models.Identity) (*models.BookingDetails, error) {
	reservation, err := s.loadAuthorized(ctx, id, identity)
	if err != nil {
		return nil, err
	}
	return s.buildDetails(ctx, reservation, identity)
}

// ListMyBookings lists the caller's bookings, newest first
func (s *BookingService) ListMyBookings(ctx context.Context, identity *models.Identity) ([]models.BookingDetails, error) {
	if identity == nil {
		return nil, models.ErrForbidden.WithMessage("sign in to list your bookings")
	}

	reservations, err := s.reservations.ListByUser(ctx, identity.UserID)
	if err != nil {
		return nil, models.ErrInternal.Wrap(err)
	}

	list := make([]models.BookingDetails, 0, len(reservations))
	for i := range reservations {
		details, err := s.buildDetails(ctx, &reservations[i], identity)
		if err != nil {
			return nil, err
		}
		list = append(list, *details)
	}
	return list, nil
}

// AttachRider retries attaching rider details to a live booking. Owned
// bookings accept updates from the owner or an admin. A guest booking has no
// account to check, so its id is the credential: whoever holds it may read
// and update the rider, as with GetBooking.
func (s *BookingService) AttachRider(ctx context.Context, id uuid.UUID, passenger models.PassengerDetails, identity *models.Identity) (*models.RiderProfile, error) {
	if _, err := s.loadAuthorized(ctx, id, identity); err != nil {
		return nil, err
	}

	details, err := s.validatePassenger(passenger)
	if err != nil {
		return nil, err
	}

	return s.coordinator.AttachRider(ctx, id, details.ToProfile(id))
}

// CancelBooking releases the booking's seat. Promotion usage is not returned.
func (s *BookingService) CancelBooking(ctx context.Context, id uuid.UUID, identity *models.Identity) (*models.CancelBookingResponse, error) {
	if identity == nil {
		return nil, models.ErrForbidden.WithMessage("sign in to cancel a booking")
	}

	reservation, err := s.reservations.GetReservation(ctx, id)
	if err != nil {
		return nil, models.AsBookingError(err)
	}
	if !reservation.OwnedBy(identity.UserID) && !identity.HasRole("admin") {
		return nil, models.ErrForbidden
	}
	if !reservation.IsLive() {
		return nil, models.ErrAlreadyCancelled
	}

	released, err := s.inventory.Release(ctx, reservation.AssignmentID, reservation.SeatNumber)
	if err != nil {
		return nil, models.AsBookingError(err)
	}
	if released == nil || released.ID != reservation.ID {
		// Someone else cancelled between the read and the release
		return nil, models.ErrAlreadyCancelled
	}

	s.logger.WithFields(logrus.Fields{
		"reservation_id": released.ID,
		"assignment_id":  released.AssignmentID,
		"seat_number":    released.SeatNumber,
		"cancelled_by":   identity.UserID,
	}).Info("Reservation cancelled")

	event := events.NewEvent(events.ReservationCancelled)
	event.ReservationID = &released.ID
	event.AssignmentID = released.AssignmentID
	event.SeatNumber = released.SeatNumber
	s.publish(ctx, event)

	cancelledAt := time.Now()
	if released.CancelledAt != nil {
		cancelledAt = *released.CancelledAt
	}
	return &models.CancelBookingResponse{
		Success:     true,
		BookingID:   released.ID,
		CancelledAt: cancelledAt,
		Message:     fmt.Sprintf("Seat %d released", released.SeatNumber),
	}, nil
}

// MarkPaid records the external payment of a booking
func (s *BookingService) MarkPaid(ctx context.Context, id uuid.UUID, paymentReference string) (*models.BookingDetails, error) {
	if strings.TrimSpace(paymentReference) == "" {
		return nil, models.ErrInvalidRequest.WithMessage("payment_reference is required")
	}

	if err := s.reservations.MarkPaid(ctx, id, time.Now()); err != nil {
		return nil, models.AsBookingError(err)
	}

	reservation, err := s.reservations.GetReservation(ctx, id)
	if err != nil {
		return nil, models.AsBookingError(err)
	}

	s.logger.WithFields(logrus.Fields{
		"reservation_id":    id,
		"payment_reference": paymentReference,
	}).Info("Reservation marked paid")

	event := events.NewEvent(events.ReservationPaid)
	event.ReservationID = &reservation.ID
	event.AssignmentID = reservation.AssignmentID
	event.SeatNumber = reservation.SeatNumber
	event.Data = map[string]interface{}{"payment_reference": paymentReference}
	s.publish(ctx, event)

	return s.buildDetails(ctx, reservation, nil)
}

// GetTicket renders the e-ticket PDF of a live booking and returns it with
// its download filename
func (s *BookingService) GetTicket(ctx context.Context, id uuid.UUID, identity *models.Identity) ([]byte, string, error) {
	details, err := s.GetBooking(ctx, id, identity)
	if err != nil {
		return nil, "", err
	}
	if !details.Reservation.IsLive() {
		return nil, "", models.ErrAlreadyCancelled.WithMessage("cancelled bookings have no ticket")
	}

	res := details.Reservation
	tk := ticket.Ticket{
		BookingID:     res.ID.String(),
		Origin:        details.Schedule.Origin,
		Destination:   details.Schedule.Destination,
		Date:          details.Schedule.Date,
		DepartureTime: details.Schedule.DepartureTime,
		ArrivalTime:   details.Schedule.ArrivalTime,
		PlateNumber:   details.Bus.PlateNumber,
		Company:       details.Bus.Company,
		SeatNumber:    res.SeatNumber,
		OriginalPrice: res.OriginalPrice,
		Discount:      res.Discount,
		PricePaid:     res.PricePaid,
		Currency:      s.currency,
		PromoCode:     stringOrEmpty(res.PromoCode),
		PaymentState:  string(res.PaymentState),
	}
	if details.Rider != nil {
		tk.BoardingPoint = details.Rider.BoardingPoint
		tk.DroppingPoint = details.Rider.DroppingPoint
	}
	if details.Contact != nil {
		tk.PassengerName = details.Contact.Name
		tk.Email = details.Contact.Email
		tk.Phone = details.Contact.Phone
	}

	data, err := ticket.Render(tk)
	if err != nil {
		return nil, "", models.ErrInternal.Wrap(err)
	}
	return data, tk.Filename(), nil
}

func (s *BookingService) loadAuthorized(ctx context.Context, id uuid.UUID, identity *models.Identity) (*models.Reservation, error) {
	reservation, err := s.reservations.GetReservation(ctx, id)
	if err != nil {
		return nil, models.AsBookingError(err)
	}
	if reservation.IsGuest() || identity.HasRole("admin") {
		return reservation, nil
	}
	if identity == nil || !reservation.OwnedBy(identity.UserID) {
		return nil, models.ErrForbidden
	}
	return reservation, nil
}

func (s *BookingService) buildDetails(ctx context.Context, reservation *models.Reservation, identity *models.Identity) (*models.BookingDetails, error) {
	trip, err := s.catalog.GetTrip(ctx, reservation.TripID)
	if err != nil {
		return nil, models.AsBookingError(err)
	}
	assignment, err := s.catalog.GetAssignment(ctx, reservation.AssignmentID)
	if err != nil {
		return nil, models.AsBookingError(err)
	}
	rider, err := s.reservations.GetRider(ctx, reservation.ID)
	if err != nil {
		return nil, models.ErrInternal.Wrap(err)
	}

	details := &models.BookingDetails{
		Reservation: *reservation,
		Schedule:    models.NewScheduleSummary(trip),
		Bus:         models.BusSummary{PlateNumber: assignment.PlateNumber, Company: assignment.CompanyName},
		Rider:       rider,
	}

	if rider != nil {
		var owner *models.Identity
		if identity != nil && reservation.OwnedBy(identity.UserID) {
			owner = identity
		}
		contact := models.NewRider(owner, *rider).ResolveContact()
		details.Contact = &contact
	}
	return details, nil
}

// validatePassenger normalizes rider details and rejects malformed ones
func (s *BookingService) validatePassenger(p models.PassengerDetails) (models.PassengerDetails, error) {
	invalid := func(format string, args ...interface{}) (models.PassengerDetails, error) {
		return p, models.ErrInvalidRequest.WithMessage(format, args...)
	}

	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" || p.LastName == "" {
		return invalid("passenger first_name and last_name are required")
	}

	email, err := validator.ValidateEmail(p.Email)
	if err != nil {
		return invalid("passenger email: %v", err)
	}
	p.Email = email

	phone, err := s.phoneValidator.Validate(p.Phone)
	if err != nil {
		return invalid("passenger phone: %v", err)
	}
	p.Phone = phone

	if p.Age < 1 || p.Age > 120 {
		return invalid("passenger age must be between 1 and 120")
	}

	p.Gender = strings.ToUpper(strings.TrimSpace(p.Gender))
	if p.Gender != "M" && p.Gender != "F" {
		return invalid("passenger gender must be M or F")
	}

	p.Nationality = strings.TrimSpace(p.Nationality)
	p.BoardingPoint = strings.TrimSpace(p.BoardingPoint)
	p.DroppingPoint = strings.TrimSpace(p.DroppingPoint)
	if p.Nationality == "" || p.BoardingPoint == "" || p.DroppingPoint == "" {
		return invalid("passenger nationality, boarding_point and dropping_point are required")
	}

	return p, nil
}

func (s *BookingService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.WithFields(logrus.Fields{
			"event_type": event.Type,
			"event_id":   event.ID,
		}).WithError(err).Warn("Failed to publish event")
	}
}

// scopedIdempotencyKey namespaces a client key by its owner. Guests share no
// identity, so their keys are also scoped by the request fingerprint.
func scopedIdempotencyKey(identity *models.Identity, fingerprint, key string) string {
	if identity == nil {
		return "booking:guest:" + fingerprint + ":" + key
	}
	return "booking:" + identity.UserID.String() + ":" + key
}

// requestFingerprint hashes the normalized booking request
func requestFingerprint(req *models.CreateBookingRequest, details models.PassengerDetails) (string, error) {
	promoCode := ""
	if code := req.NormalizedPromoCode(); code != nil {
		promoCode = *code
	}
	data, err := json.Marshal(struct {
		TripID       string                  `json:"trip_id"`
		AssignmentID string                  `json:"assignment_id"`
		SeatNumber   int                     `json:"seat_number"`
		PromoCode    string                  `json:"promo_code"`
		Passenger    models.PassengerDetails `json:"passenger"`
	}{
		TripID:       strings.TrimSpace(req.TripID),
		AssignmentID: strings.TrimSpace(req.AssignmentID),
		SeatNumber:   req.SeatNumber,
		PromoCode:    promoCode,
		Passenger:    details,
	})
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint booking request: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
