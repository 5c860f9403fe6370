package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/events"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/repository"
)

// ReservationState is the progress of one reservation attempt
type ReservationState string

const (
	StateRequested      ReservationState = "REQUESTED"
	StateSeatClaimed    ReservationState = "SEAT_CLAIMED"
	StatePriceFinalized ReservationState = "PRICE_FINALIZED"
	StateCommitted      ReservationState = "COMMITTED"
	StateAborted        ReservationState = "ABORTED"
)

// ReserveRequest is the input of one reservation attempt
type ReserveRequest struct {
	TripID       string
	AssignmentID string
	SeatNumber   int
	Promotion    *models.Promotion
	Rider        models.Rider
	Source       models.BookingSource
}

// ReserveResult describes a committed reservation. RiderAttached and
// PromoUsageRecorded report the post-commit steps, which never undo the
// reservation.
type ReserveResult struct {
	Reservation        *models.Reservation
	Trip               *models.TripInstance
	Assignment         *models.VehicleAssignment
	Price              *models.PriceBreakdown
	Contact            models.ContactInfo
	RiderAttached      bool
	PromoUsageRecorded bool
}

// attempt carries the state machine of a single reserve call
type attempt struct {
	id    uuid.UUID
	req   ReserveRequest
	state ReservationState
	claim repository.SeatClaim
}

type compensation func(ctx context.Context, a *attempt) error

func abortClaim(ctx context.Context, a *attempt) error {
	if a.claim == nil {
		return nil
	}
	return a.claim.Abort(ctx)
}

// compensations maps the state an attempt failed in to the action that
// undoes everything done so far. Nothing is undone once COMMITTED.
var compensations = map[ReservationState]compensation{
	StateRequested:      nil,
	StateSeatClaimed:    abortClaim,
	StatePriceFinalized: abortClaim,
}

// ReservationCoordinator claims, prices and commits reservations
type ReservationCoordinator struct {
	catalog      repository.CatalogReader
	inventory    repository.InventoryStore
	reservations repository.ReservationRepository
	pricing      *PricingService
	publisher    events.Publisher
	logger       *logrus.Logger
	now          func() time.Time
}

// NewReservationCoordinator creates a new reservation coordinator
func NewReservationCoordinator(
	catalog repository.CatalogReader,
	inventory repository.InventoryStore,
	reservations repository.ReservationRepository,
	pricing *PricingService,
	publisher events.Publisher,
	logger *logrus.Logger,
) *ReservationCoordinator {
	return &ReservationCoordinator{
		catalog:      catalog,
		inventory:    inventory,
		reservations: reservations,
		pricing:      pricing,
		publisher:    publisher,
		logger:       logger,
		now:          time.Now,
	}
}

// Reserve runs one attempt through REQUESTED → SEAT_CLAIMED →
// PRICE_FINALIZED → COMMITTED. Any failure before COMMITTED aborts the
// attempt and releases its claim.
func (c *ReservationCoordinator) Reserve(ctx context.Context, req ReserveRequest) (*ReserveResult, error) {
	a := &attempt{id: uuid.New(), req: req, state: StateRequested}

	// 1. Load trip and assignment; both must be active
	trip, err := c.catalog.GetTrip(ctx, req.TripID)
	if err != nil {
		return nil, c.abort(ctx, a, err)
	}
	if !trip.IsActive() {
		return nil, c.abort(ctx, a, models.ErrTripNotFound)
	}

	assignment, err := c.catalog.GetAssignment(ctx, req.AssignmentID)
	if err != nil {
		return nil, c.abort(ctx, a, err)
	}
	if assignment.TripID != trip.ID || !assignment.IsActive() {
		return nil, c.abort(ctx, a, models.ErrAssignmentNotFound)
	}

	// 2. A full assignment rejects every seat number, valid or not
	if assignment.RemainingSeats <= 0 {
		return nil, c.abort(ctx, a, models.ErrAssignmentFull)
	}
	if !assignment.SeatInRange(req.SeatNumber) {
		return nil, c.abort(ctx, a, models.ErrSeatOutOfRange.WithMessage(
			"invalid seat number. This bus has seats 1-%d", assignment.TotalSeats))
	}

	// 3. Claim the seat
	claim, err := c.inventory.TryClaimSeat(ctx, assignment.ID, req.SeatNumber)
	if err != nil {
		return nil, c.abort(ctx, a, err)
	}
	a.claim = claim
	a.state = StateSeatClaimed

	// 4. Resolve the price
	now := c.now()
	price, err := c.pricing.Price(trip.BasePrice, req.Promotion, now)
	if err != nil {
		return nil, c.abort(ctx, a, err)
	}
	a.state = StatePriceFinalized

	// 5. Persist the reservation together with the claim
	reservation := &models.Reservation{
		ID:            a.id,
		TripID:        trip.ID,
		AssignmentID:  assignment.ID,
		SeatNumber:    req.SeatNumber,
		PricePaid:     price.FinalPrice,
		OriginalPrice: price.OriginalPrice,
		Discount:      price.Discount,
		PromoCode:     price.PromoCode,
		PaymentState:  models.PaymentPending,
		UserID:        req.Rider.UserID(),
		BookingSource: req.Source,
		CreatedAt:     now,
	}
	if err := claim.Commit(ctx, reservation); err != nil {
		return nil, c.abort(ctx, a, err)
	}
	a.state = StateCommitted
	assignment.RemainingSeats--

	result := &ReserveResult{
		Reservation: reservation,
		Trip:        trip,
		Assignment:  assignment,
		Price:       price,
		Contact:     req.Rider.ResolveContact(),
	}

	// Post-commit steps must not be cut short by the caller going away
	postCtx := context.WithoutCancel(ctx)

	// 6. Record promo usage; an exhausted cap leaves the reservation in place
	if price.PromoCode != nil {
		result.PromoUsageRecorded = c.commitPromoUsage(postCtx, reservation)
	}

	// 7. Attach the rider; failure leaves an incomplete but valid reservation
	result.RiderAttached = c.attachRider(postCtx, reservation, req.Rider.Profile)

	c.logger.WithFields(logrus.Fields{
		"reservation_id":       reservation.ID,
		"trip_id":              trip.ID,
		"assignment_id":        assignment.ID,
		"seat_number":          reservation.SeatNumber,
		"price_paid":           reservation.PricePaid,
		"promo_code":           stringOrEmpty(reservation.PromoCode),
		"rider_kind":           req.Rider.Kind,
		"rider_attached":       result.RiderAttached,
		"promo_usage_recorded": result.PromoUsageRecorded,
		"state":                a.state,
	}).Info("Reservation committed")

	event := events.NewEvent(events.ReservationCommitted)
	event.ReservationID = &reservation.ID
	event.AssignmentID = assignment.ID
	event.SeatNumber = reservation.SeatNumber
	event.PromoCode = stringOrEmpty(reservation.PromoCode)
	event.Data = map[string]interface{}{
		"trip_id":        trip.ID,
		"price_paid":     reservation.PricePaid,
		"original_price": reservation.OriginalPrice,
		"discount":       reservation.Discount,
		"booking_source": reservation.BookingSource,
	}
	c.publish(postCtx, event)

	return result, nil
}

// AttachRider retries the rider attach step of a committed reservation
func (c *ReservationCoordinator) AttachRider(ctx context.Context, reservationID uuid.UUID, profile models.RiderProfile) (*models.RiderProfile, error) {
	reservation, err := c.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, models.AsBookingError(err)
	}
	if !reservation.IsLive() {
		return nil, models.ErrAlreadyCancelled
	}

	profile.ReservationID = reservation.ID
	if err := c.reservations.AttachRider(ctx, &profile); err != nil {
		return nil, models.AsBookingError(err)
	}

	c.logger.WithFields(logrus.Fields{
		"reservation_id": reservation.ID,
	}).Info("Rider attached")

	return &profile, nil
}

func (c *ReservationCoordinator) commitPromoUsage(ctx context.Context, reservation *models.Reservation) bool {
	code := *reservation.PromoCode
	if _, err := c.pricing.CommitUsage(ctx, code); err != nil {
		c.logger.WithFields(logrus.Fields{
			"reservation_id": reservation.ID,
			"promo_code":     code,
			"error_code":     models.AsBookingError(err).Code,
		}).WithError(err).Warn("Promo usage not recorded, reservation kept for reconciliation")

		event := events.NewEvent(events.PromoUsageOvershoot)
		event.ReservationID = &reservation.ID
		event.AssignmentID = reservation.AssignmentID
		event.PromoCode = code
		c.publish(ctx, event)
		return false
	}
	return true
}

func (c *ReservationCoordinator) attachRider(ctx context.Context, reservation *models.Reservation, profile models.RiderProfile) bool {
	profile.ReservationID = reservation.ID
	if err := c.reservations.AttachRider(ctx, &profile); err != nil {
		c.logger.WithFields(logrus.Fields{
			"reservation_id": reservation.ID,
			"assignment_id":  reservation.AssignmentID,
			"seat_number":    reservation.SeatNumber,
		}).WithError(err).Warn("Rider attach failed, reservation kept")

		event := events.NewEvent(events.RiderAttachFailed)
		event.ReservationID = &reservation.ID
		event.AssignmentID = reservation.AssignmentID
		event.SeatNumber = reservation.SeatNumber
		c.publish(ctx, event)
		return false
	}
	return true
}

// abort runs the compensation for the attempt's current state and returns
// cause as a BookingError
func (c *ReservationCoordinator) abort(ctx context.Context, a *attempt, cause error) error {
	failedIn := a.state
	if undo := compensations[failedIn]; undo != nil {
		if err := undo(context.WithoutCancel(ctx), a); err != nil {
			c.logger.WithFields(logrus.Fields{
				"attempt_id":    a.id,
				"assignment_id": a.req.AssignmentID,
				"seat_number":   a.req.SeatNumber,
			}).WithError(err).Error("Failed to release seat claim")
		}
	}
	a.state = StateAborted

	bookingErr := models.AsBookingError(cause)
	entry := c.logger.WithFields(logrus.Fields{
		"attempt_id":    a.id,
		"trip_id":       a.req.TripID,
		"assignment_id": a.req.AssignmentID,
		"seat_number":   a.req.SeatNumber,
		"failed_state":  failedIn,
		"error_code":    bookingErr.Code,
		"state":         a.state,
	})
	if bookingErr.Kind == models.ErrorKindInternal {
		entry.WithError(cause).Error("Reservation aborted")
	} else {
		entry.Info("Reservation aborted")
	}

	return bookingErr
}

func (c *ReservationCoordinator) publish(ctx context.Context, event events.Event) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.WithFields(logrus.Fields{
			"event_type": event.Type,
			"event_id":   event.ID,
		}).WithError(err).Warn("Failed to publish event")
	}
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
