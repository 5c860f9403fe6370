package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Date and time layouts used in booking payloads
const (
	DateLayout = "02-01-2006"
	TimeLayout = "15:04"
)

// PassengerDetails is the rider manifest submitted with a booking
type PassengerDetails struct {
	FirstName     string `json:"first_name" binding:"required,max=200"`
	LastName      string `json:"last_name" binding:"required,max=200"`
	Email         string `json:"email" binding:"required,email"`
	Phone         string `json:"phone" binding:"required,max=20"`
	Age           int    `json:"age" binding:"required,min=1,max=120"`
	Gender        string `json:"gender" binding:"required,oneof=M F"`
	Nationality   string `json:"nationality" binding:"required,max=50"`
	BoardingPoint string `json:"boarding_point" binding:"required,max=200"`
	DroppingPoint string `json:"dropping_point" binding:"required,max=200"`
}

// ToProfile converts the submitted details into a rider profile
func (p PassengerDetails) ToProfile(reservationID uuid.UUID) RiderProfile {
	return RiderProfile{
		ReservationID: reservationID,
		FirstName:     strings.TrimSpace(p.FirstName),
		LastName:      strings.TrimSpace(p.LastName),
		Email:         strings.ToLower(strings.TrimSpace(p.Email)),
		Phone:         strings.TrimSpace(p.Phone),
		Age:           p.Age,
		Gender:        strings.ToUpper(strings.TrimSpace(p.Gender)),
		Nationality:   strings.TrimSpace(p.Nationality),
		BoardingPoint: strings.TrimSpace(p.BoardingPoint),
		DroppingPoint: strings.TrimSpace(p.DroppingPoint),
	}
}

// CreateBookingRequest is the body of POST /bookings
type CreateBookingRequest struct {
	TripID       string           `json:"schedule_id" binding:"required"`
	AssignmentID string           `json:"bus_assignment_id" binding:"required"`
	SeatNumber   int              `json:"seat_number"`
	PromoCode    string           `json:"promo_code" binding:"max=20"`
	Passenger    PassengerDetails `json:"passenger" binding:"required"`
}

// NormalizedPromoCode returns the trimmed, upper-cased code or nil
func (r *CreateBookingRequest) NormalizedPromoCode() *string {
	code := strings.ToUpper(strings.TrimSpace(r.PromoCode))
	if code == "" {
		return nil
	}
	return &code
}

// ScheduleSummary is the trip section of a booking confirmation
type ScheduleSummary struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	Date          string `json:"date"`
	DepartureTime string `json:"departure_time"`
	ArrivalTime   string `json:"arrival_time"`
}

// NewScheduleSummary formats a trip for display
func NewScheduleSummary(t *TripInstance) ScheduleSummary {
	return ScheduleSummary{
		Origin:        t.RouteOrigin,
		Destination:   t.RouteDestination,
		Date:          t.TravelDate.Format(DateLayout),
		DepartureTime: t.DepartureDatetime.Format(TimeLayout),
		ArrivalTime:   t.ArrivalDatetime.Format(TimeLayout),
	}
}

// BusSummary is the vehicle section of a booking confirmation
type BusSummary struct {
	PlateNumber string `json:"plate_number"`
	Company     string `json:"company"`
}

// BookingConfirmation is the success payload of a booking
type BookingConfirmation struct {
	Success            bool            `json:"success"`
	Detail             string          `json:"detail"`
	BookingID          uuid.UUID       `json:"booking_id"`
	Schedule           ScheduleSummary `json:"schedule"`
	Bus                BusSummary      `json:"bus"`
	SeatNumber         int             `json:"seat_number"`
	PricePaid          float64         `json:"price_paid"`
	OriginalPrice      float64         `json:"original_price"`
	Discount           float64         `json:"discount"`
	Currency           string          `json:"currency"`
	PromoCode          *string         `json:"promo_code,omitempty"`
	PaymentState       PaymentState    `json:"payment_state"`
	RiderAttached      bool            `json:"rider_attached"`
	PromoUsageRecorded bool            `json:"promo_usage_recorded"`
	Contact            *ContactInfo    `json:"contact,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// BookingDetails is the read model returned by GET /bookings/:id
type BookingDetails struct {
	Reservation Reservation     `json:"booking"`
	Schedule    ScheduleSummary `json:"schedule"`
	Bus         BusSummary      `json:"bus"`
	Rider       *RiderProfile   `json:"passenger,omitempty"`
	Contact     *ContactInfo    `json:"contact,omitempty"`
}

// CancelBookingResponse is returned after a cancellation
type CancelBookingResponse struct {
	Success     bool      `json:"success"`
	BookingID   uuid.UUID `json:"booking_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Message     string    `json:"message"`
}

// MarkPaidRequest is the body of PATCH /bookings/:id/payment
type MarkPaidRequest struct {
	PaymentReference string `json:"payment_reference" binding:"required"`
}

// SearchTripsRequest carries the search query parameters
type SearchTripsRequest struct {
	Origin      string `form:"origin" binding:"required"`
	Destination string `form:"destination" binding:"required"`
	Date        string `form:"date" binding:"required"`
}

// SearchTripsResponse lists the trips found for a route and date
type SearchTripsResponse struct {
	Origin      string             `json:"origin"`
	Destination string             `json:"destination"`
	Date        string             `json:"date"`
	Count       int                `json:"count"`
	Trips       []TripSearchResult `json:"schedules"`
}

// TripSearchResult is one trip in a search response
type TripSearchResult struct {
	TripID        string            `json:"schedule_id"`
	Origin        string            `json:"origin"`
	Destination   string            `json:"destination"`
	Date          string            `json:"date"`
	DepartureTime string            `json:"departure_time"`
	ArrivalTime   string            `json:"arrival_time"`
	BasePrice     float64           `json:"base_price"`
	Buses         []BusSearchResult `json:"buses"`
}

// BusSearchResult is one bookable vehicle of a trip
type BusSearchResult struct {
	AssignmentID   string `json:"bus_assignment_id"`
	PlateNumber    string `json:"plate_number"`
	Company        string `json:"company"`
	BusType        string `json:"bus_type,omitempty"`
	Amenities      string `json:"amenities,omitempty"`
	TotalSeats     int    `json:"total_seats"`
	RemainingSeats int    `json:"available_seats"`
}
