package services

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/events"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/repository/memory"
)

const (
	testTripID       = "trip-1"
	testAssignmentID = "asg-1"
	testBaseFare     = 20000
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) ofType(t events.EventType) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []events.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// newTestStore builds a store with one active trip, one 40-seat bus and a
// few promotions
func newTestStore(now time.Time) *memory.Store {
	store := memory.NewStore()
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	departure := date.Add(8 * time.Hour)

	store.AddTrip(models.TripInstance{
		ID:                testTripID,
		RouteOrigin:       "Colombo",
		RouteDestination:  "Jaffna",
		TravelDate:        date,
		DepartureDatetime: departure,
		ArrivalDatetime:   departure.Add(7 * time.Hour),
		BasePrice:         testBaseFare,
		Status:            models.TripStatusActive,
	})
	store.AddAssignment(models.VehicleAssignment{
		ID:          testAssignmentID,
		TripID:      testTripID,
		PlateNumber: "NB-1234",
		CompanyName: "SuperLine",
		BusType:     "AC",
		TotalSeats:  40,
		Status:      models.TripStatusActive,
	})

	maxDiscount := 1000.0
	store.AddPromotion(models.Promotion{
		ID:           "promo-1",
		Code:         "SAVE10",
		DiscountKind: models.DiscountPercentage,
		Magnitude:    10,
		MaxDiscount:  &maxDiscount,
		ValidFrom:    now.Add(-24 * time.Hour),
		ValidUntil:   now.Add(24 * time.Hour),
		UsageCap:     100,
		IsActive:     true,
	})
	store.AddPromotion(models.Promotion{
		ID:           "promo-2",
		Code:         "OLD",
		DiscountKind: models.DiscountFixed,
		Magnitude:    500,
		ValidFrom:    now.Add(-48 * time.Hour),
		ValidUntil:   now.Add(-24 * time.Hour),
		UsageCap:     100,
		IsActive:     true,
	})
	return store
}

func testPassenger() models.PassengerDetails {
	return models.PassengerDetails{
		FirstName:     "Nimal",
		LastName:      "Perera",
		Email:         "nimal@example.com",
		Phone:         "+94712345678",
		Age:           34,
		Gender:        "M",
		Nationality:   "Sri Lankan",
		BoardingPoint: "Colombo Fort",
		DroppingPoint: "Jaffna Town",
	}
}

func testProfile() models.RiderProfile {
	return testPassenger().ToProfile(uuid.Nil)
}

func floatPtr(v float64) *float64 { return &v }
