package memory

import (
	"fmt"
	"time"

	"github.com/smarttransit/seat-reservation/internal/models"
)

type demoRoute struct {
	origin, destination string
	departHour          int
	durationHours       int
	price               float64
}

var demoRoutes = []demoRoute{
	{"Colombo", "Kandy", 6, 3, 1500},
	{"Colombo", "Galle", 7, 2, 1200},
	{"Kandy", "Jaffna", 20, 8, 3500},
}

// SeedDemo fills the store with a week of trips on a few routes plus two
// promotions, for running the server without a database.
func (s *Store) SeedDemo(now time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for day := 0; day < 7; day++ {
		date := start.AddDate(0, 0, day)
		for i, r := range demoRoutes {
			tripID := fmt.Sprintf("trip-%d-%s", i+1, date.Format("20060102"))
			departure := date.Add(time.Duration(r.departHour) * time.Hour)
			s.AddTrip(models.TripInstance{
				ID:                tripID,
				RouteOrigin:       r.origin,
				RouteDestination:  r.destination,
				TravelDate:        date,
				DepartureDatetime: departure,
				ArrivalDatetime:   departure.Add(time.Duration(r.durationHours) * time.Hour),
				BasePrice:         r.price,
				Status:            models.TripStatusActive,
			})
			s.AddAssignment(models.VehicleAssignment{
				ID:          tripID + "-a",
				TripID:      tripID,
				PlateNumber: fmt.Sprintf("NB-%04d", 1000+i),
				CompanyName: "SmartTransit Express",
				BusType:     "AC",
				TotalSeats:  40,
				Status:      models.TripStatusActive,
			})
			s.AddAssignment(models.VehicleAssignment{
				ID:          tripID + "-b",
				TripID:      tripID,
				PlateNumber: fmt.Sprintf("NC-%04d", 2000+i),
				CompanyName: "Lanka Coaches",
				BusType:     "NON_AC",
				TotalSeats:  54,
				Status:      models.TripStatusActive,
			})
		}
	}

	maxDiscount := 500.0
	s.AddPromotion(models.Promotion{
		ID:           "promo-welcome10",
		Code:         "WELCOME10",
		Description:  "10% off, up to 500",
		DiscountKind: models.DiscountPercentage,
		Magnitude:    10,
		MaxDiscount:  &maxDiscount,
		ValidFrom:    start,
		ValidUntil:   start.AddDate(0, 1, 0),
		UsageCap:     100,
		IsActive:     true,
	})
	s.AddPromotion(models.Promotion{
		ID:           "promo-flat200",
		Code:         "FLAT200",
		Description:  "200 off any trip",
		DiscountKind: models.DiscountFixed,
		Magnitude:    200,
		ValidFrom:    start,
		ValidUntil:   start.AddDate(0, 1, 0),
		UsageCap:     20,
		IsActive:     true,
	})
}
