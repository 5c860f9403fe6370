// Command seat-race fires concurrent bookings at one seat and checks that
// exactly one wins and that inventory stays consistent.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/config"
	"github.com/smarttransit/seat-reservation/internal/database"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/repository"
	"github.com/smarttransit/seat-reservation/internal/repository/memory"
	"github.com/smarttransit/seat-reservation/internal/services"
)

func main() {
	var (
		backend      string
		tripID       string
		assignmentID string
		seat         int
		riders       int
		promo        string
	)
	flag.StringVar(&backend, "backend", "memory", "storage backend: memory or postgres")
	flag.StringVar(&tripID, "trip", "", "trip id (memory backend defaults to today's Colombo-Kandy trip)")
	flag.StringVar(&assignmentID, "assignment", "", "vehicle assignment id")
	flag.IntVar(&seat, "seat", 1, "seat every rider tries to book")
	flag.IntVar(&riders, "riders", 50, "number of concurrent riders")
	flag.StringVar(&promo, "promo", "", "optional promo code")
	flag.Parse()

	fmt.Println("SmartTransit seat race")
	fmt.Println()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	var store repository.Store
	switch backend {
	case "memory":
		mem := memory.NewStore()
		now := time.Now()
		mem.SeedDemo(now)
		store = mem
		if tripID == "" {
			tripID = "trip-1-" + now.Format("20060102")
			assignmentID = tripID + "-a"
		}
	case "postgres":
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		db, err := database.NewConnection(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		store = database.NewStore(db.DB, cfg.Database.LockTimeout)
	default:
		log.Fatalf("Unknown backend %q", backend)
	}
	if tripID == "" || assignmentID == "" {
		log.Fatal("-trip and -assignment are required")
	}

	ctx := context.Background()
	pricing := services.NewPricingService(store, logger)
	coordinator := services.NewReservationCoordinator(store, store, store, pricing, nil, logger)

	var promotion *models.Promotion
	if promo != "" {
		p, err := store.GetByCode(ctx, promo)
		if err != nil {
			log.Fatalf("Failed to load promo %s: %v", promo, err)
		}
		promotion = p
	}

	before, err := store.GetAssignment(ctx, assignmentID)
	if err != nil {
		log.Fatalf("Failed to load assignment: %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []uuid.UUID
		byCode  = make(map[string]int)
	)
	start := time.Now()
	for i := 0; i < riders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := coordinator.Reserve(ctx, services.ReserveRequest{
				TripID:       tripID,
				AssignmentID: assignmentID,
				SeatNumber:   seat,
				Promotion:    promotion,
				Rider: models.NewRider(nil, models.RiderProfile{
					FirstName: fmt.Sprintf("Rider%d", i),
					LastName:  "Race",
					Email:     fmt.Sprintf("rider%d@example.com", i),
					Phone:     "0770000000",
				}),
				Source: models.BookingSourceBot,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				var be *models.BookingError
				if errors.As(err, &be) {
					byCode[be.Code]++
				} else {
					byCode["UNKNOWN"]++
				}
				return
			}
			winners = append(winners, result.Reservation.ID)
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	after, err := store.GetAssignment(ctx, assignmentID)
	if err != nil {
		log.Fatalf("Failed to reload assignment: %v", err)
	}

	fmt.Printf("Riders:          %d\n", riders)
	fmt.Printf("Elapsed:         %s\n", elapsed)
	fmt.Printf("Winners:         %d\n", len(winners))
	for code, n := range byCode {
		fmt.Printf("  %-22s %d\n", code, n)
	}
	fmt.Printf("Remaining seats: %d -> %d\n", before.RemainingSeats, after.RemainingSeats)
	fmt.Println()

	if len(winners) > 1 {
		log.Fatalf("FAIL: seat %d was booked %d times", seat, len(winners))
	}
	if before.RemainingSeats-after.RemainingSeats != len(winners) {
		log.Fatalf("FAIL: inventory moved by %d for %d bookings", before.RemainingSeats-after.RemainingSeats, len(winners))
	}
	fmt.Println("PASS")
}
