package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/events"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/repository"
)

// ReconciliationReport collects the findings of one audit run
type ReconciliationReport struct {
	StartedAt              time.Time                    `json:"started_at"`
	Duration               time.Duration                `json:"duration"`
	InventoryDrift         []models.InventoryDrift      `json:"inventory_drift"`
	PromotionDrift         []models.PromotionUsageDrift `json:"promotion_drift"`
	IncompleteReservations []models.Reservation         `json:"incomplete_reservations"`
}

// Clean reports whether the run found nothing
func (r *ReconciliationReport) Clean() bool {
	return len(r.InventoryDrift) == 0 && len(r.PromotionDrift) == 0 && len(r.IncompleteReservations) == 0
}

// ReconciliationService audits state that the booking path deliberately
// leaves for out-of-band repair: promo usage overshoot, reservations without
// a rider, and inventory counters that disagree with live reservations
type ReconciliationService struct {
	auditor         repository.Auditor
	publisher       events.Publisher
	incompleteAfter time.Duration
	publishFindings bool
	logger          *logrus.Logger
	now             func() time.Time
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	auditor repository.Auditor,
	publisher events.Publisher,
	incompleteAfter time.Duration,
	publishFindings bool,
	logger *logrus.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		auditor:         auditor,
		publisher:       publisher,
		incompleteAfter: incompleteAfter,
		publishFindings: publishFindings,
		logger:          logger,
		now:             time.Now,
	}
}

// RunAudits runs every audit once and reports the findings
func (s *ReconciliationService) RunAudits(ctx context.Context) (*ReconciliationReport, error) {
	report := &ReconciliationReport{StartedAt: s.now()}

	drift, err := s.auditor.InventoryDrift(ctx)
	if err != nil {
		return nil, fmt.Errorf("inventory audit failed: %w", err)
	}
	report.InventoryDrift = drift

	promoDrift, err := s.auditor.PromotionUsageDrift(ctx)
	if err != nil {
		return nil, fmt.Errorf("promotion audit failed: %w", err)
	}
	report.PromotionDrift = promoDrift

	incomplete, err := s.auditor.IncompleteReservations(ctx, report.StartedAt.Add(-s.incompleteAfter))
	if err != nil {
		return nil, fmt.Errorf("incomplete reservation audit failed: %w", err)
	}
	report.IncompleteReservations = incomplete

	report.Duration = time.Since(report.StartedAt)
	s.reportFindings(ctx, report)

	return report, nil
}

func (s *ReconciliationService) reportFindings(ctx context.Context, report *ReconciliationReport) {
	for _, d := range report.InventoryDrift {
		s.logger.WithFields(logrus.Fields{
			"assignment_id":     d.AssignmentID,
			"total_seats":       d.TotalSeats,
			"remaining_seats":   d.RemainingSeats,
			"live_reservations": d.LiveReservations,
			"expected":          d.Expected(),
		}).Warn("Inventory drift detected")

		event := events.NewEvent(events.InventoryDriftDetected)
		event.AssignmentID = d.AssignmentID
		event.Data = map[string]interface{}{
			"remaining_seats":   d.RemainingSeats,
			"live_reservations": d.LiveReservations,
			"expected":          d.Expected(),
		}
		s.publish(ctx, event)
	}

	for _, d := range report.PromotionDrift {
		s.logger.WithFields(logrus.Fields{
			"promo_code":             d.Code,
			"usage_cap":              d.UsageCap,
			"current_usage":          d.CurrentUsage,
			"reservations_with_code": d.ReservationsWith,
			"overshoot":              d.Overshoot(),
		}).Warn("Promotion usage drift detected")

		event := events.NewEvent(events.PromoDriftDetected)
		event.PromoCode = d.Code
		event.Data = map[string]interface{}{
			"usage_cap":              d.UsageCap,
			"current_usage":          d.CurrentUsage,
			"reservations_with_code": d.ReservationsWith,
		}
		s.publish(ctx, event)
	}

	for i := range report.IncompleteReservations {
		r := report.IncompleteReservations[i]
		s.logger.WithFields(logrus.Fields{
			"reservation_id": r.ID,
			"assignment_id":  r.AssignmentID,
			"seat_number":    r.SeatNumber,
			"created_at":     r.CreatedAt,
		}).Warn("Reservation has no rider details")

		event := events.NewEvent(events.IncompleteReservation)
		event.ReservationID = &r.ID
		event.AssignmentID = r.AssignmentID
		event.SeatNumber = r.SeatNumber
		s.publish(ctx, event)
	}

	s.logger.WithFields(logrus.Fields{
		"inventory_drift":         len(report.InventoryDrift),
		"promotion_drift":         len(report.PromotionDrift),
		"incomplete_reservations": len(report.IncompleteReservations),
		"duration_ms":             report.Duration.Milliseconds(),
	}).Info("Reconciliation finished")
}

func (s *ReconciliationService) publish(ctx context.Context, event events.Event) {
	if !s.publishFindings || s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithField("event_type", event.Type).Warn("Failed to publish finding")
	}
}
