package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/config"
)

// EventType names a reservation lifecycle event
type EventType string

const (
	ReservationCommitted   EventType = "reservation.committed"
	ReservationCancelled   EventType = "reservation.cancelled"
	ReservationPaid        EventType = "reservation.paid"
	RiderAttachFailed      EventType = "reservation.rider_attach_failed"
	PromoUsageOvershoot    EventType = "promotion.usage_overshoot"
	InventoryDriftDetected EventType = "reconcile.inventory_drift"
	PromoDriftDetected     EventType = "reconcile.promotion_drift"
	IncompleteReservation  EventType = "reconcile.incomplete_reservation"
)

// Event is the message published to the broker
type Event struct {
	ID            uuid.UUID              `json:"id"`
	Type          EventType              `json:"type"`
	OccurredAt    time.Time              `json:"occurred_at"`
	ReservationID *uuid.UUID             `json:"reservation_id,omitempty"`
	AssignmentID  string                 `json:"assignment_id,omitempty"`
	SeatNumber    int                    `json:"seat_number,omitempty"`
	PromoCode     string                 `json:"promo_code,omitempty"`
	Data          map[string]interface{} `json:"data,omitempty"`
}

// NewEvent creates an event stamped with a fresh id and the current time
func NewEvent(eventType EventType) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
	}
}

// Key is the partitioning key: events of one assignment stay ordered
func (e Event) Key() string {
	if e.AssignmentID != "" {
		return e.AssignmentID
	}
	if e.PromoCode != "" {
		return e.PromoCode
	}
	return string(e.Type)
}

// Publisher delivers events to downstream consumers. Publishing is best
// effort; callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// LogPublisher writes events to the application log
type LogPublisher struct {
	logger *logrus.Logger
}

// NewLogPublisher creates a publisher that only logs
func NewLogPublisher(logger *logrus.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	fields := logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
	}
	if event.ReservationID != nil {
		fields["reservation_id"] = *event.ReservationID
	}
	if event.AssignmentID != "" {
		fields["assignment_id"] = event.AssignmentID
	}
	if event.PromoCode != "" {
		fields["promo_code"] = event.PromoCode
	}
	p.logger.WithFields(fields).Info("Event published")
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}

// NewPublisher builds the publisher selected by EVENTS_BROKER. A broker that
// cannot be reached falls back to the log publisher.
func NewPublisher(cfg config.EventsConfig, logger *logrus.Logger) Publisher {
	switch cfg.Broker {
	case "kafka":
		pub, err := NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			logger.WithError(err).Warn("Kafka unavailable, using log publisher")
			return NewLogPublisher(logger)
		}
		return pub
	case "rabbitmq":
		pub, err := NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue, logger)
		if err != nil {
			logger.WithError(err).Warn("RabbitMQ unavailable, using log publisher")
			return NewLogPublisher(logger)
		}
		return pub
	default:
		return NewLogPublisher(logger)
	}
}

func marshalError(event Event, err error) error {
	return fmt.Errorf("failed to marshal event %s: %w", event.Type, err)
}
