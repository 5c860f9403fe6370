// Command reconcile runs the reconciliation audits once and prints the
// report as JSON. It exits 2 when there are findings.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/config"
	"github.com/smarttransit/seat-reservation/internal/database"
	"github.com/smarttransit/seat-reservation/internal/events"
	"github.com/smarttransit/seat-reservation/internal/services"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		dbURLFlag       string
		incompleteAfter time.Duration
		publish         bool
		timeout         time.Duration
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.DurationVar(&incompleteAfter, "incomplete-after", 30*time.Minute, "report reservations without rider details older than this")
	flag.BoolVar(&publish, "publish", false, "publish findings to the configured event broker")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "overall audit timeout")
	flag.Parse()

	// Try loading .env from current working directory (optional)
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		logger.Error("DATABASE_URL is not set and -database-url was not provided")
		return 1
	}

	// Build minimal database config without loading full app config
	dbCfg := config.DatabaseConfig{
		URL:                dbURL,
		Driver:             os.Getenv("DATABASE_DRIVER"),
		MaxConnections:     2,
		MaxIdleConnections: 1,
	}

	db, err := database.NewConnection(dbCfg)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		return 1
	}
	defer db.Close()

	publisher := events.Publisher(events.NewLogPublisher(logger))
	if publish {
		publisher = events.NewPublisher(config.EventsConfig{
			Broker:       os.Getenv("EVENTS_BROKER"),
			KafkaBrokers: strings.Split(os.Getenv("KAFKA_BROKERS"), ","),
			KafkaTopic:   os.Getenv("KAFKA_TOPIC"),
			AMQPURL:      os.Getenv("AMQP_URL"),
			AMQPQueue:    os.Getenv("AMQP_QUEUE"),
		}, logger)
	}
	defer publisher.Close()

	auditor := database.NewAuditRepository(db.DB)
	reconciler := services.NewReconciliationService(auditor, publisher, incompleteAfter, publish, logger)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	report, err := reconciler.RunAudits(ctx)
	if err != nil {
		logger.Errorf("Reconciliation failed: %v", err)
		return 1
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Errorf("Failed to encode report: %v", err)
		return 1
	}
	fmt.Println(string(out))

	if !report.Clean() {
		return 2
	}
	return 0
}
