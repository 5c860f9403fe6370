package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CronService manages scheduled background jobs
type CronService struct {
	cron       *cron.Cron
	reconciler *ReconciliationService
	schedule   string
	timeout    time.Duration
	logger     *logrus.Logger

	mu      sync.Mutex
	lastRun *ReconciliationReport
	lastErr error
}

// NewCronService creates a new CronService. schedule uses the six-field
// format with seconds.
func NewCronService(reconciler *ReconciliationService, schedule string, logger *logrus.Logger) *CronService {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &CronService{
		cron:       c,
		reconciler: reconciler,
		schedule:   schedule,
		timeout:    5 * time.Minute,
		logger:     logger,
	}
}

// Start starts all cron jobs
func (s *CronService) Start() error {
	// "0 */15 * * * *" = every 15 minutes
	if _, err := s.cron.AddFunc(s.schedule, s.reconcileJob); err != nil {
		return fmt.Errorf("failed to schedule reconciliation job: %w", err)
	}

	s.cron.Start()
	s.logger.WithField("schedule", s.schedule).Info("Cron service started: reconciliation scheduled")

	return nil
}

// Stop stops all cron jobs and waits for a running job to finish
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) reconcileJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	report, err := s.reconciler.RunAudits(ctx)

	s.mu.Lock()
	s.lastRun, s.lastErr = report, err
	s.mu.Unlock()

	if err != nil {
		s.logger.WithError(err).Error("[CRON] Reconciliation failed")
	}
}

// RunReconciliationNow runs the reconciliation job immediately
func (s *CronService) RunReconciliationNow() (*ReconciliationReport, error) {
	s.reconcileJob()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	status := map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun != nil {
		status["last_run"] = s.lastRun.StartedAt
		status["last_run_clean"] = s.lastRun.Clean()
	}
	if s.lastErr != nil {
		status["last_error"] = s.lastErr.Error()
	}
	return status
}
