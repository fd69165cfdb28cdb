// Package jobs runs periodic maintenance work.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
	"github.com/tableside/api/internal/database"
)

// Reconciler re-derives table occupancy. Satisfied by *service.TableService.
type Reconciler interface {
	Reconcile(ctx context.Context) ([]database.Table, error)
}

// Scheduler wraps a gocron scheduler with the reconcile job registered.
type Scheduler struct {
	s      gocron.Scheduler
	logger logrus.FieldLogger
}

// NewReconcileScheduler runs r every interval once started. The job never
// overlaps itself. ctx bounds every run.
func NewReconcileScheduler(ctx context.Context, r Reconciler, interval time.Duration, logger logrus.FieldLogger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("reconcile interval must be positive, got %s", interval)
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { RunReconcile(ctx, r, logger) }),
		gocron.WithName("reconcile-table-status"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		s.Shutdown() //nolint:errcheck
		return nil, fmt.Errorf("register reconcile job: %w", err)
	}

	return &Scheduler{s: s, logger: logger}, nil
}

func (s *Scheduler) Start() {
	s.s.Start()
	s.logger.Info("reconcile scheduler started")
}

// Shutdown stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Shutdown() error {
	return s.s.Shutdown()
}

// RunReconcile performs one pass and logs the tables it repaired.
func RunReconcile(ctx context.Context, r Reconciler, logger logrus.FieldLogger) {
	changed, err := r.Reconcile(ctx)
	if err != nil {
		logger.WithError(err).Error("reconcile table status")
		return
	}
	for _, t := range changed {
		logger.WithFields(logrus.Fields{
			"table_id": t.ID,
			"status":   t.Status,
		}).Warn("table status drifted, repaired")
	}
}
