package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gitscribe/gitscribe/internal/models"
	"github.com/gitscribe/gitscribe/internal/pipeline"
	"github.com/gitscribe/gitscribe/pkg/logging"
)

const sweepTimeout = 10 * time.Minute

// Sweeper runs the auto-post sweep for one cadence
type Sweeper interface {
	RunSweepForSchedule(ctx context.Context, schedule string) ([]pipeline.Result, error)
}

// Scheduler drives the in-process auto-post sweeps. The same sweeps
// can also be triggered over HTTP by an external cron service.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	logger  *zap.Logger
}

// New creates a scheduler with cron entries for the daily and weekly
// cadences. Empty specs disable the corresponding cadence.
func New(sweeper Sweeper, dailySpec, weeklySpec string) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		logger:  logging.WithComponent("scheduler"),
	}

	if dailySpec != "" {
		if _, err := s.cron.AddFunc(dailySpec, func() {
			s.runSweep(models.ScheduleDaily)
		}); err != nil {
			return nil, err
		}
	}
	if weeklySpec != "" {
		if _, err := s.cron.AddFunc(weeklySpec, func() {
			s.runSweep(models.ScheduleWeekly)
		}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start begins running scheduled sweeps
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started")
}

// Stop cancels future sweeps and waits for a running one to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) runSweep(schedule string) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	s.logger.Info("Running scheduled sweep", zap.String("schedule", schedule))
	results, err := s.sweeper.RunSweepForSchedule(ctx, schedule)
	if err != nil {
		s.logger.Error("Scheduled sweep failed", zap.String("schedule", schedule), zap.Error(err))
		return
	}

	succeeded := 0
	for _, r := range results {
		if r.Status == pipeline.StatusSuccess {
			succeeded++
		}
	}
	s.logger.Info("Scheduled sweep finished",
		zap.String("schedule", schedule),
		zap.Int("processed", len(results)),
		zap.Int("succeeded", succeeded))
}
