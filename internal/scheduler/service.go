package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/medtel/channel-analytics/internal/config"
)

// Runner is anything the scheduler can kick off on a cron tick.
type Runner interface {
	Run(ctx context.Context) error
}

// Service handles scheduling of pipeline runs
type Service struct {
	config   *config.Config
	pipeline Runner
	cron     *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, pipeline Runner) *Service {
	return &Service{
		config:   cfg,
		pipeline: pipeline,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Start begins the scheduled pipeline runs
func (s *Service) Start() error {
	var cronExpression string

	switch s.config.PipelineSchedule {
	case "daily":
		// Run daily at 2 AM UTC, after the channels' evening posting peak
		cronExpression = "0 0 2 * * *"
	case "weekly":
		// Run weekly on Monday at 2 AM UTC
		cronExpression = "0 0 2 * * MON"
	default:
		cronExpression = "0 0 2 * * *"
	}

	_, err := s.cron.AddFunc(cronExpression, func() {
		logrus.Info("Starting scheduled pipeline run")
		if err := s.pipeline.Run(context.Background()); err != nil {
			logrus.Errorf("Scheduled pipeline run failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s schedule", s.config.PipelineSchedule)
	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
