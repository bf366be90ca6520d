// Package pipeline sequences the full ingestion run: scrape, load, image
// analysis, notification.
package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/medtel/channel-analytics/internal/models"
	"github.com/medtel/channel-analytics/internal/notifications"
	"github.com/medtel/channel-analytics/internal/scraper"
)

// Scraper stages channel batches.
type Scraper interface {
	Run(ctx context.Context) (*scraper.Stats, error)
}

// Loader merges staged batches into the store.
type Loader interface {
	Run(ctx context.Context) (int, error)
}

// Detector analyzes downloaded media.
type Detector interface {
	Run() (int, error)
}

// Metrics holds pipeline run metrics
type Metrics struct {
	LastRunID       string    `json:"last_run_id"`
	LastRun         time.Time `json:"last_run"`
	LastRunDuration string    `json:"last_run_duration"`
	ChannelsScraped int       `json:"channels_scraped"`
	ChannelsFailed  int       `json:"channels_failed"`
	MessagesScraped int       `json:"messages_scraped"`
	RowsLoaded      int       `json:"rows_loaded"`
	ImagesDetected  int       `json:"images_detected"`
	ErrorCount      int       `json:"error_count"`
}

// Service orchestrates pipeline runs. The run itself is single-writer by
// convention: loads are idempotent, so a concurrent run is wasteful rather
// than incorrect, and no lock is taken.
type Service struct {
	scraper  Scraper
	loader   Loader
	detector Detector
	notifier notifications.Notifier

	metrics *Metrics
	mu      sync.RWMutex
}

// NewService creates a new pipeline service
func NewService(scr Scraper, ldr Loader, det Detector, notifier notifications.Notifier) *Service {
	return &Service{
		scraper:  scr,
		loader:   ldr,
		detector: det,
		notifier: notifier,
		metrics:  &Metrics{},
	}
}

// Run performs one full pipeline run. Scrape and load failures abort the
// run; detection and notification failures are logged but never fail it.
func (s *Service) Run(ctx context.Context) error {
	runID := uuid.NewString()
	start := time.Now()
	logrus.Infof("Starting pipeline run %s", runID)

	report := &models.RunReport{
		RunID:     runID,
		StartedAt: start.UTC(),
	}

	stats, err := s.scraper.Run(ctx)
	if stats != nil {
		report.ChannelsScraped = stats.ChannelsScraped
		report.ChannelsFailed = stats.ChannelsFailed
		report.MessagesScraped = stats.MessagesScraped
	}
	if err != nil {
		logrus.Errorf("Pipeline run %s: scrape aborted: %v", runID, err)
		report.Errors = append(report.Errors, err.Error())
		s.updateMetrics(report, time.Since(start))
		return err
	}

	loaded, err := s.loader.Run(ctx)
	report.RowsLoaded = loaded
	if err != nil {
		logrus.Errorf("Pipeline run %s: load failed: %v", runID, err)
		report.Errors = append(report.Errors, err.Error())
		s.updateMetrics(report, time.Since(start))
		return err
	}

	detected, err := s.detector.Run()
	if err != nil {
		logrus.Errorf("Pipeline run %s: image analysis failed: %v", runID, err)
		report.Errors = append(report.Errors, err.Error())
	}
	report.ImagesDetected = detected

	report.Duration = time.Since(start).Round(time.Millisecond).String()
	if err := s.notifier.SendRunReport(report); err != nil {
		logrus.Errorf("Pipeline run %s: failed to send report: %v", runID, err)
	}

	s.updateMetrics(report, time.Since(start))
	logrus.Infof("Pipeline run %s completed in %v: %d messages scraped, %d rows loaded",
		runID, time.Since(start), report.MessagesScraped, report.RowsLoaded)
	return nil
}

func (s *Service) updateMetrics(report *models.RunReport, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.LastRunID = report.RunID
	s.metrics.LastRun = time.Now()
	s.metrics.LastRunDuration = duration.Round(time.Millisecond).String()
	s.metrics.ChannelsScraped = report.ChannelsScraped
	s.metrics.ChannelsFailed = report.ChannelsFailed
	s.metrics.MessagesScraped = report.MessagesScraped
	s.metrics.RowsLoaded = report.RowsLoaded
	s.metrics.ImagesDetected = report.ImagesDetected
	s.metrics.ErrorCount = len(report.Errors)
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}
