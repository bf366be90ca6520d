// Package scraper performs the incremental channel scrape: fetch, normalize,
// best-effort media download, and staging.
package scraper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/medtel/channel-analytics/internal/config"
	"github.com/medtel/channel-analytics/internal/models"
	"github.com/medtel/channel-analytics/internal/platform"
	"github.com/medtel/channel-analytics/internal/staging"
)

// Stats summarizes one scrape run.
type Stats struct {
	ChannelsScraped int
	ChannelsFailed  int
	MessagesScraped int
}

// Service scrapes configured channels one at a time and stages one batch per
// channel per run.
type Service struct {
	config  *config.Config
	client  platform.Client
	staging staging.Store

	// Overridable in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService creates a new scraper service.
func NewService(cfg *config.Config, client platform.Client, staging staging.Store) *Service {
	return &Service{
		config:  cfg,
		client:  client,
		staging: staging,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Run scrapes every configured channel sequentially, pausing for the
// configured cooldown between channels to respect platform rate limits.
// A failed channel is logged and skipped; the run continues. Cancellation is
// observed between channels, not mid-fetch.
func (s *Service) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	scrapeDate := s.now().UTC()

	logrus.Infof("Starting scrape of %d channels (limit %d per channel)",
		len(s.config.Channels), s.config.FetchLimit)

	for i, channel := range s.config.Channels {
		if i > 0 {
			if err := s.sleep(ctx, s.config.ChannelCooldown); err != nil {
				logrus.Infof("Scrape cancelled after %d channels", stats.ChannelsScraped)
				return stats, err
			}
		}

		logrus.Infof("START scraping channel: %s", channel)
		records, err := s.scrapeChannel(ctx, channel, scrapeDate)
		if err != nil {
			// Rate limits, auth failures and network errors are isolated
			// per channel; the originating type aids triage.
			logrus.Errorf("FAILED scraping %s: %T - %v", channel, err, err)
			stats.ChannelsFailed++
			continue
		}
		logrus.Infof("COMPLETE scraped %d messages from %s", len(records), channel)

		if len(records) == 0 {
			continue
		}
		if _, err := s.staging.WriteBatch(scrapeDate, channel, records); err != nil {
			logrus.Errorf("Failed to stage batch for %s: %v", channel, err)
			stats.ChannelsFailed++
			continue
		}
		stats.ChannelsScraped++
		stats.MessagesScraped += len(records)
	}

	logrus.Infof("Scraping completed: %d channels staged, %d failed, %d messages",
		stats.ChannelsScraped, stats.ChannelsFailed, stats.MessagesScraped)
	return stats, nil
}

func (s *Service) scrapeChannel(ctx context.Context, channel string, scrapeDate time.Time) ([]models.StagedMessage, error) {
	messages, err := s.client.RecentMessages(ctx, channel, s.config.FetchLimit)
	if err != nil {
		return nil, err
	}

	records := make([]models.StagedMessage, 0, len(messages))
	for _, m := range messages {
		rec := models.StagedMessage{
			MessageID:   m.ID,
			ChannelName: channel,
			MessageDate: m.Date,
			MessageText: m.Text,
			HasMedia:    models.BoolInt(m.HasPhoto),
			Views:       m.Views,
			Forwards:    m.Forwards,
		}
		if m.HasPhoto {
			rec.ImagePath = s.downloadPhoto(ctx, channel, m.ID, scrapeDate)
		}
		records = append(records, rec)
	}
	return records, nil
}

// downloadPhoto attempts exactly one download per message. Failure is logged
// and yields a nil path; it never aborts the batch.
func (s *Service) downloadPhoto(ctx context.Context, channel string, messageID int64, scrapeDate time.Time) *string {
	path := filepath.Join(s.config.MediaDir, channel,
		scrapeDate.Format("2006-01-02"), fmt.Sprintf("%d.jpg", messageID))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logrus.Warnf("Failed to create media directory for %s: %v", channel, err)
		return nil
	}
	if err := s.client.DownloadPhoto(ctx, channel, messageID, path); err != nil {
		logrus.Warnf("Failed to download photo for message %d in %s: %v", messageID, channel, err)
		return nil
	}
	return &path
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
