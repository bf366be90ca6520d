// Package loader merges staged batches into the message store with
// insert-or-ignore semantics, making re-runs over overlapping scrape windows
// harmless.
package loader

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/medtel/channel-analytics/internal/models"
	"github.com/medtel/channel-analytics/internal/staging"
	"github.com/medtel/channel-analytics/internal/store"
)

// Service loads staged batches into the message store.
type Service struct {
	staging staging.Store
	store   *store.Store
}

// NewService creates a new loader service.
func NewService(stagingStore staging.Store, st *store.Store) *Service {
	return &Service{
		staging: stagingStore,
		store:   st,
	}
}

// Run walks the whole staging tree and upserts every staged record, one
// transaction per batch file. Unreadable files and malformed records are
// logged and skipped; a store failure aborts the run. Returns the number of
// rows actually inserted. An absent or empty staging root is a warning, not
// an error.
func (s *Service) Run(ctx context.Context) (int, error) {
	total := 0
	files := 0

	err := s.staging.Walk(func(path string) error {
		files++
		logrus.Infof("Loading staged batch: %s", path)

		records, err := s.staging.ReadBatch(path)
		if err != nil {
			logrus.Errorf("Skipping unreadable batch %s: %v", path, err)
			return nil
		}

		valid := make([]models.StagedMessage, 0, len(records))
		for _, rec := range records {
			if rec.MessageID == 0 || rec.ChannelName == "" {
				logrus.Warnf("Skipping malformed record in %s: missing message_id or channel_name", path)
				continue
			}
			valid = append(valid, rec)
		}

		inserted, err := s.store.InsertIgnoreBatch(ctx, valid)
		if err != nil {
			// Store unavailability is fatal for the run; rows committed so
			// far stay put and a retry is safe.
			return err
		}
		total += inserted
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			logrus.Warnf("Staging root not found, nothing to load: %v", err)
			return 0, nil
		}
		return total, err
	}

	if total == 0 {
		logrus.Warnf("No rows loaded from %d staged files", files)
	} else {
		logrus.Infof("Loaded %d rows from %d staged files", total, files)
	}
	return total, nil
}
