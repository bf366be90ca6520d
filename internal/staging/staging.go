// Package staging hands scraped batches from the scraper to the loader as
// date-partitioned JSON files: <root>/<YYYY-MM-DD>/<channel>.json.
package staging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/medtel/channel-analytics/internal/models"
)

// Store defines the contract for staged batch storage.
type Store interface {
	// WriteBatch persists one channel's batch for the given scrape date,
	// overwriting any previous batch for the same channel and date.
	WriteBatch(date time.Time, channel string, records []models.StagedMessage) (string, error)
	// ReadBatch decodes a staged batch file, skipping records that fail to
	// decode rather than failing the whole file.
	ReadBatch(path string) ([]models.StagedMessage, error)
	// Walk visits every staged batch file, date directories and files in
	// lexical order. A missing root returns an os.IsNotExist error.
	Walk(fn func(path string) error) error
}

// FSStore is the filesystem implementation of Store.
type FSStore struct {
	root string
}

// Ensure FSStore implements Store
var _ Store = (*FSStore)(nil)

// NewFSStore creates a staging store rooted at the given directory.
func NewFSStore(root string) *FSStore {
	return &FSStore{root: root}
}

// Root returns the staging root directory.
func (s *FSStore) Root() string {
	return s.root
}

func (s *FSStore) WriteBatch(date time.Time, channel string, records []models.StagedMessage) (string, error) {
	dir := filepath.Join(s.root, date.UTC().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal batch for %s: %w", channel, err)
	}

	path := filepath.Join(dir, channel+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write batch file: %w", err)
	}

	logrus.Infof("Staged %d messages for %s to %s", len(records), channel, path)
	return path, nil
}

func (s *FSStore) ReadBatch(path string) ([]models.StagedMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file %s: %w", path, err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse batch file %s: %w", path, err)
	}

	records := make([]models.StagedMessage, 0, len(raw))
	for i, entry := range raw {
		var rec models.StagedMessage
		if err := json.Unmarshal(entry, &rec); err != nil {
			logrus.Warnf("Skipping malformed record %d in %s: %v", i, path, err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *FSStore) Walk(fn func(path string) error) error {
	dates, err := os.ReadDir(s.root)
	if err != nil {
		return err
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Name() < dates[j].Name() })
	for _, dateEntry := range dates {
		if !dateEntry.IsDir() {
			continue
		}
		dateDir := filepath.Join(s.root, dateEntry.Name())

		files, err := os.ReadDir(dateDir)
		if err != nil {
			return fmt.Errorf("failed to read staging directory %s: %w", dateDir, err)
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
				continue
			}
			if err := fn(filepath.Join(dateDir, file.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}
