package staging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtel/channel-analytics/internal/models"
)

var scrapeDate = time.Date(2026, 1, 17, 8, 0, 0, 0, time.UTC)

func TestWriteBatch_ReadBatch_Roundtrip(t *testing.T) {
	s := NewFSStore(t.TempDir())

	date := scrapeDate
	image := "data/raw/images/lobelia4cosmetics/2026-01-17/42.jpg"
	records := []models.StagedMessage{
		{
			MessageID:   42,
			ChannelName: "lobelia4cosmetics",
			MessageDate: &date,
			MessageText: "NIDO Price 7500",
			HasMedia:    true,
			Views:       120,
			Forwards:    2,
			ImagePath:   &image,
		},
		{
			MessageID:   43,
			ChannelName: "lobelia4cosmetics",
			MessageText: "no media here",
		},
	}

	path, err := s.WriteBatch(scrapeDate, "lobelia4cosmetics", records)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("2026-01-17", "lobelia4cosmetics.json"),
		mustRel(t, s.root, path))

	got, err := s.ReadBatch(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(42), got[0].MessageID)
	assert.True(t, bool(got[0].HasMedia))
	require.NotNil(t, got[0].ImagePath)
	assert.Equal(t, image, *got[0].ImagePath)
	assert.False(t, bool(got[1].HasMedia))
	assert.Nil(t, got[1].ImagePath)
}

// has_media must serialize as 0/1, image_path as null when absent.
func TestWriteBatch_WireFormat(t *testing.T) {
	s := NewFSStore(t.TempDir())

	path, err := s.WriteBatch(scrapeDate, "ch", []models.StagedMessage{
		{MessageID: 1, ChannelName: "ch", HasMedia: true},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"has_media": 1`)
	assert.Contains(t, string(data), `"image_path": null`)
}

func TestWriteBatch_OverwritesSameChannelAndDate(t *testing.T) {
	s := NewFSStore(t.TempDir())

	_, err := s.WriteBatch(scrapeDate, "ch", []models.StagedMessage{
		{MessageID: 1, ChannelName: "ch"},
		{MessageID: 2, ChannelName: "ch"},
	})
	require.NoError(t, err)

	path, err := s.WriteBatch(scrapeDate, "ch", []models.StagedMessage{
		{MessageID: 3, ChannelName: "ch"},
	})
	require.NoError(t, err)

	got, err := s.ReadBatch(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].MessageID)
}

func TestReadBatch_SkipsMalformedRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	payload := `[
		{"message_id": 1, "channel_name": "ch", "has_media": 0, "views": 5},
		{"message_id": "not-a-number", "channel_name": "ch"},
		{"message_id": 2, "channel_name": "ch", "has_media": 1, "views": 7}
	]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	s := NewFSStore(dir)
	got, err := s.ReadBatch(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].MessageID)
	assert.Equal(t, int64(2), got[1].MessageID)
}

func TestWalk_VisitsBatchesInOrder(t *testing.T) {
	s := NewFSStore(t.TempDir())

	day1 := time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)
	_, err := s.WriteBatch(day2, "beta", []models.StagedMessage{{MessageID: 3, ChannelName: "beta"}})
	require.NoError(t, err)
	_, err = s.WriteBatch(day1, "alpha", []models.StagedMessage{{MessageID: 1, ChannelName: "alpha"}})
	require.NoError(t, err)
	_, err = s.WriteBatch(day1, "beta", []models.StagedMessage{{MessageID: 2, ChannelName: "beta"}})
	require.NoError(t, err)

	var visited []string
	err = s.Walk(func(path string) error {
		visited = append(visited, mustRel(t, s.root, path))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("2026-01-16", "alpha.json"),
		filepath.Join("2026-01-16", "beta.json"),
		filepath.Join("2026-01-17", "beta.json"),
	}, visited)
}

func TestWalk_MissingRoot(t *testing.T) {
	s := NewFSStore(filepath.Join(t.TempDir(), "does-not-exist"))
	err := s.Walk(func(string) error { return nil })
	assert.True(t, os.IsNotExist(err))
}

func mustRel(t *testing.T, base, path string) string {
	t.Helper()
	rel, err := filepath.Rel(base, path)
	require.NoError(t, err)
	return rel
}
