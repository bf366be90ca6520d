package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtel/channel-analytics/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecords() []models.StagedMessage {
	date := time.Date(2026, 1, 17, 6, 28, 0, 0, time.UTC)
	image := "data/raw/images/lobelia4cosmetics/2026-01-17/101.jpg"
	return []models.StagedMessage{
		{
			MessageID:   101,
			ChannelName: "lobelia4cosmetics",
			MessageDate: &date,
			MessageText: "NIDO milk powder Price 7500g special",
			HasMedia:    true,
			Views:       100,
			Forwards:    3,
			ImagePath:   &image,
		},
		{
			MessageID:   102,
			ChannelName: "tikvahpharma",
			MessageDate: &date,
			MessageText: "store hours update",
			HasMedia:    false,
			Views:       50,
		},
	}
}

func TestInsertIgnoreBatch_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	inserted, err := s.InsertIgnoreBatch(ctx, testRecords())
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// Re-loading the same batch must not duplicate or corrupt rows.
	inserted, err = s.InsertIgnoreBatch(ctx, testRecords())
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSummary_EmptyStore(t *testing.T) {
	s := openTestStore(t)

	summary, err := s.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TotalMessages)
	assert.Equal(t, 0, summary.TotalChannels)
	assert.Equal(t, 0, summary.MessagesWithImages)
	assert.Nil(t, summary.AvgViews)
	assert.Nil(t, summary.MaxViews)
	assert.Nil(t, summary.EarliestDate)
	assert.Nil(t, summary.LatestDate)
}

func TestSummary(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.InsertIgnoreBatch(ctx, testRecords())
	require.NoError(t, err)

	summary, err := s.Summary(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalMessages)
	assert.Equal(t, 2, summary.TotalChannels)
	assert.Equal(t, 1, summary.MessagesWithImages)
	assert.Equal(t, int64(150), summary.TotalViews)
	require.NotNil(t, summary.AvgViews)
	assert.Equal(t, 75.0, *summary.AvgViews)
	require.NotNil(t, summary.MaxViews)
	assert.Equal(t, int64(100), *summary.MaxViews)
}

func TestMessagesWithText_SkipsBlank(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	records := testRecords()
	records = append(records, models.StagedMessage{
		MessageID:   103,
		ChannelName: "tikvahpharma",
		MessageText: "   ",
	})
	_, err := s.InsertIgnoreBatch(ctx, records)
	require.NoError(t, err)

	rows, err := s.MessagesWithText(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSearchMessages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.InsertIgnoreBatch(ctx, testRecords())
	require.NoError(t, err)

	// Case-insensitive substring match, ordered by views.
	results, err := s.SearchMessages(ctx, "nido", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(101), results[0].MessageID)

	// Channel filter is exact-match.
	results, err = s.SearchMessages(ctx, "nido", "tikvahpharma", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChannelDailyActivity_MostRecentFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	day1 := time.Date(2026, 1, 16, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 1, 17, 10, 0, 0, 0, time.UTC)
	_, err := s.InsertIgnoreBatch(ctx, []models.StagedMessage{
		{MessageID: 1, ChannelName: "ch", MessageDate: &day1, Views: 10},
		{MessageID: 2, ChannelName: "ch", MessageDate: &day2, Views: 20},
		{MessageID: 3, ChannelName: "ch", MessageDate: &day2, Views: 30, HasMedia: true},
	})
	require.NoError(t, err)

	daily, err := s.ChannelDailyActivity(ctx, "ch")
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, "2026-01-17", daily[0].PostDate)
	assert.Equal(t, 2, daily[0].PostCount)
	assert.Equal(t, 25.0, daily[0].AvgViews)
	assert.Equal(t, 1, daily[0].ImagesCount)
	assert.Equal(t, "2026-01-16", daily[1].PostDate)
}
