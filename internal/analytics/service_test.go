package analytics

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtel/channel-analytics/internal/models"
	"github.com/medtel/channel-analytics/internal/store"
)

func setup(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewService(st), st
}

func seed(t *testing.T, st *store.Store, records ...models.StagedMessage) {
	t.Helper()
	_, err := st.InsertIgnoreBatch(context.Background(), records)
	require.NoError(t, err)
}

func msg(id int64, channel, text string, views int, hasMedia bool) models.StagedMessage {
	date := time.Date(2026, 1, 17, 6, 28, 0, 0, time.UTC)
	return models.StagedMessage{
		MessageID:   id,
		ChannelName: channel,
		MessageDate: &date,
		MessageText: text,
		HasMedia:    models.BoolInt(hasMedia),
		Views:       views,
	}
}

// End-to-end scenario: two messages, one NIDO post with media, one plain
// post without.
func TestEndToEndScenario(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	seed(t, st,
		msg(1, "lobelia4cosmetics", "NIDO milk powder Price 7500g special", 100, true),
		msg(2, "lobelia4cosmetics", "delivery schedule update", 50, false),
	)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalMessages)
	assert.Equal(t, 1, summary.MessagesWithImages)

	products, err := svc.TopProducts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "NIDO", products[0].ProductName)
	assert.Equal(t, 1, products[0].MentionCount)
	require.NotNil(t, products[0].AvgPrice)
	assert.Equal(t, 7500.0, *products[0].AvgPrice)

	stats, err := svc.VisualContentStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 50.0, stats[0].ImagePercentage)
}

func TestTopProducts_OrderingAndTieBreak(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	var records []models.StagedMessage
	id := int64(1)
	add := func(text string, n int) {
		for i := 0; i < n; i++ {
			records = append(records, msg(id, "ch", text, 10, false))
			id++
		}
	}
	add("MELATONIN gummies", 5)
	add("VITAMIN C 1000mg", 3)
	add("NIDO 400g tin", 3)
	seed(t, st, records...)

	products, err := svc.TopProducts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, products, 3)

	// Highest mention count first; ties break on the category label.
	assert.Equal(t, "MELATONIN", products[0].ProductName)
	assert.Equal(t, 5, products[0].MentionCount)
	assert.Equal(t, "NIDO", products[1].ProductName)
	assert.Equal(t, "VITAMIN", products[2].ProductName)
}

func TestTopProducts_LimitBoundsOutput(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	seed(t, st,
		msg(1, "ch", "MELATONIN", 10, false),
		msg(2, "ch", "VITAMIN", 10, false),
		msg(3, "ch", "NIDO", 10, false),
	)

	products, err := svc.TopProducts(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestTopProducts_InvalidLimit(t *testing.T) {
	svc, _ := setup(t)

	_, err := svc.TopProducts(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = svc.TopProducts(context.Background(), -3)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

// Messages matching no rule fall into OTHER, which ranked reports exclude;
// an all-OTHER store is a not-found outcome, not an empty list.
func TestTopProducts_OnlyOtherIsNotFound(t *testing.T) {
	svc, st := setup(t)

	seed(t, st, msg(1, "ch", "no product keywords here", 10, false))

	_, err := svc.TopProducts(context.Background(), 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

// Prices of zero are never averaged in.
func TestTopProducts_ZeroPriceExcluded(t *testing.T) {
	svc, st := setup(t)

	seed(t, st,
		msg(1, "ch", "NIDO Price 0 promo", 10, false),
		msg(2, "ch", "NIDO Price 6000 birr", 10, false),
	)

	products, err := svc.TopProducts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 2, products[0].MentionCount)
	require.NotNil(t, products[0].AvgPrice)
	assert.Equal(t, 6000.0, *products[0].AvgPrice)
	assert.Equal(t, 6000, *products[0].MinPrice)
	assert.Equal(t, 6000, *products[0].MaxPrice)
}

func TestChannelActivity(t *testing.T) {
	svc, st := setup(t)

	seed(t, st,
		msg(1, "tikvahpharma", "post one", 100, true),
		msg(2, "tikvahpharma", "post two", 200, false),
	)

	activity, err := svc.ChannelActivity(context.Background(), "tikvahpharma")
	require.NoError(t, err)
	assert.Equal(t, 2, activity.TotalPosts)
	assert.Equal(t, 150.0, activity.AvgViews)
	assert.Equal(t, 200, activity.MaxViews)
	assert.Equal(t, 1, activity.PostsWithImages)
	assert.Equal(t, 50.0, activity.ImagePercentage)
	require.Len(t, activity.DailyActivity, 1)
	assert.Equal(t, "2026-01-17", activity.DailyActivity[0].PostDate)
}

func TestChannelActivity_UnknownChannel(t *testing.T) {
	svc, st := setup(t)

	seed(t, st, msg(1, "tikvahpharma", "post", 10, false))

	_, err := svc.ChannelActivity(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchMessages_PreviewTruncation(t *testing.T) {
	svc, st := setup(t)

	long := strings.Repeat("a", 150)
	seed(t, st,
		msg(1, "ch", long, 10, false),
		msg(2, "ch", "short aaa text", 99, false),
	)

	results, err := svc.SearchMessages(context.Background(), "aaa", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Ordered by descending views.
	assert.Equal(t, int64(2), results[0].MessageID)
	assert.Equal(t, "short aaa text", results[0].MessagePreview)

	assert.Len(t, results[1].MessagePreview, 103)
	assert.True(t, strings.HasSuffix(results[1].MessagePreview, "..."))
}

func TestSearchMessages_Validation(t *testing.T) {
	svc, _ := setup(t)

	_, err := svc.SearchMessages(context.Background(), "", "", 10)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = svc.SearchMessages(context.Background(), "nido", "", 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

// A channel with only media posts must yield nil averages and a nil delta,
// never a division error.
func TestVisualContentStats_AllMediaChannel(t *testing.T) {
	svc, st := setup(t)

	seed(t, st,
		msg(1, "ch", "photo one", 100, true),
		msg(2, "ch", "photo two", 200, true),
	)

	stats, err := svc.VisualContentStats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 100.0, stats[0].ImagePercentage)
	require.NotNil(t, stats[0].AvgViewsWithImages)
	assert.Equal(t, 150.0, *stats[0].AvgViewsWithImages)
	assert.Nil(t, stats[0].AvgViewsWithoutImages)
	assert.Nil(t, stats[0].EngagementDifferencePercent)
}

func TestVisualContentStats_EngagementDelta(t *testing.T) {
	svc, st := setup(t)

	seed(t, st,
		msg(1, "ch", "with photo", 300, true),
		msg(2, "ch", "without photo", 200, false),
	)

	stats, err := svc.VisualContentStats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 1)
	require.NotNil(t, stats[0].EngagementDifferencePercent)
	assert.Equal(t, 50.0, *stats[0].EngagementDifferencePercent)
}

func TestVisualContentStats_EmptyStore(t *testing.T) {
	svc, _ := setup(t)

	_, err := svc.VisualContentStats(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSummary_EmptyStore(t *testing.T) {
	svc, _ := setup(t)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalMessages)
	assert.Nil(t, summary.AvgViews)
}
