// Package analytics computes read-only aggregates over the message store,
// applying the extraction engine where product-level breakdowns are needed.
// No operation mutates stored rows.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/medtel/channel-analytics/internal/extraction"
	"github.com/medtel/channel-analytics/internal/models"
	"github.com/medtel/channel-analytics/internal/store"
)

// ErrNotFound marks a not-found outcome (unknown channel, empty ranked
// report). It is distinct from an empty-but-valid result.
var ErrNotFound = errors.New("not found")

// ErrInvalidLimit marks a non-positive result cap.
var ErrInvalidLimit = errors.New("limit must be a positive integer")

// ErrEmptyQuery marks a missing search query.
var ErrEmptyQuery = errors.New("search query must not be empty")

const previewLength = 100

// Service answers the aggregate queries.
type Service struct {
	store *store.Store
}

// NewService creates a new analytics service.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// Summary returns the store-wide aggregate. An empty store yields zero
// counts and nil optional fields.
func (s *Service) Summary(ctx context.Context) (*models.Summary, error) {
	return s.store.Summary(ctx)
}

// TopProducts runs the extraction engine over every message with non-blank
// text and ranks categories by mention count (descending), breaking ties on
// the category label so the order is reproducible. Derived facts are
// recomputed on every call and never persisted, keeping the extraction rules
// changeable without a migration.
func (s *Service) TopProducts(ctx context.Context, limit int) ([]models.ProductSummary, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	rows, err := s.store.MessagesWithText(ctx)
	if err != nil {
		return nil, err
	}

	type aggregate struct {
		mentions int
		viewsSum int
		prices   []int
	}
	groups := make(map[string]*aggregate)

	for _, row := range rows {
		fact := extraction.Extract(row.Text)
		if fact.Category == extraction.OtherCategory {
			continue
		}
		agg := groups[fact.Category]
		if agg == nil {
			agg = &aggregate{}
			groups[fact.Category] = agg
		}
		agg.mentions++
		agg.viewsSum += row.Views
		if fact.Price != nil {
			agg.prices = append(agg.prices, *fact.Price)
		}
	}

	if len(groups) == 0 {
		return nil, fmt.Errorf("no products found: %w", ErrNotFound)
	}

	products := make([]models.ProductSummary, 0, len(groups))
	for category, agg := range groups {
		product := models.ProductSummary{
			ProductName:  category,
			MentionCount: agg.mentions,
			AvgViews:     round2(float64(agg.viewsSum) / float64(agg.mentions)),
		}
		if len(agg.prices) > 0 {
			sum, min, max := 0, agg.prices[0], agg.prices[0]
			for _, p := range agg.prices {
				sum += p
				if p < min {
					min = p
				}
				if p > max {
					max = p
				}
			}
			avg := round2(float64(sum) / float64(len(agg.prices)))
			product.AvgPrice = &avg
			product.MinPrice = &min
			product.MaxPrice = &max
		}
		products = append(products, product)
	}

	sort.Slice(products, func(i, j int) bool {
		if products[i].MentionCount != products[j].MentionCount {
			return products[i].MentionCount > products[j].MentionCount
		}
		return products[i].ProductName < products[j].ProductName
	})

	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

// ChannelActivity returns per-channel statistics plus a day-bucketed time
// series, most recent day first. An unknown channel yields ErrNotFound.
func (s *Service) ChannelActivity(ctx context.Context, channel string) (*models.ChannelActivity, error) {
	count, err := s.store.ChannelMessageCount(ctx, channel)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("channel %q: %w", channel, ErrNotFound)
	}

	activity, err := s.store.ChannelStats(ctx, channel)
	if err != nil {
		return nil, err
	}
	activity.AvgViews = round2(activity.AvgViews)
	if activity.TotalPosts > 0 {
		activity.ImagePercentage = round2(float64(activity.PostsWithImages) * 100.0 / float64(activity.TotalPosts))
	}

	daily, err := s.store.ChannelDailyActivity(ctx, channel)
	if err != nil {
		return nil, err
	}
	for i := range daily {
		daily[i].AvgViews = round2(daily[i].AvgViews)
	}
	activity.DailyActivity = daily

	return activity, nil
}

// SearchMessages finds messages containing the query (case-insensitive,
// unanchored), optionally restricted to an exact channel, ordered by
// descending views and capped at limit. Each hit carries a 100-character
// preview, ellipsis-suffixed when truncated.
func (s *Service) SearchMessages(ctx context.Context, query, channel string, limit int) ([]models.SearchResult, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	rows, err := s.store.SearchMessages(ctx, query, channel, limit)
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(rows))
	for _, msg := range rows {
		results = append(results, models.SearchResult{
			MessageID:      msg.MessageID,
			ChannelName:    msg.ChannelName,
			MessageDate:    msg.MessageDate,
			MessagePreview: preview(msg.MessageText),
			Views:          msg.Views,
			Forwards:       msg.Forwards,
			HasMedia:       msg.HasMedia,
			ImagePath:      msg.ImagePath,
		})
	}
	return results, nil
}

// VisualContentStats compares engagement of media vs non-media posts per
// channel. When a channel has no non-media posts (or their average is zero)
// the delta is nil, never a division error. An empty store yields
// ErrNotFound.
func (s *Service) VisualContentStats(ctx context.Context) ([]models.ChannelVisualStats, error) {
	rows, err := s.store.VisualContentStats(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no visual content data available: %w", ErrNotFound)
	}

	for i := range rows {
		stats := &rows[i]
		if stats.TotalPosts > 0 {
			stats.ImagePercentage = round2(float64(stats.PostsWithImages) * 100.0 / float64(stats.TotalPosts))
		}
		if stats.AvgViewsWithImages != nil {
			rounded := round2(*stats.AvgViewsWithImages)
			stats.AvgViewsWithImages = &rounded
		}
		if stats.AvgViewsWithoutImages != nil {
			rounded := round2(*stats.AvgViewsWithoutImages)
			stats.AvgViewsWithoutImages = &rounded
		}
		if stats.AvgViewsWithImages != nil && stats.AvgViewsWithoutImages != nil &&
			*stats.AvgViewsWithoutImages != 0 {
			delta := round2((*stats.AvgViewsWithImages - *stats.AvgViewsWithoutImages) *
				100.0 / *stats.AvgViewsWithoutImages)
			stats.EngagementDifferencePercent = &delta
		}
	}
	return rows, nil
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength]) + "..."
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
