package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// BoolInt is a bool that serializes to JSON as 0/1, matching the staged
// batch format. It also accepts true/false when decoding.
type BoolInt bool

func (b BoolInt) MarshalJSON() ([]byte, error) {
	if b {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

func (b *BoolInt) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "0", "false":
		*b = false
	case "1", "true":
		*b = true
	default:
		return fmt.Errorf("invalid has_media value: %s", data)
	}
	return nil
}

// StagedMessage is one record of a staged batch, handed from the scraper to
// the loader. Field names match the on-disk JSON format.
type StagedMessage struct {
	MessageID   int64      `json:"message_id"`
	ChannelName string     `json:"channel_name"`
	MessageDate *time.Time `json:"message_date"`
	MessageText string     `json:"message_text"`
	HasMedia    BoolInt    `json:"has_media"`
	Views       int        `json:"views"`
	Forwards    int        `json:"forwards"`
	ImagePath   *string    `json:"image_path"`
}

// Message is a row of the raw_messages table.
type Message struct {
	MessageID   int64   `json:"message_id"`
	ChannelName string  `json:"channel_name"`
	MessageDate *string `json:"message_date"`
	MessageText string  `json:"message_text"`
	HasMedia    bool    `json:"has_media"`
	Views       int     `json:"views"`
	Forwards    int     `json:"forwards"`
	ImagePath   *string `json:"image_path"`
	ScrapedAt   string  `json:"scraped_at"`
}

// Summary is the store-wide aggregate returned by the summary report.
type Summary struct {
	TotalMessages      int      `json:"total_messages"`
	TotalChannels      int      `json:"total_channels"`
	MessagesWithImages int      `json:"messages_with_images"`
	TotalViews         int64    `json:"total_views"`
	AvgViews           *float64 `json:"avg_views"`
	MaxViews           *int64   `json:"max_views"`
	EarliestDate       *string  `json:"earliest_date"`
	LatestDate         *string  `json:"latest_date"`
}

// ProductSummary is one entry of the top products report.
type ProductSummary struct {
	ProductName  string   `json:"product_name"`
	MentionCount int      `json:"mention_count"`
	AvgViews     float64  `json:"avg_views"`
	AvgPrice     *float64 `json:"avg_price"`
	MinPrice     *int     `json:"min_price"`
	MaxPrice     *int     `json:"max_price"`
}

// DailyActivity is one day bucket of a channel's posting time series.
type DailyActivity struct {
	PostDate    string  `json:"post_date"`
	PostCount   int     `json:"post_count"`
	AvgViews    float64 `json:"avg_views"`
	ImagesCount int     `json:"images_count"`
}

// ChannelActivity holds per-channel statistics plus the daily time series.
type ChannelActivity struct {
	ChannelName     string          `json:"channel_name"`
	TotalPosts      int             `json:"total_posts"`
	AvgViews        float64         `json:"avg_views"`
	MaxViews        int             `json:"max_views"`
	PostsWithImages int             `json:"posts_with_images"`
	ImagePercentage float64         `json:"image_percentage"`
	FirstPostDate   *string         `json:"first_post_date"`
	LastPostDate    *string         `json:"last_post_date"`
	DailyActivity   []DailyActivity `json:"daily_activity"`
}

// SearchResult is one message search hit with a truncated text preview.
type SearchResult struct {
	MessageID      int64   `json:"message_id"`
	ChannelName    string  `json:"channel_name"`
	MessageDate    *string `json:"message_date"`
	MessagePreview string  `json:"message_preview"`
	Views          int     `json:"views"`
	Forwards       int     `json:"forwards"`
	HasMedia       bool    `json:"has_media"`
	ImagePath      *string `json:"image_path"`
}

// ChannelVisualStats compares engagement of media vs non-media posts for one
// channel. The averages and the delta are nil when a side has no posts.
type ChannelVisualStats struct {
	ChannelName                 string   `json:"channel_name"`
	TotalPosts                  int      `json:"total_posts"`
	PostsWithImages             int      `json:"posts_with_images"`
	PostsWithoutImages          int      `json:"posts_without_images"`
	ImagePercentage             float64  `json:"image_percentage"`
	AvgViewsWithImages          *float64 `json:"avg_views_with_images"`
	AvgViewsWithoutImages       *float64 `json:"avg_views_without_images"`
	EngagementDifferencePercent *float64 `json:"engagement_difference_percent"`
}

// RunReport summarizes one pipeline run for notifications.
type RunReport struct {
	RunID           string    `json:"run_id"`
	StartedAt       time.Time `json:"started_at"`
	Duration        string    `json:"duration"`
	ChannelsScraped int       `json:"channels_scraped"`
	ChannelsFailed  int       `json:"channels_failed"`
	MessagesScraped int       `json:"messages_scraped"`
	RowsLoaded      int       `json:"rows_loaded"`
	ImagesDetected  int       `json:"images_detected"`
	Errors          []string  `json:"errors,omitempty"`
}

// JSON renders the report for webhook payloads and logs.
func (r *RunReport) JSON() string {
	data, _ := json.MarshalIndent(r, "", "  ")
	return string(data)
}
