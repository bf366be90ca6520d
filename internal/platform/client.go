// Package platform talks to the external messaging platform. The scraper
// depends only on the Client interface; the Telegram implementation lives in
// telegram.go.
package platform

import (
	"context"
	"time"
)

// ChannelMessage is one platform message normalized for scraping. Views and
// Forwards default to 0 when the platform does not report them; Date is nil
// when absent.
type ChannelMessage struct {
	ID       int64
	Date     *time.Time
	Text     string
	Views    int
	Forwards int
	HasPhoto bool
}

// Client defines the contract for the external messaging platform.
// Both operations are fallible and independently retryable per message.
type Client interface {
	// RecentMessages fetches up to limit most recent messages for the
	// channel, in the platform's native (newest-first) order.
	RecentMessages(ctx context.Context, channel string, limit int) ([]ChannelMessage, error)
	// DownloadPhoto downloads the photo attachment of a previously fetched
	// message to the given path.
	DownloadPhoto(ctx context.Context, channel string, messageID int64, path string) error
	Close() error
}
