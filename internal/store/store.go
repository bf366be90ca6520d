// Package store persists scraped messages in a SQLite warehouse table and
// serves the read-side aggregate queries.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/medtel/channel-analytics/internal/models"
)

// Schema for the raw_messages table. Applied on Open.
// message_id is the natural dedup key: re-loading overlapping scrape windows
// must never duplicate a row.
const Schema = `
CREATE TABLE IF NOT EXISTS raw_messages (
	message_id INTEGER PRIMARY KEY,
	channel_name TEXT NOT NULL,
	message_date TEXT,
	message_text TEXT,
	has_media INTEGER NOT NULL DEFAULT 0,
	views INTEGER NOT NULL DEFAULT 0,
	forwards INTEGER NOT NULL DEFAULT 0,
	image_path TEXT,
	scraped_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_raw_messages_channel ON raw_messages(channel_name);
CREATE INDEX IF NOT EXISTS idx_raw_messages_date ON raw_messages(message_date);
`

// Store wraps the warehouse database connection.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite handles one writer at a time; a single pooled connection keeps
	// transactions and PRAGMAs on the same handle.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db}
	if err := s.Init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return s, nil
}

// Init creates the raw_messages table if it doesn't exist.
func (s *Store) Init() error {
	_, err := s.db.Exec(Schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database availability.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertIgnoreBatch inserts the records in one transaction using
// INSERT OR IGNORE, so rows whose message_id already exists are skipped
// silently. Returns the number of rows actually inserted.
func (s *Store) InsertIgnoreBatch(ctx context.Context, records []models.StagedMessage) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO raw_messages
			(message_id, channel_name, message_date, message_text,
			 has_media, views, forwards, image_path, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	scrapedAt := time.Now().UTC().Format(time.RFC3339)
	inserted := 0
	for _, rec := range records {
		var date any
		if rec.MessageDate != nil {
			date = rec.MessageDate.UTC().Format(time.RFC3339)
		}
		var imagePath any
		if rec.ImagePath != nil {
			imagePath = *rec.ImagePath
		}

		result, err := stmt.ExecContext(ctx,
			rec.MessageID, rec.ChannelName, date, rec.MessageText,
			boolToInt(bool(rec.HasMedia)), rec.Views, rec.Forwards, imagePath, scrapedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert message %d: %w", rec.MessageID, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return inserted, nil
}

// Count returns the total number of stored messages.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_messages`).Scan(&count)
	return count, err
}

// Summary computes the store-wide aggregate. An empty store yields zero
// counts and nil optional fields, not an error.
func (s *Store) Summary(ctx context.Context) (*models.Summary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT channel_name),
			COALESCE(SUM(has_media), 0),
			COALESCE(SUM(views), 0),
			AVG(views),
			MAX(views),
			MIN(message_date),
			MAX(message_date)
		FROM raw_messages`)

	var summary models.Summary
	var avgViews sql.NullFloat64
	var maxViews sql.NullInt64
	var earliest, latest sql.NullString
	err := row.Scan(&summary.TotalMessages, &summary.TotalChannels,
		&summary.MessagesWithImages, &summary.TotalViews,
		&avgViews, &maxViews, &earliest, &latest)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}

	if avgViews.Valid {
		summary.AvgViews = &avgViews.Float64
	}
	if maxViews.Valid {
		summary.MaxViews = &maxViews.Int64
	}
	if earliest.Valid {
		summary.EarliestDate = &earliest.String
	}
	if latest.Valid {
		summary.LatestDate = &latest.String
	}
	return &summary, nil
}

// TextRow is the slice of a message the extraction-based reports need.
type TextRow struct {
	MessageID   int64
	ChannelName string
	Text        string
	Views       int
}

// MessagesWithText returns every message carrying non-blank text.
func (s *Store) MessagesWithText(ctx context.Context) ([]TextRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, channel_name, message_text, views
		FROM raw_messages
		WHERE message_text IS NOT NULL AND TRIM(message_text) != ''`)
	if err != nil {
		return nil, fmt.Errorf("failed to query message texts: %w", err)
	}
	defer rows.Close()

	var result []TextRow
	for rows.Next() {
		var r TextRow
		if err := rows.Scan(&r.MessageID, &r.ChannelName, &r.Text, &r.Views); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// ChannelMessageCount returns the number of messages stored for the channel.
func (s *Store) ChannelMessageCount(ctx context.Context, channel string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM raw_messages WHERE channel_name = ?`, channel).Scan(&count)
	return count, err
}

// ChannelStats computes aggregate statistics for one channel. The caller is
// expected to have verified the channel exists.
func (s *Store) ChannelStats(ctx context.Context, channel string) (*models.ChannelActivity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(AVG(views), 0),
			COALESCE(MAX(views), 0),
			COALESCE(SUM(has_media), 0),
			MIN(message_date),
			MAX(message_date)
		FROM raw_messages
		WHERE channel_name = ?`, channel)

	activity := &models.ChannelActivity{ChannelName: channel}
	var first, last sql.NullString
	err := row.Scan(&activity.TotalPosts, &activity.AvgViews, &activity.MaxViews,
		&activity.PostsWithImages, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to query channel stats: %w", err)
	}

	if first.Valid {
		activity.FirstPostDate = &first.String
	}
	if last.Valid {
		activity.LastPostDate = &last.String
	}
	return activity, nil
}

// ChannelDailyActivity returns the day-bucketed posting series for one
// channel, most recent day first.
func (s *Store) ChannelDailyActivity(ctx context.Context, channel string) ([]models.DailyActivity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			DATE(message_date),
			COUNT(*),
			COALESCE(AVG(views), 0),
			COALESCE(SUM(has_media), 0)
		FROM raw_messages
		WHERE channel_name = ?
		GROUP BY DATE(message_date)
		ORDER BY DATE(message_date) DESC`, channel)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily activity: %w", err)
	}
	defer rows.Close()

	var result []models.DailyActivity
	for rows.Next() {
		var day models.DailyActivity
		var postDate sql.NullString
		if err := rows.Scan(&postDate, &day.PostCount, &day.AvgViews, &day.ImagesCount); err != nil {
			return nil, err
		}
		day.PostDate = postDate.String
		result = append(result, day)
	}
	return result, rows.Err()
}

// SearchMessages returns messages whose text contains the query (SQLite LIKE,
// case-insensitive for ASCII), optionally restricted to one channel, ordered
// by descending views and capped at limit.
func (s *Store) SearchMessages(ctx context.Context, query, channel string, limit int) ([]models.Message, error) {
	sqlQuery := `
		SELECT message_id, channel_name, message_date, message_text,
			has_media, views, forwards, image_path, scraped_at
		FROM raw_messages
		WHERE message_text LIKE ?`
	args := []any{"%" + query + "%"}

	if channel != "" {
		sqlQuery += ` AND channel_name = ?`
		args = append(args, channel)
	}
	sqlQuery += ` ORDER BY views DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	var result []models.Message
	for rows.Next() {
		var msg models.Message
		var date, text, imagePath sql.NullString
		var hasMedia int
		if err := rows.Scan(&msg.MessageID, &msg.ChannelName, &date, &text,
			&hasMedia, &msg.Views, &msg.Forwards, &imagePath, &msg.ScrapedAt); err != nil {
			return nil, err
		}
		if date.Valid {
			msg.MessageDate = &date.String
		}
		msg.MessageText = text.String
		msg.HasMedia = hasMedia != 0
		if imagePath.Valid {
			msg.ImagePath = &imagePath.String
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

// VisualContentStats aggregates media vs non-media view averages per channel,
// ordered by descending image percentage. The engagement delta is left for
// the analytics layer so null handling stays in one place.
func (s *Store) VisualContentStats(ctx context.Context) ([]models.ChannelVisualStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			channel_name,
			COUNT(*),
			COALESCE(SUM(has_media), 0),
			COUNT(*) - COALESCE(SUM(has_media), 0),
			AVG(CASE WHEN has_media = 1 THEN views END),
			AVG(CASE WHEN has_media = 0 THEN views END)
		FROM raw_messages
		GROUP BY channel_name
		ORDER BY SUM(has_media) * 100.0 / COUNT(*) DESC, channel_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query visual content stats: %w", err)
	}
	defer rows.Close()

	var result []models.ChannelVisualStats
	for rows.Next() {
		var stats models.ChannelVisualStats
		var avgWith, avgWithout sql.NullFloat64
		if err := rows.Scan(&stats.ChannelName, &stats.TotalPosts,
			&stats.PostsWithImages, &stats.PostsWithoutImages,
			&avgWith, &avgWithout); err != nil {
			return nil, err
		}
		if avgWith.Valid {
			stats.AvgViewsWithImages = &avgWith.Float64
		}
		if avgWithout.Valid {
			stats.AvgViewsWithoutImages = &avgWithout.Float64
		}
		result = append(result, stats)
	}
	return result, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
