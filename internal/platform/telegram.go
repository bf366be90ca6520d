package platform

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	"github.com/sirupsen/logrus"
)

// Telegram is the MTProto implementation of Client.
type Telegram struct {
	client *telegram.Client

	// Closed once the client is connected and authorized.
	ready  chan struct{}
	cancel context.CancelFunc

	// Resolved channel peers, keyed by channel name.
	peers sync.Map
	// Photo metadata captured during fetch, keyed by "<channel>/<message_id>".
	// Needed later to build the download file location.
	photos sync.Map
}

// Ensure Telegram implements Client
var _ Client = (*Telegram)(nil)

// NewTelegram creates a Telegram client using the given MTProto credentials.
// The session file must already hold an authorized session.
func NewTelegram(apiID int, apiHash, sessionFile string) (*Telegram, error) {
	if apiID == 0 || apiHash == "" {
		return nil, fmt.Errorf("API ID and API hash are required")
	}

	t := &Telegram{
		ready: make(chan struct{}),
	}
	t.client = telegram.NewClient(apiID, apiHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: sessionFile},
	})
	return t, nil
}

// Start connects the client and blocks until ctx is cancelled. It must run
// in its own goroutine; fetch calls wait until the connection is ready.
func (t *Telegram) Start(ctx context.Context) error {
	clientCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	err := t.client.Run(clientCtx, func(ctx context.Context) error {
		status, err := t.client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to check auth status: %w", err)
		}
		if !status.Authorized {
			return fmt.Errorf("telegram session is not authorized; create the session file with an interactive login first")
		}

		logrus.Info("Telegram client started successfully")
		close(t.ready)
		<-ctx.Done()
		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("telegram client stopped: %w", err)
	}
	return nil
}

// Close stops the running client.
func (t *Telegram) Close() error {
	if t.cancel != nil {
		t.cancel()
	}
	return nil
}

func (t *Telegram) waitReady(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.ready:
		return nil
	}
}

// RecentMessages fetches up to limit most recent messages from the channel.
func (t *Telegram) RecentMessages(ctx context.Context, channel string, limit int) ([]ChannelMessage, error) {
	if err := t.waitReady(ctx); err != nil {
		return nil, err
	}

	peer, err := t.resolvePeer(ctx, channel)
	if err != nil {
		return nil, err
	}

	history, err := t.client.API().MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  peer,
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get history for %s: %w", channel, err)
	}

	var raw []tg.MessageClass
	switch result := history.(type) {
	case *tg.MessagesMessages:
		raw = result.Messages
	case *tg.MessagesChannelMessages:
		raw = result.Messages
	default:
		return nil, fmt.Errorf("unexpected history result type: %T", history)
	}

	var messages []ChannelMessage
	for _, msg := range raw {
		if len(messages) >= limit {
			break
		}
		m, ok := msg.(*tg.Message)
		if !ok {
			// Service messages carry no content worth warehousing.
			continue
		}
		messages = append(messages, t.parseMessage(m, channel))
	}
	return messages, nil
}

func (t *Telegram) parseMessage(m *tg.Message, channel string) ChannelMessage {
	msg := ChannelMessage{
		ID:   int64(m.ID),
		Text: m.Message,
	}

	if m.Date != 0 {
		date := time.Unix(int64(m.Date), 0).UTC()
		msg.Date = &date
	}
	if views, ok := m.GetViews(); ok {
		msg.Views = views
	}
	if forwards, ok := m.GetForwards(); ok {
		msg.Forwards = forwards
	}

	if media, ok := m.Media.(*tg.MessageMediaPhoto); ok {
		if photo, ok := media.Photo.(*tg.Photo); ok {
			msg.HasPhoto = true
			t.photos.Store(photoKey(channel, msg.ID), photo)
		}
	}
	return msg
}

// DownloadPhoto downloads the photo of a message fetched earlier in this
// process to the given path.
func (t *Telegram) DownloadPhoto(ctx context.Context, channel string, messageID int64, path string) error {
	value, ok := t.photos.Load(photoKey(channel, messageID))
	if !ok {
		return fmt.Errorf("no photo known for message %d in %s", messageID, channel)
	}
	photo := value.(*tg.Photo)

	thumb := largestThumbType(photo.Sizes)
	if thumb == "" {
		return fmt.Errorf("photo of message %d in %s has no downloadable size", messageID, channel)
	}

	_, err := downloader.NewDownloader().Download(t.client.API(), &tg.InputPhotoFileLocation{
		ID:            photo.ID,
		AccessHash:    photo.AccessHash,
		FileReference: photo.FileReference,
		ThumbSize:     thumb,
	}).ToPath(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to download photo for message %d: %w", messageID, err)
	}
	return nil
}

func (t *Telegram) resolvePeer(ctx context.Context, channel string) (tg.InputPeerClass, error) {
	if cached, ok := t.peers.Load(channel); ok {
		return cached.(tg.InputPeerClass), nil
	}

	resolved, err := t.client.API().ContactsResolveUsername(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve username %s: %w", channel, err)
	}

	var peer tg.InputPeerClass
	switch p := resolved.Peer.(type) {
	case *tg.PeerChannel:
		var accessHash int64
		for _, chat := range resolved.Chats {
			if ch, ok := chat.(*tg.Channel); ok && ch.ID == p.ChannelID {
				accessHash = ch.AccessHash
				break
			}
		}
		peer = &tg.InputPeerChannel{
			ChannelID:  p.ChannelID,
			AccessHash: accessHash,
		}
	case *tg.PeerChat:
		peer = &tg.InputPeerChat{ChatID: p.ChatID}
	default:
		return nil, fmt.Errorf("unexpected peer type for channel %s: %T", channel, p)
	}

	t.peers.Store(channel, peer)
	return peer, nil
}

func photoKey(channel string, messageID int64) string {
	return fmt.Sprintf("%s/%d", channel, messageID)
}

func largestThumbType(sizes []tg.PhotoSizeClass) string {
	best := ""
	bestArea := -1
	for _, size := range sizes {
		switch s := size.(type) {
		case *tg.PhotoSize:
			if area := s.W * s.H; area > bestArea {
				bestArea = area
				best = s.Type
			}
		case *tg.PhotoSizeProgressive:
			if area := s.W * s.H; area > bestArea {
				bestArea = area
				best = s.Type
			}
		}
	}
	return best
}
