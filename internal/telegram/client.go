// Package telegram provides a Telegram MTProto client wrapper for channel
// history export: paged fetch, media transfer and re-upload.
package telegram

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"

	"github.com/harhitroot/tgmirror/internal/logger"
)

// downloadThreads bounds the parallel part fetchers per media transfer.
const downloadThreads = 4

// downloadPartSize is the chunk size for upload.getFile calls.
const downloadPartSize = 512 * 1024

// Client wraps the raw tg API with rate-limited high-level operations.
type Client struct {
	api     *tg.Client
	limiter *Limiter
	log     *logger.Logger
}

// NewClient creates a client wrapper around an authorized API handle.
func NewClient(api *tg.Client, limiter *Limiter) *Client {
	if limiter == nil {
		limiter = DefaultLimiter()
	}
	return &Client{
		api:     api,
		limiter: limiter,
		log:     logger.Get(),
	}
}

// Limiter exposes the admission gate so callers can share it with the
// retry wrapper.
func (c *Client) Limiter() *Limiter {
	return c.limiter
}

// ResolveChannel resolves a channel username to channel info.
// The username may carry an @ prefix.
func (c *Client) ResolveChannel(ctx context.Context, username string) (*Channel, error) {
	username = strings.TrimPrefix(username, "@")

	if err := c.limiter.Admit(ctx); err != nil {
		return nil, err
	}

	c.log.Info().Str("username", username).Msg("telegram: resolving channel username")
	resolved, err := c.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: username,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve username %s: %w", username, c.noteFloodWait(err))
	}

	if len(resolved.Chats) == 0 {
		return nil, fmt.Errorf("channel not found: %s", username)
	}

	ch, ok := resolved.Chats[0].(*tg.Channel)
	if !ok {
		return nil, fmt.Errorf("not a channel: %s", username)
	}

	return &Channel{
		ID:         ch.ID,
		AccessHash: ch.AccessHash,
		Username:   username,
		Title:      ch.Title,
	}, nil
}

// GetHistory fetches up to limit messages with ids strictly greater than
// offsetID, in ascending id order. Returns an empty slice when the channel
// is exhausted.
func (c *Client) GetHistory(ctx context.Context, channel *Channel, offsetID int, limit int) ([]Message, error) {
	if limit > 100 {
		limit = 100 // telegram api limit
	}

	// ascending iteration: the window of `limit` messages immediately
	// newer than offsetID; the offset message itself is excluded
	reqOffset := offsetID
	if reqOffset == 0 {
		reqOffset = 1
	}

	c.log.Debug().
		Int64("channel_id", channel.ID).
		Int("offset_id", offsetID).
		Int("limit", limit).
		Msg("telegram: calling MessagesGetHistory")
	history, err := c.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:      channel.InputPeer(),
		OffsetID:  reqOffset,
		AddOffset: -limit,
		Limit:     limit,
		MinID:     offsetID,
	})
	if err != nil {
		return nil, fmt.Errorf("get history: %w", c.noteFloodWait(err))
	}

	messages := extractMessages(history, channel)
	sortAscending(messages)
	return messages, nil
}

// GetMessagesByIDs resolves full message detail for the given ids,
// in ascending id order.
func (c *Client) GetMessagesByIDs(ctx context.Context, channel *Channel, ids []int) ([]Message, error) {
	inputIDs := make([]tg.InputMessageClass, 0, len(ids))
	for _, id := range ids {
		inputIDs = append(inputIDs, &tg.InputMessageID{ID: id})
	}

	result, err := c.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
		Channel: &tg.InputChannel{
			ChannelID:  channel.ID,
			AccessHash: channel.AccessHash,
		},
		ID: inputIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("get messages by ids: %w", c.noteFloodWait(err))
	}

	messages := extractMessages(result, channel)
	sortAscending(messages)
	return messages, nil
}

// DownloadAttachment transfers the message's attachment bytes to path using
// a bounded number of parallel part fetchers.
func (c *Client) DownloadAttachment(ctx context.Context, msg *Message, path string) error {
	att := msg.Attachment
	if att == nil {
		return fmt.Errorf("message %d has no attachment", msg.ID)
	}

	var loc tg.InputFileLocationClass
	if att.IsPhoto() {
		if att.PhotoThumbSize == "" {
			return fmt.Errorf("message %d: no photo size available", msg.ID)
		}
		loc = &tg.InputPhotoFileLocation{
			ID:            att.PhotoID,
			AccessHash:    att.PhotoAccessHash,
			FileReference: att.PhotoFileRef,
			ThumbSize:     att.PhotoThumbSize,
		}
	} else {
		if att.DocID == 0 {
			return fmt.Errorf("message %d: no document location available", msg.ID)
		}
		loc = &tg.InputDocumentFileLocation{
			ID:            att.DocID,
			AccessHash:    att.DocAccessHash,
			FileReference: att.DocFileRef,
		}
	}

	return c.downloadTo(ctx, loc, path)
}

// DownloadWebpagePreview transfers the embedded preview image of a link
// preview message to path.
func (c *Client) DownloadWebpagePreview(ctx context.Context, msg *Message, path string) error {
	wp := msg.WebPage
	if wp == nil || !wp.HasPhoto {
		return fmt.Errorf("message %d has no webpage preview image", msg.ID)
	}

	loc := &tg.InputPhotoFileLocation{
		ID:            wp.PhotoID,
		AccessHash:    wp.PhotoAccessHash,
		FileReference: wp.PhotoFileRef,
		ThumbSize:     wp.PhotoThumbSize,
	}
	return c.downloadTo(ctx, loc, path)
}

func (c *Client) downloadTo(ctx context.Context, loc tg.InputFileLocationClass, path string) error {
	// admitted once per media, not per part
	if err := c.limiter.Admit(ctx); err != nil {
		return err
	}

	d := downloader.NewDownloader().WithPartSize(downloadPartSize)
	_, err := d.Download(c.api, loc).
		WithThreads(downloadThreads).
		WithProgress(&transferProgress{log: c.log, path: path}).
		ToPath(ctx, path)
	if err != nil {
		return fmt.Errorf("download media: %w", c.noteFloodWait(err))
	}
	return nil
}

// transferProgress surfaces per-part download progress while the bytes
// are in flight.
type transferProgress struct {
	log  *logger.Logger
	path string
}

var _ downloader.Progress = (*transferProgress)(nil)

func (p *transferProgress) Chunk(_ context.Context, state downloader.ProgressState) error {
	p.log.Debug().
		Str("path", p.path).
		Int("part", state.Part).
		Int("total", state.Total).
		Int("part_size", state.PartSize).
		Msg("telegram: media part received")
	return nil
}

// SendText sends a plain text message preserving formatting entities.
func (c *Client) SendText(ctx context.Context, peer *Channel, text string, entities []tg.MessageEntityClass) error {
	if err := c.limiter.Admit(ctx); err != nil {
		return err
	}

	req := &tg.MessagesSendMessageRequest{
		Peer:     peer.InputPeer(),
		Message:  text,
		RandomID: randomID(),
	}
	if len(entities) > 0 {
		req.SetEntities(entities)
	}

	if _, err := c.api.MessagesSendMessage(ctx, req); err != nil {
		return fmt.Errorf("send message: %w", c.noteFloodWait(err))
	}
	return nil
}

// SendFile uploads the local file and sends it to peer with the message's
// text as caption, carrying forward attachment-specific hints.
func (c *Client) SendFile(ctx context.Context, peer *Channel, msg *Message, path string) error {
	if err := c.limiter.Admit(ctx); err != nil {
		return err
	}

	u := uploader.NewUploader(c.api)
	file, err := u.FromPath(ctx, path)
	if err != nil {
		return fmt.Errorf("upload file %s: %w", path, c.noteFloodWait(err))
	}

	media := uploadedMedia(msg.Attachment, file)
	return c.sendMedia(ctx, peer, media, msg.Text, msg.Entities)
}

// SendMediaRef re-sends the message's attachment via its original server-side
// reference, moving no local bytes.
func (c *Client) SendMediaRef(ctx context.Context, peer *Channel, msg *Message) error {
	att := msg.Attachment
	if att == nil {
		return fmt.Errorf("message %d has no attachment", msg.ID)
	}

	if err := c.limiter.Admit(ctx); err != nil {
		return err
	}

	var media tg.InputMediaClass
	if att.IsPhoto() {
		media = &tg.InputMediaPhoto{
			ID: &tg.InputPhoto{
				ID:            att.PhotoID,
				AccessHash:    att.PhotoAccessHash,
				FileReference: att.PhotoFileRef,
			},
		}
	} else {
		media = &tg.InputMediaDocument{
			ID: &tg.InputDocument{
				ID:            att.DocID,
				AccessHash:    att.DocAccessHash,
				FileReference: att.DocFileRef,
			},
		}
	}

	return c.sendMedia(ctx, peer, media, msg.Text, msg.Entities)
}

func (c *Client) sendMedia(ctx context.Context, peer *Channel, media tg.InputMediaClass, caption string, entities []tg.MessageEntityClass) error {
	req := &tg.MessagesSendMediaRequest{
		Peer:     peer.InputPeer(),
		Media:    media,
		Message:  caption,
		RandomID: randomID(),
	}
	if len(entities) > 0 {
		req.SetEntities(entities)
	}

	if _, err := c.api.MessagesSendMedia(ctx, req); err != nil {
		return fmt.Errorf("send media: %w", c.noteFloodWait(err))
	}
	return nil
}

// ForwardMessage forwards a single message to peer, caption preserved.
func (c *Client) ForwardMessage(ctx context.Context, from, to *Channel, id int) error {
	if err := c.limiter.Admit(ctx); err != nil {
		return err
	}

	_, err := c.api.MessagesForwardMessages(ctx, &tg.MessagesForwardMessagesRequest{
		FromPeer: from.InputPeer(),
		ToPeer:   to.InputPeer(),
		ID:       []int{id},
		RandomID: []int64{randomID()},
	})
	if err != nil {
		return fmt.Errorf("forward message %d: %w", id, c.noteFloodWait(err))
	}
	return nil
}

// uploadedMedia wraps an uploaded file into the input media matching the
// original attachment kind: streaming flag for video, voice flag for voice
// notes, mime and filename for documents.
func uploadedMedia(att *Attachment, file tg.InputFileClass) tg.InputMediaClass {
	if att == nil {
		return &tg.InputMediaUploadedDocument{
			File:     file,
			MimeType: "application/octet-stream",
		}
	}

	switch att.Kind {
	case AttachPhoto:
		return &tg.InputMediaUploadedPhoto{File: file}
	case AttachVideo, AttachAnimation:
		video := &tg.DocumentAttributeVideo{Duration: att.Duration}
		video.SetSupportsStreaming(true)
		return &tg.InputMediaUploadedDocument{
			File:       file,
			MimeType:   orDefault(att.MimeType, "video/mp4"),
			Attributes: []tg.DocumentAttributeClass{video},
		}
	case AttachVoice:
		audio := &tg.DocumentAttributeAudio{Duration: int(att.Duration)}
		audio.SetVoice(true)
		return &tg.InputMediaUploadedDocument{
			File:       file,
			MimeType:   orDefault(att.MimeType, "audio/ogg"),
			Attributes: []tg.DocumentAttributeClass{audio},
		}
	case AttachAudio:
		return &tg.InputMediaUploadedDocument{
			File:       file,
			MimeType:   orDefault(att.MimeType, "audio/mpeg"),
			Attributes: []tg.DocumentAttributeClass{&tg.DocumentAttributeAudio{Duration: int(att.Duration)}},
		}
	default:
		attrs := []tg.DocumentAttributeClass{}
		if att.FileName != "" {
			attrs = append(attrs, &tg.DocumentAttributeFilename{FileName: att.FileName})
		}
		return &tg.InputMediaUploadedDocument{
			File:       file,
			MimeType:   orDefault(att.MimeType, "application/octet-stream"),
			Attributes: attrs,
		}
	}
}

// noteFloodWait feeds a FLOOD_WAIT hint into the limiter and returns the
// error as a typed FloodWaitError so callers can match on it.
func (c *Client) noteFloodWait(err error) error {
	if secs := parseFloodWait(err); secs > 0 {
		c.log.Warn().Int("wait_seconds", secs).Msg("telegram: FLOOD_WAIT detected, updating rate limiter")
		c.limiter.SetFloodWait(secs)
	}
	return wrapFloodWait(err)
}

func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}

func randomID() int64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return int64(binary.LittleEndian.Uint64(b[:]))
}
