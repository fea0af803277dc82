package transfer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gotd/td/tg"

	"github.com/harhitroot/tgmirror/internal/classify"
	"github.com/harhitroot/tgmirror/internal/logger"
	"github.com/harhitroot/tgmirror/internal/telegram"
)

// UploadClient is the transport surface the uploader needs.
type UploadClient interface {
	SendText(ctx context.Context, peer *telegram.Channel, text string, entities []tg.MessageEntityClass) error
	SendFile(ctx context.Context, peer *telegram.Channel, msg *telegram.Message, path string) error
	SendMediaRef(ctx context.Context, peer *telegram.Channel, msg *telegram.Message) error
	ForwardMessage(ctx context.Context, from, to *telegram.Channel, id int) error
}

// Uploader re-sends processed messages to a destination channel with text
// and formatting preserved. A nil destination disables uploading.
type Uploader struct {
	client UploadClient
	source *telegram.Channel
	dest   *telegram.Channel
	log    *logger.Logger
}

// NewUploader creates an uploader targeting dest. Pass a nil dest to
// disable uploads.
func NewUploader(client UploadClient, source, dest *telegram.Channel, log *logger.Logger) *Uploader {
	if log == nil {
		log = logger.Get()
	}
	return &Uploader{client: client, source: source, dest: dest, log: log}
}

// Enabled reports whether a destination is configured.
func (u *Uploader) Enabled() bool {
	return u.dest != nil
}

// Upload re-sends the message to the destination channel. The original text
// body and its entity list are carried verbatim, never re-derived. Returns
// true when something was sent.
func (u *Uploader) Upload(ctx context.Context, m *telegram.Message, localPath string) (bool, error) {
	if !u.Enabled() {
		return false, nil
	}

	kind := classify.Classify(m)

	// structured payloads always go out as plain text, file or not
	if kind.Structured() {
		if err := u.client.SendText(ctx, u.dest, summarize(m, kind), nil); err != nil {
			return false, fmt.Errorf("upload message %d: %w", m.ID, err)
		}
		return true, nil
	}

	if m.Attachment == nil {
		if strings.TrimSpace(m.Text) == "" {
			u.log.Warn().Int("message_id", m.ID).Msg("upload: nothing meaningful to send")
			return false, nil
		}
		if err := u.client.SendText(ctx, u.dest, m.Text, m.Entities); err != nil {
			return false, fmt.Errorf("upload message %d: %w", m.ID, err)
		}
		return true, nil
	}

	if localPath != "" {
		if err := u.client.SendFile(ctx, u.dest, m, localPath); err != nil {
			return false, fmt.Errorf("upload message %d: %w", m.ID, err)
		}
		u.cleanup(m.ID, localPath)
		return true, nil
	}

	// media was never downloaded: forward first, fall back to re-sending
	// the original server-side attachment reference
	if err := u.client.ForwardMessage(ctx, u.source, u.dest, m.ID); err != nil {
		u.log.Warn().Err(err).Int("message_id", m.ID).Msg("upload: forward failed, re-sending by reference")
		if err := u.client.SendMediaRef(ctx, u.dest, m); err != nil {
			return false, fmt.Errorf("upload message %d: %w", m.ID, err)
		}
	}
	return true, nil
}

// cleanup removes the local file after a successful upload. Best effort.
func (u *Uploader) cleanup(msgID int, path string) {
	if err := os.Remove(path); err != nil {
		u.log.Warn().Err(err).Int("message_id", msgID).Str("path", path).Msg("upload: failed to delete local file")
		return
	}
	u.log.Debug().Int("message_id", msgID).Str("path", path).Msg("upload: local file deleted")
}

// summarize renders a structured payload as human-readable text, prefixed
// by a payload-specific glyph and followed by the original caption.
func summarize(m *telegram.Message, kind classify.Kind) string {
	var b strings.Builder

	switch kind {
	case classify.KindPoll:
		b.WriteString("📊 Poll: ")
		b.WriteString(m.Poll.Question)
		for i, answer := range m.Poll.Answers {
			fmt.Fprintf(&b, "\n%d. %s", i+1, answer)
		}
	case classify.KindGeo:
		label := "Location"
		if m.Geo.Live {
			label = "Live location"
		}
		fmt.Fprintf(&b, "📍 %s: %f, %f", label, m.Geo.Lat, m.Geo.Long)
	case classify.KindContact:
		name := strings.TrimSpace(m.Contact.FirstName + " " + m.Contact.LastName)
		fmt.Fprintf(&b, "👤 Contact: %s (%s)", name, m.Contact.Phone)
	case classify.KindVenue:
		fmt.Fprintf(&b, "📍 Venue: %s, %s", m.Venue.Title, m.Venue.Address)
	case classify.KindWebPage:
		fmt.Fprintf(&b, "🔗 Link: %s", m.WebPage.URL)
		if m.WebPage.Title != "" {
			fmt.Fprintf(&b, "\n%s", m.WebPage.Title)
		}
	}

	if strings.TrimSpace(m.Text) != "" {
		b.WriteString("\n\n")
		b.WriteString(m.Text)
	}
	return b.String()
}
