// Package transfer moves message media between Telegram and local storage:
// byte downloads, sidecar serialization for structured payloads, and
// re-upload to a destination channel.
package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harhitroot/tgmirror/internal/classify"
	"github.com/harhitroot/tgmirror/internal/logger"
	"github.com/harhitroot/tgmirror/internal/telegram"
)

// MediaClient is the transport surface the downloader needs.
type MediaClient interface {
	DownloadAttachment(ctx context.Context, msg *telegram.Message, path string) error
	DownloadWebpagePreview(ctx context.Context, msg *telegram.Message, path string) error
}

// Result reports where a message's media ended up. Transferred is true only
// when bytes actually moved, so sidecars and idempotent skips do not count
// toward the download metric.
type Result struct {
	Path        string
	Transferred bool
}

// Downloader materializes message media under a per-channel output
// directory. Paths are deterministic functions of message id and content
// kind, which makes re-runs idempotent.
type Downloader struct {
	client MediaClient
	dir    string
	log    *logger.Logger
}

// NewDownloader creates a downloader writing into dir.
func NewDownloader(client MediaClient, dir string, log *logger.Logger) *Downloader {
	if log == nil {
		log = logger.Get()
	}
	return &Downloader{client: client, dir: dir, log: log}
}

// Download fetches the message's media to local storage and returns its
// path. Structured payloads are serialized to sidecar files instead of
// transferring bytes. Messages without media return an empty result.
func (d *Downloader) Download(ctx context.Context, m *telegram.Message) (Result, error) {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	kind := classify.Classify(m)
	switch kind {
	case classify.KindPoll:
		return d.sidecarJSON(m.ID, "poll", m.Poll)
	case classify.KindGeo:
		return d.sidecarJSON(m.ID, "geo", m.Geo)
	case classify.KindContact:
		return d.sidecarJSON(m.ID, "contact", m.Contact)
	case classify.KindVenue:
		return d.sidecarJSON(m.ID, "venue", m.Venue)
	case classify.KindWebPage:
		return d.webpage(ctx, m)
	}

	if m.Attachment == nil {
		return Result{}, nil
	}
	return d.attachment(ctx, m)
}

// attachment transfers the bytes of a file-backed attachment, skipping the
// transfer when the target file already exists on disk.
func (d *Downloader) attachment(ctx context.Context, m *telegram.Message) (Result, error) {
	path := filepath.Join(d.dir, fmt.Sprintf("%d.%s", m.ID, classify.Extension(m.Attachment)))

	if _, err := os.Stat(path); err == nil {
		d.log.Debug().Int("message_id", m.ID).Str("path", path).Msg("transfer: file exists, skipping download")
		return Result{Path: path}, nil
	}

	d.log.Info().
		Int("message_id", m.ID).
		Str("kind", string(m.Attachment.Kind)).
		Int64("size", m.Attachment.Size).
		Str("path", path).
		Msg("transfer: downloading media")
	if err := d.client.DownloadAttachment(ctx, m, path); err != nil {
		return Result{}, fmt.Errorf("download message %d: %w", m.ID, err)
	}

	d.log.Info().
		Int("message_id", m.ID).
		Str("kind", string(m.Attachment.Kind)).
		Int64("size", m.Attachment.Size).
		Str("path", path).
		Msg("transfer: media downloaded")
	return Result{Path: path, Transferred: true}, nil
}

// webpage serializes the link preview; an embedded preview image is treated
// as a regular photo transfer.
func (d *Downloader) webpage(ctx context.Context, m *telegram.Message) (Result, error) {
	wp := m.WebPage
	if wp == nil {
		return Result{}, nil
	}

	if !wp.HasPhoto {
		path := filepath.Join(d.dir, fmt.Sprintf("%d_webpage.txt", m.ID))
		body := fmt.Sprintf("url: %s\ntitle: %s\ndescription: %s\n", wp.URL, wp.Title, wp.Description)
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			return Result{}, fmt.Errorf("write webpage sidecar: %w", err)
		}
		return Result{Path: path}, nil
	}

	path := filepath.Join(d.dir, fmt.Sprintf("%d_webpage_image.jpeg", m.ID))
	if _, err := os.Stat(path); err == nil {
		d.log.Debug().Int("message_id", m.ID).Str("path", path).Msg("transfer: webpage image exists, skipping download")
		return Result{Path: path}, nil
	}

	if err := d.client.DownloadWebpagePreview(ctx, m, path); err != nil {
		return Result{}, fmt.Errorf("download webpage image %d: %w", m.ID, err)
	}
	return Result{Path: path, Transferred: true}, nil
}

// sidecarJSON writes a structured payload to a deterministic sidecar file.
func (d *Downloader) sidecarJSON(msgID int, suffix string, payload any) (Result, error) {
	path := filepath.Join(d.dir, fmt.Sprintf("%d_%s.json", msgID, suffix))

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("marshal %s payload: %w", suffix, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return Result{}, fmt.Errorf("write %s sidecar: %w", suffix, err)
	}

	return Result{Path: path}, nil
}
