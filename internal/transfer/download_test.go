package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harhitroot/tgmirror/internal/telegram"
)

// fakeMediaClient counts byte-transfer invocations and writes a marker file.
type fakeMediaClient struct {
	attachmentCalls int
	previewCalls    int
	err             error
}

func (f *fakeMediaClient) DownloadAttachment(_ context.Context, _ *telegram.Message, path string) error {
	f.attachmentCalls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(path, []byte("media-bytes"), 0644)
}

func (f *fakeMediaClient) DownloadWebpagePreview(_ context.Context, _ *telegram.Message, path string) error {
	f.previewCalls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(path, []byte("preview-bytes"), 0644)
}

func TestDownload_Attachment(t *testing.T) {
	dir := t.TempDir()
	client := &fakeMediaClient{}
	d := NewDownloader(client, dir, nil)

	m := &telegram.Message{
		ID:         10,
		Attachment: &telegram.Attachment{Kind: telegram.AttachPhoto},
	}

	res, err := d.Download(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "10.jpeg"), res.Path)
	assert.True(t, res.Transferred)
	assert.Equal(t, 1, client.attachmentCalls)
}

func TestDownload_Idempotent(t *testing.T) {
	dir := t.TempDir()
	client := &fakeMediaClient{}
	d := NewDownloader(client, dir, nil)

	m := &telegram.Message{
		ID:         11,
		Attachment: &telegram.Attachment{Kind: telegram.AttachDocument, FileName: "notes.pdf"},
	}

	first, err := d.Download(context.Background(), m)
	require.NoError(t, err)
	require.True(t, first.Transferred)

	second, err := d.Download(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, first.Path, second.Path, "same path both times")
	assert.False(t, second.Transferred, "no second transfer")
	assert.Equal(t, 1, client.attachmentCalls, "transport called once")
}

func TestDownload_PollSidecar(t *testing.T) {
	dir := t.TempDir()
	client := &fakeMediaClient{}
	d := NewDownloader(client, dir, nil)

	m := &telegram.Message{
		ID:   12,
		Poll: &telegram.Poll{Question: "Q", Answers: []string{"A", "B"}},
	}

	res, err := d.Download(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "12_poll.json"), res.Path)
	assert.False(t, res.Transferred, "sidecars do not count as downloads")
	assert.Zero(t, client.attachmentCalls)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	var poll telegram.Poll
	require.NoError(t, json.Unmarshal(data, &poll))
	assert.Equal(t, "Q", poll.Question)
	assert.Equal(t, []string{"A", "B"}, poll.Answers)
}

func TestDownload_GeoSidecar(t *testing.T) {
	dir := t.TempDir()
	d := NewDownloader(&fakeMediaClient{}, dir, nil)

	m := &telegram.Message{ID: 13, Geo: &telegram.Geo{Lat: 51.5, Long: -0.12}}

	res, err := d.Download(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "13_geo.json"), res.Path)
}

func TestDownload_WebpageWithoutPhoto(t *testing.T) {
	dir := t.TempDir()
	client := &fakeMediaClient{}
	d := NewDownloader(client, dir, nil)

	m := &telegram.Message{
		ID:      14,
		WebPage: &telegram.WebPage{URL: "https://example.org", Title: "Example"},
	}

	res, err := d.Download(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "14_webpage.txt"), res.Path)
	assert.Zero(t, client.previewCalls)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://example.org")
	assert.Contains(t, string(data), "Example")
}

func TestDownload_WebpageWithPhoto(t *testing.T) {
	dir := t.TempDir()
	client := &fakeMediaClient{}
	d := NewDownloader(client, dir, nil)

	m := &telegram.Message{
		ID:      15,
		WebPage: &telegram.WebPage{URL: "https://example.org", HasPhoto: true},
	}

	res, err := d.Download(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "15_webpage_image.jpeg"), res.Path)
	assert.True(t, res.Transferred)
	assert.Equal(t, 1, client.previewCalls)
}

func TestDownload_NoMedia(t *testing.T) {
	d := NewDownloader(&fakeMediaClient{}, t.TempDir(), nil)

	res, err := d.Download(context.Background(), &telegram.Message{ID: 16, Text: "just text"})
	require.NoError(t, err)
	assert.Empty(t, res.Path)
	assert.False(t, res.Transferred)
}

func TestDownload_TransferFailure(t *testing.T) {
	client := &fakeMediaClient{err: fmt.Errorf("connection reset")}
	d := NewDownloader(client, t.TempDir(), nil)

	m := &telegram.Message{
		ID:         17,
		Attachment: &telegram.Attachment{Kind: telegram.AttachVideo},
	}

	res, err := d.Download(context.Background(), m)
	assert.Error(t, err)
	assert.Empty(t, res.Path)
}
