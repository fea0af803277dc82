package exporter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harhitroot/tgmirror/internal/classify"
	"github.com/harhitroot/tgmirror/internal/telegram"
	"github.com/harhitroot/tgmirror/internal/transcript"
	"github.com/harhitroot/tgmirror/internal/transfer"
)

// fakeClient serves a fixed ascending message history.
type fakeClient struct {
	mu       sync.Mutex
	messages []telegram.Message
	offsets  []int // offsets requested from GetHistory

	floodOnce    bool // return a flood wait on the first GetHistory call
	floodSeconds int
	onHistory    func() // invoked on every GetHistory call
}

func (f *fakeClient) GetHistory(_ context.Context, _ *telegram.Channel, offsetID int, limit int) ([]telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.onHistory != nil {
		f.onHistory()
	}
	f.offsets = append(f.offsets, offsetID)
	if f.floodOnce {
		f.floodOnce = false
		return nil, &telegram.FloodWaitError{Seconds: f.floodSeconds}
	}

	var page []telegram.Message
	for _, m := range f.messages {
		if m.ID > offsetID {
			page = append(page, m)
		}
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (f *fakeClient) GetMessagesByIDs(_ context.Context, _ *telegram.Channel, ids []int) ([]telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idSet := make(map[int]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	var full []telegram.Message
	for _, m := range f.messages {
		if idSet[m.ID] {
			full = append(full, m)
		}
	}
	return full, nil
}

type fakeDownloader struct {
	mu     sync.Mutex
	calls  []int
	onCall func() // invoked on every Download call
}

func (f *fakeDownloader) Download(_ context.Context, m *telegram.Message) (transfer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.onCall != nil {
		f.onCall()
	}
	f.calls = append(f.calls, m.ID)
	if m.Attachment != nil {
		return transfer.Result{Path: "/tmp/" + m.Text, Transferred: true}, nil
	}
	return transfer.Result{}, nil
}

type fakeUploader struct {
	enabled bool
	mu      sync.Mutex
	sent    []int
}

func (f *fakeUploader) Enabled() bool { return f.enabled }

func (f *fakeUploader) Upload(_ context.Context, m *telegram.Message, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m.ID)
	return true, nil
}

type memTranscript struct {
	mu      sync.Mutex
	records []transcript.Record
}

func (m *memTranscript) Append(records []transcript.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}

type memCheckpoints struct {
	mu sync.Mutex
	cp transcript.Checkpoint
}

func (m *memCheckpoints) Load() (transcript.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cp, nil
}

func (m *memCheckpoints) Save(cp transcript.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cp = cp
	return nil
}

func textMessage(id int, text string) telegram.Message {
	return telegram.Message{ID: id, Text: text, Date: time.Unix(int64(1000+id), 0)}
}

func photoMessage(id int) telegram.Message {
	return telegram.Message{
		ID:         id,
		Date:       time.Unix(int64(1000+id), 0),
		Attachment: &telegram.Attachment{Kind: telegram.AttachPhoto},
	}
}

func newTestService(client *fakeClient, checkpoints CheckpointStore, uploader Uploader) (*Service, *fakeDownloader, *memTranscript) {
	downloader := &fakeDownloader{}
	trans := &memTranscript{}
	channel := &telegram.Channel{ID: 100, Username: "test_channel"}

	svc := New(
		client,
		nil, // no limiter pacing in tests
		channel,
		classify.DefaultPolicy(),
		downloader,
		uploader,
		trans,
		checkpoints,
		nil,
		NewScheduler(5, 0),
		Options{PageLimit: 10, RetryCount: 3, RetryBackoff: time.Millisecond},
	)
	return svc, downloader, trans
}

func TestRun_CheckpointAdvancesToLastID(t *testing.T) {
	client := &fakeClient{messages: []telegram.Message{
		textMessage(1, "a"), textMessage(2, "b"), photoMessage(3),
		textMessage(4, "c"), photoMessage(5), textMessage(6, "d"), textMessage(7, "e"),
	}}
	checkpoints := &memCheckpoints{}

	svc, _, trans := newTestService(client, checkpoints, &fakeUploader{})

	require.NoError(t, svc.Run(context.Background()))

	cp, _ := checkpoints.Load()
	assert.Equal(t, int64(100), cp.ChannelID)
	assert.Equal(t, 7, cp.OffsetID, "checkpoint equals last message id")

	// next fetch after the processed page requested ids strictly greater
	require.GreaterOrEqual(t, len(client.offsets), 2)
	assert.Equal(t, 0, client.offsets[0])
	assert.Equal(t, 7, client.offsets[1])

	// transcript records every message of the page, in order
	require.Len(t, trans.records, 7)
	for i, rec := range trans.records {
		assert.Equal(t, i+1, rec.ID)
	}
	assert.True(t, trans.records[2].HasMedia)
	assert.Equal(t, "photo", trans.records[2].MediaKind)
}

func TestRun_ResumesFromCheckpoint(t *testing.T) {
	client := &fakeClient{messages: []telegram.Message{
		textMessage(1, "old"), textMessage(2, "old"), textMessage(3, "new"),
	}}
	checkpoints := &memCheckpoints{cp: transcript.Checkpoint{ChannelID: 100, OffsetID: 2}}

	svc, downloader, _ := newTestService(client, checkpoints, &fakeUploader{})
	require.NoError(t, svc.Run(context.Background()))

	assert.Equal(t, 2, client.offsets[0], "resume from persisted offset")
	assert.Equal(t, []int{3}, downloader.calls, "only new messages processed")
}

func TestRun_ChannelSwitchResetsOffset(t *testing.T) {
	client := &fakeClient{messages: []telegram.Message{textMessage(1, "a")}}
	checkpoints := &memCheckpoints{cp: transcript.Checkpoint{ChannelID: 999, OffsetID: 50}}

	svc, _, _ := newTestService(client, checkpoints, &fakeUploader{})
	require.NoError(t, svc.Run(context.Background()))

	assert.Equal(t, 0, client.offsets[0], "different channel starts from zero")
}

func TestRun_FloodWaitRetriesSameOffset(t *testing.T) {
	client := &fakeClient{
		messages:  []telegram.Message{textMessage(1, "a"), textMessage(2, "b")},
		floodOnce: true,
	}
	checkpoints := &memCheckpoints{}

	svc, _, _ := newTestService(client, checkpoints, &fakeUploader{})
	require.NoError(t, svc.Run(context.Background()))

	// first call flood-waited, second retried the identical offset
	require.GreaterOrEqual(t, len(client.offsets), 2)
	assert.Equal(t, client.offsets[0], client.offsets[1], "offset not advanced after flood wait")

	cp, _ := checkpoints.Load()
	assert.Equal(t, 2, cp.OffsetID)
}

func TestRun_CancelMidPageDoesNotAdvanceCheckpoint(t *testing.T) {
	client := &fakeClient{messages: []telegram.Message{
		textMessage(1, "a"), textMessage(2, "b"), textMessage(3, "c"),
	}}
	checkpoints := &memCheckpoints{cp: transcript.Checkpoint{ChannelID: 100, OffsetID: 0}}
	trans := &memTranscript{}

	// cancellation arrives while the first message of the page is in flight
	ctx, cancel := context.WithCancel(context.Background())
	downloader := &fakeDownloader{onCall: cancel}

	svc := New(
		client,
		nil,
		&telegram.Channel{ID: 100, Username: "test_channel"},
		classify.DefaultPolicy(),
		downloader,
		&fakeUploader{},
		trans,
		checkpoints,
		nil,
		NewScheduler(1, 0),
		Options{PageLimit: 10, RetryCount: 3, RetryBackoff: time.Millisecond},
	)

	err := svc.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []int{1}, downloader.calls, "later chunks must not run after cancellation")
	cp, _ := checkpoints.Load()
	assert.Equal(t, 0, cp.OffsetID, "abandoned page must not advance the checkpoint")
	assert.Empty(t, trans.records, "abandoned page must not reach the transcript")
}

func TestRun_CancelDuringFloodPauseReturnsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeClient{
		messages:     []telegram.Message{textMessage(1, "a")},
		floodOnce:    true,
		floodSeconds: 60,
		onHistory:    cancel, // interrupt arrives before the flood pause starts
	}
	checkpoints := &memCheckpoints{}

	svc, _, _ := newTestService(client, checkpoints, &fakeUploader{})

	err := svc.Run(ctx)
	require.ErrorIs(t, err, context.Canceled, "interrupt must surface as cancellation, not the flood wait")

	cp, _ := checkpoints.Load()
	assert.Zero(t, cp.OffsetID)
}

func TestRun_Counters(t *testing.T) {
	client := &fakeClient{messages: []telegram.Message{
		textMessage(1, "a"), photoMessage(2), photoMessage(3),
		{ID: 4, Date: time.Unix(1004, 0)}, // empty: no content, skipped
	}}
	uploader := &fakeUploader{enabled: true}

	svc, _, _ := newTestService(client, &memCheckpoints{}, uploader)
	require.NoError(t, svc.Run(context.Background()))

	stats := svc.Stats()
	assert.Equal(t, int64(4), stats.Seen.Load())
	assert.Equal(t, int64(3), stats.Processed.Load())
	assert.Equal(t, int64(2), stats.Downloaded.Load())
	assert.Equal(t, int64(3), stats.Uploaded.Load())
	assert.Equal(t, int64(1), stats.Skipped.Load())
}

func TestRun_UploadDisabled(t *testing.T) {
	client := &fakeClient{messages: []telegram.Message{photoMessage(1)}}
	uploader := &fakeUploader{enabled: false}

	svc, _, _ := newTestService(client, &memCheckpoints{}, uploader)
	require.NoError(t, svc.Run(context.Background()))

	assert.Empty(t, uploader.sent)
	assert.Equal(t, int64(0), svc.Stats().Uploaded.Load())
}

func TestStatsReport(t *testing.T) {
	var stats Stats
	stats.Seen.Store(10)
	stats.Processed.Store(5)
	stats.Downloaded.Store(3)
	stats.Uploaded.Store(2)

	assert.Equal(t, "downloaded 3, uploaded 2, processed 5/10 (50.0%)", stats.Report())
}
