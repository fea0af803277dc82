// Package exporter orchestrates the message processing pipeline: paginated
// fetch, classification, concurrent media transfer, transcript recording
// and checkpoint advancement.
package exporter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harhitroot/tgmirror/internal/classify"
	"github.com/harhitroot/tgmirror/internal/logger"
	"github.com/harhitroot/tgmirror/internal/telegram"
	"github.com/harhitroot/tgmirror/internal/transcript"
	"github.com/harhitroot/tgmirror/internal/transfer"
)

// Client is the transport surface the page driver needs.
type Client interface {
	GetHistory(ctx context.Context, channel *telegram.Channel, offsetID int, limit int) ([]telegram.Message, error)
	GetMessagesByIDs(ctx context.Context, channel *telegram.Channel, ids []int) ([]telegram.Message, error)
}

// Downloader materializes a message's media locally.
type Downloader interface {
	Download(ctx context.Context, m *telegram.Message) (transfer.Result, error)
}

// Uploader re-sends a message to the destination channel.
type Uploader interface {
	Enabled() bool
	Upload(ctx context.Context, m *telegram.Message, localPath string) (bool, error)
}

// TranscriptStore appends normalized message records.
type TranscriptStore interface {
	Append(records []transcript.Record) error
}

// CheckpointStore persists the resumption offset.
type CheckpointStore interface {
	Load() (transcript.Checkpoint, error)
	Save(cp transcript.Checkpoint) error
}

// PageEvent is emitted after each fully processed page.
type PageEvent struct {
	RunID         string    `json:"run_id"`
	ChannelID     int64     `json:"channel_id"`
	LastMessageID int       `json:"last_message_id"`
	Seen          int64     `json:"seen"`
	Processed     int64     `json:"processed"`
	Downloaded    int64     `json:"downloaded"`
	Uploaded      int64     `json:"uploaded"`
	Skipped       int64     `json:"skipped"`
	At            time.Time `json:"at"`
}

// EventPublisher publishes page events. Optional.
type EventPublisher interface {
	PublishPage(ctx context.Context, event PageEvent) error
}

// Options tunes the page driver.
type Options struct {
	PageLimit    int
	PageDelay    time.Duration
	RetryCount   int
	RetryBackoff time.Duration
}

// Service is the top-level export pipeline for one channel.
type Service struct {
	client      Client
	limiter     *telegram.Limiter
	channel     *telegram.Channel
	policy      classify.Policy
	downloader  Downloader
	uploader    Uploader
	transcript  TranscriptStore
	checkpoints CheckpointStore
	publisher   EventPublisher
	scheduler   *Scheduler
	opts        Options

	stats *Stats
	runID string
	log   *logger.Logger
}

// New creates an export service. The publisher may be nil.
func New(
	client Client,
	limiter *telegram.Limiter,
	channel *telegram.Channel,
	policy classify.Policy,
	downloader Downloader,
	uploader Uploader,
	transcriptStore TranscriptStore,
	checkpoints CheckpointStore,
	publisher EventPublisher,
	scheduler *Scheduler,
	opts Options,
) *Service {
	if opts.PageLimit <= 0 {
		opts.PageLimit = 100
	}
	if opts.RetryCount <= 0 {
		opts.RetryCount = 3
	}
	runID := uuid.NewString()
	return &Service{
		client:      client,
		limiter:     limiter,
		channel:     channel,
		policy:      policy,
		downloader:  downloader,
		uploader:    uploader,
		transcript:  transcriptStore,
		checkpoints: checkpoints,
		publisher:   publisher,
		scheduler:   scheduler,
		opts:        opts,
		stats:       &Stats{},
		runID:       runID,
		log:         logger.Get().WithRun(runID),
	}
}

// Stats exposes the run's progress counters.
func (s *Service) Stats() *Stats {
	return s.stats
}

// Run drives the export loop until the channel is exhausted or a fatal
// error occurs. A flood wait caught at this level pauses for the hinted
// duration and re-fetches the same page without advancing the offset.
func (s *Service) Run(ctx context.Context) error {
	offset := s.resumeOffset()

	s.log.Info().
		Int64("channel_id", s.channel.ID).
		Str("channel", s.channel.Username).
		Int("offset_id", offset).
		Msg("exporter: starting run")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := s.fetchPage(ctx, offset)
		if err != nil {
			retry, waitErr := s.waitFlood(ctx, err)
			if waitErr != nil {
				return waitErr
			}
			if retry {
				continue
			}
			return err
		}

		if len(page) == 0 {
			s.log.Info().Str("progress", s.stats.Report()).Msg("exporter: channel exhausted, run complete")
			return nil
		}

		full, err := s.resolveDetail(ctx, page)
		if err != nil {
			retry, waitErr := s.waitFlood(ctx, err)
			if waitErr != nil {
				return waitErr
			}
			if retry {
				continue
			}
			return err
		}
		if len(full) == 0 {
			full = page
		}

		s.stats.Seen.Add(int64(len(full)))

		var filtered []telegram.Message
		for i := range full {
			if classify.ShouldProcess(&full[i], s.policy) {
				filtered = append(filtered, full[i])
			} else {
				s.stats.Skipped.Add(1)
			}
		}

		paths, err := s.processBatch(ctx, filtered)
		if err != nil {
			// A page abandoned mid-batch must not advance the checkpoint:
			// the next run re-fetches it from the previous offset.
			return err
		}

		if err := s.transcript.Append(s.project(full, paths)); err != nil {
			s.log.Error().Err(err).Msg("exporter: failed to append transcript")
		}

		last := full[len(full)-1].ID
		if err := s.checkpoints.Save(transcript.Checkpoint{ChannelID: s.channel.ID, OffsetID: last}); err != nil {
			s.log.Error().Err(err).Msg("exporter: failed to save checkpoint")
		}

		s.log.Info().
			Int("last_message_id", last).
			Str("progress", s.stats.Report()).
			Msg("exporter: page done")
		s.publishPage(ctx, last)

		if err := sleepCtx(ctx, s.opts.PageDelay); err != nil {
			return err
		}
		offset = last
	}
}

// resumeOffset loads the checkpoint, resetting to zero when the configured
// channel differs from the checkpoint's channel.
func (s *Service) resumeOffset() int {
	cp, err := s.checkpoints.Load()
	if err != nil {
		s.log.Warn().Err(err).Msg("exporter: failed to load checkpoint, starting from zero")
		return 0
	}
	if cp.ChannelID != s.channel.ID {
		if cp.ChannelID != 0 {
			s.log.Info().
				Int64("previous_channel", cp.ChannelID).
				Msg("exporter: channel changed, resetting offset")
		}
		return 0
	}
	return cp.OffsetID
}

func (s *Service) fetchPage(ctx context.Context, offset int) ([]telegram.Message, error) {
	var page []telegram.Message
	err := telegram.WithRetry(ctx, s.limiter, s.opts.RetryCount, s.opts.RetryBackoff, func(ctx context.Context) error {
		var err error
		page, err = s.client.GetHistory(ctx, s.channel, offset, s.opts.PageLimit)
		return err
	})
	return page, err
}

func (s *Service) resolveDetail(ctx context.Context, page []telegram.Message) ([]telegram.Message, error) {
	ids := make([]int, 0, len(page))
	for i := range page {
		ids = append(ids, page[i].ID)
	}

	var full []telegram.Message
	err := telegram.WithRetry(ctx, s.limiter, s.opts.RetryCount, s.opts.RetryBackoff, func(ctx context.Context) error {
		var err error
		full, err = s.client.GetMessagesByIDs(ctx, s.channel, ids)
		return err
	})
	return full, err
}

// processBatch runs the per-message pipeline across the filtered page and
// returns local media paths keyed by message id. Per-message failures are
// absorbed here: a failed transfer is still processed, never retried. A
// scheduler error means the page was abandoned before every chunk ran and
// is returned to the caller.
func (s *Service) processBatch(ctx context.Context, filtered []telegram.Message) (map[int]string, error) {
	paths := make(map[int]string, len(filtered))
	var mu sync.Mutex

	err := s.scheduler.Run(ctx, len(filtered), func(i int) {
		m := &filtered[i]

		res, err := s.downloader.Download(ctx, m)
		if err != nil {
			s.log.Error().Err(err).Int("message_id", m.ID).Msg("exporter: download failed")
		}
		if res.Transferred {
			s.stats.Downloaded.Add(1)
		}
		if res.Path != "" {
			mu.Lock()
			paths[m.ID] = res.Path
			mu.Unlock()
		}

		if s.uploader != nil && s.uploader.Enabled() {
			sent, err := s.uploader.Upload(ctx, m, res.Path)
			if err != nil {
				s.log.Error().Err(err).Int("message_id", m.ID).Msg("exporter: upload failed")
			}
			if sent {
				s.stats.Uploaded.Add(1)
			}
		}

		s.stats.Processed.Add(1)
	})

	return paths, err
}

// project builds transcript records for every message of the page,
// including ones filtered out of processing, in supplied order.
func (s *Service) project(page []telegram.Message, paths map[int]string) []transcript.Record {
	records := make([]transcript.Record, 0, len(page))
	for i := range page {
		m := &page[i]
		kind := classify.Classify(m)

		rec := transcript.Record{
			ID:       m.ID,
			Text:     m.Text,
			Date:     m.Date,
			Out:      m.Out,
			SenderID: m.SenderID,
		}
		if kind != classify.KindText && kind != classify.KindNone {
			rec.HasMedia = true
			rec.MediaKind = string(kind)
			rec.MediaPath = paths[m.ID]
			if m.Attachment != nil {
				rec.MediaName = m.Attachment.FileName
			}
		}
		records = append(records, rec)
	}
	return records
}

// waitFlood handles a flood-wait signal at the page boundary: sleep the
// full hinted duration and report that the same page should be retried.
// A non-nil error means the pause itself was interrupted and the run
// must stop with that error, not the flood wait.
func (s *Service) waitFlood(ctx context.Context, err error) (bool, error) {
	var fw *telegram.FloodWaitError
	if !errors.As(err, &fw) {
		return false, nil
	}

	s.log.Warn().
		Int("wait_seconds", fw.Seconds).
		Msg("exporter: flood wait, pausing before retrying the same page")
	if sleepErr := sleepCtx(ctx, fw.Duration()); sleepErr != nil {
		return false, sleepErr
	}
	return true, nil
}

func (s *Service) publishPage(ctx context.Context, last int) {
	if s.publisher == nil {
		return
	}

	event := PageEvent{
		RunID:         s.runID,
		ChannelID:     s.channel.ID,
		LastMessageID: last,
		Seen:          s.stats.Seen.Load(),
		Processed:     s.stats.Processed.Load(),
		Downloaded:    s.stats.Downloaded.Load(),
		Uploaded:      s.stats.Uploaded.Load(),
		Skipped:       s.stats.Skipped.Load(),
		At:            time.Now(),
	}
	if err := s.publisher.PublishPage(ctx, event); err != nil {
		s.log.Warn().Err(err).Msg("exporter: failed to publish page event")
	}
}
