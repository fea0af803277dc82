package exporter

import (
	"context"
	"sync"
	"time"
)

// Scheduler drives bounded-parallelism execution across a page of messages.
// Items are partitioned into contiguous chunks of at most Width; each
// chunk's invocations run concurrently and the whole chunk finishes before
// the next one starts. The delay is inserted between chunks, not after the
// last one.
type Scheduler struct {
	Width int
	Delay time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewScheduler creates a scheduler with the given concurrency width and
// inter-chunk delay.
func NewScheduler(width int, delay time.Duration) *Scheduler {
	if width < 1 {
		width = 1
	}
	return &Scheduler{
		Width: width,
		Delay: delay,
		sleep: sleepCtx,
	}
}

// Run invokes fn once per index in [0, n). Failures inside fn are the
// callee's business: fn takes no return value so a bad message can never
// abort its chunk.
func (s *Scheduler) Run(ctx context.Context, n int, fn func(i int)) error {
	for start := 0; start < n; start += s.Width {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + s.Width
		if end > n {
			end = n
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				fn(i)
			}(i)
		}
		wg.Wait()

		if end < n && s.Delay > 0 {
			if err := s.sleep(ctx, s.Delay); err != nil {
				return err
			}
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
