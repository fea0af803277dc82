package telegram

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is the process-wide admission gate for outbound Telegram calls.
// It never rejects, only delays: a base per-call limiter paces requests,
// a sliding call-count window forces a cooldown when calls burst too hot,
// and a flood-wait overlay honors server-suggested pauses. Each admitted
// call additionally sleeps a small random jitter to desynchronize bursts.
type Limiter struct {
	base *rate.Limiter

	mu          sync.Mutex
	windowStart time.Time
	calls       int

	threshold int
	window    time.Duration
	cooldown  time.Duration
	jitterMax time.Duration

	floodWaitUntil time.Time
}

// LimiterOptions configures a Limiter.
type LimiterOptions struct {
	RPS       float64       // base pacing, requests per second
	Burst     int           // allowed burst
	Threshold int           // calls per window before a cooldown kicks in
	Window    time.Duration // sliding window length
	Cooldown  time.Duration // forced pause once the threshold is crossed
	JitterMax time.Duration // upper bound for per-call random jitter
}

// NewLimiter creates an admission gate with the given options.
func NewLimiter(opts LimiterOptions) *Limiter {
	return &Limiter{
		base:      rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		threshold: opts.Threshold,
		window:    opts.Window,
		cooldown:  opts.Cooldown,
		jitterMax: opts.JitterMax,
	}
}

// DefaultLimiter returns a gate with conservative settings: 2 rps pacing,
// cooldown of one minute after 15 calls within a minute, jitter up to 500ms.
func DefaultLimiter() *Limiter {
	return NewLimiter(LimiterOptions{
		RPS:       2.0,
		Burst:     1,
		Threshold: 15,
		Window:    60 * time.Second,
		Cooldown:  60 * time.Second,
		JitterMax: 500 * time.Millisecond,
	})
}

// Admit blocks until the next call is allowed.
func (l *Limiter) Admit(ctx context.Context) error {
	l.mu.Lock()
	waitUntil := l.floodWaitUntil
	l.mu.Unlock()

	// server-suggested pause takes precedence over everything else
	if time.Now().Before(waitUntil) {
		if err := sleep(ctx, time.Until(waitUntil)); err != nil {
			return err
		}
	}

	if err := l.admitWindow(ctx); err != nil {
		return err
	}

	if l.jitterMax > 0 {
		jitter := time.Duration(rand.Int63n(int64(l.jitterMax)))
		if err := sleep(ctx, jitter); err != nil {
			return err
		}
	}

	return l.base.Wait(ctx)
}

// admitWindow counts the call against the sliding window and pauses for the
// cooldown once the threshold is crossed. Counting happens at admission
// time, not completion, so concurrent callers observe deterministic counts.
func (l *Limiter) admitWindow(ctx context.Context) error {
	l.mu.Lock()
	now := time.Now()
	if l.windowStart.IsZero() || now.Sub(l.windowStart) > l.window {
		l.windowStart = now
		l.calls = 0
	}
	l.calls++
	cooling := l.threshold > 0 && l.calls > l.threshold
	if cooling {
		l.calls = 0
		l.windowStart = now.Add(l.cooldown)
	}
	l.mu.Unlock()

	if cooling {
		return sleep(ctx, l.cooldown)
	}
	return nil
}

// SetFloodWait records a server-suggested pause after a FLOOD_WAIT error.
func (l *Limiter) SetFloodWait(seconds int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.floodWaitUntil = time.Now().Add(time.Duration(seconds) * time.Second)
}

// sleep waits for d or until the context is canceled.
func sleep(ctx context.Context, d time.Duration) error {
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
