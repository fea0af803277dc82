package telegram

import (
	"context"
	"errors"
	"time"
)

// WithRetry runs op up to attempts times, admitting each attempt through the
// limiter and sleeping base*2^n between failures. A FloodWaitError returns
// immediately without consuming the remaining budget: the caller owns the
// full-length wait and the unconditional re-invocation.
func WithRetry(ctx context.Context, lim *Limiter, attempts int, base time.Duration, op func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if lim != nil {
			if admitErr := lim.Admit(ctx); admitErr != nil {
				return admitErr
			}
		}

		err = op(ctx)
		if err == nil {
			return nil
		}

		var fw *FloodWaitError
		if errors.As(err, &fw) {
			return err
		}

		if attempt < attempts-1 {
			backoff := base * (1 << attempt)
			if sleepErr := sleep(ctx, backoff); sleepErr != nil {
				return sleepErr
			}
		}
	}

	return err
}
