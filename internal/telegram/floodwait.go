package telegram

import (
	"fmt"
	"strings"
	"time"
)

// FloodWaitError is the rate-limit signal returned by the Telegram API.
// It carries the server-suggested wait before the same call may be retried.
type FloodWaitError struct {
	Seconds int
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait: %d seconds", e.Seconds)
}

// Duration returns the suggested wait as a time.Duration.
func (e *FloodWaitError) Duration() time.Duration {
	return time.Duration(e.Seconds) * time.Second
}

// parseFloodWait extracts the wait seconds from a FLOOD_WAIT error.
// Returns 0 if the error is not a flood wait.
//
// gotd errors are usually wrapped, so the string form is the most reliable
// check without deep coupling to the tg error definitions. The format is
// "FLOOD_WAIT_X" where X is a decimal seconds count, possibly followed by
// a suffix like " (caused by ...)".
func parseFloodWait(err error) int {
	if err == nil {
		return 0
	}

	str := err.Error()
	parts := strings.Split(str, "FLOOD_WAIT_")
	if len(parts) < 2 {
		return 0
	}

	var seconds int
	numStr := strings.TrimSpace(parts[1])
	_, _ = fmt.Sscanf(numStr, "%d", &seconds)
	return seconds
}

// wrapFloodWait converts a FLOOD_WAIT API error into a typed FloodWaitError,
// leaving any other error untouched.
func wrapFloodWait(err error) error {
	if secs := parseFloodWait(err); secs > 0 {
		return &FloodWaitError{Seconds: secs}
	}
	return err
}
