package telegram

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseFloodWait(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "plain flood wait",
			err:  errors.New("FLOOD_WAIT_120"),
			want: 120,
		},
		{
			name: "wrapped rpc error",
			err:  fmt.Errorf("get history: %w", errors.New("rpc error code 420: FLOOD_WAIT_15")),
			want: 15,
		},
		{
			name: "with suffix",
			err:  errors.New("FLOOD_WAIT_33 (caused by messages.getHistory)"),
			want: 33,
		},
		{
			name: "not a flood wait",
			err:  errors.New("CHANNEL_INVALID"),
			want: 0,
		},
		{
			name: "nil error",
			err:  nil,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseFloodWait(tt.err); got != tt.want {
				t.Errorf("parseFloodWait() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWrapFloodWait(t *testing.T) {
	err := wrapFloodWait(errors.New("FLOOD_WAIT_7"))

	var fw *FloodWaitError
	if !errors.As(err, &fw) {
		t.Fatalf("expected FloodWaitError, got %v", err)
	}
	if fw.Seconds != 7 {
		t.Errorf("Seconds = %d, want 7", fw.Seconds)
	}
	if fw.Duration() != 7*time.Second {
		t.Errorf("Duration() = %v, want 7s", fw.Duration())
	}

	other := errors.New("PEER_ID_INVALID")
	if got := wrapFloodWait(other); got != other {
		t.Errorf("non-flood error must pass through unchanged")
	}
}
