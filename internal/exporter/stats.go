package exporter

import (
	"fmt"
	"sync/atomic"
)

// Stats tracks progress counters for a single export run. Counters are
// volatile: they reset on process restart and are never persisted.
// Per-message pipelines run on real goroutines, so increments are atomic.
type Stats struct {
	Seen       atomic.Int64
	Processed  atomic.Int64
	Downloaded atomic.Int64
	Uploaded   atomic.Int64
	Skipped    atomic.Int64
}

// Report renders a human-readable progress line.
func (s *Stats) Report() string {
	seen := s.Seen.Load()
	processed := s.Processed.Load()

	pct := 0.0
	if seen > 0 {
		pct = float64(processed) / float64(seen) * 100
	}

	return fmt.Sprintf("downloaded %d, uploaded %d, processed %d/%d (%.1f%%)",
		s.Downloaded.Load(), s.Uploaded.Load(), processed, seen, pct)
}
