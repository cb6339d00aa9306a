package engine

import (
	"sync/atomic"
	"time"
)

// Stats holds the counters of one job. The scheduler is the only writer;
// readers use Snapshot.
type Stats struct {
	read        atomic.Uint64 // items received from the source
	filtered    atomic.Uint64 // items dropped by an operator
	written     atomic.Uint64 // items written to the sink
	checkpoints atomic.Uint64
	lastItemAt  atomic.Int64 // unix nanos of the last processed item
}

func (s *Stats) recordRead()       { s.read.Add(1) }
func (s *Stats) recordFiltered()   { s.filtered.Add(1) }
func (s *Stats) recordCheckpoint() { s.checkpoints.Add(1) }

func (s *Stats) recordWritten(at time.Time) {
	s.written.Add(1)
	s.lastItemAt.Store(at.UnixNano())
}

// JobStats is a point-in-time copy of Stats.
type JobStats struct {
	Read        uint64
	Filtered    uint64
	Written     uint64
	Checkpoints uint64
	// LastWrite is the timestamp of the last item written, zero if none.
	LastWrite time.Time
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() JobStats {
	out := JobStats{
		Read:        s.read.Load(),
		Filtered:    s.filtered.Load(),
		Written:     s.written.Load(),
		Checkpoints: s.checkpoints.Load(),
	}
	if ns := s.lastItemAt.Load(); ns != 0 {
		out.LastWrite = time.Unix(0, ns).UTC()
	}
	return out
}
