package gateway

import "sync"

type replayEntry struct {
	seq  int64
	data []byte
}

// ReplayLog is a fixed-size ring of recent envelopes for one channel. Writers
// overwrite the oldest entry once full; readers query by channel sequence.
type ReplayLog struct {
	mu   sync.RWMutex
	ring []replayEntry
	pos  int
	full bool
}

// NewReplayLog creates a log retaining up to capacity envelopes.
func NewReplayLog(capacity int) *ReplayLog {
	if capacity <= 0 {
		capacity = replayCapacity
	}
	return &ReplayLog{ring: make([]replayEntry, capacity)}
}

// Push records one envelope. The data slice is copied; callers may reuse it.
func (rl *ReplayLog) Push(seq int64, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.ring[rl.pos] = replayEntry{seq: seq, data: cp}
	rl.pos = (rl.pos + 1) % len(rl.ring)
	if rl.pos == 0 {
		rl.full = true
	}
}

// Since returns every retained envelope with seq strictly greater than
// afterSeq, oldest first.
func (rl *ReplayLog) Since(afterSeq int64) [][]byte {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	var out [][]byte
	n := rl.size()
	for i := 0; i < n; i++ {
		e := rl.ring[rl.physical(i)]
		if e.seq > afterSeq {
			out = append(out, e.data)
		}
	}
	return out
}

// Len returns the number of retained envelopes.
func (rl *ReplayLog) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.size()
}

func (rl *ReplayLog) size() int {
	if rl.full {
		return len(rl.ring)
	}
	return rl.pos
}

// physical maps a logical index (0 = oldest) onto the ring.
func (rl *ReplayLog) physical(logical int) int {
	if rl.full {
		return (rl.pos + logical) % len(rl.ring)
	}
	return logical
}
