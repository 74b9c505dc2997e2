// Package objack implements the per-object frame acknowledgement
// tracker: it watches OBJDATA records go by and, on its own schedule,
// emits batched OBJACK packets telling the peer which frame number it
// has last seen for each object.
package objack

import "time"

const (
	idleHold = 80 * time.Millisecond
	ageHold  = 500 * time.Millisecond

	// maxBatchBytes bounds a single OBJACK packet; each entry is 8
	// bytes (32-bit id + 32-bit frame), matching the "1000 - 8" budget
	// the original tracker used to leave room for one more entry
	// before flushing.
	maxBatchBytes = 1000 - 8
	entrySize     = 8
)

// entry is the per-object ack state. frame is the highest frame number
// observed; frecv is when the current unacked run started; lrecv is
// when it was last touched.
type entry struct {
	id    uint32
	frame int32
	frecv time.Time
	lrecv time.Time
}

// Tracker holds the live per-object ack state for one session. It is
// not safe for concurrent use; the worker goroutine owns it
// exclusively, same as every other piece of Main-phase state.
type Tracker struct {
	entries map[uint32]*entry
}

func New() *Tracker {
	return &Tracker{entries: make(map[uint32]*entry)}
}

// Observe records a sighting of an OBJDATA record for the given
// object. If the object has no pending ack, a new entry starts its
// unacked run at now; otherwise the observed frame advances the
// tracked maximum and lrecv moves forward, but frecv — the start of
// the run — does not.
func (t *Tracker) Observe(id uint32, frame int32, now time.Time) {
	if e, ok := t.entries[id]; ok {
		if frame > e.frame {
			e.frame = frame
		}
		e.lrecv = now
		return
	}
	t.entries[id] = &entry{id: id, frame: frame, frecv: now, lrecv: now}
}

// Batch is one OBJACK packet's worth of (id, frame) pairs.
type Batch struct {
	IDs    []uint32
	Frames []int32
}

// Flush returns the batches of entries ready to be packed into OBJACK
// packets, removing them from the tracker, plus the deadline at which
// the next still-pending entry will need attention.
//
// The due condition is txtime >= now, NOT txtime <= now as the
// surrounding retransmission logic in this protocol would suggest.
// This is preserved bit-for-bit from the reference implementation,
// which flushes entries that are NOT YET due rather than ones that
// are overdue — see the design notes' open question. Do not "fix"
// this without a server-side specification confirming the intended
// behavior; the wire behavior of existing peers depends on it.
func (t *Tracker) Flush(now time.Time) ([]Batch, time.Time, bool) {
	var batches []Batch
	var cur *Batch
	var curSize int

	var nextDeadline time.Time
	hasDeadline := false

	for id, e := range t.entries {
		txtime := minTime(e.lrecv.Add(idleHold), e.frecv.Add(ageHold))
		if !txtime.Before(now) {
			if cur == nil || curSize+entrySize > maxBatchBytes {
				batches = append(batches, Batch{})
				cur = &batches[len(batches)-1]
				curSize = 0
			}
			cur.IDs = append(cur.IDs, e.id)
			cur.Frames = append(cur.Frames, e.frame)
			curSize += entrySize
			delete(t.entries, id)
		} else {
			if !hasDeadline || txtime.Before(nextDeadline) {
				nextDeadline = txtime
				hasDeadline = true
			}
		}
	}

	return batches, nextDeadline, hasDeadline
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
