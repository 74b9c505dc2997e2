package objack

import (
	"testing"
	"time"
)

func TestObserveTracksMaxFrameAndTimestamps(t *testing.T) {
	tr := New()
	t0 := time.Now()

	tr.Observe(1, 5, t0)
	e := tr.entries[1]
	if e.frame != 5 || !e.frecv.Equal(t0) || !e.lrecv.Equal(t0) {
		t.Fatalf("unexpected entry after first observe: %+v", e)
	}

	t1 := t0.Add(10 * time.Millisecond)
	tr.Observe(1, 3, t1) // lower frame must not move frame backward
	if e.frame != 5 {
		t.Errorf("frame regressed to %d", e.frame)
	}
	if !e.lrecv.Equal(t1) {
		t.Errorf("lrecv not advanced")
	}
	if !e.frecv.Equal(t0) {
		t.Errorf("frecv must not move on subsequent observations")
	}

	tr.Observe(1, 9, t1)
	if e.frame != 9 {
		t.Errorf("frame did not advance to higher value: %d", e.frame)
	}
}

func TestFlushPreservesNotYetDueCondition(t *testing.T) {
	// This test pins down the bit-for-bit-preserved behavior: an entry
	// whose txtime has NOT yet elapsed (txtime >= now) is the one that
	// gets flushed, matching the reference implementation's observed
	// (and flagged-as-likely-backwards) condition.
	tr := New()
	now := time.Now()

	// lrecv+0.08 is still in the future relative to "now": not yet due
	// by the usual reading, but it IS what gets flushed here.
	tr.Observe(42, 7, now)

	batches, _, _ := tr.Flush(now)
	if len(batches) != 1 || len(batches[0].IDs) != 1 || batches[0].IDs[0] != 42 {
		t.Fatalf("expected entry 42 to flush immediately, got %+v", batches)
	}
}

func TestFlushBatchesBySize(t *testing.T) {
	tr := New()
	now := time.Now()

	for i := uint32(0); i < 200; i++ {
		tr.Observe(i, 1, now)
	}

	batches, _, _ := tr.Flush(now)
	total := 0
	for _, b := range batches {
		if len(b.IDs)*entrySize > maxBatchBytes {
			t.Errorf("batch exceeds max size: %d entries", len(b.IDs))
		}
		total += len(b.IDs)
	}
	if total != 200 {
		t.Errorf("expected all 200 entries flushed, got %d", total)
	}
	if len(tr.entries) != 0 {
		t.Errorf("expected tracker drained, %d entries remain", len(tr.entries))
	}
}

func TestFlushDeadlineForStaleEntry(t *testing.T) {
	// Because the flush condition is backwards (txtime >= now flushes),
	// an entry observed long enough ago that its txtime has already
	// elapsed relative to "now" is the one that does NOT flush — it
	// sits pending with a deadline that is already in the past. This
	// pins down that the bug, not a sane "is it due yet" check, is what
	// ships.
	tr := New()
	t0 := time.Now()
	now := t0.Add(10 * time.Second)

	tr.Observe(1, 1, t0)

	batches, deadline, has := tr.Flush(now)
	if len(batches) != 0 {
		t.Fatalf("stale entry should not flush under the preserved condition: %+v", batches)
	}
	if !has {
		t.Fatal("expected a deadline for the pending entry")
	}
	wantDeadline := minTime(t0.Add(idleHold), t0.Add(ageHold))
	if !deadline.Equal(wantDeadline) {
		t.Errorf("deadline = %v, want %v", deadline, wantDeadline)
	}
}
