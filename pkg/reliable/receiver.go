package reliable

import (
	"time"

	"github.com/duskwright/rudpsession/pkg/seq"
	"github.com/duskwright/rudpsession/pkg/wire"
)

// AckHold is the coalescing window: a burst of contiguous deliveries
// within this window produces at most one ACK.
const AckHold = 30 * time.Millisecond

// Receiver reassembles the inbound reliable stream into a contiguous,
// exactly-once delivery order and schedules the coalesced ack that
// results from it. It is owned exclusively by the worker goroutine —
// no locking, matching every other piece of Main-phase state.
type Receiver struct {
	rseq    uint16
	reorder map[uint16]*wire.RMessage

	ackSeq     uint16
	ackTime    time.Time
	ackPending bool

	handle func(*wire.RMessage)
}

// NewReceiver creates a receiver that hands every in-order message to
// handle exactly once. handle is the one true polymorphic boundary to
// the application (see session.RMessageHandler) — here it is just a
// closure so the reliable package stays independent of the session
// package's types.
func NewReceiver(handle func(*wire.RMessage)) *Receiver {
	return &Receiver{
		reorder: make(map[uint16]*wire.RMessage),
		handle:  handle,
	}
}

// Got processes one reassembled inbound RMessage. If it is the next
// expected message it is delivered immediately, along with any
// further messages already sitting contiguously in the reorder
// buffer; if it arrives ahead of rseq it is buffered; if it arrives
// behind rseq it has already been delivered and is discarded
// silently — redelivery is impossible by construction.
func (r *Receiver) Got(msg *wire.RMessage, now time.Time) {
	sd := seq.Diff(msg.Seq, r.rseq)
	switch {
	case sd == 0:
		var lastDelivered uint16
		cur := msg
		for cur != nil {
			r.handle(cur)
			lastDelivered = r.rseq
			r.rseq = seq.Next(r.rseq)
			cur = r.reorder[r.rseq]
			if cur != nil {
				delete(r.reorder, r.rseq)
			}
		}
		r.scheduleAck(lastDelivered, now)
	case sd > 0:
		r.reorder[msg.Seq] = msg
	default:
		// sd < 0: already delivered, discard.
	}
}

func (r *Receiver) scheduleAck(seq uint16, now time.Time) {
	if !r.ackPending {
		r.ackTime = now
		r.ackPending = true
	}
	r.ackSeq = seq
}

// DueAck reports the ack that should be sent now, if the ack-hold
// window has elapsed since the first delivery in the current run.
// Calling it clears the pending ack.
func (r *Receiver) DueAck(now time.Time) (uint16, bool) {
	if r.ackPending && now.Sub(r.ackTime) >= AckHold {
		s := r.ackSeq
		r.ackPending = false
		return s, true
	}
	return 0, false
}

// NextAckDeadline returns when the currently pending ack (if any) will
// become due, for the tick scheduler.
func (r *Receiver) NextAckDeadline() (time.Time, bool) {
	if !r.ackPending {
		return time.Time{}, false
	}
	return r.ackTime.Add(AckHold), true
}

// RSeq returns the next expected inbound sequence number.
func (r *Receiver) RSeq() uint16 {
	return r.rseq
}
