// Package reliable implements the two halves of the reliable message
// streams: Sender owns the outbound pending queue and its
// retransmission timing, Receiver reassembles the inbound stream and
// schedules coalesced acks.
package reliable

import (
	"sync"
	"time"

	"github.com/duskwright/rudpsession/pkg/seq"
	"github.com/duskwright/rudpsession/pkg/wire"
)

// Sender owns the outbound reliable queue: message numbering, the
// pending FIFO, and retransmission timing. Safe for concurrent use —
// QueueMsg is called from producer goroutines while Flush/Ack run on
// the worker.
type Sender struct {
	mu      sync.Mutex
	tseq    uint16
	pending []*wire.RMessage
}

func NewSender() *Sender {
	return &Sender{}
}

// QueueMsg enqueues a reliable outbound message and assigns it the
// current tseq, incrementing tseq modulo 2^16 atomically with the
// insertion — both happen under the same lock, so concurrent
// producers never race seq assignment against queue order.
func (s *Sender) QueueMsg(subtype byte, payload []byte) *wire.RMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := &wire.RMessage{
		Seq:     s.tseq,
		SubType: subtype,
		Payload: payload,
	}
	s.tseq = seq.Next(s.tseq)
	s.pending = append(s.pending, msg)
	return msg
}

// Ack removes every pending message whose signed difference from ackSeq
// is less than or equal to zero — i.e. every message the peer has
// already acknowledged or that is otherwise no newer than ackSeq — and
// stops at the first message strictly newer than ackSeq, since the
// pending queue is kept in strict seq order.
func (s *Sender) Ack(ackSeq uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := 0
	for i < len(s.pending) {
		if seq.Diff(s.pending[i].Seq, ackSeq) > 0 {
			break
		}
		i++
	}
	s.pending = s.pending[i:]
}

// retxDelay computes the tiered retransmission delay for a message
// that has been sent retx times already. The first send (retx==0) is
// immediate; after that the delay widens in steps.
func retxDelay(retx int) time.Duration {
	switch {
	case retx == 0:
		return 0
	case retx <= 1:
		return 80 * time.Millisecond
	case retx <= 3:
		return 200 * time.Millisecond
	case retx <= 9:
		return 620 * time.Millisecond
	default:
		return 2 * time.Second
	}
}

// Flush sends every pending message whose retransmission deadline has
// arrived, via send, and bumps its Last/Retx bookkeeping. It returns
// the earliest deadline among the messages that were NOT sent this
// round, for the tick scheduler to wait on.
func (s *Sender) Flush(now time.Time, send func(msg *wire.RMessage)) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var nextDeadline time.Time
	hasDeadline := false

	for _, msg := range s.pending {
		txtime := msg.Last.Add(retxDelay(msg.Retx))
		if !now.Before(txtime) {
			send(msg)
			msg.Last = now
			msg.Retx++
		} else if !hasDeadline || txtime.Before(nextDeadline) {
			nextDeadline = txtime
			hasDeadline = true
		}
	}

	return nextDeadline, hasDeadline
}

// Len reports how many messages are still pending an ack. Mostly
// useful for tests and diagnostics.
func (s *Sender) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
