package session

import (
	"time"

	"github.com/duskwright/rudpsession/pkg/wire"
)

// closePhase emits CLOSE packets at closeRetryInterval until either
// side's CLOSE has been seen or closeMaxAttempts is exhausted.
// Interrupts are intentionally not checked here — the handshake must
// run to completion once entered, per §4.1/§5's cancellation table.
type closePhase struct {
	c        *Connection
	sawclose bool
}

func newClosePhase(c *Connection, sawclose bool) *closePhase {
	return &closePhase{c: c, sawclose: sawclose}
}

func (p *closePhase) run() phase {
	c := p.c
	attempts := 0
	var last time.Time

	for {
		now := c.clock.Now()
		if last.IsZero() || now.Sub(last) > closeRetryInterval {
			attempts++
			if attempts > closeMaxAttempts {
				return nil
			}
			c.sock.Send(wire.New(wire.TypeClose))
			last = now
		}

		wait := last.Add(closeRetryInterval).Sub(now)
		if wait < 0 {
			wait = 0
		}
		ready, err := c.sock.Wait(wait)
		if err != nil {
			return nil
		}
		if ready {
			msg, err := c.sock.Recv()
			if err == nil && msg != nil && msg.Type == wire.TypeClose {
				p.sawclose = true
			}
		}

		if p.sawclose {
			return nil
		}
	}
}
