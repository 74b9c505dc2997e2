package session

import (
	"go.uber.org/zap"

	"github.com/duskwright/rudpsession/pkg/wire"
)

// mainPhase runs the steady-state loop: wait for readiness or the next
// deadline, drain whatever's readable, then send whatever's due. The
// per-iteration timeout and the pending/objack deadlines carried into
// the next iteration mirror the source's pendto/acktime composition in
// §4.7 exactly, including the one-iteration lag between "sendpending
// ran" and "its deadline is honored."
type mainPhase struct {
	c *Connection
}

func newMainPhase(c *Connection) *mainPhase { return &mainPhase{c: c} }

func (p *mainPhase) run() phase {
	c := p.c
	now := c.clock.Now()
	c.lasttx = now

	pendto := now
	hasPendto := true

	for {
		select {
		case <-c.closeRequested:
			return newClosePhase(c, false)
		default:
		}

		to := heartbeatInterval - now.Sub(c.lasttx)
		if deadline, has := c.receiver.NextAckDeadline(); has {
			to = minDur(to, deadline.Sub(now))
		}
		if hasPendto {
			to = minDur(to, pendto.Sub(now))
		}
		if to < 0 {
			to = 0
		}

		ready, err := c.sock.Wait(to)
		if err != nil {
			c.log.Error("fatal read error in main phase", zap.Error(err))
			c.setFatalErr(err)
			return nil
		}

		if ready {
			for {
				msg, err := c.sock.Recv()
				if err != nil {
					c.log.Error("fatal read error in main phase", zap.Error(err))
					c.setFatalErr(err)
					return nil
				}
				if msg == nil {
					break
				}
				if msg.Type == wire.TypeClose {
					return newClosePhase(c, true)
				}
				c.handleMessage(msg)
			}
		}

		now = c.clock.Now()

		sendDeadline, sendHas := c.flushPending(now)
		objDeadline, objHas := c.flushObjAcks(now)
		pendto, hasPendto = combineDeadline(sendDeadline, sendHas, objDeadline, objHas)

		c.flushAck(now)
		c.maybeHeartbeat(now)
	}
}
