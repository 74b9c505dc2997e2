package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/duskwright/rudpsession/pkg/sesserr"
	"github.com/duskwright/rudpsession/pkg/wire"
)

// connectPhase repeats a SESS request at connectRetryInterval until it
// gets an answer, sees connectMaxAttempts retries exhausted, or is
// interrupted via Close(). It resolves the blocked Connect caller
// exactly once, by construction: every exit path runs through finish.
type connectPhase struct {
	c   *Connection
	req *wire.Message
}

// sessProtocolTag is the fixed "protocol version" literal the SESS
// request carries ahead of the server-identifier string, distinct from
// PVer, the client's own configured protocol version number.
const sessProtocolTag = 2

// serverIdent is the literal server-identifier string the SESS request
// carries; preserved verbatim from the source's connect packet layout.
const serverIdent = "Hafen"

func newConnectPhase(c *Connection, cookie []byte, args []string) *connectPhase {
	req := wire.New(wire.TypeSess).
		AddUint16(sessProtocolTag).
		AddString(serverIdent).
		AddUint16(PVer).
		AddString(c.Username).
		AddUint16(uint16(len(cookie))).
		AddBytes(cookie).
		AddList(c.argEncoder.EncodeArgs(args))
	return &connectPhase{c: c, req: req}
}

func (p *connectPhase) run() phase {
	c := p.c
	attempts := 0
	var last time.Time

	for {
		select {
		case <-c.closeRequested:
			return p.finish(&sesserr.ConnError{})
		default:
		}

		now := c.clock.Now()
		if last.IsZero() || now.Sub(last) > connectRetryInterval {
			attempts++
			if attempts > connectMaxAttempts {
				c.log.Warn("connect attempts exhausted", zap.Int("attempts", attempts-1))
				return p.finish(&sesserr.ConnError{})
			}
			c.sock.Send(p.req)
			last = now
		}

		wait := last.Add(connectRetryInterval).Sub(now)
		if wait < 0 {
			wait = 0
		}
		ready, err := c.sock.Wait(wait)
		if err != nil {
			c.log.Error("fatal read error during connect", zap.Error(err))
			return p.finish(&sesserr.ConnError{})
		}
		if !ready {
			continue
		}

		msg, err := c.sock.Recv()
		if err != nil {
			c.log.Error("fatal read error during connect", zap.Error(err))
			return p.finish(&sesserr.ConnError{})
		}
		if msg == nil || msg.Type != wire.TypeSess {
			continue
		}

		code, err := msg.Uint8()
		if err != nil {
			continue
		}
		if sesserr.Code(code) == sesserr.CodeOK {
			return p.finish(nil)
		}

		reason := ""
		if sesserr.Code(code) == sesserr.CodeMesg {
			reason, _ = msg.String()
		}
		return p.finish(sesserr.FromCode(sesserr.Code(code), reason))
	}
}

func (p *connectPhase) finish(err error) phase {
	c := p.c
	c.mu.Lock()
	if err != nil {
		c.connErr = err
	} else {
		c.connected = true
	}
	c.cond.Broadcast()
	c.mu.Unlock()

	if err != nil {
		return nil
	}
	return newMainPhase(c)
}
