// Package session implements the client-side half of the reliable UDP
// session protocol: dialing a server, running the Connect/Main/Close
// phase machine, and exposing the small producer-facing API a caller
// drives the session with. One worker goroutine runs one session's
// phase machine; it is stopped through Close, which a cancelled
// Connect context also triggers.
package session

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/duskwright/rudpsession/pkg/objack"
	"github.com/duskwright/rudpsession/pkg/reliable"
	"github.com/duskwright/rudpsession/pkg/transport"
	"github.com/duskwright/rudpsession/pkg/wire"
)

// PVer is the protocol version this client negotiates in its SESS
// request.
const PVer = 2

const (
	connectRetryInterval = 2 * time.Second
	connectMaxAttempts   = 5
	closeRetryInterval   = 500 * time.Millisecond
	closeMaxAttempts     = 5
	heartbeatInterval    = 5 * time.Second
)

// Config carries the collaborators and overrides a Connection is built
// with. Every field is optional; zero-value fields fall back to
// no-op/default implementations, the same defaulting shape
// CreateUdpDestinationHandler uses for its logger.
type Config struct {
	MapCache    MapCache
	ObjectCache ObjectCache
	Handler     RMessageHandler
	ArgEncoder  ArgListEncoder
	Logger      *zap.Logger
	Clock       Clock
}

func (cfg *Config) setDefaults() {
	if cfg.MapCache == nil {
		cfg.MapCache = noopMapCache{}
	}
	if cfg.ObjectCache == nil {
		cfg.ObjectCache = noopObjectCache{}
	}
	if cfg.Handler == nil {
		cfg.Handler = noopHandler{}
	}
	if cfg.ArgEncoder == nil {
		cfg.ArgEncoder = DefaultArgEncoder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
}

// Connection is the root of one client-side session bound to one
// remote datagram endpoint. It is safe to call QueueMsg and Close from
// any goroutine; everything else about it is private to the worker
// goroutine started by Connect.
type Connection struct {
	Server   *net.UDPAddr
	Username string

	log   *zap.Logger
	clock Clock
	sock  *transport.Socket

	sender   *reliable.Sender
	receiver *reliable.Receiver
	objacks  *objack.Tracker

	mapCache    MapCache
	objectCache ObjectCache
	handler     RMessageHandler
	argEncoder  ArgListEncoder

	closeRequested chan struct{}
	closeOnce      sync.Once
	done           chan struct{}

	lasttx time.Time

	mu        sync.Mutex
	cond      *sync.Cond
	connected bool
	connErr   error
	fatalErr  error
}

// markTx records that a packet was just sent, resetting the heartbeat
// idle timer the same way any outbound packet does in the source.
func (c *Connection) markTx(now time.Time) {
	c.lasttx = now
}

// Connect dials server and blocks until the Connect phase resolves,
// returning a live Connection or a typed *sesserr error. ctx bounds
// only the caller's wait: cancelling it requests an orderly abort of
// the in-flight attempt, which terminates connectPhase with
// *sesserr.ConnError the same way retry exhaustion or a fatal read
// error does — the same role the original's InterruptedException
// handler plays around its blocking connect() call.
func Connect(ctx context.Context, server *net.UDPAddr, username string, cookie []byte, args []string, cfg Config) (*Connection, error) {
	cfg.setDefaults()

	c := &Connection{
		Server:         server,
		Username:       username,
		clock:          cfg.Clock,
		mapCache:       cfg.MapCache,
		objectCache:    cfg.ObjectCache,
		handler:        cfg.Handler,
		argEncoder:     cfg.ArgEncoder,
		log:            cfg.Logger.With(zap.String("component", "session")),
		closeRequested: make(chan struct{}),
		done:           make(chan struct{}),
		sender:         reliable.NewSender(),
		objacks:        objack.New(),
	}
	c.cond = sync.NewCond(&c.mu)
	c.receiver = reliable.NewReceiver(func(m *wire.RMessage) { c.handler.Handle(m) })

	sock, err := transport.Dial(server, c.log)
	if err != nil {
		return nil, err
	}
	c.sock = sock

	go c.run(newConnectPhase(c, cookie, args))

	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		case <-watchDone:
		}
	}()

	c.mu.Lock()
	for !c.connected && c.connErr == nil {
		c.cond.Wait()
	}
	connErr := c.connErr
	c.mu.Unlock()
	close(watchDone)

	if connErr != nil {
		return nil, connErr
	}
	return c, nil
}

// QueueMsg enqueues an application reliable submessage for delivery
// and wakes the worker so it doesn't wait out its current timeout
// before sending it.
func (c *Connection) QueueMsg(subtype byte, payload []byte) {
	c.sender.QueueMsg(subtype, payload)
	c.sock.Wake()
}

// Close requests an orderly shutdown. It is idempotent and safe to
// call more than once or concurrently with anything else.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.closeRequested)
		c.sock.Wake()
	})
}

// Done is closed once the worker goroutine has fully exited, whether
// by orderly close, peer close, or a fatal transport error.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Err returns the fatal error that ended the session, if the worker
// terminated outside of an orderly close/peer-close handshake.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fatalErr
}

func (c *Connection) setFatalErr(err error) {
	c.mu.Lock()
	c.fatalErr = err
	c.mu.Unlock()
}

// run drives the phase machine: a trivial loop, the "poor man's tail
// recursion" the source gets from Task.run() returning the next Task.
// The socket is torn down exactly once, here, regardless of which
// phase the chain ends in.
func (c *Connection) run(start phase) {
	defer close(c.done)
	defer c.sock.Close()

	p := start
	for p != nil {
		p = p.run()
	}
}

func (c *Connection) handleMessage(msg *wire.Message) {
	switch msg.Type {
	case wire.TypeSess:
		// A second SESS in Main is ignored, same as the source's empty
		// case MSG_SESS branch.
	case wire.TypeRel:
		_, msgs, err := wire.DecodeRel(msg)
		if err != nil {
			c.log.Warn("malformed REL packet", zap.Error(err))
			return
		}
		now := c.clock.Now()
		for _, m := range msgs {
			c.receiver.Got(m, now)
		}
	case wire.TypeAck:
		ackSeq, err := msg.Uint16()
		if err != nil {
			c.log.Warn("malformed ACK packet", zap.Error(err))
			return
		}
		c.sender.Ack(ackSeq)
	case wire.TypeMapData:
		if err := c.mapCache.MapData(msg.BytesToEnd()); err != nil {
			c.log.Warn("map cache rejected MAPDATA", zap.Error(err))
		}
	case wire.TypeObjData:
		c.handleObjData(msg)
	case wire.TypeBeat:
		// Heartbeats carry no payload and need no response beyond
		// having kept the peer's idle timer alive.
	default:
		c.log.Debug("ignoring packet of unknown type", zap.Uint8("type", msg.Type))
	}
}

func (c *Connection) handleObjData(msg *wire.Message) {
	now := c.clock.Now()
	for !msg.EOM() {
		flags, err := msg.Uint8()
		if err != nil {
			return
		}
		id, err := msg.Uint32()
		if err != nil {
			return
		}
		frame, err := msg.Int32()
		if err != nil {
			return
		}
		if err := c.objectCache.Receive(flags, id, frame, msg); err != nil {
			c.log.Warn("object cache rejected record", zap.Error(err), zap.Uint32("id", id))
			return
		}
		c.objacks.Observe(id, frame, now)
	}
}

func (c *Connection) flushPending(now time.Time) (time.Time, bool) {
	return c.sender.Flush(now, func(msg *wire.RMessage) {
		c.sock.Send(wire.EncodeRelTransmission(msg))
		c.markTx(now)
	})
}

func (c *Connection) flushObjAcks(now time.Time) (time.Time, bool) {
	batches, deadline, has := c.objacks.Flush(now)
	for _, b := range batches {
		m := wire.New(wire.TypeObjAck)
		for i := range b.IDs {
			m.AddUint32(b.IDs[i]).AddInt32(b.Frames[i])
		}
		c.sock.Send(m)
		c.markTx(now)
	}
	return deadline, has
}

func (c *Connection) flushAck(now time.Time) {
	if ackSeq, due := c.receiver.DueAck(now); due {
		c.sock.Send(wire.New(wire.TypeAck).AddUint16(ackSeq))
		c.markTx(now)
	}
}

func (c *Connection) maybeHeartbeat(now time.Time) {
	if now.Sub(c.lasttx) >= heartbeatInterval {
		c.sock.Send(wire.New(wire.TypeBeat))
		c.markTx(now)
	}
}
