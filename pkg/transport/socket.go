// Package transport owns the one connected, non-blocking datagram
// endpoint a session is bound to: dialing it, multiplexing its
// readiness with a wakeup, and turning raw reads into wire.Message
// values. Mirrors udp_destination.go's non-blocking-read idiom, cut
// down from "many destinations behind one listening socket" to "one
// socket connected to one remote server."
package transport

import (
	"errors"
	"net"
	"time"

	"github.com/duskwright/rudpsession/pkg/netpoll"
	"github.com/duskwright/rudpsession/pkg/wire"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrClosed is returned by Recv/Send once the socket has been closed.
var ErrClosed = errors.New("transport: socket closed")

// recvPoolDepth sizes the receive buffer pool. One socket only ever
// has one read in flight at a time, but a small pool amortizes the
// factory allocation across the socket's whole lifetime instead of
// paying it once per Recv call.
const recvPoolDepth = 8

// Socket is the session's one connected datagram endpoint: a
// non-blocking net.UDPConn paired with a netpoll.Poller for readiness
// and an explicit cross-goroutine wakeup.
type Socket struct {
	conn   *net.UDPConn
	poller netpoll.Poller
	log    *zap.Logger

	bufpool *wire.BufferPool
	closed  bool
}

// Dial connects a new Socket to server. The connection is "connected"
// in the net.Dial sense — reads and writes are implicitly addressed to
// server — matching the source's sk.connect(server) call.
func Dial(server *net.UDPAddr, log *zap.Logger) (*Socket, error) {
	conn, err := net.DialUDP("udp", nil, server)
	if err != nil {
		return nil, err
	}

	poller, err := netpoll.New(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Socket{
		conn:    conn,
		poller:  poller,
		log:     log.With(zap.String("component", "transport")),
		bufpool: wire.NewBufferPool(recvPoolDepth),
	}, nil
}

// Wait blocks until the socket is readable, the timeout elapses, or
// Wake is called, whichever happens first. A negative timeout blocks
// indefinitely.
func (s *Socket) Wait(timeout time.Duration) (bool, error) {
	return s.poller.ReadReady(timeout)
}

// Wake interrupts a blocked Wait call from any goroutine — the one
// operation a producer is allowed to perform on the socket directly.
func (s *Socket) Wake() {
	s.poller.Wake()
}

// Recv performs one read that waits at most a millisecond. A read that
// finds nothing in that time, or a zero-length datagram, is reported as
// (nil, nil) — "no packet," not an error; any other read failure is
// fatal and is returned as-is for the worker to propagate.
func (s *Socket) Recv() (*wire.Message, error) {
	if s.closed {
		return nil, ErrClosed
	}

	el, buf := s.bufpool.Lease()
	defer s.bufpool.Release(el)

	// A deadline already in the past makes Read time out before it
	// looks at the socket at all, so the read gets a short window.
	s.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	n, err := s.conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	// wire.Decode aliases the slice it's given, so the datagram is
	// copied out before the pooled buffer is released back for reuse.
	datagram := make([]byte, n)
	copy(datagram, buf[:n])
	return wire.Decode(datagram)
}

// Send writes one datagram. Transient send errors are swallowed and
// logged at Warn, treated as ordinary packet loss that the reliability
// layer will recover from via retransmission — generally assume errors
// are transient, but log them since silent loss made debugging the
// original client harder than it needed to be.
func (s *Socket) Send(msg *wire.Message) {
	if s.closed {
		return
	}

	datagram, err := msg.Encode()
	if err != nil {
		s.log.Warn("dropping oversized outbound packet", zap.Error(err))
		return
	}
	if _, err := s.conn.Write(datagram); err != nil {
		s.log.Warn("transient send error, treating as packet loss", zap.Error(err))
	}
}

// Close releases the socket and its poller exactly once, aggregating
// both outcomes rather than discarding the second error.
func (s *Socket) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	err = multierr.Append(err, s.conn.Close())
	err = multierr.Append(err, s.poller.Close())
	return err
}
