// Package netpoll provides the single-readiness selector and wakeup
// primitive the worker blocks on: one socket to watch, one explicit
// wakeup producers can trigger from any goroutine. It plays the same
// role as java.nio.channels.Selector plus Selector.wakeup() in the
// reference client.
package netpoll

import "time"

// Poller is the minimal contract the session worker needs: wait for
// the watched socket to become readable (or the timeout to elapse, or
// Wake to be called), and an explicit cross-goroutine Wake.
// Implementations live in the platform-specific poller_*.go files.
type Poller interface {
	// ReadReady blocks until the socket is readable, the timeout
	// elapses, or Wake is called. A negative timeout blocks
	// indefinitely. It returns true if the socket is (believed to be)
	// readable — the caller's own non-blocking read decides for sure.
	ReadReady(timeout time.Duration) (bool, error)

	// Wake interrupts a blocked ReadReady call from any goroutine.
	Wake()

	Close() error
}
