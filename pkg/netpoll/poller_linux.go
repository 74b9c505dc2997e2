//go:build linux

package netpoll

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller multiplexes readability of one connected UDP socket with
// an explicit wakeup, using an epoll instance holding exactly two fds:
// the socket itself and an eventfd used purely to interrupt a blocked
// EpollWait.
type epollPoller struct {
	epfd   int
	connFd int
	wakeFd int
}

// New builds a Poller backed by Linux epoll for the given UDP
// connection.
func New(conn *net.UDPConn) (Poller, error) {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return nil, err
	}

	var connFd int
	ctrlErr := rawConn.Control(func(fd uintptr) {
		connFd = int(fd)
	})
	if ctrlErr != nil {
		return nil, ctrlErr
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("netpoll: epoll_create1: %w", err)
	}

	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("netpoll: eventfd: %w", err)
	}

	p := &epollPoller{epfd: epfd, connFd: connFd, wakeFd: wakeFd}

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, connFd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(connFd)}); err != nil {
		p.Close()
		return nil, fmt.Errorf("netpoll: epoll_ctl(conn): %w", err)
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}); err != nil {
		p.Close()
		return nil, fmt.Errorf("netpoll: epoll_ctl(wake): %w", err)
	}

	return p, nil
}

func (p *epollPoller) ReadReady(timeout time.Duration) (bool, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
		if ms < 0 {
			ms = 0
		}
	}

	var events [2]unix.EpollEvent
	n, err := unix.EpollWait(p.epfd, events[:], ms)
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, err
	}

	ready := false
	for i := 0; i < n; i++ {
		switch int(events[i].Fd) {
		case p.connFd:
			ready = true
		case p.wakeFd:
			p.drainWake()
		}
	}
	return ready, nil
}

func (p *epollPoller) Wake() {
	var one [8]byte
	one[0] = 1
	_, _ = unix.Write(p.wakeFd, one[:])
}

func (p *epollPoller) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(p.wakeFd, buf[:])
}

func (p *epollPoller) Close() error {
	if p.wakeFd != 0 {
		unix.Close(p.wakeFd)
	}
	if p.epfd != 0 {
		unix.Close(p.epfd)
	}
	return nil
}
