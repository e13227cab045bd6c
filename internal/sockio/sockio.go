// Package sockio is the socket readiness adapter: it exposes a TCP
// connection as a non-blocking file descriptor with raw read/write
// primitives and a poll(2) readiness wait.
//
// The adapter does no buffering. Its single job is error-class
// normalization: platform "would block" errnos are folded into the one
// ErrWouldBlock outcome, an orderly peer shutdown is a zero-length
// read, and everything else is fatal for the connection.
package sockio

import (
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"tlsd/internal/errors"
)

// Conn wraps the file descriptor of a network connection. The wrapped
// net.Conn keeps ownership of the descriptor; Close releases it through
// the runtime exactly once.
type Conn struct {
	fd int
	nc net.Conn

	closeOnce sync.Once
	closeErr  error
}

// Wrap extracts nc's file descriptor and forces non-blocking mode.
// Failure to do either is fatal for the connection: the state machine
// cannot run safely against a blocking socket.
func Wrap(nc net.Conn) (*Conn, error) {
	sc, ok := nc.(syscall.Conn)
	if !ok {
		return nil, fmt.Errorf("connection %T exposes no file descriptor", nc)
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return nil, err
	}

	// The descriptor escapes the Control window. That is only valid
	// because Conn keeps nc alive (pinning the fd in the runtime) and
	// every Read/Write/Wait is sequenced before Close on the single
	// goroutine that owns the connection.
	fd := -1
	var ctlErr error
	if err := rc.Control(func(f uintptr) {
		fd = int(f)
		ctlErr = unix.SetNonblock(fd, true)
	}); err != nil {
		return nil, err
	}
	if ctlErr != nil {
		return nil, os.NewSyscallError("set nonblock", ctlErr)
	}
	return &Conn{fd: fd, nc: nc}, nil
}

// Fd returns the underlying descriptor, for diagnostics only.
func (c *Conn) Fd() int { return c.fd }

// Read pulls raw bytes from the socket. It returns (0, nil) on orderly
// peer shutdown and ErrWouldBlock when no bytes are available yet.
func (c *Conn) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(c.fd, p)
		switch err {
		case nil:
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN: // EWOULDBLOCK is the same errno on every unix port
			return 0, errors.ErrWouldBlock
		default:
			return 0, os.NewSyscallError("read", err)
		}
	}
}

// Write pushes raw bytes to the socket, returning how many were
// accepted. A full send buffer surfaces as ErrWouldBlock.
func (c *Conn) Write(p []byte) (int, error) {
	for {
		n, err := unix.Write(c.fd, p)
		switch err {
		case nil:
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, errors.ErrWouldBlock
		default:
			return 0, os.NewSyscallError("write", err)
		}
	}
}

// Wait blocks until the socket is ready for the requested directions.
// There is no timeout; EINTR is retried. Returning with neither flag
// set is legal and must be treated as a spurious wakeup, not an error.
// Error conditions on the socket are reported through both flags so
// the next raw operation surfaces the actual errno.
func (c *Conn) Wait(wantRead, wantWrite bool) (readable, writable bool, err error) {
	var events int16
	if wantRead {
		events |= unix.POLLIN
	}
	if wantWrite {
		events |= unix.POLLOUT
	}

	fds := []unix.PollFd{{Fd: int32(c.fd), Events: events}}
	for {
		_, perr := unix.Poll(fds, -1)
		if perr == unix.EINTR {
			continue
		}
		if perr != nil {
			return false, false, os.NewSyscallError("poll", perr)
		}
		re := fds[0].Revents
		readable = re&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0
		writable = re&(unix.POLLOUT|unix.POLLERR) != 0
		return readable, writable, nil
	}
}

// Close shuts the socket down exactly once. Subsequent calls return
// the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.nc.Close()
	})
	return c.closeErr
}
