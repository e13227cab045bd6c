// Package stdtls adapts crypto/tls to the pull-driven engine
// capability.
//
// crypto/tls wants to own a blocking net.Conn, while the connection
// state machine hands the engine raw bytes one call at a time. The
// adapter bridges the two with an in-memory conn: ReadTLS appends
// ciphertext to an inbound buffer the TLS session reads from, and
// everything the session writes lands in an outbound buffer that
// WriteTLS flushes through the caller's raw writer. A single pump
// goroutine runs the session's blocking Read loop; ProcessNewPackets
// waits until the pump has consumed all delivered ciphertext and
// parked again, which makes the asynchronous pump look synchronous to
// the state machine.
package stdtls

import (
	"crypto/tls"
	"io"
	"net"
	"sync"
	"time"

	"tlsd/internal/engine"
	"tlsd/internal/errors"
)

// Engine is one crypto/tls server session.
type Engine struct {
	mu   sync.Mutex
	cond *sync.Cond

	tconn  *tls.Conn
	rawBuf []byte // scratch for ReadTLS

	inBuf    []byte // ciphertext from the peer, consumed by the pump
	inClosed bool
	outBuf   []byte // ciphertext for the peer, produced by the session
	plain    []byte // decrypted bytes awaiting ReadPlaintext

	idle        bool // pump parked waiting for ciphertext
	done        bool // pump exited
	closeNotify bool
	failure     error
	closed      bool
}

// New starts a server-side TLS session with the given configuration.
func New(cfg *tls.Config) *Engine {
	e := &Engine{rawBuf: make([]byte, 18*1024)}
	e.cond = sync.NewCond(&e.mu)
	e.tconn = tls.Server(&innerConn{e: e}, cfg)
	go e.pump()
	return e
}

// pump runs the session's blocking read loop, stashing decrypted bytes
// and recording the terminal outcome. crypto/tls reports a received
// close_notify as io.EOF.
func (e *Engine) pump() {
	buf := make([]byte, 32*1024)
	for {
		n, err := e.tconn.Read(buf)
		e.mu.Lock()
		if n > 0 {
			e.plain = append(e.plain, buf[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				e.closeNotify = true
			} else {
				e.failure = err
			}
			e.done = true
			e.idle = true
			e.cond.Broadcast()
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()
	}
}

// WantsRead reports whether the session can still accept raw bytes.
func (e *Engine) WantsRead() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.done
}

// WantsWrite reports whether ciphertext is pending for the peer.
func (e *Engine) WantsWrite() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.outBuf) > 0
}

// ReadTLS pulls one chunk of raw bytes and feeds it to the session.
func (e *Engine) ReadTLS(raw engine.RawReader) (int, error) {
	n, err := raw(e.rawBuf)
	if err != nil {
		// ErrWouldBlock and fatal errors both pass through unchanged.
		return 0, err
	}
	if n == 0 {
		// Peer EOF at the transport level.
		return 0, nil
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return 0, errors.ErrEngineClosed
	}
	e.inBuf = append(e.inBuf, e.rawBuf[:n]...)
	if !e.done {
		e.idle = false
	}
	e.cond.Broadcast()
	e.mu.Unlock()
	return n, nil
}

// ProcessNewPackets waits for the pump to digest every delivered byte,
// then reports the session outcome: nil, ErrCloseNotify, or a fatal
// protocol error.
func (e *Engine) ProcessNewPackets() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for !e.done && !(e.idle && len(e.inBuf) == 0) {
		e.cond.Wait()
	}
	if e.failure != nil {
		return e.failure
	}
	if e.closeNotify {
		return errors.ErrCloseNotify
	}
	return nil
}

// ReadPlaintext drains decrypted bytes. (0, nil) means none right now.
func (e *Engine) ReadPlaintext(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := copy(p, e.plain)
	e.plain = e.plain[n:]
	return n, nil
}

// WritePlaintext encrypts p into the outbound buffer.
//
// This must only be called once application data has arrived, which
// guarantees the handshake is complete; otherwise the session's Write
// would block waiting for handshake bytes only this goroutine can
// deliver.
func (e *Engine) WritePlaintext(p []byte) (int, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return 0, errors.ErrEngineClosed
	}
	return e.tconn.Write(p)
}

// WriteTLS flushes pending ciphertext through raw. A would-block from
// the transport leaves the remainder queued for the next writable
// readiness cycle.
func (e *Engine) WriteTLS(raw engine.RawWriter) (int, error) {
	e.mu.Lock()
	pending := e.outBuf
	e.mu.Unlock()
	if len(pending) == 0 {
		return 0, nil
	}

	n, err := raw(pending)
	if n > 0 {
		e.mu.Lock()
		e.outBuf = e.outBuf[n:]
		e.mu.Unlock()
	}
	if err != nil && !errors.IsWouldBlock(err) {
		return n, err
	}
	return n, nil
}

// Close releases the session. It does not attempt a close_notify of
// its own: the caller is tearing the transport down, matching the
// reference behavior of closing the socket outright.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.inClosed = true
	e.cond.Broadcast()
	e.mu.Unlock()
	return nil
}

// ── In-memory net.Conn ───────────────────────────────────────────────

// innerConn is the fake transport handed to crypto/tls. Reads block on
// the inbound ciphertext buffer; writes append to the outbound buffer
// and never block.
type innerConn struct {
	e *Engine
}

func (c *innerConn) Read(p []byte) (int, error) {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()

	for len(e.inBuf) == 0 && !e.inClosed {
		e.idle = true
		e.cond.Broadcast()
		e.cond.Wait()
	}
	e.idle = false
	if len(e.inBuf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, e.inBuf)
	e.inBuf = e.inBuf[n:]
	return n, nil
}

func (c *innerConn) Write(p []byte) (int, error) {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()
	e.outBuf = append(e.outBuf, p...)
	e.cond.Broadcast()
	return len(p), nil
}

func (c *innerConn) Close() error {
	e := c.e
	e.mu.Lock()
	e.inClosed = true
	e.cond.Broadcast()
	e.mu.Unlock()
	return nil
}

func (c *innerConn) LocalAddr() net.Addr  { return memAddr{} }
func (c *innerConn) RemoteAddr() net.Addr { return memAddr{} }

// Deadlines are meaningless on an in-memory buffer; blocking is bounded
// by the caller feeding ciphertext or closing the engine.
func (c *innerConn) SetDeadline(time.Time) error      { return nil }
func (c *innerConn) SetReadDeadline(time.Time) error  { return nil }
func (c *innerConn) SetWriteDeadline(time.Time) error { return nil }

type memAddr struct{}

func (memAddr) Network() string { return "mem" }
func (memAddr) String() string  { return "mem" }
