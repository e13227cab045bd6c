package server

import (
	"io"
	"time"

	"tlsd/internal/buffer"
	"tlsd/internal/engine"
	"tlsd/internal/errors"
	"tlsd/internal/metrics"
	"tlsd/util"
)

// ExchangeState tracks the request/reply exchange on one connection.
// The transition is monotonic: once the reply is written the connection
// never goes back to waiting for a request.
type ExchangeState uint8

const (
	AwaitingRequest ExchangeState = iota
	ResponseSent
)

// requestTerminator is the placeholder framing rule: the byte stream
// counts as a complete request once it contains a double CRLF.
var requestTerminator = []byte("\r\n\r\n")

// DefaultReply is the fixed response written once per connection.
var DefaultReply = []byte("HTTP/1.1 200 OK\r\nContent-Length: 6\r\n\r\nhello\n")

// RawSocket is the transport surface the state machine drives: raw
// non-blocking reads and writes plus a readiness wait. Implemented by
// sockio.Conn; tests substitute a scripted fake.
type RawSocket interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Wait(wantRead, wantWrite bool) (readable, writable bool, err error)
	Close() error
}

// errPeerEOF marks an orderly transport-level close (read_tls consumed
// zero bytes). Internal to the loop; surfaces as a clean shutdown.
var errPeerEOF = errors.New("peer closed connection")

// Conn is the state for one accepted connection: the socket, the
// engine session, and the plaintext accumulator, all exclusively owned
// by the goroutine running Run.
type Conn struct {
	id    uint64
	sock  RawSocket
	eng   engine.Engine
	accum *buffer.Accumulator
	state ExchangeState

	log     *util.Logger
	metrics *metrics.Collector
	sink    io.Writer // decrypted bytes mirrored here; never affects correctness
	reply   []byte

	wakeupDelay time.Duration // sleep after a spurious readiness wakeup
}

// Run drives the connection until a clean shutdown, peer EOF, or a
// fatal error, then releases the engine and socket unconditionally.
// The returned error is nil for every orderly termination.
func (c *Conn) Run() error {
	err := c.loop()

	c.eng.Close()  //nolint:errcheck
	c.sock.Close() //nolint:errcheck
	c.metrics.ConnectionClosed()

	if err != nil {
		c.metrics.RecordError(err.Error())
		c.log.Error("%v", err)
	} else {
		c.log.Verbose("closed")
	}
	return err
}

// loop is one iteration scheme: poll the engine's interest, wait for
// readiness, pump raw bytes in, flush raw bytes out, and fire the
// reply when the request terminator shows up.
func (c *Conn) loop() error {
	for {
		readable, writable, err := c.sock.Wait(c.eng.WantsRead(), c.eng.WantsWrite())
		if err != nil {
			return errors.WrapConn("wait", c.id, err)
		}
		if !readable && !writable {
			// Spurious wakeup; not an error.
			c.log.Debug("readiness wait returned nothing, retrying")
			time.Sleep(c.wakeupDelay)
			continue
		}

		if readable {
			// Read until the socket runs dry, then fall back to the
			// readiness wait for the next batch.
			for {
				err := c.readCycle()
				if errors.IsWouldBlock(err) {
					break
				}
				if errors.Is(err, errPeerEOF) {
					c.log.Verbose("peer closed the connection")
					return nil
				}
				if errors.Is(err, errors.ErrCloseNotify) {
					return c.verifyHalfClose()
				}
				if err != nil {
					return err
				}
			}
		}

		if writable {
			n, err := c.eng.WriteTLS(c.sock.Write)
			if err != nil {
				return errors.WrapConn("write_tls", c.id, err)
			}
			if n > 0 {
				c.log.Debug("flushed %d raw bytes", n)
			}
		}

		if c.state == AwaitingRequest && c.accum.ContainsTerminator(requestTerminator) {
			if err := c.sendReply(); err != nil {
				return err
			}
		}
	}
}

// readCycle performs one raw read into the engine, processes the new
// records, and drains whatever plaintext came out.
func (c *Conn) readCycle() error {
	n, err := c.eng.ReadTLS(c.sock.Read)
	if err != nil {
		if errors.IsWouldBlock(err) {
			return err
		}
		return errors.WrapConn("read_tls", c.id, err)
	}
	if n == 0 {
		return errPeerEOF
	}
	c.log.Debug("read %d raw bytes", n)

	if err := c.eng.ProcessNewPackets(); err != nil {
		if errors.Is(err, errors.ErrCloseNotify) {
			// The close-notify may share a raw batch with the final
			// data records. Drain them before acting on the shutdown
			// so no delivered plaintext is lost.
			if derr := c.drainPlaintext(); derr != nil {
				return derr
			}
			return err
		}
		return errors.WrapConn("process", c.id, err)
	}

	return c.drainPlaintext()
}

// drainPlaintext copies every available decrypted byte into the
// accumulator, growing it ahead of each read, and mirrors the bytes to
// the sink as a side effect.
func (c *Conn) drainPlaintext() error {
	for {
		c.accum.EnsureHeadroom(buffer.GrowThreshold)
		region := c.accum.AppendRegion()
		n, err := c.eng.ReadPlaintext(region)
		if err != nil {
			return errors.WrapConn("read_plaintext", c.id, err)
		}
		if n == 0 {
			return nil
		}
		chunk := region[:n]
		c.accum.MarkAppended(n)
		c.metrics.PlaintextReceived(int64(n))

		if c.sink != nil {
			if _, err := c.sink.Write(chunk); err != nil {
				// Mirroring is best-effort; the exchange goes on.
				c.log.Warn("mirror: %v", err)
			}
		}
	}
}

// sendReply writes the fixed response exactly once. The plaintext path
// has no partial-write retry: anything short of the full reply is
// fatal for this connection.
func (c *Conn) sendReply() error {
	n, err := c.eng.WritePlaintext(c.reply)
	if err != nil {
		return errors.WrapConn("reply", c.id, err)
	}
	if n != len(c.reply) {
		return errors.WrapConn("reply", c.id, errors.ErrShortWrite)
	}
	c.state = ResponseSent
	c.metrics.ReplySent(int64(n))
	c.log.Verbose("reply sent")
	return nil
}

// verifyHalfClose runs after a close-notify: one more raw, non-blocking
// read directly on the socket. The peer is expected to have stopped
// sending; any further bytes are a protocol violation.
func (c *Conn) verifyHalfClose() error {
	bufp := util.GetBuf()
	defer util.PutBuf(bufp)

	n, err := c.sock.Read(*bufp)
	switch {
	case errors.IsWouldBlock(err), err == nil && n == 0:
		c.log.Verbose("close notify, clean shutdown")
		return nil
	case err != nil:
		return errors.WrapConn("half_close", c.id, err)
	default:
		c.log.Warn("peer sent %d bytes after close notify", n)
		return errors.WrapConn("half_close", c.id, errors.ErrPeerAfterClose)
	}
}
