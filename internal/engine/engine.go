// Package engine defines the capability interface through which the
// connection state machine consumes a secure transport session.
//
// The engine owns everything cryptographic: handshake, record
// encryption and decryption, certificate handling, alerts. The caller
// owns the socket and hands the engine raw I/O capabilities one call at
// a time; the engine never touches a file descriptor itself. This keeps
// the multiplexing core compilable and testable against a fake session.
package engine

// RawReader pulls raw (encrypted) bytes from the transport. It returns
// (0, nil) on orderly peer shutdown and errors.ErrWouldBlock when no
// bytes are available yet.
type RawReader func(p []byte) (int, error)

// RawWriter pushes raw (encrypted) bytes to the transport, returning
// how many were accepted. A full transport surfaces as
// errors.ErrWouldBlock.
type RawWriter func(p []byte) (int, error)

// Engine is one secure transport session, bound 1:1 to a connection
// and driven entirely by its connection's goroutine.
type Engine interface {
	// WantsRead reports whether the session is waiting for more raw
	// bytes from the peer. Polled before every readiness wait.
	WantsRead() bool

	// WantsWrite reports whether the session has raw bytes pending for
	// the peer. Polled before every readiness wait.
	WantsWrite() bool

	// ReadTLS pulls raw bytes via raw and feeds them into the session's
	// record buffer, returning how many bytes were consumed. A return
	// of (0, nil) means the peer closed at a record boundary and is
	// treated as connection EOF, not an error. ErrWouldBlock from raw
	// propagates unchanged.
	ReadTLS(raw RawReader) (int, error)

	// ProcessNewPackets validates and decrypts the records ingested
	// since the last call. A close-notify alert from the peer is
	// reported as errors.ErrCloseNotify; any other failure is a fatal
	// protocol error.
	ProcessNewPackets() error

	// ReadPlaintext drains decrypted application bytes into p. A return
	// of (0, nil) means nothing is available right now; end-of-stream
	// is signalled only via ProcessNewPackets.
	ReadPlaintext(p []byte) (int, error)

	// WritePlaintext accepts application bytes for encryption and later
	// emission. Callers must treat n < len(p) as fatal: there is no
	// partial-write retry on the plaintext path.
	WritePlaintext(p []byte) (int, error)

	// WriteTLS emits pending encrypted records via raw. A return of
	// (0, nil) means nothing was left to flush.
	WriteTLS(raw RawWriter) (int, error)

	// Close releases the session's resources. It does not touch the
	// socket, which the caller closes separately.
	Close() error
}

// Factory builds a fresh Engine for a newly accepted connection.
type Factory func() (Engine, error)
