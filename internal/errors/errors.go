// Package errors defines the error taxonomy for tlsd.
//
// The server distinguishes three kinds of non-fatal outcomes (would-block,
// peer EOF, close-notify) from genuinely fatal connection and setup errors.
// The sentinels here are that vocabulary; the structured types carry enough
// context to log a failure without crashing sibling connections.
package errors

import (
	"errors"
	"fmt"
)

// ── Sentinel outcomes ────────────────────────────────────────────────

var (
	// ErrWouldBlock is the normalized "try again later" outcome from a
	// non-blocking raw read or write. It is never fatal; it sends the
	// connection back to its readiness wait.
	ErrWouldBlock = errors.New("operation would block")

	// ErrCloseNotify reports that the transport engine received the
	// peer's orderly termination signal. It is a clean shutdown, not a
	// failure.
	ErrCloseNotify = errors.New("close notify received")

	// ErrPeerAfterClose reports that the peer kept sending raw bytes
	// after its close-notify, which is a protocol violation.
	ErrPeerAfterClose = errors.New("peer sent data after close notify")

	// ErrShortWrite reports that the engine accepted fewer plaintext
	// bytes than were offered. The reply path has no partial-write
	// retry, so this is fatal for the connection.
	ErrShortWrite = errors.New("short plaintext write")

	// ErrEngineClosed reports use of an engine after Close.
	ErrEngineClosed = errors.New("engine is closed")
)

// ── Structured error types ───────────────────────────────────────────

// ConnError is a failure scoped to a single connection. It never
// propagates past the connection's goroutine.
type ConnError struct {
	Op   string // "wait", "read_tls", "process", "write_tls", "reply", ...
	Conn uint64 // connection id assigned by the acceptor
	Err  error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("conn %d: %s: %v", e.Conn, e.Op, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// SetupError is a failure during process startup (certificate loading,
// bind, listen). It is fatal to the whole process.
type SetupError struct {
	Stage string // "certificate", "listen", ...
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup: %s: %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// ── Constructors ─────────────────────────────────────────────────────

// WrapConn builds a ConnError for the given connection and operation.
func WrapConn(op string, id uint64, err error) *ConnError {
	return &ConnError{Op: op, Conn: id, Err: err}
}

// WrapSetup builds a SetupError for the given startup stage.
func WrapSetup(stage string, err error) *SetupError {
	return &SetupError{Stage: stage, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsWouldBlock reports whether err is the would-block outcome, possibly
// wrapped.
func IsWouldBlock(err error) bool { return errors.Is(err, ErrWouldBlock) }

// IsClean reports whether err represents an orderly shutdown rather
// than a failure: nil or a close-notify that verified cleanly.
func IsClean(err error) bool {
	return err == nil || errors.Is(err, ErrCloseNotify)
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These let the rest of the module use tlsd/internal/errors as a
// drop-in for the standard library.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }
