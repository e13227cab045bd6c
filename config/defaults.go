package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and tests.

const (
	// DefaultPort is the TLS listen port.
	DefaultPort = 8443

	// DefaultMirror mirrors decrypted request bytes to stdout.
	DefaultMirror = "-"

	// DefaultAcceptInitialDelay is the first backoff step after a
	// transient accept failure.
	DefaultAcceptInitialDelay = 5 * time.Millisecond

	// DefaultAcceptMaxDelay caps the accept backoff.
	DefaultAcceptMaxDelay = 1 * time.Second

	// DefaultSpuriousWakeupDelay is how long a connection sleeps when a
	// readiness wait returns with nothing ready before retrying.
	DefaultSpuriousWakeupDelay = 10 * time.Millisecond
)
