// Package metrics tracks runtime statistics for a tlsd process.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector counts connections, decrypted traffic, and replies.
type Collector struct {
	connectionsActive atomic.Int64
	connectionsTotal  atomic.Int64
	plaintextIn       atomic.Int64
	replyBytesOut     atomic.Int64
	repliesSent       atomic.Int64
	errorsTotal       atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// ── Traffic metrics ──────────────────────────────────────────────────

// PlaintextReceived records n decrypted bytes drained from an engine.
func (c *Collector) PlaintextReceived(n int64) {
	if c == nil {
		return
	}
	c.plaintextIn.Add(n)
}

// ReplySent records one fixed reply of n plaintext bytes.
func (c *Collector) ReplySent(n int64) {
	if c == nil {
		return
	}
	c.repliesSent.Add(1)
	c.replyBytesOut.Add(n)
}

// TotalPlaintextIn returns total decrypted bytes received.
func (c *Collector) TotalPlaintextIn() int64 {
	if c == nil {
		return 0
	}
	return c.plaintextIn.Load()
}

// RepliesSent returns the number of replies written.
func (c *Collector) RepliesSent() int64 {
	if c == nil {
		return 0
	}
	return c.repliesSent.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	PlaintextIn       int64  `json:"plaintext_bytes_in"`
	ReplyBytesOut     int64  `json:"reply_bytes_out"`
	RepliesSent       int64  `json:"replies_sent"`
	ErrorsTotal       int64  `json:"errors_total"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		PlaintextIn:       c.plaintextIn.Load(),
		ReplyBytesOut:     c.replyBytesOut.Load(),
		RepliesSent:       c.repliesSent.Load(),
		ErrorsTotal:       c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
