// Package buffer implements the per-connection plaintext accumulator.
//
// The accumulator collects decrypted application bytes until the
// placeholder framing rule (a double CRLF anywhere in the stream) fires.
// Its growth policy is part of the observable behavior: capacity starts
// at InitialCapacity and doubles whenever free space drops below
// GrowThreshold. Capacity never shrinks and the filled length never
// reaches capacity; the final byte stays reserved.
package buffer

import "bytes"

const (
	// InitialCapacity is the accumulator's starting size in bytes.
	InitialCapacity = 2048

	// GrowThreshold is the minimum free space kept available for the
	// next drain of decrypted bytes.
	GrowThreshold = 1024
)

// Accumulator is a growable byte buffer with explicit length tracking.
// It is owned by exactly one connection and is not safe for concurrent
// use.
type Accumulator struct {
	data   []byte // len(data) == capacity
	length int    // filled prefix, always < len(data)
}

// New returns an empty accumulator with InitialCapacity bytes.
func New() *Accumulator {
	return NewSize(InitialCapacity)
}

// NewSize returns an empty accumulator with the given capacity.
// Capacities below 2 are rounded up so the reserved byte always fits.
func NewSize(capacity int) *Accumulator {
	if capacity < 2 {
		capacity = 2
	}
	return &Accumulator{data: make([]byte, capacity)}
}

// EnsureHeadroom doubles capacity until at least min bytes are free.
// Existing contents are preserved.
func (a *Accumulator) EnsureHeadroom(min int) {
	for len(a.data)-a.length < min {
		grown := make([]byte, len(a.data)*2)
		copy(grown, a.data[:a.length])
		a.data = grown
	}
}

// AppendRegion returns the writable tail of the buffer. One byte of
// capacity is held back, so the region may be empty; call
// EnsureHeadroom first on the read path.
func (a *Accumulator) AppendRegion() []byte {
	return a.data[a.length : len(a.data)-1]
}

// MarkAppended records that n bytes of the append region were filled.
func (a *Accumulator) MarkAppended(n int) {
	if n < 0 || a.length+n > len(a.data)-1 {
		panic("buffer: MarkAppended beyond append region")
	}
	a.length += n
}

// Bytes returns the filled prefix. The slice aliases the accumulator's
// storage and is invalidated by the next growth.
func (a *Accumulator) Bytes() []byte { return a.data[:a.length] }

// Len returns the number of accumulated bytes.
func (a *Accumulator) Len() int { return a.length }

// Cap returns the current capacity.
func (a *Accumulator) Cap() int { return len(a.data) }

// ContainsTerminator reports whether pattern occurs anywhere in the
// accumulated bytes. This is the placeholder request-framing rule, not
// a request parser.
func (a *Accumulator) ContainsTerminator(pattern []byte) bool {
	return bytes.Contains(a.Bytes(), pattern)
}
