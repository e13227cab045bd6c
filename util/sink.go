package util

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// Sink is the destination for decrypted application bytes. Mirroring
// is a pure side effect of the connection state machine: the server's
// correctness never depends on what (or whether) a sink writes.
//
// Sinks are safe for concurrent use by multiple connections.
type Sink interface {
	io.Writer
	Close() error
}

// NewSink opens the mirror destination named by path:
//
//	""      discard everything
//	"-"     standard output
//	"x.gz"  gzip-compressed file
//	other   plain file
func NewSink(path string) (Sink, error) {
	switch {
	case path == "":
		return &sink{w: io.Discard}, nil
	case path == "-":
		return &sink{w: os.Stdout}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open mirror %s: %w", path, err)
	}
	if strings.HasSuffix(path, ".gz") {
		zw := gzip.NewWriter(f)
		return &sink{w: zw, closers: []io.Closer{zw, f}}, nil
	}
	return &sink{w: f, closers: []io.Closer{f}}, nil
}

type sink struct {
	mu      sync.Mutex
	w       io.Writer
	closers []io.Closer
}

func (s *sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Close flushes and closes the underlying writer chain. Closing a
// stdout or discard sink is a no-op.
func (s *sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}
