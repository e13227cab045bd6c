package metrics

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestNilCollector_IsNoOp(t *testing.T) {
	var c *Collector

	// None of these may panic.
	c.ConnectionOpened()
	c.ConnectionClosed()
	c.PlaintextReceived(100)
	c.ReplySent(46)
	c.RecordError("boom")

	if c.ActiveConnections() != 0 || c.TotalConnections() != 0 {
		t.Error("nil collector should report zeros")
	}
	if s := c.Snapshot(); s.ErrorsTotal != 0 {
		t.Error("nil collector snapshot should be zero")
	}
}

func TestConnectionCounters(t *testing.T) {
	c := New()

	c.ConnectionOpened()
	c.ConnectionOpened()
	c.ConnectionClosed()

	if got := c.ActiveConnections(); got != 1 {
		t.Errorf("ActiveConnections() = %d, want 1", got)
	}
	if got := c.TotalConnections(); got != 2 {
		t.Errorf("TotalConnections() = %d, want 2", got)
	}
}

func TestTrafficCounters(t *testing.T) {
	c := New()

	c.PlaintextReceived(28)
	c.PlaintextReceived(100)
	c.ReplySent(46)

	if got := c.TotalPlaintextIn(); got != 128 {
		t.Errorf("TotalPlaintextIn() = %d, want 128", got)
	}
	if got := c.RepliesSent(); got != 1 {
		t.Errorf("RepliesSent() = %d, want 1", got)
	}
}

func TestSnapshot_JSON(t *testing.T) {
	c := New()
	c.ConnectionOpened()
	c.ReplySent(46)
	c.RecordError("handshake failed")

	var s Snapshot
	if err := json.Unmarshal([]byte(c.JSON()), &s); err != nil {
		t.Fatalf("JSON() not parseable: %v", err)
	}
	if s.ConnectionsTotal != 1 || s.RepliesSent != 1 || s.ReplyBytesOut != 46 {
		t.Errorf("snapshot = %+v", s)
	}
	if s.ErrorsTotal != 1 || s.LastErrorMessage != "handshake failed" {
		t.Errorf("error fields = %+v", s)
	}
}

func TestConcurrentUpdates(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.ConnectionOpened()
				c.PlaintextReceived(1)
				c.ConnectionClosed()
			}
		}()
	}
	wg.Wait()

	if got := c.ActiveConnections(); got != 0 {
		t.Errorf("ActiveConnections() = %d, want 0", got)
	}
	if got := c.TotalConnections(); got != 16000 {
		t.Errorf("TotalConnections() = %d, want 16000", got)
	}
	if got := c.TotalPlaintextIn(); got != 16000 {
		t.Errorf("TotalPlaintextIn() = %d, want 16000", got)
	}
}
