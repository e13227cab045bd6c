package sockio

import (
	"bytes"
	"net"
	"testing"
	"time"

	"tlsd/internal/errors"
)

// tcpPair returns two ends of a loopback TCP connection.
func tcpPair(t *testing.T) (server, client net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	type accepted struct {
		conn net.Conn
		err  error
	}
	ch := make(chan accepted, 1)
	go func() {
		c, err := ln.Accept()
		ch <- accepted{c, err}
	}()

	client, err = net.DialTimeout("tcp", ln.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	a := <-ch
	if a.err != nil {
		t.Fatal(a.err)
	}

	t.Cleanup(func() {
		client.Close()
		a.conn.Close()
	})
	return a.conn, client
}

func TestWrap_RejectsFdlessConn(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	if _, err := Wrap(c1); err == nil {
		t.Error("expected error wrapping a net.Pipe connection")
	}
}

func TestRead_WouldBlockWhenEmpty(t *testing.T) {
	server, _ := tcpPair(t)
	conn, err := Wrap(server)
	if err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 64)
	if _, err := conn.Read(buf); !errors.IsWouldBlock(err) {
		t.Errorf("Read on empty socket = %v, want ErrWouldBlock", err)
	}
}

func TestReadWrite_RoundTrip(t *testing.T) {
	server, client := tcpPair(t)
	conn, err := Wrap(server)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := client.Write([]byte("ping")); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 64)
	deadline := time.Now().Add(2 * time.Second)
	n := 0
	for n == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for bytes")
		}
		m, err := conn.Read(buf)
		if errors.IsWouldBlock(err) {
			time.Sleep(time.Millisecond)
			continue
		}
		if err != nil {
			t.Fatal(err)
		}
		n = m
	}
	if !bytes.Equal(buf[:n], []byte("ping")) {
		t.Errorf("read %q, want %q", buf[:n], "ping")
	}

	if m, err := conn.Write([]byte("pong")); err != nil || m != 4 {
		t.Fatalf("Write = (%d, %v), want (4, nil)", m, err)
	}
	client.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	got := make([]byte, 4)
	if _, err := client.Read(got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("pong")) {
		t.Errorf("peer read %q, want %q", got, "pong")
	}
}

func TestRead_ZeroOnPeerClose(t *testing.T) {
	server, client := tcpPair(t)
	conn, err := Wrap(server)
	if err != nil {
		t.Fatal(err)
	}

	client.Close()

	buf := make([]byte, 64)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for EOF")
		}
		n, err := conn.Read(buf)
		if errors.IsWouldBlock(err) {
			time.Sleep(time.Millisecond)
			continue
		}
		if err != nil {
			t.Fatalf("Read after peer close = %v, want (0, nil)", err)
		}
		if n != 0 {
			t.Fatalf("Read after peer close returned %d bytes", n)
		}
		return
	}
}

func TestWait_ReadableAfterPeerWrite(t *testing.T) {
	server, client := tcpPair(t)
	conn, err := Wrap(server)
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		client.Write([]byte("x")) //nolint:errcheck
	}()

	readable, _, err := conn.Wait(true, false)
	if err != nil {
		t.Fatal(err)
	}
	if !readable {
		t.Error("Wait returned without readable after peer write")
	}
}

func TestWait_WritableOnIdleSocket(t *testing.T) {
	server, _ := tcpPair(t)
	conn, err := Wrap(server)
	if err != nil {
		t.Fatal(err)
	}

	_, writable, err := conn.Wait(false, true)
	if err != nil {
		t.Fatal(err)
	}
	if !writable {
		t.Error("idle socket should be immediately writable")
	}
}

func TestClose_Idempotent(t *testing.T) {
	server, _ := tcpPair(t)
	conn, err := Wrap(server)
	if err != nil {
		t.Fatal(err)
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
