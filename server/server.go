// Package server accepts TLS connections and drives each one through
// the transport multiplexing state machine.
package server

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"golang.org/x/net/netutil"

	"tlsd/config"
	"tlsd/internal/buffer"
	"tlsd/internal/engine"
	"tlsd/internal/errors"
	"tlsd/internal/metrics"
	"tlsd/internal/retry"
	"tlsd/internal/sockio"
	"tlsd/util"
)

// Server owns the listener and the shared per-process collaborators.
// Accepted connections own everything else.
type Server struct {
	cfg       *config.Config
	log       *util.Logger
	newEngine engine.Factory
	sink      util.Sink
	metrics   *metrics.Collector
	reply     []byte

	nextID atomic.Uint64
}

// New builds a server. sink and collector may be nil; reply defaults
// to DefaultReply.
func New(cfg *config.Config, log *util.Logger, factory engine.Factory, sink util.Sink, collector *metrics.Collector) *Server {
	return &Server{
		cfg:       cfg,
		log:       log,
		newEngine: factory,
		sink:      sink,
		metrics:   collector,
		reply:     DefaultReply,
	}
}

// SetReply overrides the fixed response payload.
func (s *Server) SetReply(reply []byte) { s.reply = reply }

// ListenAndServe accepts connections until the context is cancelled.
// Each accepted connection runs to completion in its own goroutine;
// the accept loop never waits on one. A failure while setting up a
// single connection is logged and the loop keeps accepting.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return errors.WrapSetup("listen", err)
	}
	if s.cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConns)
	}
	defer ln.Close()

	s.log.Info("listening on %s", ln.Addr())

	// Shut the listener down when the context expires.
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	backoff := &retry.Backoff{
		InitialDelay: config.DefaultAcceptInitialDelay,
		MaxDelay:     config.DefaultAcceptMaxDelay,
		Jitter:       true,
	}

	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.log.Verbose("shutting down: %s", s.metrics.JSON())
				return nil
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() { //nolint:staticcheck // deprecated but still the accept-loop signal
				s.log.Warn("accept: %v (backing off)", err)
				if backoff.Sleep(ctx) != nil {
					return nil
				}
				continue
			}
			return errors.WrapSetup("accept", err)
		}
		backoff.Reset()
		s.dispatch(nc)
	}
}

// dispatch wires up one accepted connection and fires its state
// machine as an independent goroutine. Setup failures close the socket
// and leave the accept loop untouched.
func (s *Server) dispatch(nc net.Conn) {
	id := s.nextID.Add(1)
	clog := s.log.WithPrefix(fmt.Sprintf("conn %d: ", id))

	sock, err := sockio.Wrap(nc)
	if err != nil {
		clog.Error("socket setup: %v", err)
		s.metrics.RecordError(err.Error())
		nc.Close() //nolint:errcheck
		return
	}

	eng, err := s.newEngine()
	if err != nil {
		clog.Error("engine setup: %v", err)
		s.metrics.RecordError(err.Error())
		sock.Close() //nolint:errcheck
		return
	}

	s.metrics.ConnectionOpened()
	clog.Info("accepted from %s (fd %d)", nc.RemoteAddr(), sock.Fd())

	conn := &Conn{
		id:          id,
		sock:        sock,
		eng:         eng,
		accum:       buffer.New(),
		state:       AwaitingRequest,
		log:         clog,
		metrics:     s.metrics,
		sink:        s.sink,
		reply:       s.reply,
		wakeupDelay: config.DefaultSpuriousWakeupDelay,
	}
	go conn.Run() //nolint:errcheck
}
