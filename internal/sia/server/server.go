// Package server implements the SIA receiver: a TCP listener that accepts
// panel connections and runs the per-session protocol handler over each one.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// stopGrace bounds how long Stop waits for in-flight sessions after closing
// their sockets.
const stopGrace = 2 * time.Second

// Server owns the listener and tracks active panel connections.
type Server struct {
	addr    string
	handler *Handler
	log     *slog.Logger

	mu      sync.RWMutex
	l       net.Listener
	conns   map[string]net.Conn
	closing bool

	nextID    atomic.Uint64
	acceptWg  sync.WaitGroup
	handlerWg sync.WaitGroup
}

// New creates an unstarted server listening on addr once Start is called.
func New(addr string, handler *Handler, log *slog.Logger) *Server {
	return &Server{
		addr:    addr,
		handler: handler,
		log:     log.With("component", "sia_server"),
		conns:   make(map[string]net.Conn),
	}
}

// Start binds the listener and launches the accept loop. Calling Start on a
// running server is an error.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.l != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.l = ln
	s.mu.Unlock()

	s.log.Info("SIA receiver listening", "addr", ln.Addr().String())
	s.acceptWg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.acceptWg.Done()
	for {
		raw, err := ln.Accept()
		if err != nil {
			s.mu.RLock()
			closing := s.closing
			s.mu.RUnlock()
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if closing || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept error", "error", err)
			return
		}

		id := fmt.Sprintf("conn-%d", s.nextID.Add(1))
		s.mu.Lock()
		if s.closing {
			s.mu.Unlock()
			_ = raw.Close()
			return
		}
		s.conns[id] = raw
		s.mu.Unlock()

		s.handlerWg.Add(1)
		go func() {
			defer s.handlerWg.Done()
			defer func() {
				// A malformed session must never take the receiver down.
				if r := recover(); r != nil {
					s.log.Error("session handler panic", "conn_id", id, "panic", r)
					_ = raw.Close()
				}
				s.removeConn(id)
			}()
			s.handler.Handle(raw, id)
		}()
	}
}

func (s *Server) removeConn(id string) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
}

// Stop closes the listener and every active session, then waits briefly for
// handlers to finish flushing their events.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.l == nil {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	ln := s.l
	s.l = nil
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	_ = ln.Close()

	s.acceptWg.Wait()
	done := make(chan struct{})
	go func() {
		s.handlerWg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopGrace):
		s.log.Warn("session handlers still running after grace period", "grace", stopGrace)
	}
	s.log.Info("SIA receiver stopped")
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.l == nil {
		return nil
	}
	return s.l.Addr()
}

// ConnectionCount returns the number of active panel sessions.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}
