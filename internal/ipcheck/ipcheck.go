// Package ipcheck runs the path supervision listener. Galaxy panels probe a
// second port to verify the reporting path is alive; the probe payload is
// proprietary and never parsed. The listener answers each probe with a fixed
// reply and otherwise shares nothing with the receiver.
package ipcheck

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/alxayo/go-galaxy-sia/internal/bufpool"
	"github.com/alxayo/go-galaxy-sia/internal/config"
	"github.com/alxayo/go-galaxy-sia/internal/sia/frame"
)

const (
	probeBufSize = 256
	readTimeout  = 30 * time.Second
	writeTimeout = 5 * time.Second
)

// Server answers path supervision probes.
type Server struct {
	cfg config.IPCheckConfig
	log *slog.Logger

	mu      sync.Mutex
	l       net.Listener
	conns   map[net.Conn]struct{}
	closing bool
	wg      sync.WaitGroup
}

// New creates an unstarted probe listener.
func New(cfg config.IPCheckConfig, log *slog.Logger) *Server {
	return &Server{
		cfg:   cfg,
		log:   log.With("component", "ip_check"),
		conns: make(map[net.Conn]struct{}),
	}
}

// Start binds the listener and begins answering probes.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.l != nil {
		s.mu.Unlock()
		return errors.New("ip check already started")
	}
	ln, err := net.Listen("tcp", s.cfg.HostPort())
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen %s: %w", s.cfg.HostPort(), err)
	}
	s.l = ln
	s.mu.Unlock()

	s.log.Info("IP check listening", "addr", ln.Addr().String(), "response", s.cfg.Response)
	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		c, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if closing || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept error", "error", err)
			return
		}
		s.mu.Lock()
		if s.closing {
			s.mu.Unlock()
			_ = c.Close()
			return
		}
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, c)
				s.mu.Unlock()
			}()
			s.serve(c)
		}()
	}
}

// serve answers every probe segment on the connection until the panel hangs
// up or goes silent.
func (s *Server) serve(c net.Conn) {
	defer c.Close()
	log := s.log.With("peer_addr", c.RemoteAddr().String())
	log.Debug("probe connected")

	buf := bufpool.Get(probeBufSize)
	defer bufpool.Put(buf)
	for {
		if err := c.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}
		n, err := c.Read(buf)
		if n > 0 {
			log.Debug("probe received", "bytes", n)
			if reply := s.reply(); reply != nil {
				_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
				if _, werr := c.Write(reply); werr != nil {
					log.Warn("probe reply failed", "error", werr)
					return
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("probe read ended", "error", err)
			}
			return
		}
	}
}

// reply maps the configured response mode to the bytes sent back. The panel
// only checks that the path answers, so a REJECT satisfies it just as well as
// an ACK; "none" keeps the port silent for panels that probe with a bare
// connect.
func (s *Server) reply() []byte {
	switch s.cfg.Response {
	case "ack":
		return frame.Ack()
	case "none":
		return nil
	default:
		return frame.RejectFrame()
	}
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.l == nil {
		return nil
	}
	return s.l.Addr()
}

// Stop closes the listener and waits for in-flight probes.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.l == nil {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	ln := s.l
	s.l = nil
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	_ = ln.Close()
	s.wg.Wait()
	s.log.Info("IP check stopped")
	return nil
}
