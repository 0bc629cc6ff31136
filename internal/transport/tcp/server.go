// Package tcp bridges raw TCP connections to the core hub: an accept loop
// that survives listener failure, a read pump feeding the frame decoder, and
// a write pump draining the outbound queue.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fernwick/relaychat/internal/core"
)

const relistenBackoff = 250 * time.Millisecond

// Server accepts chat connections and hands them to the hub.
type Server struct {
	addr        string
	readBufSize int
	hub         *core.Hub
	log         *zerolog.Logger

	mu sync.Mutex
	ln net.Listener
}

// NewServer builds a TCP server. Call Listen then Serve.
func NewServer(addr string, readBufSize int, hub *core.Hub, logger *zerolog.Logger) *Server {
	if readBufSize <= 0 {
		readBufSize = 4096
	}
	return &Server{
		addr:        addr,
		readBufSize: readBufSize,
		hub:         hub,
		log:         logger,
	}
}

// Listen opens the listening socket.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.setListener(ln)
	s.log.Info().Str("addr", ln.Addr().String()).Msg("listening for chat connections")
	return nil
}

// Addr returns the bound listener address. Valid after Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until the context is cancelled. A failure on the
// listening socket closes and recreates it, leaving live connections
// untouched; only a failure to re-listen is fatal.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		ln := s.listener()
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn().Err(err).Msg("accept failed, reinitializing listener")
			ln.Close()
			time.Sleep(relistenBackoff)
			if lerr := s.Listen(); lerr != nil {
				return fmt.Errorf("reinitialize listener: %w", lerr)
			}
			continue
		}
		s.handle(conn)
	}
}

// Close shuts the listening socket. Existing connections are unaffected.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		s.ln.Close()
	}
}

func (s *Server) handle(conn net.Conn) {
	client := core.NewClient(uuid.NewString(), conn.RemoteAddr().String())
	s.log.Info().Str("client_id", client.ID).Str("addr", client.Addr).Msg("connection accepted")

	s.hub.Register(client)
	go s.readPump(conn, client)
	go s.writePump(conn, client)
}

func (s *Server) listener() net.Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ln
}

func (s *Server) setListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ln = ln
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
