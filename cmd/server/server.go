package main

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/nickyhof/TableDB"
	"github.com/nickyhof/TableDB/config"
	"github.com/nickyhof/TableDB/core"
)

// Server is a TCP server that exposes one TableDB instance. Requests from
// all connections are serialized.
type Server struct {
	listener   net.Listener
	instance   *TableDB.Instance
	identity   core.Identity
	authConfig *config.AuthConfig
	tlsEnabled bool
	logger     *zap.Logger

	mu     sync.Mutex
	done   chan struct{}
	wg     sync.WaitGroup
	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

type ServerOption func(*Server)

func WithLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuth requires every connection to send AUTH JWT before any request.
// A disabled config is ignored.
func WithAuth(cfg *config.AuthConfig) ServerOption {
	return func(s *Server) {
		if cfg != nil && cfg.Enabled {
			s.authConfig = cfg
		}
	}
}

// NewServer creates a server. identity authors archive revisions for
// connections that did not authenticate.
func NewServer(instance *TableDB.Instance, identity core.Identity, opts ...ServerOption) *Server {
	s := &Server{
		instance: instance,
		identity: identity,
		logger:   zap.NewNop(),
		done:     make(chan struct{}),
		conns:    make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins listening for connections on the specified address.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	s.logger.Info("server listening", zap.String("addr", s.Addr()))

	go s.acceptLoop()
	return nil
}

// StartTLS is Start with TLS using a PEM certificate and key.
func (s *Server) StartTLS(addr, certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	listener, err := tls.Listen("tcp", addr, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("failed to start TLS server: %w", err)
	}
	s.listener = listener
	s.tlsEnabled = true

	s.logger.Info("server listening", zap.String("addr", s.Addr()), zap.Bool("tls", true))

	go s.acceptLoop()
	return nil
}

// Stop closes the listener and every open connection, then waits for the
// handlers to return.
func (s *Server) Stop() error {
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}

	s.connMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	return nil
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) TLSEnabled() bool {
	return s.tlsEnabled
}

func (s *Server) AuthEnabled() bool {
	return s.authConfig != nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.logger.Warn("accept failed", zap.Error(err))
				continue
			}
		}

		s.connMu.Lock()
		s.conns[conn] = struct{}{}
		s.connMu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	state := &ConnectionState{}
	logger := s.logger.With(zap.Stringer("remote", conn.RemoteAddr()))

	defer s.wg.Done()
	defer func() {
		s.connMu.Lock()
		delete(s.conns, conn)
		s.connMu.Unlock()
		conn.Close()
	}()
	defer s.abandon(state, logger)

	logger.Debug("client connected")

	reader := bufio.NewReader(conn)

	for {
		// One request per line.
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				logger.Warn("read failed", zap.Error(err))
			}
			return
		}

		query := strings.TrimSpace(line)
		if query == "" {
			continue
		}

		lower := strings.ToLower(query)
		if lower == "quit" || lower == "exit" {
			logger.Debug("client disconnected")
			return
		}

		var response Response
		switch {
		case strings.HasPrefix(lower, "auth "):
			response = s.handleAuth(query, state)
		case s.AuthEnabled() && !state.IsAuthenticated():
			response = Response{Success: false, Type: "auth", Error: "authentication required: send AUTH JWT <token>"}
		default:
			req, err := DecodeRequest([]byte(query))
			if err != nil {
				response = failure(err)
			} else {
				response = s.execute(req, state)
			}
		}

		data, err := EncodeResponse(response)
		if err != nil {
			logger.Error("failed to encode response", zap.Error(err))
			continue
		}

		if _, err := conn.Write(data); err != nil {
			logger.Warn("write failed", zap.Error(err))
			return
		}
	}
}

// abandon rolls back a transaction the connection began and never ended.
func (s *Server) abandon(state *ConnectionState, logger *zap.Logger) {
	if state.transaction == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	engine := s.instance.Engine
	if info, ok := engine.CurrentTransaction(); ok && info.Id == state.transaction {
		if _, err := engine.Rollback(); err != nil {
			logger.Error("rollback of abandoned transaction failed", zap.Error(err))
			return
		}
		logger.Warn("rolled back abandoned transaction", zap.String("transaction", info.Id))
	}
}
