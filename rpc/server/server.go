package server

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/respkv/lib/keyspace"
	"github.com/ValentinKolb/respkv/rpc/common"
	"github.com/ValentinKolb/respkv/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"net"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
)

var Logger = logger.GetLogger("server")

// NewServer creates a new RESP server with an empty keyspace.
//
// Usage:
//
//	s := server.NewServer(config, tcp.NewTCPServerConnector())
//	defer s.Close()
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewServer(config common.ServerConfig, connector transport.IServerConnector) *Server {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RESP Server")
	Logger.Infof(config.String())

	return &Server{
		config:    config,
		connector: connector,
		keyspace:  keyspace.New(nil),
		sessions:  xsync.NewMapOf[uint64, *session](),
	}
}

// Server is a single node RESP server backed by an in-memory keyspace
type Server struct {
	config    common.ServerConfig
	connector transport.IServerConnector
	keyspace  *keyspace.Keyspace

	mu       sync.Mutex
	listener net.Listener

	// all open client connections by session id
	sessions *xsync.MapOf[uint64, *session]
	nextID   atomic.Uint64
	wg       sync.WaitGroup
	closed   atomic.Bool
}

// Listen opens the listener of the server. Serve calls Listen if needed,
// calling it first makes the address available before serving.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return net.ErrClosed
	}
	if s.listener != nil {
		return nil
	}

	listener, err := s.connector.Listen(s.config)
	if err != nil {
		return err
	}
	s.listener = listener
	Logger.Infof("Listening on %s (%s)", listener.Addr(), s.connector.GetName())
	return nil
}

// Addr returns the address of the listener (nil before Listen)
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until Close is called. It returns nil after Close.
func (s *Server) Serve() error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}

		// Apply protocol-specific settings
		if err := s.connector.UpgradeConnection(conn, s.config); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
			_ = conn.Close()
			continue
		}

		// register under the lock, Close must see every session
		s.mu.Lock()
		if s.closed.Load() {
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		sess := newSession(s.nextID.Add(1), conn, s)
		s.sessions.Store(sess.id, sess)
		s.wg.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.wg.Done()
			defer s.sessions.Delete(sess.id)
			sess.serve()
		}()
	}
}

// Close stops accepting connections, closes all client connections and
// waits for their goroutines to finish
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.mu.Unlock()

	s.sessions.Range(func(_ uint64, sess *session) bool {
		_ = sess.conn.Close()
		return true
	})
	s.wg.Wait()

	_ = s.keyspace.Close()
	Logger.Infof("Server closed")
	return err
}

// NumSessions returns the number of connected clients
func (s *Server) NumSessions() int {
	return s.sessions.Size()
}
