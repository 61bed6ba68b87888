// Package tcp serves the line-oriented diagnostic channel: a greeting on
// connect, then an echo of every chunk the client sends. It is independent of
// the room protocol.
package tcp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Server accepts connections and runs one EchoSession per connection.
type Server struct {
	Name      string
	Addr      string
	Greeting  string
	EchoLimit int

	listener net.Listener
	running  atomic.Bool
	nextID   atomic.Uint32
	logger   zerolog.Logger

	mu       sync.Mutex
	sessions map[uint32]*EchoSession
	wg       sync.WaitGroup
}

func NewServer(name, addr, greeting string, echoLimit int) *Server {
	return &Server{
		Name:      name,
		Addr:      addr,
		Greeting:  greeting,
		EchoLimit: echoLimit,
		logger:    log.With().Str("module", "tcp").Str("server", name).Logger(),
		sessions:  make(map[uint32]*EchoSession),
	}
}

// Start binds Addr and runs the accept loop in a goroutine.
func (s *Server) Start() error {
	if s.running.Load() {
		return fmt.Errorf("server %s already running", s.Name)
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("server %s failed to start: %w", s.Name, err)
	}

	s.listener = ln
	s.running.Store(true)
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("server started")

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// ListenAddr is the bound address, useful when Addr asked for port 0.
func (s *Server) ListenAddr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every open session, then waits for them.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	_ = s.listener.Close()

	s.mu.Lock()
	open := make([]*EchoSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()
	for _, sess := range open {
		_ = sess.Close()
	}

	s.wg.Wait()
	s.logger.Info().Int("closed_sessions", len(open)).Msg("server stopped")
}

// SessionCount returns the number of open sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// acceptBackoff returns the pause after a failed Accept, given the previous one.
func acceptBackoff(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptDelay
	}
	return min(prev*2, maxAcceptDelay)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	var delay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			delay = acceptBackoff(delay)
			s.logger.Error().Err(err).Dur("retry_in", delay).Msg("accept error")
			time.Sleep(delay)
			continue
		}
		delay = 0

		id := s.nextID.Add(1)
		sess := newEchoSession(id, conn, s.Greeting, s.EchoLimit, s.logger)
		if !s.addSession(sess) {
			_ = conn.Close()
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.removeSession(id)
			sess.Handle()
		}()
	}
}

// addSession refuses new sessions once Stop has begun, so Stop never misses one.
func (s *Server) addSession(sess *EchoSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return false
	}
	s.sessions[sess.ID()] = sess
	return true
}

func (s *Server) removeSession(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}
