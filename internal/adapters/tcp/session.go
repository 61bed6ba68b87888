package tcp

import (
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// readBufferSize bounds a single read; longer input arrives as several chunks.
const readBufferSize = 1024

// EchoSession serves one TCP connection.
type EchoSession struct {
	id        uint32
	conn      net.Conn
	greeting  string
	echoLimit int
	logger    zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newEchoSession(id uint32, conn net.Conn, greeting string, echoLimit int, parent zerolog.Logger) *EchoSession {
	return &EchoSession{
		id:        id,
		conn:      conn,
		greeting:  greeting,
		echoLimit: echoLimit,
		logger:    parent.With().Uint32("session", id).Str("remote", conn.RemoteAddr().String()).Logger(),
	}
}

func (s *EchoSession) ID() uint32 { return s.id }

// Handle writes the greeting, then echoes each chunk until the peer goes away.
func (s *EchoSession) Handle() {
	defer s.Close()
	s.logger.Info().Msg("tcp client connected")

	if err := s.Send([]byte(s.greeting + "\n")); err != nil {
		s.logger.Warn().Err(err).Msg("write greeting")
		return
	}

	buf := make([]byte, readBufferSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			line := "ECHO: " + Truncate(strings.TrimRight(string(buf[:n]), "\r\n"), s.echoLimit) + "\n"
			if werr := s.Send([]byte(line)); werr != nil {
				s.logger.Warn().Err(werr).Msg("write echo")
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				s.logger.Info().Msg("tcp client disconnected")
			} else {
				s.logger.Error().Err(err).Msg("tcp read error")
			}
			return
		}
	}
}

// Send writes data to the connection; safe for concurrent use.
func (s *EchoSession) Send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.conn.Write(data)
	return err
}

// Close is safe to call more than once.
func (s *EchoSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}
