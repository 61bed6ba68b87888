package tcp

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, echoLimit int) *Server {
	t.Helper()
	s := NewServer("test", "127.0.0.1:0", "HELLO_FROM_GATEWAY", echoLimit)
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)
	return s
}

func dial(t *testing.T, s *Server) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.Dial("tcp", s.ListenAddr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))
	return conn, bufio.NewReader(conn)
}

func TestEchoSession(t *testing.T) {
	s := startServer(t, 200)
	conn, rd := dial(t, s)

	line, err := rd.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "HELLO_FROM_GATEWAY\n", line)

	_, err = conn.Write([]byte("hello\r\n"))
	require.NoError(t, err)
	line, err = rd.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ECHO: hello\n", line)
}

func TestEchoTruncates(t *testing.T) {
	s := startServer(t, 5)
	conn, rd := dial(t, s)
	_, err := rd.ReadString('\n')
	require.NoError(t, err)

	_, err = conn.Write([]byte("abcdefghij\n"))
	require.NoError(t, err)
	line, err := rd.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ECHO: abcde\n", line)
}

func TestStopClosesSessions(t *testing.T) {
	s := NewServer("test", "127.0.0.1:0", "HI", 200)
	require.NoError(t, s.Start())
	conn, rd := dial(t, s)
	_, err := rd.ReadString('\n')
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return s.SessionCount() == 1 }, time.Second, 10*time.Millisecond)

	s.Stop()
	_, err = rd.ReadString('\n')
	assert.Error(t, err)
	assert.Zero(t, s.SessionCount())
	_ = conn.Close()

	s.Stop()
}

func TestStartTwice(t *testing.T) {
	s := startServer(t, 200)
	assert.Error(t, s.Start())
}

func TestStartBindFailure(t *testing.T) {
	s := startServer(t, 200)
	other := NewServer("dup", s.ListenAddr().String(), "HI", 200)
	assert.Error(t, other.Start())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "héé", Truncate("hééllo", 3))
	assert.Equal(t, strings.Repeat("x", 200), Truncate(strings.Repeat("x", 300), 200))
}

// failingListener fails every Accept until it is closed.
type failingListener struct {
	calls  atomic.Int32
	closed atomic.Bool
}

func (l *failingListener) Accept() (net.Conn, error) {
	l.calls.Add(1)
	if l.closed.Load() {
		return nil, net.ErrClosed
	}
	return nil, errors.New("accept: too many open files")
}

func (l *failingListener) Close() error {
	l.closed.Store(true)
	return nil
}

func (l *failingListener) Addr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }

func TestAcceptBackoff(t *testing.T) {
	var d time.Duration
	var got []time.Duration
	for range 10 {
		d = acceptBackoff(d)
		got = append(got, d)
	}
	assert.Equal(t, 5*time.Millisecond, got[0])
	assert.Equal(t, 10*time.Millisecond, got[1])
	assert.Equal(t, 640*time.Millisecond, got[7])
	assert.Equal(t, time.Second, got[8])
	assert.Equal(t, time.Second, got[9])
}

func TestAcceptErrorsDoNotSpin(t *testing.T) {
	fl := &failingListener{}
	s := NewServer("flaky", "", "HI", 200)
	s.listener = fl
	s.running.Store(true)
	s.wg.Add(1)
	go s.acceptLoop()

	time.Sleep(100 * time.Millisecond)
	s.Stop()

	// 5+10+20+40ms of backoff fit in the window, so only a handful of retries happen.
	assert.Less(t, fl.calls.Load(), int32(10))
	assert.True(t, fl.closed.Load())
}
