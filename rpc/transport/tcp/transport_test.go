package tcp

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dRec/rpc/common"
	"github.com/ValentinKolb/dRec/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServerConfig(workers int) common.ServerConfig {
	return common.ServerConfig{
		Transport: common.ServerTransportConfig{
			TCPConf:                  common.TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
			Endpoint:                 "127.0.0.1:0",
			Workers:                  workers,
			AcceptTimeoutMillisecond: 50,
			ReadBufferSize:           1024,
		},
	}
}

// startServer binds to a free port and serves until the test ends
func startServer(t *testing.T, workers int, handler transport.ServerHandleFunc) (transport.IRPCServerTransport, common.ClientConfig) {
	srv := NewTCPServerTransport()
	srv.RegisterHandler(handler)
	require.NoError(t, srv.Bind(testServerConfig(workers)))

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()

	t.Cleanup(func() {
		srv.Stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	return srv, common.ClientConfig{
		Endpoint:      srv.Addr().String(),
		TimeoutSecond: 5,
		TCPConf:       common.TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
	}
}

func echo(conn net.Conn) {
	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	if err != nil {
		return
	}
	_, _ = conn.Write(buf[:n])
}

func roundTrip(t *testing.T, cfg common.ClientConfig, msg string) string {
	conn, err := NewTCPClientTransport().Dial(context.Background(), cfg)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(msg))
	require.NoError(t, err)

	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(data)
}

func TestEcho(t *testing.T) {
	_, cfg := startServer(t, 2, echo)
	assert.Equal(t, "hello", roundTrip(t, cfg, "hello"))
}

// TestConnectionsExceedWorkers tests that connections beyond the pool size
// are queued and handled eventually
func TestConnectionsExceedWorkers(t *testing.T) {
	const (
		workers = 2
		clients = 20
	)

	var active, maxActive atomic.Int32
	_, cfg := startServer(t, workers, func(conn net.Conn) {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		echo(conn)
		active.Add(-1)
	})

	var wg sync.WaitGroup
	wg.Add(clients)
	for i := 0; i < clients; i++ {
		go func() {
			defer wg.Done()
			conn, err := NewTCPClientTransport().Dial(context.Background(), cfg)
			if err != nil {
				t.Errorf("dial failed: %v", err)
				return
			}
			defer conn.Close()
			if _, err := conn.Write([]byte("x")); err != nil {
				t.Errorf("write failed: %v", err)
				return
			}
			data, err := io.ReadAll(conn)
			if err != nil || string(data) != "x" {
				t.Errorf("unexpected response %q: %v", data, err)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxActive.Load(), int32(workers))
}

// TestHandlerPanic tests that a panicking handler only affects its own connection
func TestHandlerPanic(t *testing.T) {
	var calls atomic.Int32
	_, cfg := startServer(t, 1, func(conn net.Conn) {
		if calls.Add(1) == 1 {
			_, _ = conn.Read(make([]byte, 64))
			panic("boom")
		}
		echo(conn)
	})

	// first connection is closed without response
	assert.Equal(t, "", roundTrip(t, cfg, "first"))
	// the worker survived
	assert.Equal(t, "second", roundTrip(t, cfg, "second"))
}

// TestStop tests that Stop ends Serve within the accept timeout
func TestStop(t *testing.T) {
	srv := NewTCPServerTransport()
	srv.RegisterHandler(echo)
	require.NoError(t, srv.Bind(testServerConfig(1)))
	addr := srv.Addr().String()

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()

	srv.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after stop")
	}

	_, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
	assert.Error(t, err, "listener must be closed")
	assert.Equal(t, 0, srv.Pending())
}

func TestBindErrors(t *testing.T) {
	srv := NewTCPServerTransport()
	require.NoError(t, srv.Bind(testServerConfig(1)))
	defer srv.Stop()

	// already bound
	assert.Error(t, srv.Bind(testServerConfig(1)))

	// address in use
	cfg := testServerConfig(1)
	cfg.Transport.Endpoint = srv.Addr().String()
	assert.Error(t, NewTCPServerTransport().Bind(cfg))

	// serve without bind
	assert.Error(t, NewTCPServerTransport().Serve())
}

func TestDialErrors(t *testing.T) {
	_, err := NewTCPClientTransport().Dial(context.Background(), common.ClientConfig{})
	assert.Error(t, err)

	// nothing listens on this port
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	_, err = NewTCPClientTransport().Dial(context.Background(), common.ClientConfig{Endpoint: addr, TimeoutSecond: 1})
	assert.Error(t, err)
}
