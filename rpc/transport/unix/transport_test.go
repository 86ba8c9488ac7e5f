package unix

import (
	"context"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/dRec/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnixEcho(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "drec.sock")

	srv := NewUnixServerTransport()
	srv.RegisterHandler(func(conn net.Conn) {
		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		_, _ = conn.Write(buf[:n])
	})
	require.NoError(t, srv.Bind(common.ServerConfig{
		Transport: common.ServerTransportConfig{Endpoint: socket, Workers: 2, AcceptTimeoutMillisecond: 50},
	}))

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()

	conn, err := NewUnixClientTransport().Dial(context.Background(), common.ClientConfig{Endpoint: socket, TimeoutSecond: 5})
	require.NoError(t, err)
	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)
	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(data))
	require.NoError(t, conn.Close())

	srv.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after stop")
	}
}
