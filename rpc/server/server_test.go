package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dRec/lib/logstore"
	"github.com/ValentinKolb/dRec/lib/record"
	"github.com/ValentinKolb/dRec/lib/record/memstore"
	"github.com/ValentinKolb/dRec/rpc/common"
	"github.com/ValentinKolb/dRec/rpc/protocol"
	"github.com/ValentinKolb/dRec/rpc/transport/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seed = `
- id: "7"
  title: Dune
  director: Villeneuve
  releaseYear: "2021"
  description: desc
  genreId: "5"
`

type testServer struct {
	*RPCServer
	addr    string
	logPath string
	logs    *logstore.LogStore
}

func seededStore(t *testing.T) record.IRecordStore {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0644))
	store, err := memstore.NewSeededMemStore(path)
	require.NoError(t, err)
	return store
}

// startTestServer starts a server on a free loopback port
func startTestServer(t *testing.T, store record.IRecordStore) *testServer {
	dir := t.TempDir()
	logPath := filepath.Join(dir, logstore.DefaultPath)
	logs := logstore.Open(logPath)

	config := common.ServerConfig{
		Transport: common.ServerTransportConfig{
			TCPConf:                  common.TCPConf{TCPLingerSec: -1},
			Endpoint:                 "127.0.0.1:0",
			Workers:                  50,
			AcceptTimeoutMillisecond: 50,
			ReadBufferSize:           1024,
		},
		TimeoutSecond: 5,
		LogFile:       logPath,
	}

	s := NewRPCServer(config, tcp.NewTCPServerTransport(), store, logs)
	require.NoError(t, s.Bind())

	done := make(chan error, 1)
	go func() { done <- s.Serve() }()

	t.Cleanup(func() {
		s.Stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
		assert.NoError(t, logs.Close())
		assert.NoError(t, store.Close())
	})

	return &testServer{RPCServer: s, addr: s.Addr().String(), logPath: logPath, logs: logs}
}

// send writes raw on a fresh connection and returns everything the server
// answered before closing the connection
func send(t *testing.T, addr, raw string) string {
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	_, err = conn.Write([]byte(raw))
	require.NoError(t, err)

	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(data)
}

func lastLogText(t *testing.T, path string) string {
	entries, err := logstore.Load(path)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	return entries[len(entries)-1].Text
}

func TestSelectEndToEnd(t *testing.T) {
	s := startTestServer(t, seededStore(t))

	assert.Equal(t, "Dune|Villeneuve|2021|desc|5|7", send(t, s.addr, "#select|7"))

	entries, err := logstore.Load(s.logPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "select|7", entries[0].Text)
}

func TestUnknownCommandEndToEnd(t *testing.T) {
	s := startTestServer(t, seededStore(t))

	assert.Equal(t, protocol.UnknownCommandResponse, send(t, s.addr, "#bogus|x"))
	assert.Equal(t, "bogus|x", lastLogText(t, s.logPath))

	// wrong arity is a decode failure as well
	assert.Equal(t, protocol.UnknownCommandResponse, send(t, s.addr, "#select|1|2"))
	assert.Equal(t, "select|1|2", lastLogText(t, s.logPath))
}

func TestSelectNotFound(t *testing.T) {
	s := startTestServer(t, seededStore(t))

	assert.Equal(t, "", send(t, s.addr, "#select|8"))
	assert.Equal(t, "", send(t, s.addr, "#select|not-a-number"))
	assert.Equal(t, "select|not-a-number", lastLogText(t, s.logPath))
	assert.Equal(t, 2, s.logs.Len())
}

func TestMutationsEndToEnd(t *testing.T) {
	s := startTestServer(t, seededStore(t))

	assert.Equal(t, "", send(t, s.addr, "#insert|Arrival|Villeneuve|2016|aliens|3|"))
	assert.Equal(t, "Arrival|Villeneuve|2016|aliens|3|8", send(t, s.addr, "#select|8"))

	assert.Equal(t, "", send(t, s.addr, "#update|Arrival|Villeneuve|2016|linguists|3|8"))
	assert.Equal(t, "Arrival|Villeneuve|2016|linguists|3|8", send(t, s.addr, "#select|8\n"))

	assert.Equal(t, "", send(t, s.addr, "#delete|8"))
	assert.Equal(t, "", send(t, s.addr, "#select|8"))

	// deleting again fails in the store, the command is logged anyway
	assert.Equal(t, "", send(t, s.addr, "#delete|8"))

	texts := make([]string, 0, s.logs.Len())
	for _, e := range s.logs.Entries() {
		texts = append(texts, e.Text)
	}
	assert.Equal(t, []string{
		"insert|Arrival|Villeneuve|2016|aliens|3|",
		"select|8",
		"update|Arrival|Villeneuve|2016|linguists|3|8",
		"select|8",
		"delete|8",
		"select|8",
		"delete|8",
	}, texts)
}

func TestStoreFailuresAreContained(t *testing.T) {
	for name, store := range map[string]record.IRecordStore{
		"failing":   failingStore{},
		"panicking": panickingStore{},
	} {
		t.Run(name, func(t *testing.T) {
			s := startTestServer(t, store)

			assert.Equal(t, "", send(t, s.addr, "#select|7"))
			assert.Equal(t, "select|7", lastLogText(t, s.logPath))

			// the server keeps working
			assert.Equal(t, protocol.UnknownCommandResponse, send(t, s.addr, "#bogus|x"))

			var buf bytes.Buffer
			s.WriteMetrics(&buf)
			assert.Contains(t, buf.String(), "drec_handler_errors_total 1")
		})
	}
}

func TestOnLogAppended(t *testing.T) {
	s := startTestServer(t, seededStore(t))

	lines := make(chan string, 1)
	s.OnLogAppended(func(line string) { lines <- line })

	send(t, s.addr, "#select|7")

	select {
	case line := <-lines:
		assert.True(t, strings.HasSuffix(line, " - command: select|7"), line)
		_, err := time.Parse(logstore.DisplayLayout, strings.TrimSuffix(line, " - command: select|7"))
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("callback not called")
	}
}

// TestConcurrentClients tests that every command of concurrent clients is
// executed and logged exactly once
func TestConcurrentClients(t *testing.T) {
	const clients = 50

	store := memstore.NewMemStore()
	s := startTestServer(t, store)

	var wg sync.WaitGroup
	wg.Add(clients)
	for i := 0; i < clients; i++ {
		go func(i int) {
			defer wg.Done()
			conn, err := net.DialTimeout("tcp", s.addr, time.Second)
			if err != nil {
				t.Errorf("dial failed: %v", err)
				return
			}
			defer conn.Close()
			if _, err := fmt.Fprintf(conn, "#insert|title %d|d|2000|x|1|", i); err != nil {
				t.Errorf("write failed: %v", err)
				return
			}
			_, _ = io.ReadAll(conn)
		}(i)
	}
	wg.Wait()

	entries, err := logstore.Load(s.logPath)
	require.NoError(t, err)
	assert.Len(t, entries, clients)

	for i := 1; i <= clients; i++ {
		_, found, err := store.Fetch(context.Background(), fmt.Sprint(i))
		require.NoError(t, err)
		assert.True(t, found, "record %d missing", i)
	}

	var buf bytes.Buffer
	s.WriteMetrics(&buf)
	assert.Contains(t, buf.String(), fmt.Sprintf(`drec_commands_total{kind="insert"} %d`, clients))
	assert.Contains(t, buf.String(), fmt.Sprintf("drec_log_entries %d", clients))
}

func TestBindFailure(t *testing.T) {
	s := startTestServer(t, memstore.NewMemStore())

	config := common.ServerConfig{Transport: common.ServerTransportConfig{Endpoint: s.addr}}
	other := NewRPCServer(config, tcp.NewTCPServerTransport(), memstore.NewMemStore(), logstore.Open(filepath.Join(t.TempDir(), "log.txt")))
	assert.Error(t, other.Serve())
}

// TestEmptyConnection tests that a connection without command is not logged
func TestEmptyConnection(t *testing.T) {
	s := startTestServer(t, seededStore(t))

	conn, err := net.DialTimeout("tcp", s.addr, time.Second)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		var buf bytes.Buffer
		s.WriteMetrics(&buf)
		return strings.Contains(buf.String(), "drec_read_errors_total 1")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, s.logs.Len())
}

// paddedUpdate returns an update command for id with a description padded so
// the whole command is size bytes long
func paddedUpdate(t *testing.T, id string, size int) string {
	prefix, suffix := "#update|Hijacked|X|2000|", "|5|"+id
	pad := size - len(prefix) - len(suffix)
	require.Positive(t, pad)
	return prefix + strings.Repeat("d", pad) + suffix
}

// TestCommandLongerThanReadBuffer tests that a command that does not fit into
// the read buffer is rejected instead of running with a cut off last field
func TestCommandLongerThanReadBuffer(t *testing.T) {
	s := startTestServer(t, seededStore(t))

	// the first 1024 bytes end in "|5|7"
	raw := paddedUpdate(t, "71", 1025)
	assert.Equal(t, protocol.UnknownCommandResponse, send(t, s.addr, raw))

	assert.Equal(t, "Dune|Villeneuve|2021|desc|5|7", send(t, s.addr, "#select|7"))

	entries := s.logs.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, strings.TrimPrefix(raw[:1024], "#"), entries[0].Text)

	var buf bytes.Buffer
	s.WriteMetrics(&buf)
	assert.Contains(t, buf.String(), "drec_decode_errors_total 1")
	assert.Contains(t, buf.String(), `drec_commands_total{kind="update"} 0`)
}

// TestCommandAtReadBufferLimit tests that a command of exactly the buffer size
// is executed
func TestCommandAtReadBufferLimit(t *testing.T) {
	s := startTestServer(t, seededStore(t))

	raw := paddedUpdate(t, "7", 1024)
	assert.Equal(t, "", send(t, s.addr, raw))

	reply := send(t, s.addr, "#select|7")
	assert.True(t, strings.HasPrefix(reply, "Hijacked|X|2000|d"), reply)
	assert.True(t, strings.HasSuffix(reply, "|5|7"), reply)
}

// deadlineStore reports the deadline of the context of every Fetch
type deadlineStore struct {
	failingStore
	deadlines chan time.Time
}

func (s deadlineStore) Fetch(ctx context.Context, _ string) (record.Record, bool, error) {
	deadline, _ := ctx.Deadline()
	s.deadlines <- deadline
	return record.Record{}, false, nil
}

// TestStoreCallsUseTimeout tests that the store sees the connection timeout
// as context deadline
func TestStoreCallsUseTimeout(t *testing.T) {
	store := deadlineStore{deadlines: make(chan time.Time, 1)}
	s := startTestServer(t, store)

	start := time.Now()
	assert.Equal(t, "", send(t, s.addr, "#select|7"))

	select {
	case deadline := <-store.deadlines:
		require.False(t, deadline.IsZero(), "store call without deadline")
		// the test server uses a 5s timeout
		assert.WithinDuration(t, start.Add(5*time.Second), deadline, 2*time.Second)
	case <-time.After(time.Second):
		t.Fatal("store not called")
	}
}
