package server

import (
	"fmt"
	"io"
	"net"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/ValentinKolb/dRec/lib/logstore"
	"github.com/ValentinKolb/dRec/lib/record"
	"github.com/ValentinKolb/dRec/rpc/common"
	"github.com/ValentinKolb/dRec/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// RPCServer wires the transport, the dispatcher, the record store and the
// command log together.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	store      record.IRecordStore
	logs       *logstore.LogStore
	dispatcher *dispatcher
	metrics    *serverMetrics

	mu       sync.Mutex
	bound    bool
	endpoint *metricsEndpoint
}

// NewRPCServer creates a new RPC server. The store and the log are owned by
// the caller and must be closed after Serve returned.
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		memstore.NewMemStore(),
//		logstore.Open(config.LogFile),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	store record.IRecordStore,
	logs *logstore.LogStore,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	m := newServerMetrics()
	m.registerGauges(transport.Pending, logs.Len)

	s := &RPCServer{
		config:     config,
		transport:  transport,
		store:      store,
		logs:       logs,
		metrics:    m,
		dispatcher: newDispatcher(store, logs, m, config.Timeout(), config.Transport.ReadBufferSize),
	}
	s.transport.RegisterHandler(s.dispatcher.serveConn)

	Logger.Infof("Created RPC Server")
	return s
}

// OnLogAppended registers the callback that receives the formatted log line
// of every processed command ("<YYYY-MM-DD HH:MM:SS> - command: <text>").
// It is called from the worker goroutines and must be safe for concurrent use.
func (s *RPCServer) OnLogAppended(fn LogAppendedFunc) {
	s.dispatcher.setLogAppended(fn)
}

// Bind binds the listening address and starts the metrics endpoint (if
// configured). Serve calls Bind if it was not called before.
func (s *RPCServer) Bind() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bound {
		return nil
	}
	if err := s.transport.Bind(s.config); err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.config.Transport.Endpoint, err)
	}
	s.bound = true

	if s.config.MetricsEndpoint != "" {
		s.endpoint = startMetricsEndpoint(s.config.MetricsEndpoint, s.metrics)
	}
	return nil
}

// Serve runs the server until Stop is called.
func (s *RPCServer) Serve() error {
	if err := s.Bind(); err != nil {
		return err
	}
	Logger.Infof("Server is running on %s", s.Addr())
	return s.transport.Serve()
}

// Stop requests a cooperative shutdown. Serve returns once the accept loop
// observed the request and the in-flight connections are done.
func (s *RPCServer) Stop() {
	s.transport.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endpoint != nil {
		s.endpoint.stop()
		s.endpoint = nil
	}
}

// Addr returns the bound address, nil before Bind
func (s *RPCServer) Addr() net.Addr {
	return s.transport.Addr()
}

// WriteMetrics writes the server metrics in the prometheus text format
func (s *RPCServer) WriteMetrics(w io.Writer) {
	s.metrics.writePrometheus(w)
}
