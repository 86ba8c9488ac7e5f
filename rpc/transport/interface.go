package transport

import (
	"context"
	"net"

	"github.com/ValentinKolb/dRec/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc handles one accepted connection. It is called by a worker
// of the server transport, which closes the connection after it returned.
type ServerHandleFunc func(conn net.Conn)

// IRPCServerTransport is the interface for the listener of the server
type IRPCServerTransport interface {
	// RegisterHandler registers the handler called for every accepted connection
	RegisterHandler(handler ServerHandleFunc)
	// Bind creates the listener. Failing to bind is the only fatal server error.
	Bind(config common.ServerConfig) error
	// Serve runs the accept loop until Stop is called. It returns after the
	// listener was closed and every queued connection was handled.
	Serve() error
	// Listen is Bind followed by Serve
	Listen(config common.ServerConfig) error
	// Stop requests a cooperative shutdown. In-flight connections are not
	// interrupted.
	Stop()
	// Addr returns the bound address, nil before Bind
	Addr() net.Addr
	// Pending returns the number of accepted connections waiting for a worker
	Pending() int
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the client transport. The client
// opens a new connection for every command.
type IRPCClientTransport interface {
	// Dial opens a connection to config.Endpoint. The connection carries the
	// deadline derived from config.TimeoutSecond. The caller must close it.
	Dial(ctx context.Context, config common.ClientConfig) (net.Conn, error)
}
