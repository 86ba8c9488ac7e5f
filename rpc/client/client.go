package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/ValentinKolb/dRec/lib/record"
	"github.com/ValentinKolb/dRec/rpc/common"
	"github.com/ValentinKolb/dRec/rpc/protocol"
	"github.com/ValentinKolb/dRec/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("client")

const defaultReadBufferSize = 1024

// ErrUnknownCommand is returned if the server did not understand a select
var ErrUnknownCommand = errors.New("server answered: " + protocol.UnknownCommandResponse)

// ErrResponseTooLong is returned if a select response exceeds the read buffer
var ErrResponseTooLong = errors.New("response exceeds the read buffer")

// ResultFunc receives the decoded result of every select sent with
// SendCommand. found is false if the record does not exist.
type ResultFunc func(rec record.Record, found bool)

// Result is the outcome of one command
type Result struct {
	Kind   protocol.Kind
	Record record.Record
	Found  bool
}

// RPCClient sends commands to the server, one connection per command.
//
// Thread-safety: All methods are safe for concurrent use.
type RPCClient struct {
	config    common.ClientConfig
	transport transport.IRPCClientTransport
	onResult  atomic.Pointer[ResultFunc]
}

// NewRPCClient creates a new client. No connection is opened before the
// first command.
//
// Usage:
//
//	c := client.NewRPCClient(common.ClientConfig{Endpoint: "127.0.0.1:3202"}, tcp.NewTCPClientTransport())
//	rec, found, err := c.Select(ctx, "7")
func NewRPCClient(config common.ClientConfig, transport transport.IRPCClientTransport) *RPCClient {
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = defaultReadBufferSize
	}
	return &RPCClient{
		config:    config,
		transport: transport,
	}
}

// OnResult registers the callback for select results, nil removes it.
func (c *RPCClient) OnResult(fn ResultFunc) {
	if fn == nil {
		c.onResult.Store(nil)
		return
	}
	c.onResult.Store(&fn)
}

// SendCommand opens a connection, sends the raw command text and, only for
// select commands, reads and decodes the single response. The connection is
// closed on every path. Nothing is retried.
func (c *RPCClient) SendCommand(ctx context.Context, text string) (Result, error) {
	res := Result{Kind: protocol.KindOf(text)}

	conn, err := c.transport.Dial(ctx, c.config)
	if err != nil {
		return res, err
	}
	defer conn.Close()

	if _, err := io.WriteString(conn, text); err != nil {
		return res, fmt.Errorf("failed to send command: %w", err)
	}

	if !res.Kind.HasResponse() {
		Logger.Debugf("sent %q", text)
		return res, nil
	}

	// the server sends at most one response and closes the connection
	// one extra byte detects responses that do not fit into the buffer
	data, err := io.ReadAll(io.LimitReader(conn, int64(c.config.ReadBufferSize)+1))
	if err != nil {
		return res, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) > c.config.ReadBufferSize {
		return res, fmt.Errorf("%w (%d bytes)", ErrResponseTooLong, c.config.ReadBufferSize)
	}

	res.Record, res.Found, err = decodeSelectResponse(string(data))
	if err != nil {
		return res, err
	}

	Logger.Debugf("sent %q, found: %t", text, res.Found)
	if fn := c.onResult.Load(); fn != nil {
		(*fn)(res.Record, res.Found)
	}
	return res, nil
}

// Select fetches the record with the given id
func (c *RPCClient) Select(ctx context.Context, id string) (record.Record, bool, error) {
	res, err := c.SendCommand(ctx, protocol.NewSelectCommand(id).Encode())
	return res.Record, res.Found, err
}

// Update replaces the record rec.ID. The server does not report whether the
// record existed.
func (c *RPCClient) Update(ctx context.Context, rec record.Record) error {
	_, err := c.SendCommand(ctx, protocol.NewUpdateCommand(rec).Encode())
	return err
}

// Insert sends a new record, rec.ID is sent as placeholder and ignored by the
// server.
func (c *RPCClient) Insert(ctx context.Context, rec record.Record) error {
	_, err := c.SendCommand(ctx, protocol.NewInsertCommand(rec).Encode())
	return err
}

// Delete deletes the record with the given id
func (c *RPCClient) Delete(ctx context.Context, id string) error {
	_, err := c.SendCommand(ctx, protocol.NewDeleteCommand(id).Encode())
	return err
}

// decodeSelectResponse maps the raw response to a record. An empty response
// means the record does not exist.
func decodeSelectResponse(text string) (record.Record, bool, error) {
	switch text {
	case "":
		return record.Record{}, false, nil
	case protocol.UnknownCommandResponse:
		return record.Record{}, false, ErrUnknownCommand
	}

	rec, err := protocol.DecodeRecord(text)
	if err != nil {
		return record.Record{}, false, err
	}
	return rec, true, nil
}
