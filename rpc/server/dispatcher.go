package server

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dRec/lib/logstore"
	"github.com/ValentinKolb/dRec/lib/record"
	"github.com/ValentinKolb/dRec/rpc/protocol"
	"github.com/google/uuid"
)

const defaultReadBufferSize = 1024

// LogAppendedFunc receives the formatted log line of every processed command
type LogAppendedFunc func(line string)

// dispatcher processes single-shot connections: read one command, run its
// handler, answer, record the command in the log.
type dispatcher struct {
	store          record.IRecordStore
	logs           *logstore.LogStore
	metrics        *serverMetrics
	timeout        time.Duration
	readBufferSize int
	onLogAppended  atomic.Pointer[LogAppendedFunc]
}

func newDispatcher(store record.IRecordStore, logs *logstore.LogStore, m *serverMetrics, timeout time.Duration, readBufferSize int) *dispatcher {
	if readBufferSize <= 0 {
		readBufferSize = defaultReadBufferSize
	}
	return &dispatcher{
		store:          store,
		logs:           logs,
		metrics:        m,
		timeout:        timeout,
		readBufferSize: readBufferSize,
	}
}

// setLogAppended replaces the callback, nil removes it
func (d *dispatcher) setLogAppended(fn LogAppendedFunc) {
	if fn == nil {
		d.onLogAppended.Store(nil)
		return
	}
	d.onLogAppended.Store(&fn)
}

// serveConn handles one accepted connection (transport.ServerHandleFunc).
// The transport closes the connection afterwards.
func (d *dispatcher) serveConn(conn net.Conn) {
	d.metrics.connections.Inc()
	connID := uuid.New()

	if d.timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(d.timeout)); err != nil {
			Logger.Errorf("[%s] failed to set deadline: %v", connID, err)
			return
		}
	}

	// one extra byte detects commands that do not fit into the buffer
	buf := make([]byte, d.readBufferSize+1)
	n, err := conn.Read(buf)
	if n == 0 {
		d.metrics.readErrors.Inc()
		Logger.Warningf("[%s] no command received from %s: %v", connID, conn.RemoteAddr(), err)
		return
	}

	var (
		reply string
		send  bool
	)
	if n > d.readBufferSize {
		raw := string(buf[:d.readBufferSize])
		reply, send, _ = d.reject(connID, raw, &protocol.DecodeError{Raw: raw, Err: protocol.ErrTooLong})
	} else {
		raw := strings.TrimRight(string(buf[:n]), "\r\n")
		Logger.Debugf("[%s] received %q from %s", connID, raw, conn.RemoteAddr())

		ctx, cancel := d.commandContext()
		reply, send, _ = d.process(ctx, connID, raw)
		cancel()
	}
	if !send {
		return
	}

	if _, err := conn.Write([]byte(reply)); err != nil {
		Logger.Errorf("[%s] failed to write response: %v", connID, err)
	}
}

// process decodes and executes one raw command and appends it to the log.
// It returns the reply, whether the reply has to be sent, and the formatted
// log line. Handler errors never propagate.
func (d *dispatcher) process(ctx context.Context, connID uuid.UUID, raw string) (reply string, send bool, line string) {
	start := time.Now()

	cmd, err := protocol.Decode(raw)
	if err != nil {
		return d.reject(connID, raw, err)
	}

	resp, err := d.execute(ctx, cmd)
	if err != nil {
		d.metrics.handlerErrors.Inc()
		if record.IsNotFound(err) {
			Logger.Infof("[%s] %s: %v", connID, cmd.Kind, err)
		} else {
			Logger.Errorf("[%s] %s failed: %v", connID, cmd.Kind, err)
		}
	} else {
		reply, send = resp.Encode()
	}
	d.metrics.commandDone(cmd.Kind, start)

	line = d.appendLog(connID, raw)
	return reply, send, line
}

// reject answers a command that could not be decoded with
// UnknownCommandResponse. The command is logged, no handler runs.
func (d *dispatcher) reject(connID uuid.UUID, raw string, err error) (reply string, send bool, line string) {
	d.metrics.decodeErrors.Inc()
	Logger.Warningf("[%s] %v", connID, err)
	return protocol.UnknownCommandResponse, true, d.appendLog(connID, raw)
}

// commandContext bounds the store calls of one command by the connection
// timeout, if one is configured.
func (d *dispatcher) commandContext() (context.Context, context.CancelFunc) {
	if d.timeout > 0 {
		return context.WithTimeout(context.Background(), d.timeout)
	}
	return context.WithCancel(context.Background())
}

// execute runs the handler of the command. A panic of the handler is
// returned as error.
func (d *dispatcher) execute(ctx context.Context, cmd protocol.Command) (resp protocol.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s handler: %v", cmd.Kind, r)
		}
	}()

	h, err := handlerFor(cmd.Kind)
	if err != nil {
		return protocol.Response{Kind: cmd.Kind}, err
	}
	return h.Handle(ctx, cmd.Fields, d.store)
}

// appendLog records the command, notifies the callback and returns the
// formatted log line. A failed write is logged, the entry stays in memory.
func (d *dispatcher) appendLog(connID uuid.UUID, raw string) string {
	entry, err := d.logs.Append(raw)
	if err != nil {
		d.metrics.logErrors.Inc()
		Logger.Errorf("[%s] failed to persist command log: %v", connID, err)
	}

	line := entry.Format()
	if fn := d.onLogAppended.Load(); fn != nil {
		(*fn)(line)
	}
	return line
}
