package base

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dRec/lib/util"
	"github.com/ValentinKolb/dRec/rpc/common"
	"github.com/ValentinKolb/dRec/rpc/transport"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// deadlineListener is implemented by *net.TCPListener and *net.UnixListener
type deadlineListener interface {
	SetDeadline(t time.Time) error
}

const (
	defaultWorkers       = 50
	defaultAcceptTimeout = time.Second
	acceptErrorBackoff   = 50 * time.Millisecond
)

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the listener with a fixed worker pool. Accepted
// connections are queued without bound, so the accept loop never waits for a
// free worker.
type serverTransport struct {
	connector IServerConnector
	handler   transport.ServerHandleFunc
	config    common.ServerConfig

	mu       sync.Mutex
	listener net.Listener
	queue    *util.Queue[net.Conn]

	stopped atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport for the connector
func NewBaseServerTransport(connector IServerConnector) transport.IRPCServerTransport {
	return &serverTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Bind(config common.ServerConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.listener != nil {
		return fmt.Errorf("%s transport is already bound to %s", t.connector.GetName(), t.listener.Addr())
	}

	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	t.config = config
	t.listener = listener
	return nil
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if err := t.Bind(config); err != nil {
		return err
	}
	return t.Serve()
}

func (t *serverTransport) Serve() error {
	t.mu.Lock()
	listener := t.listener
	if listener == nil {
		t.mu.Unlock()
		return fmt.Errorf("%s transport is not bound", t.connector.GetName())
	}
	if t.handler == nil {
		t.mu.Unlock()
		return fmt.Errorf("no handler registered")
	}
	queue := util.NewQueue[net.Conn]()
	t.queue = queue
	t.mu.Unlock()

	workers := t.config.Transport.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go t.worker(queue, &wg)
	}

	Logger.Infof("Starting %s server on %s with %d workers", t.connector.GetName(), listener.Addr(), workers)

	err := t.acceptLoop(listener, queue)

	// stop accepting, let the workers drain the queue
	_ = listener.Close()
	queue.Close()
	wg.Wait()

	Logger.Infof("%s server on %s stopped", t.connector.GetName(), listener.Addr())
	return err
}

func (t *serverTransport) Stop() {
	if t.stopped.Swap(true) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return
	}

	// not serving yet, or a listener without deadline support that would
	// block in Accept forever
	_, hasDeadline := t.listener.(deadlineListener)
	if t.queue == nil || !hasDeadline {
		_ = t.listener.Close()
	}
}

func (t *serverTransport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

func (t *serverTransport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.queue == nil {
		return 0
	}
	return t.queue.Len()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// acceptLoop accepts connections until Stop was called. Every accept waits at
// most the accept timeout so the stop flag is checked regularly.
func (t *serverTransport) acceptLoop(listener net.Listener, queue *util.Queue[net.Conn]) error {
	timeout := t.config.Transport.AcceptTimeout()
	if timeout <= 0 {
		timeout = defaultAcceptTimeout
	}
	dl, hasDeadline := listener.(deadlineListener)

	for !t.stopped.Load() {
		if hasDeadline {
			if err := dl.SetDeadline(time.Now().Add(timeout)); err != nil {
				return fmt.Errorf("failed to set accept deadline: %w", err)
			}
		}

		conn, err := listener.Accept()
		if err != nil {
			if t.stopped.Load() {
				return nil
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("listener closed: %w", err)
			}

			Logger.Errorf("Accept error: %v", err)
			time.Sleep(acceptErrorBackoff)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
		}

		if !queue.Push(conn) {
			_ = conn.Close()
		}
	}

	return nil
}

// worker handles queued connections until the queue is closed and drained
func (t *serverTransport) worker(queue *util.Queue[net.Conn], wg *sync.WaitGroup) {
	defer wg.Done()
	for conn := range queue.Recv() {
		t.handleConnection(conn)
	}
}

// handleConnection runs the handler for one connection and always closes it.
// A panic in the handler only affects this connection.
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("Panic while handling connection from %s: %v", conn.RemoteAddr(), r)
		}
	}()

	t.handler(conn)
}
