// Package base implements the protocol independent part of the transports
// (TCP, Unix sockets). The protocol specific parts are injected as
// IServerConnector / IClientConnector.
//
// Server:
//
//   - Bind creates the listener, Serve runs the accept loop.
//   - Every Accept call waits at most the accept timeout (default 1s) so the
//     loop observes Stop without forcibly closing anything.
//   - Accepted connections are pushed into an unbounded lock-free queue
//     (util.Queue) and handled by a fixed pool of workers (default 50). The
//     accept loop never blocks on handler work.
//   - A worker closes the connection after the handler returned, a panic in
//     the handler is recovered and logged.
//   - Serve returns after the listener is closed and the workers drained the
//     queue.
//
// Client:
//
//   - Dial opens a fresh connection per command and applies the configured
//     timeout as connection deadline.
//
// Thread Safety:
//
//	All public methods are thread-safe.
package base
