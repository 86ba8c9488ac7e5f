// Package unix implements the transport over Unix domain sockets for a server
// and clients on the same machine. The endpoint is the socket path, a stale
// socket file is removed before binding.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners
package unix
