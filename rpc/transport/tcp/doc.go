// Package tcp implements the TCP transport. It provides the connectors of
// package base for TCP sockets and applies the configured socket options
// (no-delay, keep-alive, linger) to every connection on both sides.
//
// Key Components:
//
//   - clientConnector: TCP implementation of base.IClientConnector
//
//   - serverConnector: TCP implementation of base.IServerConnector
package tcp
