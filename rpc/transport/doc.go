// Package transport defines the interfaces between the rpc layer and the
// network.
//
// Key Components:
//
//   - IRPCServerTransport: owns the listening socket, the accept loop and the
//     worker pool, and hands every accepted connection to a ServerHandleFunc.
//
//   - IRPCClientTransport: opens one connection per command.
//
// Implementations live in the tcp and unix packages, both built on the
// protocol independent code in package base.
package transport
