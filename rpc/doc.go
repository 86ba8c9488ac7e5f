// Package rpc provides the communication layer between dRec clients and the
// server. Every connection carries exactly one text command and at most one
// response.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures and logging shared by client and server.
//
//   - protocol: The '#kind|field|...' command codec and the select response
//     format.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets), including the accept loop and the worker pool.
//
//   - client: The RPC client that sends one command per connection.
//
//   - server: The RPC server that dispatches commands to the record store and
//     appends every processed command to the command log.
package rpc
