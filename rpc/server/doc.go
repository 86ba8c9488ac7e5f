// Package server implements the server side of the record protocol.
//
// A connection carries exactly one command. The dispatcher reads it once (up
// to the read buffer size), decodes it with package protocol and runs the
// handler of its kind against the record store:
//
//   - select answers with the encoded record, or with nothing if it does not exist
//   - update, insert and delete answer with nothing
//   - a command that can not be decoded is answered with "Unknown command"
//
// Every command is appended to the command log afterwards, also if it could
// not be decoded or its handler failed. Handler errors and panics are logged
// and counted, they never reach the connection or other connections.
//
// Key Components:
//
//   - RPCServer: wires transport, dispatcher, store and log, optionally serves
//     prometheus metrics (VictoriaMetrics/metrics) on /metrics.
//
//   - ICommandHandler: one implementation per command kind, selected by
//     handlerFor.
package server
