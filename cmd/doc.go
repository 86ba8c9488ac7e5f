// Package cmd implements the command-line interface for the dRec record
// server. It provides a hierarchical command structure with operations
// for running the server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the dRec server
//   - rec: Commands for record operations (select, update, insert, delete, perf)
//   - logs: Command for printing the persisted command log
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See drec -help for a list of all commands.
package cmd
