// Package common provides the configuration structures and the logging setup
// shared by the server, the client and the CLI.
//
// Key Components:
//
//   - ServerConfig: listener and worker pool settings, the record store
//     backend, the command log file and the metrics endpoint.
//
//   - ClientConfig: endpoint, timeout and socket options of the
//     connect-per-command client.
//
//   - Logger: custom formatting for dragonboat's logger package, which every
//     package of this module uses via logger.GetLogger.
package common
