package common

import (
	"fmt"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Transport configuration (shared by server and client)
// --------------------------------------------------------------------------

// TCPConf holds the socket options applied to every tcp connection
type TCPConf struct {
	// TCPNoDelay disables Nagle's algorithm
	TCPNoDelay bool
	// TCPKeepAliveSec enables keep-alive with the given period, 0 disables it
	TCPKeepAliveSec int
	// TCPLingerSec sets SO_LINGER, a negative value keeps the os default
	TCPLingerSec int
}

// ServerTransportConfig configures the listener and the worker pool
type ServerTransportConfig struct {
	TCPConf

	// Endpoint is the address (tcp) or socket path (unix) to listen on
	Endpoint string
	// Workers is the number of connections handled concurrently
	Workers int
	// AcceptTimeoutMillisecond bounds each accept call so the accept loop
	// can observe a stop request
	AcceptTimeoutMillisecond int
	// ReadBufferSize is the maximum size of a single command in bytes
	ReadBufferSize int
}

// AcceptTimeout returns the accept poll interval
func (c ServerTransportConfig) AcceptTimeout() time.Duration {
	return time.Duration(c.AcceptTimeoutMillisecond) * time.Millisecond
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeSQLite   StoreType = "sqlite"
	StoreTypePostgres StoreType = "postgres"
)

// StoreConfig selects and configures the record store backend
type StoreConfig struct {
	Type StoreType
	// DSN is the database file (sqlite) or connection string (postgres)
	DSN string
	// SeedFile is an optional YAML file of records loaded by the memory store
	SeedFile string
}

// ServerConfig holds all configuration parameters of the server.
type ServerConfig struct {
	Transport ServerTransportConfig

	// per connection read/write deadline, 0 disables it
	TimeoutSecond int64

	// LogFile is the command log file
	LogFile string

	Store StoreConfig

	// MetricsEndpoint is the address of the prometheus endpoint, empty disables it
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// Timeout returns the per connection deadline
func (c *ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Workers", fmt.Sprintf("%d", c.Transport.Workers))
	addField("Accept Timeout", fmt.Sprintf("%d ms", c.Transport.AcceptTimeoutMillisecond))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Transport.ReadBufferSize))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("TCP No Delay", fmt.Sprintf("%t", c.Transport.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.Transport.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.Transport.TCPLingerSec))

	// Store
	addSection("Record Store")
	addField("Type", string(c.Store.Type))
	if c.Store.DSN != "" {
		addField("DSN", redactDSN(c.Store.DSN))
	}
	if c.Store.SeedFile != "" {
		addField("Seed File", c.Store.SeedFile)
	}

	// Command log
	addSection("Command Log")
	addField("Log File", c.LogFile)

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	} else {
		addField("Metrics Endpoint", "disabled")
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	TCPConf

	// Endpoint is the server address (tcp) or socket path (unix)
	Endpoint string
	// TimeoutSecond bounds dial, write and read of one command, 0 uses the os defaults
	TimeoutSecond int
	// ReadBufferSize is the maximum size of a select response in bytes
	ReadBufferSize int
}

// Timeout returns the per command timeout
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.ReadBufferSize))
	addField("TCP No Delay", fmt.Sprintf("%t", c.TCPNoDelay))

	return sb.String()
}

// redactDSN hides the password of a postgres url
func redactDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPassword := strings.Cut(userinfo, ":")
	if !hasPassword {
		return dsn
	}
	return scheme + "://" + user + ":***@" + host
}
