// Package client implements the connect-per-command client of the record
// server.
//
// Every command opens a fresh connection, sends the command text and closes
// the connection again. Only select commands wait for a response: the record
// fields or nothing if the record does not exist. Mutations are fire and
// forget, the server does not report their outcome.
//
// Usage Example:
//
//	c := client.NewRPCClient(common.ClientConfig{
//		Endpoint:      "127.0.0.1:3202",
//		TimeoutSecond: 5,
//	}, tcp.NewTCPClientTransport())
//
//	c.OnResult(func(rec record.Record, found bool) { ... })
//
//	_ = c.Insert(ctx, record.Record{Title: "Dune", Director: "Villeneuve"})
//	rec, found, err := c.Select(ctx, "1")
//
// Thread Safety:
//
//	The client keeps no connection state and can be used concurrently from
//	multiple goroutines.
package client
