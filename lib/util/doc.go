// Package util provides small concurrency building blocks shared by the
// server components.
//
// The package contains:
//   - queue: an unbounded, lock-free multi-producer queue whose items are
//     delivered through a channel, so any number of consumers can range over it
//
// The queue is used by the transport layer to hand accepted connections to a
// fixed-size worker pool without ever blocking the accept loop.
package util
