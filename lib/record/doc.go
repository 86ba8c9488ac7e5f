// Package record defines the record type that crosses the protocol boundary and
// the interface every record store backend has to implement.
//
// The server never owns records: it only passes them between the wire and an
// IRecordStore. The store is responsible for assigning ids on insert.
//
// Implementations:
//
//   - memstore: in-memory store backed by a concurrent map, optionally seeded
//     from a YAML file. Used for development and tests.
//
//   - sqlstore: SQLite store (via database/sql), using a table shaped like the
//     classic Movies table.
//
//   - pgstore: PostgreSQL store using a pgx connection pool.
//
// The testing subpackage contains a conformance suite that every backend runs
// in its own tests.
//
// Errors:
//
//	All store methods return *Error values carrying a RetCode, so callers can
//	distinguish a missing record (RetCNotFound) from an invalid record
//	(RetCInvalidRecord) or a backend failure (RetCInternalError) with IsNotFound
//	or errors.As.
package record
