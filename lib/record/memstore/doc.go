// Package memstore implements record.IRecordStore in memory.
//
// Records are kept in a concurrent map (xsync.MapOf), ids are assigned from an
// atomic counter. The store can be seeded from a YAML file, which is handy for
// demos and end-to-end tests. Nothing is persisted: all records are lost when
// the process exits.
//
// Thread Safety:
//
//	All methods are thread-safe.
package memstore
