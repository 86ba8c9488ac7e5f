// Package testing provides a conformance suite for record.IRecordStore
// implementations.
//
// Usage:
//
//	func Test(t *testing.T) {
//		storetesting.RunRecordStoreTests(t, "MemStore", func(t *testing.T) record.IRecordStore {
//			return memstore.NewMemStore()
//		})
//	}
//
// Every test gets a fresh store from the factory and closes it when done.
package testing
