package testing

import (
	"context"
	"sync"
	"testing"

	"github.com/ValentinKolb/dRec/lib/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreFactory creates a new, empty store for one test
type StoreFactory func(t *testing.T) record.IRecordStore

// RunRecordStoreTests runs the conformance suite against a store implementation.
func RunRecordStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Insert&Fetch", func(t *testing.T) {
			testInsertFetch(t, factory(t))
		})

		t.Run("FetchMissing", func(t *testing.T) {
			testFetchMissing(t, factory(t))
		})

		t.Run("InsertIgnoresID", func(t *testing.T) {
			testInsertIgnoresID(t, factory(t))
		})

		t.Run("Update", func(t *testing.T) {
			testUpdate(t, factory(t))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(t))
		})

		t.Run("UnknownIDs", func(t *testing.T) {
			testUnknownIDs(t, factory(t))
		})

		t.Run("ConcurrentInserts", func(t *testing.T) {
			testConcurrentInserts(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func sampleRecord() record.Record {
	return record.Record{
		Title:       "Dune",
		Director:    "Villeneuve",
		ReleaseYear: "2021",
		Description: "desc",
		GenreID:     "5",
	}
}

func closeStore(t *testing.T, s record.IRecordStore) {
	if err := s.Close(); err != nil {
		t.Errorf("failed to close store: %v", err)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testInsertFetch(t *testing.T, s record.IRecordStore) {
	defer closeStore(t, s)
	ctx := context.Background()

	rec := sampleRecord()
	id, err := s.Insert(ctx, rec)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, found, err := s.Fetch(ctx, id)
	require.NoError(t, err)
	require.True(t, found)

	rec.ID = id
	assert.Equal(t, rec, got)
}

func testFetchMissing(t *testing.T, s record.IRecordStore) {
	defer closeStore(t, s)

	got, found, err := s.Fetch(context.Background(), "424242")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, record.Record{}, got)
}

func testInsertIgnoresID(t *testing.T, s record.IRecordStore) {
	defer closeStore(t, s)
	ctx := context.Background()

	rec := sampleRecord()
	rec.ID = "placeholder"

	id1, err := s.Insert(ctx, rec)
	require.NoError(t, err)
	id2, err := s.Insert(ctx, rec)
	require.NoError(t, err)

	assert.NotEqual(t, "placeholder", id1)
	assert.NotEqual(t, id1, id2, "every insert must get its own id")

	got, found, err := s.Fetch(ctx, id2)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, id2, got.ID)
}

func testUpdate(t *testing.T, s record.IRecordStore) {
	defer closeStore(t, s)
	ctx := context.Background()

	id, err := s.Insert(ctx, sampleRecord())
	require.NoError(t, err)

	updated := record.Record{
		ID:          id,
		Title:       "Dune: Part Two",
		Director:    "Denis Villeneuve",
		ReleaseYear: "2024",
		Description: "sequel",
		GenreID:     "6",
	}
	require.NoError(t, s.Update(ctx, updated))

	got, found, err := s.Fetch(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, updated, got)

	// updating a missing record
	updated.ID = "999999"
	err = s.Update(ctx, updated)
	assert.True(t, record.IsNotFound(err), "expected not found, got %v", err)
}

func testDelete(t *testing.T, s record.IRecordStore) {
	defer closeStore(t, s)
	ctx := context.Background()

	id, err := s.Insert(ctx, sampleRecord())
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, id))

	_, found, err := s.Fetch(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)

	// second delete
	err = s.Delete(ctx, id)
	assert.True(t, record.IsNotFound(err), "expected not found, got %v", err)
}

func testUnknownIDs(t *testing.T, s record.IRecordStore) {
	defer closeStore(t, s)
	ctx := context.Background()

	for _, id := range []string{"", "abc", "-1", "1.5"} {
		_, found, err := s.Fetch(ctx, id)
		assert.NoError(t, err, "fetch %q", id)
		assert.False(t, found, "fetch %q", id)

		err = s.Delete(ctx, id)
		assert.True(t, record.IsNotFound(err), "delete %q: %v", id, err)
	}
}

func testConcurrentInserts(t *testing.T, s record.IRecordStore) {
	defer closeStore(t, s)
	ctx := context.Background()

	const n = 25
	ids := make([]string, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			id, err := s.Insert(ctx, sampleRecord())
			if err != nil {
				t.Errorf("insert %d failed: %v", i, err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	unique := make(map[string]struct{}, n)
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	assert.Len(t, unique, n)
}
