package server

import (
	"context"
	"errors"
	"testing"

	"github.com/ValentinKolb/dRec/lib/record"
	"github.com/ValentinKolb/dRec/lib/record/memstore"
	"github.com/ValentinKolb/dRec/rpc/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore fails every operation
type failingStore struct{}

var errBackend = errors.New("backend down")

func (failingStore) Fetch(context.Context, string) (record.Record, bool, error) {
	return record.Record{}, false, record.WrapError(record.RetCInternalError, "fetch", errBackend)
}
func (failingStore) Update(context.Context, record.Record) error {
	return record.WrapError(record.RetCInternalError, "update", errBackend)
}
func (failingStore) Insert(context.Context, record.Record) (string, error) {
	return "", record.WrapError(record.RetCInternalError, "insert", errBackend)
}
func (failingStore) Delete(context.Context, string) error {
	return record.WrapError(record.RetCInternalError, "delete", errBackend)
}
func (failingStore) Close() error { return nil }

// panickingStore panics on every operation
type panickingStore struct{ failingStore }

func (panickingStore) Fetch(context.Context, string) (record.Record, bool, error) {
	panic("fetch exploded")
}

var dune = record.Record{
	Title:       "Dune",
	Director:    "Villeneuve",
	ReleaseYear: "2021",
	Description: "desc",
	GenreID:     "5",
}

func TestHandlerFor(t *testing.T) {
	for _, k := range protocol.Kinds {
		h, err := handlerFor(k)
		require.NoError(t, err)
		assert.NotNil(t, h)
	}
	_, err := handlerFor(protocol.KindUnknown)
	assert.Error(t, err)
}

func TestHandlers(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMemStore()
	defer store.Close()

	// insert ignores the id placeholder
	_, err := insertH.Handle(ctx, []string{"Dune", "Villeneuve", "2021", "desc", "5", "999"}, store)
	require.NoError(t, err)

	_, found, err := store.Fetch(ctx, "999")
	require.NoError(t, err)
	assert.False(t, found)

	resp, err := selectH.Handle(ctx, []string{"1"}, store)
	require.NoError(t, err)
	require.True(t, resp.Found)
	want := dune
	want.ID = "1"
	assert.Equal(t, want, resp.Record)

	text, ok := resp.Encode()
	assert.True(t, ok)
	assert.Equal(t, "Dune|Villeneuve|2021|desc|5|1", text)

	// update
	_, err = updateH.Handle(ctx, []string{"Dune", "Denis Villeneuve", "2021", "desc", "5", "1"}, store)
	require.NoError(t, err)
	resp, err = selectH.Handle(ctx, []string{"1"}, store)
	require.NoError(t, err)
	assert.Equal(t, "Denis Villeneuve", resp.Record.Director)

	// delete
	_, err = deleteH.Handle(ctx, []string{"1"}, store)
	require.NoError(t, err)

	// select not found is a defined absence, not an error
	resp, err = selectH.Handle(ctx, []string{"1"}, store)
	require.NoError(t, err)
	assert.False(t, resp.Found)
	_, ok = resp.Encode()
	assert.False(t, ok)

	// mutations of a missing record report not found
	_, err = deleteH.Handle(ctx, []string{"1"}, store)
	assert.True(t, record.IsNotFound(err))
	_, err = updateH.Handle(ctx, []string{"a", "b", "c", "d", "e", "1"}, store)
	assert.True(t, record.IsNotFound(err))
}

func TestHandlersWrongFieldCount(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMemStore()

	for _, h := range []ICommandHandler{selectH, updateH, insertH, deleteH} {
		_, err := h.Handle(ctx, []string{"a", "b"}, store)
		assert.ErrorIs(t, err, protocol.ErrFieldCount)
	}
}

func TestHandlersStoreErrors(t *testing.T) {
	ctx := context.Background()
	store := failingStore{}

	resp, err := selectH.Handle(ctx, []string{"7"}, store)
	assert.ErrorIs(t, err, errBackend)
	assert.False(t, resp.Found)

	_, err = updateH.Handle(ctx, []string{"a", "b", "c", "d", "e", "7"}, store)
	assert.ErrorIs(t, err, errBackend)
	_, err = insertH.Handle(ctx, []string{"a", "b", "c", "d", "e", ""}, store)
	assert.ErrorIs(t, err, errBackend)
	_, err = deleteH.Handle(ctx, []string{"7"}, store)
	assert.ErrorIs(t, err, errBackend)
}
