package server

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dRec/lib/record"
	"github.com/ValentinKolb/dRec/rpc/protocol"
)

var (
	selectH = &selectHandler{}
	updateH = &updateHandler{}
	insertH = &insertHandler{}
	deleteH = &deleteHandler{}
)

// handlerFor returns the handler of a command kind
func handlerFor(kind protocol.Kind) (ICommandHandler, error) {
	switch kind {
	case protocol.KindSelect:
		return selectH, nil
	case protocol.KindUpdate:
		return updateH, nil
	case protocol.KindInsert:
		return insertH, nil
	case protocol.KindDelete:
		return deleteH, nil
	default:
		return nil, fmt.Errorf("no handler for command kind %s", kind)
	}
}

// checkFields guards the handlers against commands that did not pass the decoder
func checkFields(kind protocol.Kind, fields []string) error {
	if len(fields) != protocol.Arity(kind) {
		return fmt.Errorf("%w: %s expects %d, got %d", protocol.ErrFieldCount, kind, protocol.Arity(kind), len(fields))
	}
	return nil
}

// --------------------------------------------------------------------------
// select
// --------------------------------------------------------------------------

type selectHandler struct{}

func (h *selectHandler) Handle(ctx context.Context, fields []string, store record.IRecordStore) (protocol.Response, error) {
	if err := checkFields(protocol.KindSelect, fields); err != nil {
		return protocol.NotFound(), err
	}

	rec, found, err := store.Fetch(ctx, fields[0])
	if err != nil {
		return protocol.NotFound(), fmt.Errorf("select %q: %w", fields[0], err)
	}
	if !found {
		return protocol.NotFound(), nil
	}

	return protocol.Response{Kind: protocol.KindSelect, Record: rec, Found: true}, nil
}

// --------------------------------------------------------------------------
// update
// --------------------------------------------------------------------------

type updateHandler struct{}

func (h *updateHandler) Handle(ctx context.Context, fields []string, store record.IRecordStore) (protocol.Response, error) {
	resp := protocol.Response{Kind: protocol.KindUpdate}

	cmd := protocol.Command{Kind: protocol.KindUpdate, Fields: fields}
	rec, err := cmd.Record()
	if err != nil {
		return resp, err
	}

	if err := store.Update(ctx, rec); err != nil {
		return resp, fmt.Errorf("update %q: %w", rec.ID, err)
	}
	return resp, nil
}

// --------------------------------------------------------------------------
// insert
// --------------------------------------------------------------------------

type insertHandler struct{}

// Handle ignores the trailing id placeholder, the store assigns the id
func (h *insertHandler) Handle(ctx context.Context, fields []string, store record.IRecordStore) (protocol.Response, error) {
	resp := protocol.Response{Kind: protocol.KindInsert}

	cmd := protocol.Command{Kind: protocol.KindInsert, Fields: fields}
	rec, err := cmd.Record()
	if err != nil {
		return resp, err
	}
	rec.ID = ""

	id, err := store.Insert(ctx, rec)
	if err != nil {
		return resp, fmt.Errorf("insert: %w", err)
	}
	Logger.Debugf("inserted record %s", id)
	return resp, nil
}

// --------------------------------------------------------------------------
// delete
// --------------------------------------------------------------------------

type deleteHandler struct{}

func (h *deleteHandler) Handle(ctx context.Context, fields []string, store record.IRecordStore) (protocol.Response, error) {
	resp := protocol.Response{Kind: protocol.KindDelete}

	if err := checkFields(protocol.KindDelete, fields); err != nil {
		return resp, err
	}

	if err := store.Delete(ctx, fields[0]); err != nil {
		return resp, fmt.Errorf("delete %q: %w", fields[0], err)
	}
	return resp, nil
}
