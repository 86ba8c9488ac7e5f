package server

import (
	"context"

	"github.com/ValentinKolb/dRec/lib/record"
	"github.com/ValentinKolb/dRec/rpc/protocol"
)

// ICommandHandler is the interface of the command handlers, one per command kind.
type ICommandHandler interface {
	// Handle executes the command with the given (already arity checked)
	// fields against the store. Only select returns a populated Response,
	// a missing record is Response.Found == false, not an error.
	// Store failures are returned as error, handlers never retry.
	Handle(ctx context.Context, fields []string, store record.IRecordStore) (resp protocol.Response, err error)
}
