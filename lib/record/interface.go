package record

import (
	"context"
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Record
// --------------------------------------------------------------------------

// Record is the movie-like data transfer object carried across the protocol
// boundary. All fields are kept as the strings received on the wire, stores
// decide how to persist them. ID is empty until the store assigned one.
type Record struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Director    string `yaml:"director" json:"director"`
	ReleaseYear string `yaml:"releaseYear" json:"releaseYear"`
	Description string `yaml:"description" json:"description"`
	GenreID     string `yaml:"genreId" json:"genreId"`
}

// HasID reports whether the record carries an id
func (r Record) HasID() bool {
	return r.ID != ""
}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Factory creates a new store. It is used by the server setup to abstract
// which backend is used.
type Factory func() (IRecordStore, error)

// IRecordStore is the interface of the record store collaborator.
// Write operations return only an error (nil on success), Fetch returns the
// record plus a boolean that is false if no record with the id exists.
// All returned errors are of type *Error.
type IRecordStore interface {
	// Fetch returns the record with the given id. The boolean return value
	// indicates whether the record was found. A missing record is not an error.
	Fetch(ctx context.Context, id string) (rec Record, found bool, err error)
	// Update replaces all fields of the record identified by rec.ID.
	// Returns an error with RetCNotFound if no such record exists.
	Update(ctx context.Context, rec Record) (err error)
	// Insert stores a new record. Any id in rec is ignored, the store assigns
	// a new one and returns it.
	Insert(ctx context.Context, rec Record) (id string, err error)
	// Delete removes the record with the given id.
	// Returns an error with RetCNotFound if no such record exists.
	Delete(ctx context.Context, id string) (err error)
	// Close releases all resources held by the store.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps a return code and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message
	Err  error   // The underlying error, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("RecordStoreError (code %s): %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("RecordStoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new Error with the given code and message that wraps err.
func WrapError(code RetCode, msg string, err error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  err,
	}
}

// NotFound returns the error for a missing record.
func NotFound(id string) *Error {
	return NewError(RetCNotFound, fmt.Sprintf("no record with id %q", id))
}

// CodeOf returns the RetCode of err, RetCSuccess for nil and
// RetCInternalError for errors that are not an *Error.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}

// IsNotFound reports whether err is an *Error with code RetCNotFound.
func IsNotFound(err error) bool {
	return err != nil && CodeOf(err) == RetCNotFound
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess       RetCode = iota // 0: Operation executed successfully.
	RetCInternalError                // 1: Operation failed due to a backend error.
	RetCNotFound                     // 2: No record with the given id.
	RetCInvalidRecord                // 3: The record or id can not be stored by the backend.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCNotFound:
		return "NotFound"
	case RetCInvalidRecord:
		return "InvalidRecord"
	default:
		return "Unknown"
	}
}
