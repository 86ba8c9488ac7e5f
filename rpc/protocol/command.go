package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ValentinKolb/dRec/lib/record"
)

const (
	// Marker starts every command
	Marker = "#"
	// Delimiter separates the kind and the fields
	Delimiter = "|"

	// UnknownCommandResponse is sent for commands that can not be decoded
	UnknownCommandResponse = "Unknown command"
)

var (
	ErrMissingMarker = errors.New("command does not start with '#'")
	ErrUnknownKind   = errors.New("unknown command kind")
	ErrFieldCount    = errors.New("wrong number of fields")
	ErrTooLong       = errors.New("command exceeds the read buffer")
)

// --------------------------------------------------------------------------
// Kind
// --------------------------------------------------------------------------

// Kind is the kind of command
type Kind uint8

const (
	KindUnknown Kind = iota
	KindSelect
	KindUpdate
	KindInsert
	KindDelete
)

// Kinds lists every valid kind
var Kinds = []Kind{KindSelect, KindUpdate, KindInsert, KindDelete}

func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindUpdate:
		return "update"
	case KindInsert:
		return "insert"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// HasResponse reports whether the server answers commands of this kind
func (k Kind) HasResponse() bool {
	return k == KindSelect
}

// ParseKind returns the kind with the given wire name (e.g. "select").
func ParseKind(name string) (Kind, error) {
	for _, k := range Kinds {
		if name == k.String() {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Arity returns the number of fields of a kind, 0 for KindUnknown.
func Arity(k Kind) int {
	switch k {
	case KindSelect, KindDelete:
		return 1
	case KindUpdate, KindInsert:
		return 6
	default:
		return 0
	}
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// DecodeError describes why a raw command could not be decoded.
// It wraps ErrMissingMarker, ErrUnknownKind, ErrFieldCount or ErrTooLong.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode command %q: %v", e.Raw, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// --------------------------------------------------------------------------
// Command
// --------------------------------------------------------------------------

// Command is a decoded request. The fields are untyped until a handler
// interprets them.
type Command struct {
	Kind   Kind
	Fields []string
}

// NewSelectCommand creates the command to fetch the record with the given id
func NewSelectCommand(id string) Command {
	return Command{Kind: KindSelect, Fields: []string{id}}
}

// NewUpdateCommand creates the command to replace the record rec.ID
func NewUpdateCommand(rec record.Record) Command {
	return Command{Kind: KindUpdate, Fields: recordFields(rec)}
}

// NewInsertCommand creates the command to insert rec. The id field is sent
// as placeholder, the server assigns the id.
func NewInsertCommand(rec record.Record) Command {
	return Command{Kind: KindInsert, Fields: recordFields(rec)}
}

// NewDeleteCommand creates the command to delete the record with the given id
func NewDeleteCommand(id string) Command {
	return Command{Kind: KindDelete, Fields: []string{id}}
}

// Encode returns the wire form "#kind|field1|...".
func (c Command) Encode() string {
	var sb strings.Builder
	sb.WriteString(Marker)
	sb.WriteString(c.Kind.String())
	for _, f := range c.Fields {
		sb.WriteString(Delimiter)
		sb.WriteString(f)
	}
	return sb.String()
}

func (c Command) String() string {
	return c.Encode()
}

// Record interprets the fields of an update or insert command.
func (c Command) Record() (record.Record, error) {
	if c.Kind != KindUpdate && c.Kind != KindInsert {
		return record.Record{}, fmt.Errorf("%s command carries no record", c.Kind)
	}
	if len(c.Fields) != Arity(c.Kind) {
		return record.Record{}, fmt.Errorf("%w: %s expects %d, got %d", ErrFieldCount, c.Kind, Arity(c.Kind), len(c.Fields))
	}
	return recordFromFields(c.Fields), nil
}

// KindOf returns the kind named by the marker of a raw command without
// checking the fields. Anything unrecognized is KindUnknown.
func KindOf(raw string) Kind {
	raw = trimLineEnd(raw)
	if !strings.HasPrefix(raw, Marker) {
		return KindUnknown
	}
	name, _, _ := strings.Cut(raw[len(Marker):], Delimiter)
	k, err := ParseKind(name)
	if err != nil {
		return KindUnknown
	}
	return k
}

// Decode parses a raw command. A trailing line break is ignored.
// The returned error is always a *DecodeError.
func Decode(raw string) (Command, error) {
	line := trimLineEnd(raw)

	if !strings.HasPrefix(line, Marker) {
		return Command{}, &DecodeError{Raw: raw, Err: ErrMissingMarker}
	}

	parts := strings.Split(line[len(Marker):], Delimiter)
	kind, err := ParseKind(parts[0])
	if err != nil {
		return Command{}, &DecodeError{Raw: raw, Err: err}
	}

	fields := parts[1:]
	if len(fields) != Arity(kind) {
		return Command{}, &DecodeError{
			Raw: raw,
			Err: fmt.Errorf("%w: %s expects %d, got %d", ErrFieldCount, kind, Arity(kind), len(fields)),
		}
	}

	return Command{Kind: kind, Fields: fields}, nil
}

func trimLineEnd(s string) string {
	return strings.TrimRight(s, "\r\n")
}
