package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ValentinKolb/dRec/lib/record"
)

// RecordFieldCount is the number of fields of an encoded record
const RecordFieldCount = 6

var ErrMalformedRecord = errors.New("malformed record")

// EncodeRecord returns the select response for rec:
// title|director|releaseYear|description|genreId|id
func EncodeRecord(rec record.Record) string {
	return strings.Join(recordFields(rec), Delimiter)
}

// DecodeRecord parses a select response. It must contain exactly six fields.
func DecodeRecord(text string) (record.Record, error) {
	fields := strings.Split(trimLineEnd(text), Delimiter)
	if len(fields) != RecordFieldCount {
		return record.Record{}, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedRecord, RecordFieldCount, len(fields))
	}
	return recordFromFields(fields), nil
}

// recordFields returns the fields in wire order. The order is shared by the
// select response and the update/insert commands.
func recordFields(rec record.Record) []string {
	return []string{rec.Title, rec.Director, rec.ReleaseYear, rec.Description, rec.GenreID, rec.ID}
}

func recordFromFields(fields []string) record.Record {
	return record.Record{
		Title:       fields[0],
		Director:    fields[1],
		ReleaseYear: fields[2],
		Description: fields[3],
		GenreID:     fields[4],
		ID:          fields[5],
	}
}

// --------------------------------------------------------------------------
// Response
// --------------------------------------------------------------------------

// Response is the result of a handled command. Only select responses carry a
// record, Found is false if the record does not exist.
type Response struct {
	Kind   Kind
	Record record.Record
	Found  bool
}

// NotFound returns the select response for a missing record
func NotFound() Response {
	return Response{Kind: KindSelect}
}

// Encode returns the wire form of the response and whether anything has to
// be sent at all. Mutations and missing records send nothing.
func (r Response) Encode() (string, bool) {
	if !r.Kind.HasResponse() || !r.Found {
		return "", false
	}
	return EncodeRecord(r.Record), true
}
