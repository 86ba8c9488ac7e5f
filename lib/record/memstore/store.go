package memstore

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/ValentinKolb/dRec/lib/record"
	"github.com/puzpuzpuz/xsync/v3"
	"gopkg.in/yaml.v3"
)

type storeImpl struct {
	records *xsync.MapOf[string, record.Record]
	lastID  atomic.Uint64
}

// NewMemStore creates a new empty in-memory record store.
// Ids are assigned from a counter starting at 1.
func NewMemStore() record.IRecordStore {
	return newStore()
}

// NewSeededMemStore creates a new in-memory record store and fills it with the
// records of the YAML seed file at path (see ParseSeed for the format).
func NewSeededMemStore(path string) (record.IRecordStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	records, err := ParseSeed(data)
	if err != nil {
		return nil, err
	}

	s := newStore()
	for _, rec := range records {
		if err := s.seed(rec); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ParseSeed parses a YAML list of records:
//
//   - id: "7"
//     title: Dune
//     director: Villeneuve
//     releaseYear: "2021"
//     description: desc
//     genreId: "5"
//
// The id is optional, records without id get one assigned when seeded.
func ParseSeed(data []byte) ([]record.Record, error) {
	var records []record.Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("invalid seed file: %w", err)
	}
	return records, nil
}

func newStore() *storeImpl {
	return &storeImpl{
		records: xsync.NewMapOf[string, record.Record](),
	}
}

// nextID returns a new unique id.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) nextID() string {
	return strconv.FormatUint(s.lastID.Add(1), 10)
}

// seed stores a record with its own id (if any) and moves the id counter past it
func (s *storeImpl) seed(rec record.Record) error {
	if !rec.HasID() {
		rec.ID = s.nextID()
		s.records.Store(rec.ID, rec)
		return nil
	}

	n, err := strconv.ParseUint(rec.ID, 10, 64)
	if err != nil {
		return record.WrapError(record.RetCInvalidRecord, fmt.Sprintf("seed record id %q is not a number", rec.ID), err)
	}
	for {
		last := s.lastID.Load()
		if n <= last || s.lastID.CompareAndSwap(last, n) {
			break
		}
	}
	s.records.Store(rec.ID, rec)
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see record/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Fetch(_ context.Context, id string) (record.Record, bool, error) {
	rec, ok := s.records.Load(id)
	return rec, ok, nil
}

func (s *storeImpl) Update(_ context.Context, rec record.Record) error {
	_, ok := s.records.Compute(rec.ID, func(old record.Record, loaded bool) (record.Record, bool) {
		if !loaded {
			// delete=true on a missing key is a no-op
			return old, true
		}
		return rec, false
	})
	if !ok {
		return record.NotFound(rec.ID)
	}
	return nil
}

func (s *storeImpl) Insert(_ context.Context, rec record.Record) (string, error) {
	rec.ID = s.nextID()
	s.records.Store(rec.ID, rec)
	return rec.ID, nil
}

func (s *storeImpl) Delete(_ context.Context, id string) error {
	if _, ok := s.records.LoadAndDelete(id); !ok {
		return record.NotFound(id)
	}
	return nil
}

func (s *storeImpl) Close() error {
	s.records.Clear()
	return nil
}
