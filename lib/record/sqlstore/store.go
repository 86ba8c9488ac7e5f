package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ValentinKolb/dRec/lib/record"
	_ "github.com/mattn/go-sqlite3"
)

type storeImpl struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite database at path and runs the
// schema migrations.
func NewSQLiteStore(path string) (record.IRecordStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &storeImpl{db: db}
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// runMigrations creates the schema
func (s *storeImpl) runMigrations() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS Movies (
			MovieID INTEGER PRIMARY KEY AUTOINCREMENT,
			Title TEXT NOT NULL DEFAULT '',
			Director TEXT NOT NULL DEFAULT '',
			YearReleased TEXT NOT NULL DEFAULT '',
			Description TEXT NOT NULL DEFAULT '',
			GenreID TEXT NOT NULL DEFAULT ''
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see record/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Fetch(ctx context.Context, id string) (record.Record, bool, error) {
	n, ok := record.ParseNumericID(id)
	if !ok {
		return record.Record{}, false, nil
	}

	query := `SELECT MovieID, Title, Director, YearReleased, Description, GenreID FROM Movies WHERE MovieID = ?`

	var (
		rec     record.Record
		movieID int64
	)
	err := s.db.QueryRowContext(ctx, query, n).Scan(
		&movieID, &rec.Title, &rec.Director, &rec.ReleaseYear, &rec.Description, &rec.GenreID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Record{}, false, nil
	}
	if err != nil {
		return record.Record{}, false, record.WrapError(record.RetCInternalError, "select failed", err)
	}

	rec.ID = strconv.FormatInt(movieID, 10)
	return rec, true, nil
}

func (s *storeImpl) Update(ctx context.Context, rec record.Record) error {
	n, ok := record.ParseNumericID(rec.ID)
	if !ok {
		return record.NotFound(rec.ID)
	}

	query := `UPDATE Movies SET Title = ?, Director = ?, YearReleased = ?, Description = ?, GenreID = ? WHERE MovieID = ?`
	res, err := s.db.ExecContext(ctx, query, rec.Title, rec.Director, rec.ReleaseYear, rec.Description, rec.GenreID, n)
	if err != nil {
		return record.WrapError(record.RetCInternalError, "update failed", err)
	}

	return checkAffected(res, rec.ID)
}

func (s *storeImpl) Insert(ctx context.Context, rec record.Record) (string, error) {
	query := `INSERT INTO Movies (Title, Director, YearReleased, Description, GenreID) VALUES (?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query, rec.Title, rec.Director, rec.ReleaseYear, rec.Description, rec.GenreID)
	if err != nil {
		return "", record.WrapError(record.RetCInternalError, "insert failed", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return "", record.WrapError(record.RetCInternalError, "insert failed", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *storeImpl) Delete(ctx context.Context, id string) error {
	n, ok := record.ParseNumericID(id)
	if !ok {
		return record.NotFound(id)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM Movies WHERE MovieID = ?`, n)
	if err != nil {
		return record.WrapError(record.RetCInternalError, "delete failed", err)
	}

	return checkAffected(res, id)
}

func (s *storeImpl) Close() error {
	return s.db.Close()
}

// checkAffected maps zero affected rows to a not found error
func checkAffected(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return record.WrapError(record.RetCInternalError, "failed to read affected rows", err)
	}
	if affected == 0 {
		return record.NotFound(id)
	}
	return nil
}
