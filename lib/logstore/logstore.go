package logstore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("logstore")

const (
	// DefaultPath is the file name used when no log file is configured
	DefaultPath = "LogsOfQueries.txt"

	// TimestampLayout is the layout of the persisted timestamp (YYYYMMDD_HHMMSS)
	TimestampLayout = "20060102_150405"

	// DisplayLayout is the layout of the timestamp in formatted log lines
	DisplayLayout = "2006-01-02 15:04:05"

	separator = "#"
)

// --------------------------------------------------------------------------
// Entry
// --------------------------------------------------------------------------

// Entry is a single processed command. It is immutable once created.
type Entry struct {
	Timestamp string // formatted with TimestampLayout
	Text      string // the command without the leading '#', e.g. "select|7"
}

// NewEntry creates the entry for the raw command text received at t.
// A leading '#' is removed. Line breaks would corrupt the file format and are
// replaced by spaces.
func NewEntry(raw string, t time.Time) Entry {
	text := strings.TrimPrefix(raw, separator)
	text = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(text)

	return Entry{
		Timestamp: t.Format(TimestampLayout),
		Text:      text,
	}
}

// Line returns the persisted form "timestamp#text".
func (e Entry) Line() string {
	return e.Timestamp + separator + e.Text
}

// Time parses the timestamp of the entry (local time).
func (e Entry) Time() (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, e.Timestamp, time.Local)
}

// Format returns the presentation line "<YYYY-MM-DD HH:MM:SS> - command: <text>".
func (e Entry) Format() string {
	ts := e.Timestamp
	if t, err := e.Time(); err == nil {
		ts = t.Format(DisplayLayout)
	}
	return fmt.Sprintf("%s - command: %s", ts, e.Text)
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// FormatError is returned by Load for a log file that violates the format.
type FormatError struct {
	Path string
	Line int // 1 based, 0 if the error is not bound to a line
	Msg  string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid log file %s (line %d): %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("invalid log file %s: %s", e.Path, e.Msg)
}

// --------------------------------------------------------------------------
// Loading
// --------------------------------------------------------------------------

// Load reads the log file at path.
//
// A missing or empty file is an empty log. If the file violates the format an
// empty sequence and a *FormatError are returned, never a partial log.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	entries, err := parse(path, string(data))
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func parse(path, content string) ([]Entry, error) {
	if content == "" {
		return nil, nil
	}

	content = strings.TrimSuffix(content, "\n")
	lines := strings.Split(content, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}

	n, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil || n < 0 {
		return nil, &FormatError{Path: path, Line: 1, Msg: fmt.Sprintf("invalid entry count %q", lines[0])}
	}
	if len(lines)-1 != n {
		return nil, &FormatError{Path: path, Msg: fmt.Sprintf("header announces %d entries, file has %d", n, len(lines)-1)}
	}

	entries := make([]Entry, 0, n)
	for i, line := range lines[1:] {
		ts, text, ok := strings.Cut(line, separator)
		if !ok {
			return nil, &FormatError{Path: path, Line: i + 2, Msg: "missing '#' separator"}
		}
		if _, err := time.Parse(TimestampLayout, ts); err != nil {
			return nil, &FormatError{Path: path, Line: i + 2, Msg: fmt.Sprintf("invalid timestamp %q", ts)}
		}
		entries = append(entries, Entry{Timestamp: ts, Text: text})
	}

	return entries, nil
}

// --------------------------------------------------------------------------
// LogStore
// --------------------------------------------------------------------------

// LogStore holds the ordered command log of the process and persists it.
//
// Thread-safety: All methods are safe for concurrent use.
type LogStore struct {
	path    string
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// Open creates the store for the file at path and loads the existing log.
// Load errors never fail: the log starts empty and a warning is logged. The
// next append then replaces the unreadable file.
func Open(path string) *LogStore {
	if path == "" {
		path = DefaultPath
	}

	entries, err := Load(path)
	if err != nil {
		Logger.Warningf("starting with an empty command log: %v", err)
		entries = nil
	} else if len(entries) > 0 {
		Logger.Infof("loaded %d command log entries from %s", len(entries), path)
	}

	return &LogStore{
		path:    path,
		entries: entries,
		now:     time.Now,
	}
}

// Append records the raw command (with or without leading '#') with the
// current time and persists the log. The timestamp is taken while the lock is
// held, so the entries of the log are in timestamp order.
func (s *LogStore) Append(raw string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := NewEntry(raw, s.now())
	return entry, s.appendLocked(entry)
}

// AppendEntry adds the entry to the log and rewrites the whole log file.
// The entry stays in memory even if persisting fails, the next successful
// write includes it.
func (s *LogStore) AppendEntry(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(entry)
}

// appendLocked adds the entry and persists the log. s.mu must be held.
func (s *LogStore) appendLocked(entry Entry) error {
	s.entries = append(s.entries, entry)
	return s.writeLocked()
}

// Entries returns a snapshot copy of the log.
func (s *LogStore) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s *LogStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Path returns the backing file.
func (s *LogStore) Path() string {
	return s.path
}

// Flush rewrites the log file from memory.
func (s *LogStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked()
}

// Close flushes the log. The store must not be used afterwards.
func (s *LogStore) Close() error {
	return s.Flush()
}

// writeLocked writes the count header and every entry to a temporary file and
// renames it over the log file. s.mu must be held.
func (s *LogStore) writeLocked() error {
	dir := filepath.Dir(s.path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp log file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	// CreateTemp uses 0600
	if err := tmp.Chmod(0644); err != nil {
		cleanup()
		return fmt.Errorf("failed to set log file mode: %w", err)
	}

	w := bufio.NewWriter(tmp)
	if _, err := fmt.Fprintf(w, "%d\n", len(s.entries)); err != nil {
		cleanup()
		return fmt.Errorf("failed to write log header: %w", err)
	}
	for _, e := range s.entries {
		if _, err := w.WriteString(e.Line() + "\n"); err != nil {
			cleanup()
			return fmt.Errorf("failed to write log entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		cleanup()
		return fmt.Errorf("failed to write log file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close log file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace log file: %w", err)
	}
	return nil
}
