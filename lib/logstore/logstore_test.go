package logstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func readLines(t *testing.T, path string) []string {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestNewEntry(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 45, 0, time.Local)

	e := NewEntry("#select|42", ts)
	assert.Equal(t, "20240501_123045", e.Timestamp)
	assert.Equal(t, "select|42", e.Text)
	assert.Equal(t, "20240501_123045#select|42", e.Line())
	assert.Equal(t, "2024-05-01 12:30:45 - command: select|42", e.Format())

	got, err := e.Time()
	require.NoError(t, err)
	assert.True(t, ts.Equal(got))

	// only the leading marker is removed
	assert.Equal(t, "bogus|#x", NewEntry("#bogus|#x", ts).Text)
	assert.Equal(t, "no marker", NewEntry("no marker", ts).Text)

	// line breaks can not end up in the file
	assert.Equal(t, "select|1 2", NewEntry("#select|1\r\n2", ts).Text)
}

// TestRoundTrip tests that appended entries are reloaded in order and content
func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)
	s := Open(path)

	var written []Entry
	for i := 0; i < 20; i++ {
		e := NewEntry(fmt.Sprintf("#select|%d", i), time.Date(2024, 1, 2, 3, 4, i, 0, time.Local))
		require.NoError(t, s.AppendEntry(e))
		written = append(written, e)
	}

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, written, loaded)

	// idempotent: reloading right after an append equals the in-memory log
	assert.Equal(t, s.Entries(), loaded)

	// a new store on the same file continues the log
	require.NoError(t, s.Close())
	s2 := Open(path)
	assert.Equal(t, written, s2.Entries())
}

// TestCountHeader tests that after N appends the header is N followed by N lines
func TestCountHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	s := Open(path)
	s.now = fixedClock(time.Date(2024, 5, 1, 8, 0, 0, 0, time.Local))

	for n := 1; n <= 5; n++ {
		_, err := s.Append("#delete|" + strconv.Itoa(n))
		require.NoError(t, err)

		lines := readLines(t, path)
		assert.Equal(t, strconv.Itoa(n), lines[0])
		assert.Len(t, lines, n+1)
		assert.Equal(t, "20240501_080000#delete|"+strconv.Itoa(n), lines[n])
	}
	assert.Equal(t, 5, s.Len())
}

// TestConcurrentAppend tests that no append is lost under concurrent writers
func TestConcurrentAppend(t *testing.T) {
	const writers = 50

	path := filepath.Join(t.TempDir(), "log.txt")
	s := Open(path)

	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			if _, err := s.Append(fmt.Sprintf("#select|%d", i)); err != nil {
				t.Errorf("append %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, writers)

	seen := make(map[string]bool, writers)
	for _, e := range loaded {
		seen[e.Text] = true
	}
	for i := 0; i < writers; i++ {
		assert.True(t, seen[fmt.Sprintf("select|%d", i)], "entry %d missing", i)
	}

	lines := readLines(t, path)
	assert.Equal(t, strconv.Itoa(writers), lines[0])
}

// TestConcurrentAppendKeepsTimestampOrder tests that the file order follows
// the timestamps when the clock advances between concurrent appends
func TestConcurrentAppendKeepsTimestampOrder(t *testing.T) {
	const writers = 30

	path := filepath.Join(t.TempDir(), "log.txt")
	s := Open(path)

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.Local)
	var ticks atomic.Int64
	s.now = func() time.Time {
		return base.Add(time.Duration(ticks.Add(1)) * time.Second)
	}

	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			if _, err := s.Append(fmt.Sprintf("#delete|%d", i)); err != nil {
				t.Errorf("append %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, writers)

	for i := 1; i < len(loaded); i++ {
		prev, err := loaded[i-1].Time()
		require.NoError(t, err)
		cur, err := loaded[i].Time()
		require.NoError(t, err)
		assert.True(t, cur.After(prev), "entry %d (%s) is not after entry %d (%s)", i, loaded[i].Timestamp, i-1, loaded[i-1].Timestamp)
	}
}

func TestLoadMissingFile(t *testing.T) {
	entries, err := Load(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no count", "select|1\n"},
		{"negative count", "-1\n"},
		{"too few lines", "3\n20240501_120000#select|1\n"},
		{"too many lines", "1\n20240501_120000#select|1\n20240501_120000#select|2\n"},
		{"missing separator", "1\n20240501_120000 select|1\n"},
		{"bad timestamp", "1\nyesterday#select|1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "log.txt")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			entries, err := Load(path)
			assert.Empty(t, entries)

			var fe *FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, path, fe.Path)

			// the store degrades to an empty log and replaces the file on append
			s := Open(path)
			assert.Equal(t, 0, s.Len())
			_, err = s.Append("#select|9")
			require.NoError(t, err)

			loaded, err := Load(path)
			require.NoError(t, err)
			require.Len(t, loaded, 1)
			assert.Equal(t, "select|9", loaded[0].Text)
		})
	}
}

func TestLoadValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	content := "2\r\n20240501_120000#select|1\r\n20240501_120001#update|a|b|c|d|e|1\r\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	entries, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Timestamp: "20240501_120000", Text: "select|1"},
		{Timestamp: "20240501_120001", Text: "update|a|b|c|d|e|1"},
	}, entries)

	// zero entries
	require.NoError(t, os.WriteFile(path, []byte("0\n"), 0644))
	entries, err = Load(path)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEntriesIsSnapshot(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "log.txt"))
	_, err := s.Append("#select|1")
	require.NoError(t, err)

	snap := s.Entries()
	snap[0].Text = "changed"
	assert.Equal(t, "select|1", s.Entries()[0].Text)
}
