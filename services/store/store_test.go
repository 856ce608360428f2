package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sjsage522/postscraper/internal/scraper"
	scrapeerrors "sjsage522/postscraper/pkg/errors"
)

// writeQueue creates an input spreadsheet the way a user would
func writeQueue(t *testing.T, path string, header []string, rows ...[]string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, f.SetCellValue("Sheet1", cell, h))
	}
	for r, row := range rows {
		for c, val := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			require.NoError(t, f.SetCellValue("Sheet1", cell, val))
		}
	}
	require.NoError(t, f.SaveAs(path))
}

func newTestStore(t *testing.T) (*Store, string, string) {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "input.xlsx")
	output := filepath.Join(dir, "output.xlsx")
	return NewStore(input, output, nil), input, output
}

func TestStoreSaveScenario(t *testing.T) {
	s, input, output := newTestStore(t)
	writeQueue(t, input, []string{"name", "url"}, []string{"A", "u1"}, []string{"B", "u2"})

	snapshot, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []scraper.WorkItem{{Name: "A", URL: "u1"}, {Name: "B", URL: "u2"}}, snapshot.Items())

	summary, err := s.Save(snapshot, []scraper.ResultRecord{
		{Name: "A", URL: "u1", PostTitle: "filled", Views: "8,901 views"},
		{Name: "B", URL: "u2"},
	})
	require.NoError(t, err)
	assert.Equal(t, Summary{New: 2, Merged: 2, Remaining: 0, QueueWritten: true}, summary)

	records, err := ReadRecords(output)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "filled", records[0].PostTitle)
	assert.Equal(t, "8,901 views", records[0].Views)
	assert.Equal(t, scraper.ResultRecord{Name: "B", URL: "u2"}, records[1])

	left, err := ReadSnapshot(input)
	require.NoError(t, err)
	assert.Equal(t, 0, left.Len())
	assert.Equal(t, []string{"name", "url"}, left.Header)
}

func TestStoreSaveReplacesStaleRow(t *testing.T) {
	s, input, output := newTestStore(t)
	require.NoError(t, WriteRecords(output, []scraper.ResultRecord{
		{Name: "A", URL: "u1", PostTitle: "old"},
		{Name: "Z", URL: "u0", PostTitle: "untouched"},
	}))
	writeQueue(t, input, []string{"name", "url", "note"},
		[]string{"A", "u1", "rerun"},
		[]string{"C", "u3", "later"},
	)

	snapshot, err := s.Snapshot()
	require.NoError(t, err)

	summary, err := s.Save(snapshot, []scraper.ResultRecord{{Name: "A", URL: "u1", PostTitle: "new"}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.New)
	assert.Equal(t, 2, summary.Existing)
	assert.Equal(t, 2, summary.Merged)
	assert.Equal(t, 1, summary.Remaining)

	records, err := ReadRecords(output)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "u1", records[0].URL)
	assert.Equal(t, "new", records[0].PostTitle)
	assert.Equal(t, "untouched", records[1].PostTitle)

	left, err := ReadSnapshot(input)
	require.NoError(t, err)
	require.Equal(t, 1, left.Len())
	assert.Equal(t, []string{"C", "u3", "later"}, left.Rows[0])
}

func TestStoreSaveIsRepeatable(t *testing.T) {
	s, input, output := newTestStore(t)
	writeQueue(t, input, []string{"name", "url"}, []string{"A", "u1"}, []string{"B", "u2"})
	newRecords := []scraper.ResultRecord{{Name: "A", URL: "u1", PostTitle: "t"}}

	snapshot, err := s.Snapshot()
	require.NoError(t, err)
	_, err = s.Save(snapshot, newRecords)
	require.NoError(t, err)
	first, err := ReadRecords(output)
	require.NoError(t, err)

	snapshot, err = s.Snapshot()
	require.NoError(t, err)
	summary, err := s.Save(snapshot, newRecords)
	require.NoError(t, err)
	second, err := ReadRecords(output)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, summary.Remaining)
}

func TestStoreSaveWithoutSnapshot(t *testing.T) {
	s, input, output := newTestStore(t)
	writeQueue(t, input, []string{"name", "url"}, []string{"A", "u1"})
	before, err := os.ReadFile(input)
	require.NoError(t, err)

	summary, err := s.Save(nil, []scraper.ResultRecord{{Name: "A", URL: "u1"}})
	require.NoError(t, err)
	assert.False(t, summary.QueueWritten)

	after, err := os.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	records, err := ReadRecords(output)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestStoreSaveUnreadableOutput(t *testing.T) {
	s, input, output := newTestStore(t)
	writeQueue(t, input, []string{"name", "url"}, []string{"A", "u1"})
	require.NoError(t, os.WriteFile(output, []byte("not a workbook"), 0o644))
	before, err := os.ReadFile(input)
	require.NoError(t, err)

	snapshot, err := s.Snapshot()
	require.NoError(t, err)
	_, err = s.Save(snapshot, []scraper.ResultRecord{{Name: "A", URL: "u1"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, scrapeerrors.ErrStore)

	after, err := os.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestStoreSaveOutputFailureKeepsQueue(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.xlsx")
	output := filepath.Join(dir, "missing-dir", "output.xlsx")
	writeQueue(t, input, []string{"name", "url"}, []string{"A", "u1"}, []string{"B", "u2"})
	s := NewStore(input, output, nil)

	snapshot, err := s.Snapshot()
	require.NoError(t, err)
	summary, err := s.Save(snapshot, []scraper.ResultRecord{
		{Name: "A", URL: "u1", PostTitle: "filled"},
		{Name: "B", URL: "u2"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, scrapeerrors.ErrStore)
	assert.False(t, summary.QueueWritten)

	left, err := ReadSnapshot(input)
	require.NoError(t, err)
	assert.Equal(t, 2, left.Len())
}

func TestReadSnapshotErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadSnapshot(filepath.Join(dir, "missing.xlsx"))
	assert.ErrorIs(t, err, scrapeerrors.ErrStore)

	badHeader := filepath.Join(dir, "bad.xlsx")
	writeQueue(t, badHeader, []string{"title", "link"}, []string{"A", "u1"})
	_, err = ReadSnapshot(badHeader)
	assert.ErrorIs(t, err, scrapeerrors.ErrStore)
}

func TestReadRecordsMissingFile(t *testing.T) {
	records, err := ReadRecords(filepath.Join(t.TempDir(), "none.xlsx"))
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestWriteRecordsFailureLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	err := WriteRecords(filepath.Join(dir, "absent", "out.xlsx"), nil)
	assert.ErrorIs(t, err, scrapeerrors.ErrStore)

	// a directory in the way makes the final rename fail
	blocked := filepath.Join(dir, "blocked.xlsx")
	require.NoError(t, os.Mkdir(blocked, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(blocked, "keep"), []byte("x"), 0o644))
	err = WriteRecords(blocked, []scraper.ResultRecord{{URL: "u1"}})
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
	_, err = os.Stat(filepath.Join(blocked, "keep"))
	assert.NoError(t, err)
}
