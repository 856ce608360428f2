package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"sjsage522/postscraper/internal/scraper"
	scrapeerrors "sjsage522/postscraper/pkg/errors"
)

const (
	queueSheet  = "queue"
	outputSheet = "posts"
)

// Snapshot is the input queue as read at the start of a run. Rows are kept raw
// so columns other than name and url survive a rewrite.
type Snapshot struct {
	Header []string
	Rows   [][]string

	nameCol int
	urlCol  int
}

// NewSnapshot indexes header; it fails if name or url is missing
func NewSnapshot(header []string, rows [][]string) (*Snapshot, error) {
	s := &Snapshot{Header: header, nameCol: -1, urlCol: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case scraper.ColName:
			if s.nameCol < 0 {
				s.nameCol = i
			}
		case scraper.ColURL:
			if s.urlCol < 0 {
				s.urlCol = i
			}
		}
	}
	if s.nameCol < 0 || s.urlCol < 0 {
		return nil, fmt.Errorf("header %v lacks %q or %q column", header, scraper.ColName, scraper.ColURL)
	}

	s.Rows = make([][]string, 0, len(rows))
	for _, row := range rows {
		s.Rows = append(s.Rows, padRow(row, len(header)))
	}
	return s, nil
}

// Item returns the work item held by row i
func (s *Snapshot) Item(i int) scraper.WorkItem {
	row := s.Rows[i]
	return scraper.WorkItem{
		Name: strings.TrimSpace(row[s.nameCol]),
		URL:  strings.TrimSpace(row[s.urlCol]),
	}
}

// Items returns one work item per row, invalid ones included
func (s *Snapshot) Items() []scraper.WorkItem {
	items := make([]scraper.WorkItem, len(s.Rows))
	for i := range s.Rows {
		items[i] = s.Item(i)
	}
	return items
}

// Len returns the number of data rows
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// ReadSnapshot reads the first sheet of the queue spreadsheet at path
func ReadSnapshot(path string) (*Snapshot, error) {
	header, rows, err := readTable(path)
	if err != nil {
		return nil, scrapeerrors.NewStore(path, "read input queue", err)
	}
	if header == nil {
		return nil, scrapeerrors.NewStore(path, "read input queue", errors.New("spreadsheet is empty"))
	}
	snapshot, err := NewSnapshot(header, rows)
	if err != nil {
		return nil, scrapeerrors.NewStore(path, "read input queue", err)
	}
	return snapshot, nil
}

// ReadRecords reads the output spreadsheet; a missing file is an empty store
func ReadRecords(path string) ([]scraper.ResultRecord, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	header, rows, err := readTable(path)
	if err != nil {
		return nil, scrapeerrors.NewStore(path, "read output store", err)
	}

	records := make([]scraper.ResultRecord, 0, len(rows))
	for _, row := range rows {
		var record scraper.ResultRecord
		for i, column := range header {
			if i < len(row) {
				record.Set(strings.ToLower(strings.TrimSpace(column)), row[i])
			}
		}
		records = append(records, record)
	}
	return records, nil
}

// WriteSnapshot replaces the queue spreadsheet at path with snapshot
func WriteSnapshot(path string, snapshot *Snapshot) error {
	if err := writeTable(path, queueSheet, snapshot.Header, snapshot.Rows); err != nil {
		return scrapeerrors.NewStore(path, "write input queue", err)
	}
	return nil
}

// WriteRecords replaces the output spreadsheet at path with records
func WriteRecords(path string, records []scraper.ResultRecord) error {
	rows := make([][]string, len(records))
	for i, record := range records {
		rows[i] = record.Row()
	}
	if err := writeTable(path, outputSheet, scraper.Columns, rows); err != nil {
		return scrapeerrors.NewStore(path, "write output store", err)
	}
	return nil
}

// readTable returns the header and data rows of the first sheet
func readTable(path string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		data = append(data, row)
	}
	return rows[0], data, nil
}

// writeTable writes a fresh workbook next to path and renames it into place,
// so a failed write leaves the previous file untouched
func writeTable(path, sheet string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	for i, row := range rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close workbook: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	committed = true
	return nil
}

func setRow(f *excelize.File, sheet string, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("cell name for row %d: %w", rowNum, err)
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("set row %d: %w", rowNum, err)
	}
	return nil
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
