package store

import (
	"sjsage522/postscraper/internal/scraper"
	"sjsage522/postscraper/logger"
)

// Summary reports what a Save wrote
type Summary struct {
	New          int
	Existing     int
	Merged       int
	Remaining    int
	QueueWritten bool
}

// Store owns the input queue and output spreadsheets
type Store struct {
	inputPath  string
	outputPath string
	logger     *logger.Logger
}

// NewStore creates a store over the two spreadsheet paths
func NewStore(inputPath, outputPath string, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		inputPath:  inputPath,
		outputPath: outputPath,
		logger:     log,
	}
}

// Snapshot reads the input queue
func (s *Store) Snapshot() (*Snapshot, error) {
	snapshot, err := ReadSnapshot(s.inputPath)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("path", s.inputPath).
		Int("rows", snapshot.Len()).
		Msg("Read input queue")
	return snapshot, nil
}

// Save reconciles newRecords with the stored output and persists both files.
// The output is written first and the queue only once the output is in
// place, so a url never leaves the queue without its record being stored.
// With a nil snapshot only the output is written. If the existing output
// cannot be read nothing is written.
func (s *Store) Save(snapshot *Snapshot, newRecords []scraper.ResultRecord) (Summary, error) {
	existing, err := ReadRecords(s.outputPath)
	if err != nil {
		return Summary{}, err
	}

	merged, remaining := Reconcile(newRecords, existing, snapshot)
	summary := Summary{
		New:      len(newRecords),
		Existing: len(existing),
		Merged:   len(merged),
	}

	if err := WriteRecords(s.outputPath, merged); err != nil {
		return summary, err
	}

	if remaining == nil {
		s.logger.Warn().Str("path", s.inputPath).Msg("No queue snapshot, leaving input untouched")
	} else {
		if err := WriteSnapshot(s.inputPath, remaining); err != nil {
			return summary, err
		}
		summary.Remaining = remaining.Len()
		summary.QueueWritten = true
	}

	s.logger.Info().
		Int("new", summary.New).
		Int("existing", summary.Existing).
		Int("merged", summary.Merged).
		Int("remaining", summary.Remaining).
		Msg("Saved output and queue")
	return summary, nil
}
