package store

import (
	"sjsage522/postscraper/internal/scraper"
)

// Reconcile merges a run's records into the existing store and shrinks the queue.
//
// New records are placed ahead of existing ones and the result is deduplicated
// by url keeping the first occurrence, so a fresh fetch replaces a stale row.
// The remaining queue is the snapshot minus every row whose url is now stored
// and minus rows missing a required field. A nil snapshot yields a nil queue.
// Inputs are not modified.
func Reconcile(newRecords, existing []scraper.ResultRecord, snapshot *Snapshot) ([]scraper.ResultRecord, *Snapshot) {
	seen := make(map[string]bool, len(newRecords)+len(existing))
	merged := make([]scraper.ResultRecord, 0, len(newRecords)+len(existing))

	for _, batch := range [][]scraper.ResultRecord{newRecords, existing} {
		for _, record := range batch {
			if seen[record.URL] {
				continue
			}
			seen[record.URL] = true
			merged = append(merged, record)
		}
	}

	if snapshot == nil {
		return merged, nil
	}

	remaining := &Snapshot{
		Header:  snapshot.Header,
		Rows:    make([][]string, 0, len(snapshot.Rows)),
		nameCol: snapshot.nameCol,
		urlCol:  snapshot.urlCol,
	}
	for i, row := range snapshot.Rows {
		item := snapshot.Item(i)
		if !item.Valid() || seen[item.URL] {
			continue
		}
		remaining.Rows = append(remaining.Rows, row)
	}
	return merged, remaining
}
