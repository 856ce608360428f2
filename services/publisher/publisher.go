package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"sjsage522/postscraper/internal/scraper"
)

// RecordKey is the stream field that carries an encoded record
const RecordKey = "b64_post"

// Publisher represents a service for publishing messages
type Publisher interface {
	// Publish publishes a message to a stream
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

// RecordMessage is the payload published for each scraped record
type RecordMessage struct {
	RunID  string               `json:"run_id"`
	Record scraper.ResultRecord `json:"record"`
}

// PublishRecords publishes every record then trims the streams. It stops at
// the first failure and returns how many records went out.
func PublishRecords(ctx context.Context, p Publisher, runID string, records []scraper.ResultRecord) (int, error) {
	published := 0
	for _, record := range records {
		message, err := json.Marshal(RecordMessage{RunID: runID, Record: record})
		if err != nil {
			return published, fmt.Errorf("encode record %s: %w", record.URL, err)
		}
		if err := p.Publish(ctx, RecordKey, message); err != nil {
			return published, fmt.Errorf("publish record %s: %w", record.URL, err)
		}
		published++
	}

	if err := p.TrimStreams(ctx); err != nil {
		return published, fmt.Errorf("trim streams: %w", err)
	}
	return published, nil
}
