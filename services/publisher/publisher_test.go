package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/postscraper/internal/scraper"
)

// MockPublisher implements Publisher for testing
type MockPublisher struct {
	messages [][]byte
	keys     []string
	failAt   int
	trimErr  error
	trimmed  bool
}

func (m *MockPublisher) Publish(ctx context.Context, key string, message []byte) error {
	if m.failAt > 0 && len(m.messages)+1 == m.failAt {
		return errors.New("stream unavailable")
	}
	m.keys = append(m.keys, key)
	m.messages = append(m.messages, message)
	return nil
}

func (m *MockPublisher) TrimStreams(ctx context.Context) error {
	m.trimmed = true
	return m.trimErr
}

func (m *MockPublisher) Close() error {
	return nil
}

func TestPublishRecords(t *testing.T) {
	pub := &MockPublisher{}
	records := []scraper.ResultRecord{
		{Name: "A", URL: "u1", PostTitle: "t1"},
		{Name: "B", URL: "u2"},
	}

	n, err := PublishRecords(context.Background(), pub, "run-42", records)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, pub.trimmed)
	assert.Equal(t, []string{RecordKey, RecordKey}, pub.keys)

	var msg RecordMessage
	require.NoError(t, json.Unmarshal(pub.messages[0], &msg))
	assert.Equal(t, "run-42", msg.RunID)
	assert.Equal(t, records[0], msg.Record)
}

func TestPublishRecordsStopsOnFailure(t *testing.T) {
	pub := &MockPublisher{failAt: 2}
	records := []scraper.ResultRecord{{URL: "u1"}, {URL: "u2"}, {URL: "u3"}}

	n, err := PublishRecords(context.Background(), pub, "run", records)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "u2")
	assert.Equal(t, 1, n)
	assert.False(t, pub.trimmed)
}

func TestPublishRecordsTrimError(t *testing.T) {
	pub := &MockPublisher{trimErr: errors.New("no keys")}

	n, err := PublishRecords(context.Background(), pub, "run", []scraper.ResultRecord{{URL: "u1"}})
	assert.Error(t, err)
	assert.Equal(t, 1, n)
}
