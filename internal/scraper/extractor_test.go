package scraper

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func TestExtractAllFields(t *testing.T) {
	extractor := NewExtractor(nil, nil)
	item := WorkItem{Name: "Shop", URL: "https://social.example.com/posts/1"}

	record := extractor.Extract(parse(t, postHTML), item)

	assert.Equal(t, ResultRecord{
		Name:            "Shop",
		URL:             "https://social.example.com/posts/1",
		PostTitle:       "Weekend sale",
		PostDescription: "Everything must go",
		PostDate:        "Monday, 3 June 2019 at 10:15",
		Reactions:       "1.2K",
		Comments:        "345 comments",
		Shares:          "67 shares",
		Views:           "8,901 views",
		OutboundURL:     "https://shop.example.com/sale?ref=fb",
	}, record)
}

func TestExtractEmptyPage(t *testing.T) {
	extractor := NewExtractor(nil, nil)
	item := WorkItem{Name: "B", URL: "u2"}

	record := extractor.Extract(parse(t, "<html><body><p>nothing here</p></body></html>"), item)
	assert.Equal(t, EmptyRecord(item), record)

	// A nil page still yields a record
	record = extractor.Extract(nil, item)
	assert.Equal(t, EmptyRecord(item), record)
}

func TestExtractIsolatesFailingRules(t *testing.T) {
	rules := Rules{
		ColPostTitle: func(*goquery.Document) (string, error) {
			panic("selector blew up")
		},
		ColPostDescription: func(*goquery.Document) (string, error) {
			return "partial", errors.New("malformed")
		},
		ColViews: func(*goquery.Document) (string, error) {
			return "  10 views ", nil
		},
		// A rule must not be able to change the join key
		ColURL: func(*goquery.Document) (string, error) {
			return "https://elsewhere.example.com", nil
		},
	}
	extractor := NewExtractor(rules, nil)
	item := WorkItem{Name: "A", URL: "u1"}

	var record ResultRecord
	assert.NotPanics(t, func() {
		record = extractor.Extract(parse(t, "<html></html>"), item)
	})

	assert.Equal(t, "u1", record.URL)
	assert.Equal(t, "A", record.Name)
	assert.Equal(t, "", record.PostTitle)
	assert.Equal(t, "", record.PostDescription)
	assert.Equal(t, "10 views", record.Views)
}

func TestExtractTrimsValues(t *testing.T) {
	paddedTitle := func(*goquery.Document) (string, error) {
		return "  padded title \n", nil
	}
	extractor := NewExtractor(Rules{
		ColViews:     Views,
		ColPostTitle: paddedTitle,
	}, nil)

	record := extractor.Extract(parse(t, "<span>42 views\n</span>"), WorkItem{Name: "A", URL: "u1"})
	assert.Equal(t, "42 views", record.Views)
	assert.Equal(t, "padded title", record.PostTitle)
}

func TestRecordRowFollowsColumns(t *testing.T) {
	record := ResultRecord{Name: "n", URL: "u", PostTitle: "t", OutboundURL: "o"}
	row := record.Row()
	assert.Len(t, row, len(Columns))

	var rebuilt ResultRecord
	for i, col := range Columns {
		rebuilt.Set(col, row[i])
	}
	assert.Equal(t, record, rebuilt)
}

func TestWorkItemValid(t *testing.T) {
	assert.True(t, WorkItem{Name: "A", URL: "u1"}.Valid())
	assert.False(t, WorkItem{Name: "A"}.Valid())
	assert.False(t, WorkItem{Name: "  ", URL: "u1"}.Valid())
}
