package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Output column names, in spreadsheet order
const (
	ColName            = "name"
	ColURL             = "url"
	ColPostTitle       = "post_title"
	ColPostDescription = "post_description"
	ColPostDate        = "post_date"
	ColReactions       = "no_of_reactions"
	ColComments        = "no_of_comments"
	ColShares          = "no_of_shares"
	ColViews           = "no_of_views"
	ColOutboundURL     = "outbound_url"
)

// Columns lists the output columns
var Columns = []string{
	ColName,
	ColURL,
	ColPostTitle,
	ColPostDescription,
	ColPostDate,
	ColReactions,
	ColComments,
	ColShares,
	ColViews,
	ColOutboundURL,
}

// WorkItem is one url to fetch
type WorkItem struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Valid reports whether both required fields are present
func (w WorkItem) Valid() bool {
	return strings.TrimSpace(w.Name) != "" && strings.TrimSpace(w.URL) != ""
}

// ResultRecord holds the fields extracted for one WorkItem
type ResultRecord struct {
	Name            string `json:"name"`
	URL             string `json:"url"`
	PostTitle       string `json:"post_title"`
	PostDescription string `json:"post_description"`
	PostDate        string `json:"post_date"`
	Reactions       string `json:"no_of_reactions"`
	Comments        string `json:"no_of_comments"`
	Shares          string `json:"no_of_shares"`
	Views           string `json:"no_of_views"`
	OutboundURL     string `json:"outbound_url"`
}

// EmptyRecord returns a record carrying only the item's name and url
func EmptyRecord(item WorkItem) ResultRecord {
	return ResultRecord{Name: item.Name, URL: item.URL}
}

// Row returns the record's values in Columns order
func (r ResultRecord) Row() []string {
	return []string{
		r.Name,
		r.URL,
		r.PostTitle,
		r.PostDescription,
		r.PostDate,
		r.Reactions,
		r.Comments,
		r.Shares,
		r.Views,
		r.OutboundURL,
	}
}

// Set assigns a value by column name; unknown columns are ignored
func (r *ResultRecord) Set(column, value string) {
	switch column {
	case ColName:
		r.Name = value
	case ColURL:
		r.URL = value
	case ColPostTitle:
		r.PostTitle = value
	case ColPostDescription:
		r.PostDescription = value
	case ColPostDate:
		r.PostDate = value
	case ColReactions:
		r.Reactions = value
	case ColComments:
		r.Comments = value
	case ColShares:
		r.Shares = value
	case ColViews:
		r.Views = value
	case ColOutboundURL:
		r.OutboundURL = value
	}
}

// Renderer turns a url into rendered markup once the page is ready
type Renderer interface {
	Render(ctx context.Context, url string, timeout time.Duration) (string, error)
}

// Cleanup mutates a freshly parsed page before extraction
type Cleanup func(doc *goquery.Document)

// RemoveSelector returns a cleanup step that drops every match of selector
func RemoveSelector(selector string) Cleanup {
	return func(doc *goquery.Document) {
		doc.Find(selector).Remove()
	}
}
