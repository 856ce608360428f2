package scraper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/postscraper/logger"
)

// ErrNoMatch is returned by a rule that found nothing to extract
var ErrNoMatch = errors.New("no match")

// FieldRule extracts one field from a rendered page
type FieldRule func(doc *goquery.Document) (string, error)

// Rules maps output columns onto their extraction rule
type Rules map[string]FieldRule

// Extractor applies a fixed set of independent rules to a page
type Extractor struct {
	rules Rules
	log   *logger.Logger
}

// NewExtractor creates an extractor; nil rules selects DefaultRules
func NewExtractor(rules Rules, log *logger.Logger) *Extractor {
	if rules == nil {
		rules = DefaultRules()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{rules: rules, log: log}
}

// Extract builds the record for item. It never fails: a rule that errors or
// panics leaves its field empty and the remaining rules still run.
func (e *Extractor) Extract(doc *goquery.Document, item WorkItem) ResultRecord {
	record := EmptyRecord(item)
	if doc == nil {
		return record
	}

	for _, column := range Columns {
		rule, ok := e.rules[column]
		if !ok || rule == nil {
			continue
		}
		value, err := e.apply(rule, doc)
		if err != nil {
			e.log.Debug().
				Str("url", item.URL).
				Str("field", column).
				Err(err).
				Msg("Field extraction failed")
			continue
		}
		record.Set(column, value)
	}

	// The join key always comes from the work item
	record.Name = item.Name
	record.URL = item.URL
	return record
}

func (e *Extractor) apply(rule FieldRule, doc *goquery.Document) (value string, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = ""
			err = fmt.Errorf("rule panicked: %v", r)
		}
	}()

	value, err = rule(doc)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}
