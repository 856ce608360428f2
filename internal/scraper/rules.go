package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	timestampIDRegex = regexp.MustCompile(`js_\d+`)
	reactionsRegex   = regexp.MustCompile(`(?i).*UFI2ReactionsCount.*`)
	sharesRegex      = regexp.MustCompile(`(?i).*UFI2SharesCount.*`)
	commentsRegex    = regexp.MustCompile(`(?i)\scomments\s*$`)
	viewsRegex       = regexp.MustCompile(`(?i)[\d,]+\sviews\n?$`)
	outboundIDRegex  = regexp.MustCompile(`u_0_\d[a-z]`)
)

// DefaultRules returns the rules for the post page markup
func DefaultRules() Rules {
	return Rules{
		ColPostTitle:       MetaContent(`meta[property="og:title"]`),
		ColPostDescription: MetaContent(`meta[name="description"]`),
		ColPostDate:        PostDate,
		ColReactions:       Reactions,
		ColComments:        Comments,
		ColShares:          Shares,
		ColViews:           Views,
		ColOutboundURL:     OutboundURL,
	}
}

// MetaContent reads the content attribute of the first element matching selector
func MetaContent(selector string) FieldRule {
	return func(doc *goquery.Document) (string, error) {
		return attr(doc.Find(selector).First(), "content")
	}
}

// PostDate reads the title of the element wrapping the timestamp span
func PostDate(doc *goquery.Document) (string, error) {
	span := doc.Find("span.timestampContent").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return attrMatches(s, "id", timestampIDRegex)
	}).First()
	if span.Length() == 0 {
		return "", ErrNoMatch
	}
	return attr(span.Parent(), "title")
}

// Reactions reads the count rendered two nodes after the last reactions link opens
func Reactions(doc *goquery.Document) (string, error) {
	link := doc.Find("a[data-testid]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return attrMatches(s, "data-testid", reactionsRegex)
	}).Last()
	if link.Length() == 0 {
		return "", ErrNoMatch
	}

	target := nextNode(nextNode(link.Nodes[0]))
	if target == nil {
		return "", fmt.Errorf("reactions link has no following node: %w", ErrNoMatch)
	}
	return goquery.NewDocumentFromNode(target).Text(), nil
}

// Comments reads the last link whose only text ends in "comments"
func Comments(doc *goquery.Document) (string, error) {
	link := doc.Find("a").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return stringMatches(s, commentsRegex)
	}).Last()
	if link.Length() == 0 {
		return "", ErrNoMatch
	}
	return link.Text(), nil
}

// Shares reads the text of the last shares link
func Shares(doc *goquery.Document) (string, error) {
	link := doc.Find("a[data-testid]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return attrMatches(s, "data-testid", sharesRegex)
	}).Last()
	if link.Length() == 0 {
		return "", ErrNoMatch
	}
	return link.Text(), nil
}

// Views reads the first span whose only text is a view count
func Views(doc *goquery.Document) (string, error) {
	span := doc.Find("span").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return stringMatches(s, viewsRegex)
	}).First()
	if span.Length() == 0 {
		return "", ErrNoMatch
	}
	return span.Text(), nil
}

// OutboundURL decodes the target behind the redirect link of a shared post
func OutboundURL(doc *goquery.Document) (string, error) {
	link := doc.Find(`a[data-lynx-mode="async"]`).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return attrMatches(s, "id", outboundIDRegex)
	}).First()

	href, err := attr(link, "href")
	if err != nil {
		return "", err
	}

	unescaped, err := url.PathUnescape(href)
	if err != nil {
		return "", fmt.Errorf("unescape href: %w", err)
	}

	target, ok := queryValue(unescaped, "u")
	if !ok {
		return "", fmt.Errorf("href has no u parameter: %w", ErrNoMatch)
	}
	return target, nil
}

// queryValue returns the first non-empty value of key in the query of rawURL.
// Pairs are split on '&' only, so a ';' inside a value is kept.
func queryValue(rawURL, key string) (string, bool) {
	_, query, found := strings.Cut(rawURL, "?")
	if !found {
		return "", false
	}
	query, _, _ = strings.Cut(query, "#")

	for _, pair := range strings.Split(query, "&") {
		name, value, _ := strings.Cut(pair, "=")
		if decoded, err := url.QueryUnescape(name); err == nil {
			name = decoded
		}
		if name != key || value == "" {
			continue
		}
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		return value, true
	}
	return "", false
}

func attr(s *goquery.Selection, name string) (string, error) {
	if s.Length() == 0 {
		return "", ErrNoMatch
	}
	value, exists := s.Attr(name)
	if !exists {
		return "", fmt.Errorf("missing %s attribute: %w", name, ErrNoMatch)
	}
	return value, nil
}

func attrMatches(s *goquery.Selection, name string, re *regexp.Regexp) bool {
	value, exists := s.Attr(name)
	return exists && re.MatchString(value)
}

// stringMatches applies re to the element's sole string, the text an element
// holds when its single child is a text node or an element with a sole string.
func stringMatches(s *goquery.Selection, re *regexp.Regexp) bool {
	text, ok := soleString(s.Nodes[0])
	return ok && re.MatchString(text)
}

func soleString(n *html.Node) (string, bool) {
	child := n.FirstChild
	if child == nil || child.NextSibling != nil {
		return "", false
	}
	switch child.Type {
	case html.TextNode:
		return child.Data, true
	case html.ElementNode:
		return soleString(child)
	default:
		return "", false
	}
}

// nextNode returns the node parsed right after n: its first child, else the
// nearest following sibling of n or of one of its ancestors.
func nextNode(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.NextSibling != nil {
			return cur.NextSibling
		}
	}
	return nil
}
