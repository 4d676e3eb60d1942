package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// nonContentSelectors lists elements removed before extracting text.
const nonContentSelectors = "script, style, noscript"

// Document is the result of extracting one HTML page.
type Document struct {
	// Title is the text of the first <title> element.
	Title string

	// Text is the visible text: every non-blank text node, trimmed, in
	// document order, joined by newlines.
	Text string

	// Links are <a href> targets resolved against the page URL, in
	// document order. Duplicates are kept.
	Links []string
}

// Length returns the text length in characters.
func (d *Document) Length() int {
	return utf8.RuneCountInString(d.Text)
}

// Extract parses an HTML page and returns its visible text and links.
// pageURL is used to resolve relative links.
func Extract(pageURL string, body []byte) (*Document, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc.Find(nonContentSelectors).Remove()

	result := &Document{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Links: make([]string, 0),
	}

	result.Text = visibleText(doc.Selection)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if link := resolveURL(base, href); link != "" {
			result.Links = append(result.Links, link)
		}
	})

	return result, nil
}

// visibleText joins the trimmed, non-empty text nodes under sel with
// newlines.
func visibleText(sel *goquery.Selection) string {
	parts := make([]string, 0)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range sel.Nodes {
		walk(n)
	}

	return strings.Join(parts, "\n")
}

// resolveURL resolves an href against the page URL.
// It returns "" for empty, fragment-only and non-navigational hrefs.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	return base.ResolveReference(u).String()
}
