// Package taxonomy maps human-readable specialty labels to the slugs used in listing URLs.
package taxonomy

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/npidb-scraper/internal/fetch"
)

// linkSelector locates candidate specialty links on the reference page.
const linkSelector = "table tbody tr a"

// Index is an immutable label -> slug mapping. Build one with NewIndex, ParseIndex or
// StaticIndex and pass it to whoever needs to resolve a selection.
type Index struct {
	slugs map[string]string
}

// NewIndex copies entries into a new Index. Empty labels or slugs are ignored.
func NewIndex(entries map[string]string) *Index {
	slugs := make(map[string]string, len(entries))
	for label, slug := range entries {
		label, slug = strings.TrimSpace(label), strings.TrimSpace(slug)
		if label == "" || slug == "" {
			continue
		}
		slugs[label] = slug
	}
	return &Index{slugs: slugs}
}

// Lookup returns the slug for a label.
func (i *Index) Lookup(label string) (string, bool) {
	if i == nil {
		return "", false
	}
	slug, ok := i.slugs[strings.TrimSpace(label)]
	return slug, ok
}

// Labels returns every label in alphabetical order.
func (i *Index) Labels() []string {
	if i == nil {
		return nil
	}
	labels := make([]string, 0, len(i.slugs))
	for label := range i.slugs {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Len returns the number of labels.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.slugs)
}

// ParseIndex extracts the mapping from a taxonomy reference page.
// A link is kept only when its target mentions "taxonomy" and carries an
// underscore-delimited slug as its last path segment. Composite labels such as
// "Allopathic & Osteopathic Physicians - Family Medicine" keep only the trailing name.
// When a label repeats, the last row wins.
func ParseIndex(html string) (*Index, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return &Index{slugs: map[string]string{}}, &ParseError{
			Message: "failed to parse taxonomy HTML",
			Cause:   err,
		}
	}
	return parseDocument(doc), nil
}

func parseDocument(doc *goquery.Document) *Index {
	slugs := make(map[string]string)

	doc.Find(linkSelector).Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists {
			return
		}
		slug, ok := slugFromHref(href)
		if !ok {
			return
		}
		label := labelFromText(fetch.Text(s))
		if label == "" {
			return
		}
		slugs[label] = slug
	})

	return &Index{slugs: slugs}
}

// slugFromHref derives "family_medicine_207q00000x" from
// "/taxonomy/allopathic/family_medicine_207q00000x.html".
func slugFromHref(href string) (string, bool) {
	if !strings.Contains(href, "taxonomy") || !strings.Contains(href, "_") {
		return "", false
	}
	segment := href[strings.LastIndex(href, "/")+1:]
	slug := strings.TrimSuffix(segment, ".html")
	if slug == "" || !strings.Contains(slug, "_") {
		return "", false
	}
	return slug, true
}

func labelFromText(text string) string {
	if idx := strings.LastIndex(text, " - "); idx >= 0 {
		text = text[idx+len(" - "):]
	}
	return strings.TrimSpace(text)
}
