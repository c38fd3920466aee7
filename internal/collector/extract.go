package collector

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/npidb-scraper/internal/fetch"
	"github.com/jonathan/npidb-scraper/internal/types"
)

const (
	// listingRowSelector locates provider rows on a listing page.
	listingRowSelector = "table.tablesorter tbody tr"
	// detailRowSelector locates label/value rows on a provider detail page.
	detailRowSelector = "table.table tr"

	basicMinColumns    = 5
	enrichedMinColumns = 4
)

// ListingRow is one <tr> of a listing table, reduced to cell text.
type ListingRow struct {
	Cells []string
	// Link is the href of the first anchor in the name column, if any.
	Link string
}

// Row is a listing row accepted by an extractor.
type Row struct {
	Record    types.ProviderRecord
	DetailURL string
}

// Extractor turns a listing row into a record. It reports false when the row
// does not have the shape the mode requires.
type Extractor func(row ListingRow, req types.RunRequest) (Row, bool)

// ExtractorFor returns the extraction rule for a mode.
func ExtractorFor(mode types.Mode) Extractor {
	if mode == types.ModeEnriched {
		return ExtractEnriched
	}
	return ExtractBasic
}

// MinColumns returns how many cells a row needs under a mode.
func MinColumns(mode types.Mode) int {
	if mode == types.ModeEnriched {
		return enrichedMinColumns
	}
	return basicMinColumns
}

// ExtractBasic reads NPI, name, address and phone positionally. Specialty and state
// come from the run so every row carries the user's selection verbatim.
func ExtractBasic(row ListingRow, req types.RunRequest) (Row, bool) {
	if len(row.Cells) < basicMinColumns {
		return Row{}, false
	}
	rec := types.ProviderRecord{
		NPI:       row.Cells[0],
		Name:      row.Cells[1],
		Address:   row.Cells[2],
		Phone:     row.Cells[3],
		Specialty: req.SpecialtyLabel,
		State:     req.StateCode,
	}
	if !rec.Valid() {
		return Row{}, false
	}
	return Row{Record: rec}, true
}

// ExtractEnriched reads NPI, name and address positionally and keeps the profile link
// for the detail fetch. Rows without a profile link are rejected.
func ExtractEnriched(row ListingRow, req types.RunRequest) (Row, bool) {
	if len(row.Cells) < enrichedMinColumns || row.Link == "" {
		return Row{}, false
	}
	rec := types.ProviderRecord{
		NPI:       row.Cells[0],
		Name:      row.Cells[1],
		Address:   row.Cells[2],
		Specialty: req.SpecialtyLabel,
		State:     req.StateCode,
	}
	if !rec.Valid() {
		return Row{}, false
	}
	return Row{Record: rec, DetailURL: req.ResolveURL(row.Link)}, true
}

// ParseListing returns the provider rows of a listing page in document order.
func ParseListing(doc *goquery.Document) []ListingRow {
	var rows []ListingRow
	doc.Find(listingRowSelector).Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		row := ListingRow{Cells: make([]string, 0, tds.Length())}
		tds.Each(func(_ int, td *goquery.Selection) {
			row.Cells = append(row.Cells, fetch.Text(td))
		})
		if href, ok := tds.Eq(1).Find("a").First().Attr("href"); ok {
			row.Link = strings.TrimSpace(href)
		}
		rows = append(rows, row)
	})
	return rows
}

// ParseDetail scans a detail page's field table for phone and fax. Labels are matched
// by substring, so "Phone:" and "Phone Number" both count; a later match overwrites
// an earlier one.
func ParseDetail(doc *goquery.Document) (phone, fax string) {
	doc.Find(detailRowSelector).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 2 {
			return
		}
		label := fetch.Text(cells.Eq(0))
		value := fetch.Text(cells.Eq(1))
		switch {
		case strings.Contains(label, "Phone"):
			phone = value
		case strings.Contains(label, "Fax"):
			fax = value
		}
	})
	return phone, fax
}
