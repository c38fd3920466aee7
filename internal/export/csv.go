// Package export writes collected provider records as delimited text and summarizes runs.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/npidb-scraper/internal/types"
)

// Column names of the exported file, in order.
const (
	ColumnNPI       = "NPI"
	ColumnName      = "Provider Name"
	ColumnAddress   = "Address"
	ColumnPhone     = "Phone"
	ColumnFax       = "Fax"
	ColumnSpecialty = "Specialty"
	ColumnState     = "State"
)

// Columns returns the header for a mode. Basic runs read only the listing row,
// which carries no fax number, so they keep the six-column listing-only layout
// (NPI, Provider Name, Address, Phone, Specialty, State) instead of an always-empty Fax column.
func Columns(mode types.Mode) []string {
	if mode == types.ModeEnriched {
		return []string{ColumnNPI, ColumnName, ColumnAddress, ColumnPhone, ColumnFax, ColumnSpecialty, ColumnState}
	}
	return []string{ColumnNPI, ColumnName, ColumnAddress, ColumnPhone, ColumnSpecialty, ColumnState}
}

// WriteCSV writes a header row followed by one row per record. There is no index column.
func WriteCSV(w io.Writer, records []types.ProviderRecord, mode types.Mode) error {
	cw := csv.NewWriter(w)
	columns := Columns(mode)

	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	row := make([]string, len(columns))
	for i, rec := range records {
		for j, col := range columns {
			row[j] = field(rec, col)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

func field(rec types.ProviderRecord, column string) string {
	switch column {
	case ColumnNPI:
		return rec.NPI
	case ColumnName:
		return rec.Name
	case ColumnAddress:
		return rec.Address
	case ColumnPhone:
		return rec.Phone
	case ColumnFax:
		return rec.Fax
	case ColumnSpecialty:
		return rec.Specialty
	case ColumnState:
		return rec.State
	default:
		return ""
	}
}

// FileName suggests a download name such as "npidb_pediatrics_ca.csv".
func FileName(req types.RunRequest) string {
	label := strings.ToLower(strings.TrimSpace(req.SpecialtyLabel))
	if label == "" {
		label = req.SpecialtySlug
	}
	label = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, label)
	label = strings.Trim(collapseUnderscores(label), "_")
	return fmt.Sprintf("npidb_%s_%s.csv", label, req.StateSlug)
}

func collapseUnderscores(s string) string {
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return s
}
