package export

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/jonathan/npidb-scraper/internal/collector"
	"github.com/jonathan/npidb-scraper/internal/taxonomy"
	"github.com/jonathan/npidb-scraper/internal/types"
)

// maxPreviewRows is how many records the preview table shows.
const maxPreviewRows = 5

// Printer renders human-readable run output for the CLI.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// PrintSummary outputs the outcome of a run followed by a short preview of the records.
func (p *Printer) PrintSummary(req types.RunRequest, out *collector.Outcome) {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetTitle("NPIDB RUN %s", req.ID.String()[:8])
	t.AppendRows([]table.Row{
		{"Specialty", fmt.Sprintf("%s (%s)", req.SpecialtyLabel, req.SpecialtySlug)},
		{"State", req.StateCode},
		{"Mode", req.Mode.String()},
		{"Records", fmt.Sprintf("%d / cap %d", len(out.Records), req.Cap)},
		{"Pages", out.Pages},
		{"Skipped rows", out.Skipped},
	})
	if req.Mode == types.ModeEnriched {
		t.AppendRow(table.Row{"Detail failures", out.EnrichFailures})
	}
	t.AppendRow(table.Row{"Stopped", fmt.Sprintf("%s: %s", out.Stop, out.Notice)})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if out.Empty() {
		//nolint:errcheck // writing to the terminal; nothing to recover
		fmt.Fprintln(p.out, "No data found.")
		return
	}
	p.PrintRecords(out.Records, req.Mode, maxPreviewRows)
}

// PrintRecords renders up to limit records as a table. A limit <= 0 prints all of them.
func (p *Printer) PrintRecords(records []types.ProviderRecord, mode types.Mode, limit int) {
	columns := Columns(mode)
	header := make(table.Row, len(columns))
	for i, c := range columns {
		header[i] = c
	}

	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.AppendHeader(header)

	shown := records
	if limit > 0 && len(records) > limit {
		shown = records[:limit]
	}
	for _, rec := range shown {
		row := make(table.Row, len(columns))
		for i, c := range columns {
			row[i] = field(rec, c)
		}
		t.AppendRow(row)
	}
	if len(shown) < len(records) {
		t.AppendFooter(table.Row{fmt.Sprintf("... and %d more", len(records)-len(shown))})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// PrintSpecialties lists every label in the index with its slug, sorted by label.
func (p *Printer) PrintSpecialties(index *taxonomy.Index) {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.AppendHeader(table.Row{"Specialty", "Slug"})
	for _, label := range index.Labels() {
		slug, _ := index.Lookup(label)
		t.AppendRow(table.Row{label, slug})
	}
	t.AppendFooter(table.Row{"Total", index.Len()})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// PrintStates lists the supported state codes and their URL slugs.
func (p *Printer) PrintStates() {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.AppendHeader(table.Row{"Code", "Slug"})
	for _, code := range types.StateCodes() {
		t.AppendRow(table.Row{code, types.States[code]})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
