// Package render draws schedule tables into a PDF document.
package render

import (
	"fmt"
	"io"
	"os"

	"github.com/jung-kurt/gofpdf"

	"github.com/hyperifyio/goschedule/internal/schedule"
)

const (
	rowHeight   = 7.0
	titleHeight = 8.0
	tableGapMM  = 14.0
)

// Section is one titled table in a rendered document.
type Section struct {
	Title string
	Table schedule.RawTable
}

// WriteTables renders sections as simple bordered grids on A4 pages. Row 0 of
// each table is drawn in bold as the header. Empty cells are left blank.
func WriteTables(w io.Writer, heading string, sections []Section) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(heading, true)
	pdf.AddPage()

	if heading != "" {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, titleHeight, tr(heading), "", 1, "L", false, 0, "")
		pdf.Ln(tableGapMM)
	}

	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	usable := pageW - left - right

	for i, s := range sections {
		if i > 0 {
			pdf.Ln(tableGapMM)
		}
		if s.Title != "" {
			pdf.SetFont("Helvetica", "B", 12)
			pdf.CellFormat(0, titleHeight, tr(s.Title), "", 1, "L", false, 0, "")
		}
		cols := width(s.Table)
		if cols == 0 {
			continue
		}
		colW := usable / float64(cols)
		for r, row := range s.Table {
			style := ""
			if r == 0 {
				style = "B"
			}
			pdf.SetFont("Helvetica", style, 10)
			for c := 0; c < cols; c++ {
				text := ""
				if c < len(row) {
					text = row[c]
				}
				pdf.CellFormat(colW, rowHeight, tr(text), "1", 0, "L", false, 0, "")
			}
			pdf.Ln(rowHeight)
		}
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// WriteRecord renders every sentido of rec as a table whose header is the
// label order of its first row.
func WriteRecord(w io.Writer, rec *schedule.Record) error {
	if rec == nil {
		return fmt.Errorf("render pdf: nil record")
	}
	sections := make([]Section, 0, len(rec.Sentidos))
	for _, s := range rec.Sentidos {
		sections = append(sections, Section{
			Title: fmt.Sprintf("Tabla %d", s.Table),
			Table: tableOf(s.Horarios),
		})
	}
	heading := fmt.Sprintf("%s (%s)", rec.Line, rec.ExtractedAt)
	return WriteTables(w, heading, sections)
}

// WriteRecordFile renders rec into the file at path.
func WriteRecordFile(path string, rec *schedule.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteRecord(f, rec); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func tableOf(rows []schedule.NormalizedRow) schedule.RawTable {
	if len(rows) == 0 {
		return nil
	}
	header := rows[0].Labels()
	t := schedule.RawTable{header}
	for _, r := range rows {
		line := make([]string, len(header))
		for i, label := range header {
			line[i], _ = r.Get(label)
		}
		t = append(t, line)
	}
	return t
}

func width(t schedule.RawTable) int {
	n := 0
	for _, row := range t {
		if len(row) > n {
			n = len(row)
		}
	}
	return n
}
