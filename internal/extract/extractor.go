// Package extract finds timetable tables in PDF documents.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"github.com/hyperifyio/goschedule/internal/schedule"
)

// Extractor turns a PDF document into its tables, in page order and then
// top-to-bottom within a page.
type Extractor interface {
	ExtractTables(ctx context.Context, document []byte) ([]schedule.RawTable, error)
}

// ErrNotPDF is returned for input that does not start with a PDF header.
var ErrNotPDF = errors.New("input is not a PDF document")

// PDFExtractor reads the text layer with github.com/ledongthuc/pdf and
// rebuilds tables from glyph positions.
type PDFExtractor struct {
	Layout Layout
}

// NewPDFExtractor returns an extractor using DefaultLayout.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{Layout: DefaultLayout()}
}

func (e *PDFExtractor) ExtractTables(ctx context.Context, document []byte) ([]schedule.RawTable, error) {
	pages, err := readGlyphs(ctx, document)
	if err != nil {
		return nil, err
	}
	logger := zerolog.Ctx(ctx)
	var tables []schedule.RawTable
	for i, glyphs := range pages {
		found := e.Layout.DetectTables(glyphs)
		logger.Debug().Int("page", i+1).Int("glyphs", len(glyphs)).Int("tables", len(found)).Msg("page scanned")
		tables = append(tables, found...)
	}
	return tables, nil
}

// readGlyphs returns the positioned text of every page. The PDF library
// panics on some malformed content streams; those are reported as errors.
func readGlyphs(ctx context.Context, document []byte) (pages [][]Glyph, err error) {
	if !bytes.HasPrefix(bytes.TrimLeft(document, "\x00\t\r\n "), []byte("%PDF")) {
		return nil, ErrNotPDF
	}
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(document), int64(len(document)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	n := r.NumPage()
	pages = make([][]Glyph, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content := p.Content()
		glyphs := make([]Glyph, 0, len(content.Text))
		for _, t := range content.Text {
			glyphs = append(glyphs, Glyph{X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize, S: t.S})
		}
		pages = append(pages, glyphs)
	}
	return pages, nil
}
