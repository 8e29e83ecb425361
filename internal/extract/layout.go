package extract

import (
	"math"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/hyperifyio/goschedule/internal/schedule"
)

// Glyph is one piece of text positioned on a page, in PDF points with Y
// growing upwards. W may be zero when the font carries no width table.
type Glyph struct {
	X, Y, W  float64
	FontSize float64
	S        string
}

// Run is a cell-sized span of text on one baseline.
type Run struct {
	X    float64
	Text string
}

// Line is a baseline of runs ordered left to right.
type Line struct {
	Y    float64
	Runs []Run
}

// Layout holds the tolerances used to rebuild tables from positioned text.
type Layout struct {
	// LineTolerance groups glyphs whose baselines differ by at most this.
	LineTolerance float64
	// SpaceGap is the horizontal gap above which a space is inserted.
	SpaceGap float64
	// CellGap is the horizontal gap above which a new cell starts.
	CellGap float64
	// TableGap is the vertical gap between lines above which a new table starts.
	TableGap float64
	// ColumnTolerance clusters cell left edges into one column.
	ColumnTolerance float64
	// MinColumns is the number of header cells a table needs.
	MinColumns int
}

// DefaultLayout works for the timetables published as simple grids.
func DefaultLayout() Layout {
	return Layout{
		LineTolerance:   2,
		SpaceGap:        1.5,
		CellGap:         6,
		TableGap:        30,
		ColumnTolerance: 10,
		MinColumns:      2,
	}
}

// Lines groups glyphs into baselines, top of the page first.
func (l Layout) Lines(glyphs []Glyph) []Line {
	if len(glyphs) == 0 {
		return nil
	}
	gs := append([]Glyph(nil), glyphs...)
	sort.SliceStable(gs, func(i, j int) bool { return gs[i].Y > gs[j].Y })

	var groups [][]Glyph
	var cur []Glyph
	var curY float64
	for _, g := range gs {
		if len(cur) > 0 && math.Abs(curY-g.Y) > l.LineTolerance {
			groups = append(groups, cur)
			cur = nil
		}
		if len(cur) == 0 {
			curY = g.Y
		}
		cur = append(cur, g)
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}

	lines := make([]Line, 0, len(groups))
	for _, grp := range groups {
		runs := l.runs(grp)
		if len(runs) == 0 {
			continue
		}
		lines = append(lines, Line{Y: grp[0].Y, Runs: runs})
	}
	return lines
}

func (l Layout) runs(glyphs []Glyph) []Run {
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].X < glyphs[j].X })
	var out []Run
	var b strings.Builder
	var start, end float64
	flush := func() {
		text := strings.TrimSpace(norm.NFC.String(b.String()))
		if text != "" {
			out = append(out, Run{X: start, Text: text})
		}
		b.Reset()
	}
	for i, g := range glyphs {
		if i > 0 {
			gap := g.X - end
			switch {
			case gap > l.CellGap:
				flush()
			case gap > l.SpaceGap:
				b.WriteByte(' ')
			}
		}
		if b.Len() == 0 {
			start = g.X
		}
		b.WriteString(g.S)
		if i == 0 || g.X+g.W > end {
			end = g.X + g.W
		}
	}
	flush()
	return out
}

// Tables splits lines into vertically separated blocks and turns each block
// that has a multi-column header into a RawTable. Single-cell lines above the
// header are treated as captions and dropped.
func (l Layout) Tables(lines []Line) []schedule.RawTable {
	var tables []schedule.RawTable
	for _, block := range l.blocks(lines) {
		for len(block) > 0 && len(block[0].Runs) < l.minColumns() {
			block = block[1:]
		}
		if len(block) < 2 {
			continue
		}
		tables = append(tables, l.grid(block))
	}
	return tables
}

// DetectTables runs Lines and Tables over one page of glyphs.
func (l Layout) DetectTables(glyphs []Glyph) []schedule.RawTable {
	return l.Tables(l.Lines(glyphs))
}

func (l Layout) minColumns() int {
	if l.MinColumns <= 0 {
		return 1
	}
	return l.MinColumns
}

func (l Layout) blocks(lines []Line) [][]Line {
	var out [][]Line
	var cur []Line
	for i, ln := range lines {
		if i > 0 && lines[i-1].Y-ln.Y > l.TableGap {
			out = append(out, cur)
			cur = nil
		}
		cur = append(cur, ln)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

type column struct{ lo, hi float64 }

func (l Layout) grid(block []Line) schedule.RawTable {
	var xs []float64
	for _, ln := range block {
		for _, r := range ln.Runs {
			xs = append(xs, r.X)
		}
	}
	sort.Float64s(xs)
	var cols []column
	for _, x := range xs {
		if n := len(cols); n > 0 && x-cols[n-1].hi <= l.ColumnTolerance {
			cols[n-1].hi = x
			continue
		}
		cols = append(cols, column{lo: x, hi: x})
	}

	table := make(schedule.RawTable, 0, len(block))
	for _, ln := range block {
		row := make([]string, len(cols))
		for _, r := range ln.Runs {
			i := columnOf(cols, r.X)
			if row[i] != "" {
				row[i] += " " + r.Text
				continue
			}
			row[i] = r.Text
		}
		table = append(table, row)
	}
	return table
}

func columnOf(cols []column, x float64) int {
	for i, c := range cols {
		if x >= c.lo && x <= c.hi {
			return i
		}
	}
	return len(cols) - 1
}
