package schedule

import (
	"errors"
	"time"
)

// ErrEmptyExtraction is returned when there are no tables to assemble.
var ErrEmptyExtraction = errors.New("no tables extracted")

// Assemble builds the record for line from the extracted tables. Tables that
// normalize to zero rows are dropped and their index is skipped, so Table
// numbers in the result are not necessarily contiguous.
func Assemble(line string, tables []RawTable, now time.Time) (*Record, error) {
	if len(tables) == 0 {
		return nil, ErrEmptyExtraction
	}
	rec := &Record{
		Line:        line,
		ExtractedAt: FormatTimestamp(now),
		Sentidos:    []Sentido{},
	}
	for i, t := range tables {
		rows := Normalize(t)
		if len(rows) == 0 {
			continue
		}
		rec.Sentidos = append(rec.Sentidos, Sentido{Table: i + 1, Horarios: rows})
	}
	return rec, nil
}
