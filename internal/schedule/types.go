// Package schedule turns raw timetable tables into the structured record that
// is delivered to the storage endpoint.
package schedule

import "time"

// TimestampLayout is the wall-clock format used for extraction timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// RawTable is a table as detected on a PDF page. Row 0 is the header row.
// An empty string stands for an absent cell. Rows may differ in length.
type RawTable [][]string

// Sentido holds the normalized rows of one surviving table together with its
// 1-based position among all extracted tables.
type Sentido struct {
	Table    int             `json:"tabla"`
	Horarios []NormalizedRow `json:"horarios"`
}

// Record is the full output of one extraction run for a transit line.
type Record struct {
	Line        string    `json:"linea"`
	ExtractedAt string    `json:"fecha_extraccion"`
	Sentidos    []Sentido `json:"sentidos"`
}

// FormatTimestamp renders t with TimestampLayout in local time.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}

// ParseTimestamp parses a timestamp produced by FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, s, time.Local)
}

// RowCount returns the total number of normalized rows across all sentidos.
func (r *Record) RowCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, s := range r.Sentidos {
		n += len(s.Horarios)
	}
	return n
}
