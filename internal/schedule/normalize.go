package schedule

import "strings"

// HeaderSet returns the non-blank cells of the header row in their original
// order. Duplicates are kept.
func HeaderSet(t RawTable) []string {
	if len(t) == 0 {
		return nil
	}
	return nonBlank(t[0])
}

// Normalize pairs every data row of t with the header labels.
//
// Blank cells are discarded from both the header and each data row before
// pairing, and a row is kept only when its remaining cell count equals the
// label count. Pairing is positional after filtering, not by column index, so
// a row whose values sit in different physical columns than the header can
// still be accepted with shifted labels. Existing consumers depend on which
// rows this accepts; do not switch to a column-index join without agreeing on
// the behavior change.
func Normalize(t RawTable) []NormalizedRow {
	if len(t) < 2 {
		return nil
	}
	labels := HeaderSet(t)
	var out []NormalizedRow
	for _, row := range t[1:] {
		cells := nonBlank(row)
		if len(cells) != len(labels) {
			continue
		}
		var nr NormalizedRow
		for i, label := range labels {
			nr.Set(label, cells[i])
		}
		out = append(out, nr)
	}
	return out
}

func nonBlank(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		if strings.TrimSpace(c) == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}
