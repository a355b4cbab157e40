package relation

// convert.go builds typed relations from the raw string grids a tabular
// source produces. Coercion here is deliberately lenient: bronze mirrors the
// source, so unparsable values become zero (integers) or null (decimals,
// timestamps) instead of being rejected. Rejection is the silver layer's job.

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"

	"github.com/fleetlake/fleetlake/internal/schema"
)

// CleanCell trims whitespace and strips common spreadsheet artifacts
// (formula prefixes, surrounding quotes) from a raw cell.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}
	return strings.Trim(s, `"'`)
}

// FromStrings converts a raw string grid into a typed relation for the
// entity. Each record must have one cell per declared column, in declared
// order. SourceRow is assigned from the record's position, starting at 1.
func FromStrings(e schema.Entity, records [][]string) (Relation, error) {
	rel := New(e)
	rel.Rows = make([]Row, 0, len(records))

	for i, rec := range records {
		if len(rec) != len(e.Columns) {
			return Relation{}, fmt.Errorf("row %d: got %d cells, schema %s has %d columns",
				i+1, len(rec), e.Name, len(e.Columns))
		}
		row := Row{SourceRow: i + 1, Cells: make([]Value, len(rec))}
		for j, raw := range rec {
			row.Cells[j] = Coerce(e.Columns[j], raw)
		}
		rel.Rows = append(rel.Rows, row)
	}
	return rel, nil
}

// Coerce converts one raw cell according to the column declaration.
func Coerce(col schema.Column, raw string) Value {
	raw = CleanCell(raw)

	switch col.Type {
	case schema.Integer:
		// Capacity-style counts: unparsable or empty collapses to zero.
		n, err := strconv.ParseInt(stripNumericNoise(raw), 10, 64)
		if err != nil {
			if f, ferr := strconv.ParseFloat(stripNumericNoise(raw), 64); ferr == nil {
				return NewInt(int64(f))
			}
			return NewInt(0)
		}
		return NewInt(n)

	case schema.Numeric:
		if raw == "" {
			return Null()
		}
		f, err := strconv.ParseFloat(stripNumericNoise(raw), 64)
		if err != nil {
			return Null()
		}
		return NewFloat(f)

	case schema.Timestamp:
		if raw == "" {
			return Null()
		}
		t, err := dateparse.ParseAny(raw)
		if err != nil {
			return Null()
		}
		return NewTime(t)

	default:
		// Text columns keep empty strings as-is; phone-like values stay
		// textual so leading zeros survive.
		return NewText(raw)
	}
}

// stripNumericNoise removes currency symbols and thousands separators and
// normalizes the accounting negative format "(123)".
func stripNumericNoise(s string) string {
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	for _, sym := range []string{"$", "€", "£", ","} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(s)
	if neg {
		s = "-" + s
	}
	return s
}
