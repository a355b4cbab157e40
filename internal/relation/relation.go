// Package relation provides the in-memory table of typed records that flows
// between pipeline stages. All sources produce a Relation, all destinations
// consume one.
package relation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fleetlake/fleetlake/internal/schema"
)

// Kind identifies the runtime type of a cell value.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindInt
	KindFloat
	KindTime
)

// Value is a single typed scalar cell.
type Value struct {
	Kind  Kind
	Text  string
	Int   int64
	Float float64
	Time  time.Time
}

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// NewText returns a text value.
func NewText(s string) Value { return Value{Kind: KindText, Text: s} }

// NewInt returns an integer value.
func NewInt(i int64) Value { return Value{Kind: KindInt, Int: i} }

// NewFloat returns a decimal value.
func NewFloat(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// NewTime returns a timestamp value.
func NewTime(t time.Time) Value { return Value{Kind: KindTime, Time: t} }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Canonical returns a deterministic text encoding of the value. It is used
// for key-tuple comparison and checksum input, so it must be stable across
// runs and across the Go/Postgres boundary.
func (v Value) Canonical() string {
	switch v.Kind {
	case KindNull:
		return "\x00"
	case KindText:
		return v.Text
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindTime:
		return v.Time.UTC().Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// Row is one record of a relation. SourceRow is the 1-based position of the
// record in the original source table, captured before any filtering so that
// quarantine records stay traceable after rows are removed.
type Row struct {
	SourceRow int
	Cells     []Value
}

// Relation is an ordered sequence of rows sharing one entity schema.
type Relation struct {
	Entity schema.Entity
	Rows   []Row
}

// New returns an empty relation for the entity.
func New(e schema.Entity) Relation {
	return Relation{Entity: e}
}

// ColumnIndex returns the position of a declared column, or -1.
func (r Relation) ColumnIndex(name string) int {
	for i, c := range r.Entity.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Len returns the number of rows.
func (r Relation) Len() int { return len(r.Rows) }

// KeyTuple returns the canonical key string for a row over the given key
// column positions. Component values are framed with a unit separator so
// composite keys compare as full tuples, never by concatenation collisions.
func KeyTuple(row Row, keyIdx []int) string {
	parts := make([]string, len(keyIdx))
	for i, idx := range keyIdx {
		parts[i] = row.Cells[idx].Canonical()
	}
	return strings.Join(parts, "\x1f")
}

// KeyIndexes resolves the entity's primary key columns to cell positions.
// Returns an error when a key column is not part of the relation's schema.
func (r Relation) KeyIndexes() ([]int, error) {
	idx := make([]int, len(r.Entity.PrimaryKey))
	for i, name := range r.Entity.PrimaryKey {
		pos := r.ColumnIndex(name)
		if pos < 0 {
			return nil, fmt.Errorf("primary key column %q not in relation %s", name, r.Entity.Name)
		}
		idx[i] = pos
	}
	return idx, nil
}
