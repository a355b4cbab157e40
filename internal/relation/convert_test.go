package relation

import (
	"testing"
	"time"

	"github.com/fleetlake/fleetlake/internal/schema"
)

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain value", "abc", "abc"},
		{"surrounding whitespace", "  abc  ", "abc"},
		{"excel formula quoted", `="00123"`, "00123"},
		{"excel formula bare", "=abc", "abc"},
		{"surrounding quotes", `"abc"`, "abc"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCell(tt.input); got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCoerce_Integer(t *testing.T) {
	col := schema.Column{Name: "capacity_kg", Type: schema.Integer}

	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{"plain integer", "1200", 1200},
		{"thousands separator", "1,200", 1200},
		{"decimal collapses", "1200.5", 1200},
		{"unparsable maps to zero", "n/a", 0},
		{"empty maps to zero", "", 0},
		{"negative accounting", "(300)", -300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Coerce(col, tt.input)
			if got.Kind != KindInt || got.Int != tt.want {
				t.Errorf("Coerce(%q) = %+v, want int %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestCoerce_Numeric(t *testing.T) {
	col := schema.Column{Name: "amount", Type: schema.Numeric}

	if got := Coerce(col, "$1,234.50"); got.Kind != KindFloat || got.Float != 1234.5 {
		t.Errorf("Coerce currency = %+v, want float 1234.5", got)
	}
	if got := Coerce(col, ""); !got.IsNull() {
		t.Errorf("Coerce empty numeric = %+v, want null", got)
	}
	if got := Coerce(col, "twelve"); !got.IsNull() {
		t.Errorf("Coerce unparsable numeric = %+v, want null", got)
	}
}

func TestCoerce_Timestamp(t *testing.T) {
	col := schema.Column{Name: "order_date", Type: schema.Timestamp, Role: schema.RoleDate}

	tests := []struct {
		name     string
		input    string
		wantNull bool
		wantDate string // YYYY-MM-DD when not null
	}{
		{"iso date", "2024-03-15", false, "2024-03-15"},
		{"us slash date", "03/15/2024", false, "2024-03-15"},
		{"datetime", "2024-03-15 10:30:00", false, "2024-03-15"},
		{"unparsable maps to null", "not-a-date", true, ""},
		{"empty maps to null", "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Coerce(col, tt.input)
			if tt.wantNull {
				if !got.IsNull() {
					t.Errorf("Coerce(%q) = %+v, want null", tt.input, got)
				}
				return
			}
			if got.Kind != KindTime {
				t.Fatalf("Coerce(%q) = %+v, want timestamp", tt.input, got)
			}
			if d := got.Time.Format("2006-01-02"); d != tt.wantDate {
				t.Errorf("Coerce(%q) date = %s, want %s", tt.input, d, tt.wantDate)
			}
		})
	}
}

func TestCoerce_TextKeepsLeadingZeros(t *testing.T) {
	col := schema.Column{Name: "phone", Type: schema.Text, Role: schema.RolePhone}

	got := Coerce(col, "0123456789")
	if got.Kind != KindText || got.Text != "0123456789" {
		t.Errorf("Coerce phone = %+v, want text 0123456789", got)
	}
}

func TestFromStrings(t *testing.T) {
	ent, ok := schema.Get("vehicles")
	if !ok {
		t.Fatal("vehicles entity not registered")
	}

	rel, err := FromStrings(ent, [][]string{
		{"V-1", "AB-123", "Volvo FH", "18000"},
		{"V-2", "CD-456", "Scania R", "oops"},
	})
	if err != nil {
		t.Fatalf("FromStrings() error = %v", err)
	}

	if rel.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", rel.Len())
	}
	if rel.Rows[0].SourceRow != 1 || rel.Rows[1].SourceRow != 2 {
		t.Errorf("SourceRow = %d, %d, want 1, 2", rel.Rows[0].SourceRow, rel.Rows[1].SourceRow)
	}
	if got := rel.Rows[0].Cells[3]; got.Int != 18000 {
		t.Errorf("capacity = %+v, want 18000", got)
	}
	if got := rel.Rows[1].Cells[3]; got.Int != 0 {
		t.Errorf("unparsable capacity = %+v, want 0", got)
	}
}

func TestFromStrings_CellCountMismatch(t *testing.T) {
	ent, _ := schema.Get("vehicles")
	if _, err := FromStrings(ent, [][]string{{"V-1", "AB-123"}}); err == nil {
		t.Fatal("FromStrings() expected error for short row")
	}
}

func TestKeyTuple_CompositeKeys(t *testing.T) {
	a := Row{Cells: []Value{NewText("ab"), NewText("c")}}
	b := Row{Cells: []Value{NewText("a"), NewText("bc")}}

	if KeyTuple(a, []int{0, 1}) == KeyTuple(b, []int{0, 1}) {
		t.Error("composite tuples (ab,c) and (a,bc) must not collide")
	}
}

func TestValueCanonical_Stable(t *testing.T) {
	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"null", Null(), "\x00"},
		{"text", NewText("x"), "x"},
		{"int", NewInt(42), "42"},
		{"float", NewFloat(1.5), "1.5"},
		{"time", NewTime(ts), "2024-03-15T10:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Canonical(); got != tt.want {
				t.Errorf("Canonical() = %q, want %q", got, tt.want)
			}
		})
	}
}
