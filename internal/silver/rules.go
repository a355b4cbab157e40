// Package silver implements the validation and quarantine engine: ordered
// column-level rules over a bronze relation, structured issue records for
// every failure, and an append-only load of the surviving rows.
package silver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fleetlake/fleetlake/internal/relation"
	"github.com/fleetlake/fleetlake/internal/schema"
)

// IssueType enumerates the DQ issue categories written to the issue log.
type IssueType string

const (
	IssueMissingID      IssueType = "missing_id"
	IssueInvalidEmail   IssueType = "invalid_email"
	IssueInvalidPhone   IssueType = "invalid_phone"
	IssueMissingNumeric IssueType = "missing_numeric"
	IssueInvalidDate    IssueType = "invalid_date"
)

// Policy is what a rule does with a violating row.
type Policy int

const (
	// PolicyReject quarantines the row: it is recorded and removed.
	PolicyReject Policy = iota
	// PolicyCoerceAndFlag records the issue but keeps the row, replacing the
	// offending value with a default.
	PolicyCoerceAndFlag
)

// policyFor is the explicit per-rule quarantine policy. Numeric completeness
// is deliberately the only coercing rule: a null quantity becomes zero and is
// flagged, while every other violation removes the row.
var policyFor = map[IssueType]Policy{
	IssueMissingID:      PolicyReject,
	IssueInvalidEmail:   PolicyReject,
	IssueInvalidPhone:   PolicyReject,
	IssueMissingNumeric: PolicyCoerceAndFlag,
	IssueInvalidDate:    PolicyReject,
}

var (
	emailRe = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)
	phoneRe = regexp.MustCompile(`^\d{10,15}$`)
)

// RuleError reports a rule that cannot be evaluated against the relation's
// schema. This is a configuration error and is fatal to the run, unlike data
// violations, which are never errors.
type RuleError struct {
	Entity string
	Rule   string
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("validation rule %s cannot be evaluated for %s: %s", e.Rule, e.Entity, e.Reason)
}

// flag is an issue before it is stamped with the table name and batch time.
type flag struct {
	rowNumber int
	column    string
	issueType IssueType
}

// clean applies the ordered rule set to the relation and returns the
// surviving rows plus every recorded violation.
//
// Rules compose by progressive filtering: each rule scans only the rows that
// survived the rules before it, so a row can accumulate issues from several
// rules until a rejecting rule removes it. Issue row numbers always refer to
// the row's original source position, which stays stable as rows are
// removed.
func clean(rel relation.Relation) ([]relation.Row, []flag, error) {
	ent := rel.Entity
	var flags []flag

	// Rule 1: trim all text cells. Always applied, never recorded.
	rows := make([]relation.Row, len(rel.Rows))
	for i, row := range rel.Rows {
		cells := make([]relation.Value, len(row.Cells))
		copy(cells, row.Cells)
		for j, c := range cells {
			if c.Kind == relation.KindText {
				cells[j] = relation.NewText(strings.TrimSpace(c.Text))
			}
		}
		rows[i] = relation.Row{SourceRow: row.SourceRow, Cells: cells}
	}

	// Rule 2: identity columns must be present. One pass per _id column, so
	// a row missing two identifiers is recorded once and removed at the
	// first offending column.
	for j, col := range ent.Columns {
		if !col.IsKey() {
			continue
		}
		kept := rows[:0]
		for _, row := range rows {
			if cellMissing(row.Cells[j]) {
				flags = append(flags, flag{row.SourceRow, col.Name, IssueMissingID})
				continue
			}
			kept = append(kept, row)
		}
		rows = kept
	}

	// Rule 3: email format.
	if j := roleIndex(ent, schema.RoleEmail); j >= 0 {
		kept := rows[:0]
		for _, row := range rows {
			if !textMatches(row.Cells[j], emailRe) {
				flags = append(flags, flag{row.SourceRow, ent.Columns[j].Name, IssueInvalidEmail})
				continue
			}
			kept = append(kept, row)
		}
		rows = kept
	}

	// Rule 4: phone format.
	if j := roleIndex(ent, schema.RolePhone); j >= 0 {
		kept := rows[:0]
		for _, row := range rows {
			if !textMatches(row.Cells[j], phoneRe) {
				flags = append(flags, flag{row.SourceRow, ent.Columns[j].Name, IssueInvalidPhone})
				continue
			}
			kept = append(kept, row)
		}
		rows = kept
	}

	// Rule 5: numeric completeness. Coerce-and-flag: nulls become zero and
	// the row survives.
	for j, col := range ent.Columns {
		if col.Type != schema.Integer && col.Type != schema.Numeric {
			continue
		}
		for i, row := range rows {
			if !row.Cells[j].IsNull() {
				continue
			}
			flags = append(flags, flag{row.SourceRow, col.Name, IssueMissingNumeric})
			if col.Type == schema.Integer {
				rows[i].Cells[j] = relation.NewInt(0)
			} else {
				rows[i].Cells[j] = relation.NewFloat(0)
			}
		}
	}

	// Rule 6: date validity. Date-role columns must hold a real timestamp.
	for j, col := range ent.Columns {
		if col.Role != schema.RoleDate {
			continue
		}
		if col.Type != schema.Timestamp {
			return nil, nil, &RuleError{Entity: ent.Name, Rule: string(IssueInvalidDate),
				Reason: fmt.Sprintf("column %q is not a timestamp", col.Name)}
		}
		kept := rows[:0]
		for _, row := range rows {
			if row.Cells[j].Kind != relation.KindTime {
				flags = append(flags, flag{row.SourceRow, col.Name, IssueInvalidDate})
				continue
			}
			kept = append(kept, row)
		}
		rows = kept
	}

	return rows, flags, nil
}

// cellMissing reports a null or empty-text cell.
func cellMissing(v relation.Value) bool {
	return v.IsNull() || (v.Kind == relation.KindText && v.Text == "")
}

// textMatches reports whether a cell holds text matching the pattern.
// Null and non-text cells never match, so they fail format rules.
func textMatches(v relation.Value, re *regexp.Regexp) bool {
	return v.Kind == relation.KindText && re.MatchString(v.Text)
}

// roleIndex returns the position of the first column with the role, or -1.
func roleIndex(ent schema.Entity, role schema.ColumnRole) int {
	for j, c := range ent.Columns {
		if c.Role == role {
			return j
		}
	}
	return -1
}
