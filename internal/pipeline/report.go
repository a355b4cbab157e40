package pipeline

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/fleetlake/fleetlake/internal/bronze"
	"github.com/fleetlake/fleetlake/internal/silver"
)

// EntityReport summarizes what one entity's run did: rows extracted, rows
// newly persisted per layer, and the quarantine breakdown by issue type.
type EntityReport struct {
	Entity    string
	Extracted int
	Bronze    *bronze.LoadResult
	Silver    *silver.Result
	Err       error
}

// QuarantineBreakdown renders the issue counts as "type=n" pairs, sorted by
// issue type for stable output.
func (r EntityReport) QuarantineBreakdown() string {
	if r.Silver == nil || len(r.Silver.IssueCounts) == 0 {
		return "-"
	}
	types := make([]string, 0, len(r.Silver.IssueCounts))
	for t := range r.Silver.IssueCounts {
		types = append(types, string(t))
	}
	sort.Strings(types)

	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = fmt.Sprintf("%s=%d", t, r.Silver.IssueCounts[silver.IssueType(t)])
	}
	return strings.Join(parts, " ")
}

// RenderReports writes the per-entity run summary as a terminal table.
func RenderReports(w io.Writer, reports []EntityReport) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Entity", "Extracted", "Bronze", "Bronze Rows", "Silver Clean", "Silver Rows", "Deduped", "Quarantined", "Error"})
	table.SetBorder(false)

	for _, r := range reports {
		row := []string{r.Entity, strconv.Itoa(r.Extracted), "-", "-", "-", "-", "-", r.QuarantineBreakdown(), "-"}
		if r.Bronze != nil {
			row[2] = string(r.Bronze.Status)
			row[3] = strconv.Itoa(r.Bronze.RowsWritten)
		}
		if r.Silver != nil {
			row[4] = strconv.Itoa(r.Silver.RowsClean)
			row[5] = strconv.Itoa(r.Silver.RowsWritten)
			row[6] = strconv.Itoa(r.Silver.RowsDeduplicated)
		}
		if r.Err != nil {
			row[8] = r.Err.Error()
		}
		table.Append(row)
	}
	table.Render()
}
