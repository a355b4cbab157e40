// Package sheets extracts entity worksheets from a shared spreadsheet via its
// CSV export endpoint. Authentication and retries live entirely in the HTTP
// client; the extractor itself only turns a worksheet into a typed relation.
package sheets

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/fleetlake/fleetlake/internal/relation"
	"github.com/fleetlake/fleetlake/internal/schema"
)

// ErrSourceUnavailable marks extraction failures: unreachable source, missing
// worksheet, or a worksheet whose header no longer matches the declared
// schema. Fatal to the entity's run; retries beyond the HTTP client's own
// policy belong to the caller's scheduler.
var ErrSourceUnavailable = errors.New("source unavailable")

// Options configures the extractor.
type Options struct {
	// BaseURL is the spreadsheet export root, e.g.
	// https://docs.google.com/spreadsheets/d
	BaseURL string

	// SpreadsheetID identifies the shared workbook.
	SpreadsheetID string

	// Timeout bounds a single export request.
	Timeout time.Duration

	// RetryMax is the number of retries for transient HTTP failures.
	RetryMax int
}

// Client fetches worksheets and converts them to relations.
type Client struct {
	http    *retryablehttp.Client
	baseURL string
	sheetID string
}

// New creates a Client. The underlying HTTP client retries transient
// failures with backoff and is silent unless retries are exhausted.
func New(opts Options) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.HTTPClient.Timeout = opts.Timeout
	rc.Logger = nil

	return &Client{
		http:    rc,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		sheetID: opts.SpreadsheetID,
	}
}

// Extract pulls the entity's worksheet and returns it as a typed relation.
// Cell coercion is lenient per the bronze contract; nothing is rejected here.
func (c *Client) Extract(ctx context.Context, ent schema.Entity) (relation.Relation, error) {
	exportURL := fmt.Sprintf("%s/%s/gviz/tq?tqx=out:csv&sheet=%s",
		c.baseURL, c.sheetID, url.QueryEscape(ent.Worksheet))

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return relation.Relation{}, fmt.Errorf("%w: build request: %v", ErrSourceUnavailable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return relation.Relation{}, fmt.Errorf("%w: fetch worksheet %s: %v", ErrSourceUnavailable, ent.Worksheet, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return relation.Relation{}, fmt.Errorf("%w: worksheet %s: status %d", ErrSourceUnavailable, ent.Worksheet, resp.StatusCode)
	}

	return Parse(ent, resp.Body)
}

// Parse reads a CSV worksheet body into a relation. The first record is the
// header and must contain every declared column; extra columns are ignored
// and declared order wins over worksheet order.
func Parse(ent schema.Entity, body io.Reader) (relation.Relation, error) {
	r := csv.NewReader(body)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return relation.Relation{}, fmt.Errorf("%w: parse worksheet %s: %v", ErrSourceUnavailable, ent.Worksheet, err)
	}
	if len(records) == 0 {
		return relation.Relation{}, fmt.Errorf("%w: worksheet %s is empty", ErrSourceUnavailable, ent.Worksheet)
	}

	idx, err := headerIndex(ent, records[0])
	if err != nil {
		return relation.Relation{}, err
	}

	grid := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		cells := make([]string, len(ent.Columns))
		for j, pos := range idx {
			if pos < len(rec) {
				cells[j] = rec[pos]
			}
		}
		grid = append(grid, cells)
	}

	rel, err := relation.FromStrings(ent, grid)
	if err != nil {
		return relation.Relation{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return rel, nil
}

// headerIndex maps each declared column to its position in the worksheet
// header. Matching is case-insensitive.
func headerIndex(ent schema.Entity, header []string) ([]int, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		byName[strings.ToLower(relation.CleanCell(h))] = i
	}

	idx := make([]int, len(ent.Columns))
	var missing []string
	for j, col := range ent.Columns {
		pos, ok := byName[strings.ToLower(col.Name)]
		if !ok {
			missing = append(missing, col.Name)
			continue
		}
		idx[j] = pos
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: worksheet %s missing columns: %s",
			ErrSourceUnavailable, ent.Worksheet, strings.Join(missing, ", "))
	}
	return idx, nil
}
