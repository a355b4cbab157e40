package silver

import (
	"context"
	"time"

	"github.com/fleetlake/fleetlake/internal/relation"
	"github.com/fleetlake/fleetlake/internal/schema"
	"github.com/fleetlake/fleetlake/internal/warehouse"
)

// Store is the destination surface the engine needs. *warehouse.Store
// satisfies it.
type Store interface {
	TableExists(ctx context.Context, table string) (bool, error)
	CreateTable(ctx context.Context, table string, ent schema.Entity) error
	ExistingKeys(ctx context.Context, table string, keyCols []string) (map[string]struct{}, error)
	AppendRows(ctx context.Context, table string, ent schema.Entity, rows []relation.Row) (int64, error)
	InsertIssues(ctx context.Context, issues []warehouse.Issue) error
}

// Result reports one validate-and-load run.
type Result struct {
	RowsIn           int
	RowsClean        int
	RowsWritten      int
	RowsDeduplicated int
	IssueCounts      map[IssueType]int
	BatchAt          time.Time
}

// Engine validates bronze relations and loads the clean rows into silver.
type Engine struct {
	store Store
	now   func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// ValidateAndLoad applies the rule set, deduplicates survivors against the
// silver table by primary key, appends what remains, and writes every issue
// recorded during the run under one shared batch timestamp.
//
// Duplicate keys are dropped silently with no issue record: a row already in
// silver is not a quality problem. Issues for rows that were later
// deduplicated away are still written, since the violation was observed in
// this batch. The silver table never receives a row that failed a rejecting
// rule.
func (e *Engine) ValidateAndLoad(ctx context.Context, rel relation.Relation) (Result, error) {
	ent := rel.Entity
	table := ent.SilverTable
	res := Result{RowsIn: rel.Len(), IssueCounts: map[IssueType]int{}}

	keyIdx, err := rel.KeyIndexes()
	if err != nil {
		return res, &RuleError{Entity: ent.Name, Rule: "dedupe", Reason: err.Error()}
	}

	survivors, flags, err := clean(rel)
	if err != nil {
		return res, err
	}
	res.RowsClean = len(survivors)
	res.BatchAt = e.now()
	for _, f := range flags {
		res.IssueCounts[f.issueType]++
	}

	exists, err := e.store.TableExists(ctx, table)
	if err != nil {
		return res, err
	}

	existing := map[string]struct{}{}
	if !exists {
		if err := e.store.CreateTable(ctx, table, ent); err != nil {
			return res, err
		}
	} else {
		existing, err = e.store.ExistingKeys(ctx, table, ent.PrimaryKey)
		if err != nil {
			return res, err
		}
	}

	var toWrite []relation.Row
	for _, row := range survivors {
		if _, dup := existing[relation.KeyTuple(row, keyIdx)]; dup {
			res.RowsDeduplicated++
			continue
		}
		toWrite = append(toWrite, row)
	}

	if len(toWrite) > 0 {
		n, err := e.store.AppendRows(ctx, table, ent, toWrite)
		if err != nil {
			return res, err
		}
		res.RowsWritten = int(n)
	}

	if len(flags) > 0 {
		issues := make([]warehouse.Issue, len(flags))
		for i, f := range flags {
			issues[i] = warehouse.Issue{
				TableName:  table,
				RowNumber:  f.rowNumber,
				ColumnName: f.column,
				IssueType:  string(f.issueType),
				BatchAt:    res.BatchAt,
			}
		}
		if err := e.store.InsertIssues(ctx, issues); err != nil {
			return res, err
		}
	}

	return res, nil
}
