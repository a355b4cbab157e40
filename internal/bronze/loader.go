// Package bronze implements the incremental loader: append to the raw layer
// only the rows whose primary key is not already persisted, and record one
// batch audit entry per append.
package bronze

import (
	"context"
	"time"

	"github.com/fleetlake/fleetlake/internal/checksum"
	"github.com/fleetlake/fleetlake/internal/relation"
	"github.com/fleetlake/fleetlake/internal/schema"
	"github.com/fleetlake/fleetlake/internal/warehouse"
)

// Store is the destination surface the loader needs. *warehouse.Store
// satisfies it.
type Store interface {
	TableExists(ctx context.Context, table string) (bool, error)
	CreateTable(ctx context.Context, table string, ent schema.Entity) error
	ExistingKeys(ctx context.Context, table string, keyCols []string) (map[string]struct{}, error)
	AppendRows(ctx context.Context, table string, ent schema.Entity, rows []relation.Row) (int64, error)
	InsertAudit(ctx context.Context, rec warehouse.AuditRecord) error
}

// Status is the terminal outcome of a load.
type Status string

const (
	// StatusFirstBatch means the destination was created and fully populated.
	StatusFirstBatch Status = "first_batch"
	// StatusAppended means a non-empty delta was appended.
	StatusAppended Status = "appended"
	// StatusNoNewRows means every input row was already persisted. Not an
	// error: it is the normal outcome of re-running an unchanged source, and
	// neither rows nor an audit record are written.
	StatusNoNewRows Status = "no_new_rows"
)

// LoadResult reports what one load attempt did.
type LoadResult struct {
	Status      Status
	RowsIn      int
	RowsWritten int
	Checksum    int64
	BatchAt     time.Time
}

// Loader appends source relations to their bronze tables.
type Loader struct {
	store Store
	now   func() time.Time
}

// NewLoader creates a Loader.
func NewLoader(store Store) *Loader {
	return &Loader{store: store, now: time.Now}
}

// Load appends the relation's new rows to the entity's bronze table.
//
// The destination is append-only: rows are never updated or deleted here.
// Identity is the primary-key tuple alone, so re-running with an unchanged
// source is a no-op. Rows whose key components are null or duplicated within
// the source are not deduplicated by this scheme; the silver layer flags
// them.
func (l *Loader) Load(ctx context.Context, rel relation.Relation) (LoadResult, error) {
	table := rel.Entity.BronzeTable
	res := LoadResult{RowsIn: rel.Len()}

	exists, err := l.store.TableExists(ctx, table)
	if err != nil {
		return res, err
	}

	var newRows []relation.Row
	if !exists {
		if err := l.store.CreateTable(ctx, table, rel.Entity); err != nil {
			return res, err
		}
		res.Status = StatusFirstBatch
		newRows = rel.Rows
	} else {
		keyIdx, err := rel.KeyIndexes()
		if err != nil {
			return res, err
		}
		existing, err := l.store.ExistingKeys(ctx, table, rel.Entity.PrimaryKey)
		if err != nil {
			return res, err
		}
		for _, row := range rel.Rows {
			if _, dup := existing[relation.KeyTuple(row, keyIdx)]; !dup {
				newRows = append(newRows, row)
			}
		}
		res.Status = StatusAppended
	}

	if len(newRows) == 0 {
		res.Status = StatusNoNewRows
		return res, nil
	}

	n, err := l.store.AppendRows(ctx, table, rel.Entity, newRows)
	if err != nil {
		return res, err
	}
	res.RowsWritten = int(n)
	res.BatchAt = l.now()
	res.Checksum = checksum.Rows(newRows)

	// The audit record covers exactly the appended delta.
	err = l.store.InsertAudit(ctx, warehouse.AuditRecord{
		TableName: table,
		BatchAt:   res.BatchAt,
		RowCount:  res.RowsWritten,
		Checksum:  res.Checksum,
	})
	if err != nil {
		return res, err
	}
	return res, nil
}
