package warehouse

// logs.go writes the two append-only pipeline log tables: one batch audit
// record per bronze load, and one DQ issue record per validation failure.

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// AuditTable and IssueTable are created by the embedded migrations.
const (
	AuditTable = "etl_log_bronze"
	IssueTable = "dq_log_silver"
)

// AuditRecord is the per-batch metadata written after every bronze append.
// Checksum covers exactly the rows written in the batch, not the full input.
type AuditRecord struct {
	TableName string
	BatchAt   time.Time
	RowCount  int
	Checksum  int64
}

// Issue is one structured data-quality failure: a single (row, column, rule)
// violation. RowNumber is the row's stable position in the original source.
type Issue struct {
	TableName  string
	RowNumber  int
	ColumnName string
	IssueType  string
	BatchAt    time.Time
}

// InsertAudit appends one audit record.
func (s *Store) InsertAudit(ctx context.Context, rec AuditRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO etl_log_bronze (table_name, batch_timestamp, row_count, checksum)
		 VALUES ($1, $2, $3, $4)`,
		rec.TableName, rec.BatchAt, rec.RowCount, rec.Checksum)
	if err != nil {
		return fmt.Errorf("%w: insert audit record for %s: %v", ErrDestinationUnavailable, rec.TableName, err)
	}
	return nil
}

// InsertIssues appends a run's DQ issue records in one COPY.
func (s *Store) InsertIssues(ctx context.Context, issues []Issue) error {
	if len(issues) == 0 {
		return nil
	}

	src := pgx.CopyFromSlice(len(issues), func(i int) ([]any, error) {
		is := issues[i]
		return []any{is.TableName, is.RowNumber, is.ColumnName, is.IssueType, is.BatchAt}, nil
	})

	_, err := s.db.CopyFrom(ctx, pgx.Identifier{IssueTable},
		[]string{"table_name", "row_number", "column_name", "issue_type", "batch_timestamp"}, src)
	if err != nil {
		return fmt.Errorf("%w: insert %d issues: %v", ErrDestinationUnavailable, len(issues), err)
	}
	return nil
}
