// Package warehouse is the Postgres destination layer. It owns table
// creation, append-only writes, key reads for delta computation, and the two
// pipeline log tables. No package-level connection state: callers construct a
// Store around a pool (or transaction) and pass it down.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/fleetlake/fleetlake/internal/relation"
	"github.com/fleetlake/fleetlake/internal/schema"
)

// ErrDestinationUnavailable marks persistence failures: unreachable database,
// DDL conflicts, or failed writes. Fatal to the entity's run.
var ErrDestinationUnavailable = errors.New("destination unavailable")

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error)
}

// Store executes warehouse operations against one database handle.
type Store struct {
	db DBTX
}

// NewStore wraps a database handle.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// TableExists reports whether a table is present in the current schema.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: check table %s: %v", ErrDestinationUnavailable, table, err)
	}
	return exists, nil
}

// CreateTable creates a destination table from the entity's declared schema.
func (s *Store) CreateTable(ctx context.Context, table string, ent schema.Entity) error {
	cols := make([]string, len(ent.Columns))
	for i, c := range ent.Columns {
		cols[i] = fmt.Sprintf("%s %s", pgx.Identifier{c.Name}.Sanitize(), sqlType(c.Type))
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		pgx.Identifier{table}.Sanitize(), strings.Join(cols, ", "))

	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("%w: create table %s: %v", ErrDestinationUnavailable, table, err)
	}
	return nil
}

// ExistingKeys returns the canonical key tuples already present in a table.
// Reads by primary key are the only reads the loaders perform.
func (s *Store) ExistingKeys(ctx context.Context, table string, keyCols []string) (map[string]struct{}, error) {
	quoted := make([]string, len(keyCols))
	for i, c := range keyCols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), pgx.Identifier{table}.Sanitize())

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: read keys from %s: %v", ErrDestinationUnavailable, table, err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("%w: scan keys from %s: %v", ErrDestinationUnavailable, table, err)
		}
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = fromDB(v).Canonical()
		}
		keys[strings.Join(parts, "\x1f")] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read keys from %s: %v", ErrDestinationUnavailable, table, err)
	}
	return keys, nil
}

// AppendRows appends rows to a table using the COPY protocol. The copy runs
// as a single command, so the write is atomic per call.
func (s *Store) AppendRows(ctx context.Context, table string, ent schema.Entity, rows []relation.Row) (int64, error) {
	src := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		out := make([]any, len(rows[i].Cells))
		for j, c := range rows[i].Cells {
			out[j] = toDB(c)
		}
		return out, nil
	})

	n, err := s.db.CopyFrom(ctx, pgx.Identifier{table}, ent.ColumnNames(), src)
	if err != nil {
		return 0, fmt.Errorf("%w: append to %s: %v", ErrDestinationUnavailable, table, err)
	}
	return n, nil
}

// ReadTable reads a whole destination table back as a typed relation.
// SourceRow is assigned from read order, starting at 1.
func (s *Store) ReadTable(ctx context.Context, table string, ent schema.Entity) (relation.Relation, error) {
	quoted := make([]string, len(ent.Columns))
	for i, c := range ent.Columns {
		quoted[i] = pgx.Identifier{c.Name}.Sanitize()
	}
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), pgx.Identifier{table}.Sanitize())

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return relation.Relation{}, fmt.Errorf("%w: read %s: %v", ErrDestinationUnavailable, table, err)
	}
	defer rows.Close()

	rel := relation.New(ent)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return relation.Relation{}, fmt.Errorf("%w: scan %s: %v", ErrDestinationUnavailable, table, err)
		}
		row := relation.Row{SourceRow: len(rel.Rows) + 1, Cells: make([]relation.Value, len(vals))}
		for i, v := range vals {
			row.Cells[i] = fromDB(v)
		}
		rel.Rows = append(rel.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return relation.Relation{}, fmt.Errorf("%w: read %s: %v", ErrDestinationUnavailable, table, err)
	}
	return rel, nil
}

// sqlType maps a declared column type to its Postgres type.
func sqlType(t schema.ColumnType) string {
	switch t {
	case schema.Integer:
		return "bigint"
	case schema.Numeric:
		return "numeric"
	case schema.Timestamp:
		return "timestamptz"
	default:
		return "text"
	}
}

// toDB converts a cell to a driver value.
func toDB(v relation.Value) any {
	switch v.Kind {
	case relation.KindText:
		return v.Text
	case relation.KindInt:
		return v.Int
	case relation.KindFloat:
		return v.Float
	case relation.KindTime:
		return v.Time
	default:
		return nil
	}
}

// fromDB converts a driver value back to a cell.
func fromDB(v any) relation.Value {
	switch val := v.(type) {
	case nil:
		return relation.Null()
	case string:
		return relation.NewText(val)
	case int64:
		return relation.NewInt(val)
	case int32:
		return relation.NewInt(int64(val))
	case float64:
		return relation.NewFloat(val)
	case pgtype.Numeric:
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return relation.Null()
		}
		return relation.NewFloat(f.Float64)
	case time.Time:
		return relation.NewTime(val)
	default:
		return relation.NewText(fmt.Sprint(val))
	}
}
