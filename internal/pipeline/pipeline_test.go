package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fleetlake/fleetlake/internal/bronze"
	"github.com/fleetlake/fleetlake/internal/relation"
	"github.com/fleetlake/fleetlake/internal/schema"
	"github.com/fleetlake/fleetlake/internal/silver"
	"github.com/fleetlake/fleetlake/internal/warehouse"
)

// fakeSource serves fixed grids per entity, or a per-entity error.
type fakeSource struct {
	grids map[string][][]string
	errs  map[string]error

	calls []string
}

func (s *fakeSource) Extract(_ context.Context, ent schema.Entity) (relation.Relation, error) {
	s.calls = append(s.calls, ent.Name)
	if err := s.errs[ent.Name]; err != nil {
		return relation.Relation{}, err
	}
	return relation.FromStrings(ent, s.grids[ent.Name])
}

// fakeStore is an in-memory destination covering the full pipeline surface.
type fakeStore struct {
	tables map[string][]relation.Row
	ents   map[string]schema.Entity
	audits []warehouse.AuditRecord
	issues []warehouse.Issue
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables: map[string][]relation.Row{},
		ents:   map[string]schema.Entity{},
	}
}

func (f *fakeStore) TableExists(_ context.Context, table string) (bool, error) {
	_, ok := f.tables[table]
	return ok, nil
}

func (f *fakeStore) CreateTable(_ context.Context, table string, ent schema.Entity) error {
	f.tables[table] = nil
	f.ents[table] = ent
	return nil
}

func (f *fakeStore) ExistingKeys(_ context.Context, table string, keyCols []string) (map[string]struct{}, error) {
	ent := f.ents[table]
	rel := relation.Relation{Entity: ent, Rows: f.tables[table]}
	keyIdx, err := rel.KeyIndexes()
	if err != nil {
		return nil, err
	}
	keys := map[string]struct{}{}
	for _, row := range f.tables[table] {
		keys[relation.KeyTuple(row, keyIdx)] = struct{}{}
	}
	return keys, nil
}

func (f *fakeStore) AppendRows(_ context.Context, table string, _ schema.Entity, rows []relation.Row) (int64, error) {
	f.tables[table] = append(f.tables[table], rows...)
	return int64(len(rows)), nil
}

func (f *fakeStore) ReadTable(_ context.Context, table string, ent schema.Entity) (relation.Relation, error) {
	rows, ok := f.tables[table]
	if !ok {
		return relation.Relation{}, warehouse.ErrDestinationUnavailable
	}
	return relation.Relation{Entity: ent, Rows: rows}, nil
}

func (f *fakeStore) InsertAudit(_ context.Context, rec warehouse.AuditRecord) error {
	f.audits = append(f.audits, rec)
	return nil
}

func (f *fakeStore) InsertIssues(_ context.Context, issues []warehouse.Issue) error {
	f.issues = append(f.issues, issues...)
	return nil
}

func customersGrid() [][]string {
	return [][]string{
		{"C-1", "Ada", "ada@example.com", "1234567890", "Oslo"},
		{"C-2", "Grace", "not-an-email", "1234567890", "Bergen"},
		{"C-3", "Linus", "linus@example.com", "1234567890", "Tromsø"},
	}
}

func TestRun_AllStages(t *testing.T) {
	source := &fakeSource{grids: map[string][][]string{"customers": customersGrid()}}
	store := newFakeStore()

	reports, err := NewRunner(source, store).Run(context.Background(), Options{
		Entities: []string{"customers"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}

	rep := reports[0]
	if rep.Extracted != 3 {
		t.Errorf("Extracted = %d, want 3", rep.Extracted)
	}
	if rep.Bronze == nil || rep.Bronze.Status != bronze.StatusFirstBatch || rep.Bronze.RowsWritten != 3 {
		t.Errorf("Bronze = %+v, want first batch of 3", rep.Bronze)
	}
	if rep.Silver == nil || rep.Silver.RowsClean != 2 || rep.Silver.RowsWritten != 2 {
		t.Errorf("Silver = %+v, want 2 clean rows written", rep.Silver)
	}

	// Bronze keeps the raw row; silver holds only the valid ones.
	if got := len(store.tables["bronze_customers"]); got != 3 {
		t.Errorf("bronze rows = %d, want 3", got)
	}
	if got := len(store.tables["silver_customers"]); got != 2 {
		t.Errorf("silver rows = %d, want 2", got)
	}
	if len(store.audits) != 1 || len(store.issues) != 1 {
		t.Errorf("audits=%d issues=%d, want 1/1", len(store.audits), len(store.issues))
	}
}

func TestRun_RerunIsIdempotent(t *testing.T) {
	source := &fakeSource{grids: map[string][][]string{"customers": customersGrid()}}
	store := newFakeStore()
	runner := NewRunner(source, store)
	opts := Options{Entities: []string{"customers"}}

	if _, err := runner.Run(context.Background(), opts); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	reports, err := runner.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	rep := reports[0]
	if rep.Bronze.Status != bronze.StatusNoNewRows {
		t.Errorf("bronze status = %s, want %s", rep.Bronze.Status, bronze.StatusNoNewRows)
	}
	if rep.Silver.RowsWritten != 0 || rep.Silver.RowsDeduplicated != 2 {
		t.Errorf("Silver = %+v, want everything deduplicated", rep.Silver)
	}
	if got := len(store.tables["silver_customers"]); got != 2 {
		t.Errorf("silver rows = %d after rerun, want 2", got)
	}
	if len(store.audits) != 1 {
		t.Errorf("audits = %d after rerun, want 1", len(store.audits))
	}
}

func TestRun_SequentialHaltsOnFirstFailure(t *testing.T) {
	boom := errors.New("worksheet gone")
	source := &fakeSource{
		grids: map[string][][]string{
			"drivers": {{"D-1", "Ada", "1234567890", "LN-1", "active"}},
		},
		errs: map[string]error{"customers": boom},
	}
	store := newFakeStore()

	reports, err := NewRunner(source, store).Run(context.Background(), Options{
		Entities: []string{"drivers", "customers", "vehicles"},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want the extract failure", err)
	}

	if len(reports) != 2 {
		t.Fatalf("reports = %d, want 2 (halt after the failing entity)", len(reports))
	}
	if reports[0].Err != nil || reports[1].Err == nil {
		t.Errorf("reports[0].Err=%v reports[1].Err=%v", reports[0].Err, reports[1].Err)
	}
	for _, name := range source.calls {
		if name == "vehicles" {
			t.Error("vehicles must not run after the halt")
		}
	}
}

func TestRun_ParallelRunsEveryEntity(t *testing.T) {
	source := &fakeSource{grids: map[string][][]string{
		"customers": customersGrid(),
		"drivers":   {{"D-1", "Ada", "1234567890", "LN-1", "active"}},
	}}
	store := newFakeStore()

	reports, err := NewRunner(source, store).Run(context.Background(), Options{
		Entities: []string{"customers", "drivers"},
		Workers:  2,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, rep := range reports {
		if rep.Bronze == nil || rep.Silver == nil {
			t.Errorf("entity %s missing stage results: %+v", rep.Entity, rep)
		}
	}
}

func TestRun_SilverOnlyReadsBronze(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{grids: map[string][][]string{"customers": customersGrid()}}
	runner := NewRunner(source, store)

	if _, err := runner.Run(context.Background(), Options{
		Stage:    StageBronze,
		Entities: []string{"customers"},
	}); err != nil {
		t.Fatalf("bronze Run() error = %v", err)
	}
	if len(store.tables["silver_customers"]) != 0 {
		t.Fatal("bronze stage must not touch silver")
	}

	source.errs = map[string]error{"customers": errors.New("must not extract")}
	reports, err := runner.Run(context.Background(), Options{
		Stage:    StageSilver,
		Entities: []string{"customers"},
	})
	if err != nil {
		t.Fatalf("silver Run() error = %v", err)
	}
	if reports[0].Extracted != 0 {
		t.Error("silver stage must not extract from the source")
	}
	if reports[0].Silver == nil || reports[0].Silver.RowsWritten != 2 {
		t.Errorf("Silver = %+v, want 2 rows written from bronze", reports[0].Silver)
	}
}

func TestRun_SilverWithoutBronzeTable(t *testing.T) {
	source := &fakeSource{}
	store := newFakeStore()

	_, err := NewRunner(source, store).Run(context.Background(), Options{
		Stage:    StageSilver,
		Entities: []string{"customers"},
	})
	if !errors.Is(err, warehouse.ErrDestinationUnavailable) {
		t.Fatalf("Run() error = %v, want ErrDestinationUnavailable", err)
	}
}

func TestRun_UnknownEntity(t *testing.T) {
	_, err := NewRunner(&fakeSource{}, newFakeStore()).Run(context.Background(), Options{
		Entities: []string{"invoices"},
	})
	if err == nil || !strings.Contains(err.Error(), "invoices") {
		t.Fatalf("Run() error = %v, want unknown entity", err)
	}
}

func TestQuarantineBreakdown(t *testing.T) {
	tests := []struct {
		name string
		rep  EntityReport
		want string
	}{
		{"no silver result", EntityReport{}, "-"},
		{"no issues", EntityReport{Silver: &silver.Result{}}, "-"},
		{
			"sorted pairs",
			EntityReport{Silver: &silver.Result{IssueCounts: map[silver.IssueType]int{
				silver.IssueInvalidEmail: 2,
				silver.IssueInvalidDate:  1,
			}}},
			"invalid_date=1 invalid_email=2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rep.QuarantineBreakdown(); got != tt.want {
				t.Errorf("QuarantineBreakdown() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderReports(t *testing.T) {
	var buf bytes.Buffer
	RenderReports(&buf, []EntityReport{
		{
			Entity:    "customers",
			Extracted: 3,
			Bronze:    &bronze.LoadResult{Status: bronze.StatusFirstBatch, RowsWritten: 3},
			Silver:    &silver.Result{RowsClean: 2, RowsWritten: 2},
		},
		{Entity: "drivers", Err: errors.New("source unreachable")},
	})

	out := buf.String()
	for _, want := range []string{"customers", "first_batch", "drivers", "source unreachable"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered table missing %q:\n%s", want, out)
		}
	}
}
