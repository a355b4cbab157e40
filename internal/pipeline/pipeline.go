// Package pipeline orchestrates the per-entity stage sequence:
// extract → bronze incremental load → bronze read-back → silver validation.
// Entities are independent of each other; within one entity the stage order
// is fixed.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fleetlake/fleetlake/internal/bronze"
	"github.com/fleetlake/fleetlake/internal/logging"
	"github.com/fleetlake/fleetlake/internal/relation"
	"github.com/fleetlake/fleetlake/internal/schema"
	"github.com/fleetlake/fleetlake/internal/silver"
)

// Source extracts one entity's table from the external tabular source.
// *sheets.Client satisfies it; tests substitute in-memory fixtures.
type Source interface {
	Extract(ctx context.Context, ent schema.Entity) (relation.Relation, error)
}

// Store is the full destination surface the pipeline needs.
// *warehouse.Store satisfies it.
type Store interface {
	bronze.Store
	silver.Store
	ReadTable(ctx context.Context, table string, ent schema.Entity) (relation.Relation, error)
}

// Stage selects which part of the pipeline runs.
type Stage string

const (
	StageAll    Stage = "all"
	StageBronze Stage = "bronze"
	StageSilver Stage = "silver"
)

// Options control one pipeline run.
type Options struct {
	Stage Stage
	// Entities filters the run; empty means every registered entity.
	Entities []string
	// Workers caps parallel entity runs. At most 1 preserves the strict
	// sequential, halt-on-first-failure behavior.
	Workers int
}

// Runner executes pipeline runs.
type Runner struct {
	source Source
	store  Store
}

// NewRunner creates a Runner.
func NewRunner(source Source, store Store) *Runner {
	return &Runner{source: source, store: store}
}

// Run processes the selected entities and returns one report per entity.
//
// Sequential runs halt at the first failed entity. Parallel runs cancel
// in-flight entities once one fails; because entities never share destination
// tables, a failure in one cannot corrupt another's state.
func (r *Runner) Run(ctx context.Context, opts Options) ([]EntityReport, error) {
	ents, err := selectEntities(opts.Entities)
	if err != nil {
		return nil, err
	}
	if opts.Stage == "" {
		opts.Stage = StageAll
	}

	runID := uuid.New().String()
	ctx = logging.WithRunID(ctx, runID)
	log := logging.FromContext(ctx)
	log.Info("pipeline run starting", "stage", string(opts.Stage), "entities", len(ents))

	reports := make([]EntityReport, len(ents))

	if opts.Workers <= 1 {
		for i, ent := range ents {
			reports[i] = r.runEntity(ctx, ent, opts.Stage)
			if reports[i].Err != nil {
				log.Error("pipeline halted", "entity", ent.Name, "error", reports[i].Err)
				return reports[:i+1], reports[i].Err
			}
		}
		log.Info("pipeline run finished")
		return reports, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, ent := range ents {
		i, ent := i, ent
		g.Go(func() error {
			reports[i] = r.runEntity(gctx, ent, opts.Stage)
			return reports[i].Err
		})
	}
	err = g.Wait()
	if err != nil {
		log.Error("pipeline run failed", "error", err)
	} else {
		log.Info("pipeline run finished")
	}
	return reports, err
}

// runEntity runs the selected stages for one entity. All failures land in
// the report; the caller decides whether to halt.
func (r *Runner) runEntity(ctx context.Context, ent schema.Entity, stage Stage) EntityReport {
	rep := EntityReport{Entity: ent.Name}
	log := logging.FromContext(ctx).With("entity", ent.Name)

	if stage == StageAll || stage == StageBronze {
		rel, err := r.source.Extract(ctx, ent)
		if err != nil {
			rep.Err = err
			return rep
		}
		rep.Extracted = rel.Len()
		log.Info("extracted", "rows", rep.Extracted)

		res, err := bronze.NewLoader(r.store).Load(ctx, rel)
		if err != nil {
			rep.Err = err
			return rep
		}
		rep.Bronze = &res
		log.Info("bronze load", "status", string(res.Status), "rows_written", res.RowsWritten)
	}

	if stage == StageAll || stage == StageSilver {
		rel, err := r.store.ReadTable(ctx, ent.BronzeTable, ent)
		if err != nil {
			rep.Err = fmt.Errorf("read bronze for %s: %w", ent.Name, err)
			return rep
		}

		res, err := silver.NewEngine(r.store).ValidateAndLoad(ctx, rel)
		if err != nil {
			rep.Err = err
			return rep
		}
		rep.Silver = &res
		log.Info("silver load",
			"rows_in", res.RowsIn,
			"rows_clean", res.RowsClean,
			"rows_written", res.RowsWritten,
			"deduplicated", res.RowsDeduplicated,
			"issues", len(res.IssueCounts))
	}

	return rep
}

// selectEntities resolves the entity filter against the registry.
func selectEntities(names []string) ([]schema.Entity, error) {
	if len(names) == 0 {
		return schema.All(), nil
	}
	out := make([]schema.Entity, 0, len(names))
	for _, name := range names {
		ent, ok := schema.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown entity: %s", name)
		}
		out = append(out, ent)
	}
	return out, nil
}
