package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/sync/errgroup"

	"github.com/vk/gridci/internal/ctxlog"
	"github.com/vk/gridci/internal/dag"
	"github.com/vk/gridci/internal/matrix"
	"github.com/vk/gridci/internal/secrets"
	"github.com/vk/gridci/internal/trigger"
)

// Run executes the loaded workflow end to end: trigger gating, secret
// resolution, matrix fan-out, and one graph execution per combination.
// A run skipped by its trigger is a successful no-op.
func (a *App) Run(ctx context.Context) error {
	runID := uuid.New().String()
	logger := a.logger.With("run_id", runID)
	ctx = ctxlog.WithLogger(ctx, logger)

	status := a.newStatusServer(a.cfg.StatusPort)
	defer status.close()

	wf := a.model.Workflow
	ev := trigger.Event{Name: a.cfg.Event, Ref: a.cfg.Ref}
	if !trigger.Selects(wf, ev) {
		logger.Info("Workflow not selected by event, nothing to do.",
			"workflow", wf.Name, "event", ev.Name, "ref", ev.Ref)
		a.metrics.ObserveRun(wf.Name, "skipped")
		return nil
	}

	store, err := secrets.Resolve(a.cfg.SecretsFile)
	if err != nil {
		return fmt.Errorf("resolving secrets: %w", err)
	}
	logger.Debug("Secrets resolved.", "count", store.Len())

	combos := matrix.Expand(wf.Strategy)
	logger.Info("🚀 Workflow starting.",
		"workflow", wf.Name,
		"event", ev.Name,
		"combinations", len(combos),
		"max_parallel", wf.MaxParallel())

	g, runCtx := errgroup.WithContext(ctx)
	g.SetLimit(wf.MaxParallel())

	var mu sync.Mutex
	var failures []error

	for _, combo := range combos {
		combo := combo
		g.Go(func() error {
			err := a.runCombination(runCtx, combo, store)
			if err != nil {
				a.metrics.ObserveCombination(wf.Name, "failed")
				wrapped := fmt.Errorf("combination %q: %w", combo.ID(), err)
				if wf.FailFast() {
					// Returning the error cancels runCtx for the others.
					return wrapped
				}
				mu.Lock()
				failures = append(failures, wrapped)
				mu.Unlock()
				return nil
			}
			a.metrics.ObserveCombination(wf.Name, "succeeded")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.metrics.ObserveRun(wf.Name, "failed")
		return err
	}
	if len(failures) > 0 {
		a.metrics.ObserveRun(wf.Name, "failed")
		return errors.Join(failures...)
	}

	a.metrics.ObserveRun(wf.Name, "succeeded")
	logger.Info("✅ Workflow finished successfully.", "workflow", wf.Name)
	return nil
}

// runCombination builds a fresh graph for one matrix combination and runs it.
// Each combination gets its own node set so step state never leaks between
// interpreter versions.
func (a *App) runCombination(ctx context.Context, combo matrix.Combination, store *secrets.Store) error {
	ctx = ctxlog.With(ctx, "combination", combo.ID())
	logger := ctxlog.FromContext(ctx)
	logger.Info("▶️ Combination starting.")

	graph, err := dag.Build(ctx, a.model.Workflow, a.registry)
	if err != nil {
		return fmt.Errorf("building graph: %w", err)
	}

	baseVars := map[string]cty.Value{
		"matrix":  combo.Vars(),
		"env":     stringMapVal(a.model.Workflow.Env),
		"secrets": stringMapVal(store.All()),
	}

	exec := dag.New(graph, a.cfg.WorkerCount, a.registry, a.converter, baseVars, a.metrics)
	if err := exec.Run(ctx); err != nil {
		return err
	}

	logger.Info("✅ Combination finished.")
	return nil
}

func stringMapVal(m map[string]string) cty.Value {
	if len(m) == 0 {
		return cty.EmptyObjectVal
	}
	vals := make(map[string]cty.Value, len(m))
	for k, v := range m {
		vals[k] = cty.StringVal(v)
	}
	return cty.ObjectVal(vals)
}
