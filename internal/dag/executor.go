package dag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/gridci/internal/config"
	"github.com/vk/gridci/internal/ctxlog"
	"github.com/vk/gridci/internal/registry"
)

// errSkipped marks nodes that never ran because something upstream failed.
// Skips are symptoms, not causes, so Run reports the upstream error instead.
var errSkipped = errors.New("skipped due to upstream failure")

// StepObserver receives step outcomes. The app backs it with prometheus;
// tests usually leave it nil.
type StepObserver interface {
	ObserveStep(runnerType, status string, seconds float64)
}

// Executor runs a built graph with a bounded worker pool.
type Executor struct {
	Graph      *Graph
	numWorkers int
	registry   *registry.Registry
	converter  config.Converter
	baseVars   map[string]cty.Value
	observer   StepObserver

	wg                sync.WaitGroup
	resourceInstances sync.Map

	cleanupMu    sync.Mutex
	cleanupStack []func()
}

// New creates an executor for a single run of the graph. baseVars carries
// the ambient evaluation variables (matrix, env, secrets); observer may be
// nil.
func New(graph *Graph, workers int, r *registry.Registry, converter config.Converter, baseVars map[string]cty.Value, observer StepObserver) *Executor {
	if workers <= 0 {
		workers = 1
	}
	return &Executor{
		Graph:      graph,
		numWorkers: workers,
		registry:   r,
		converter:  converter,
		baseVars:   baseVars,
		observer:   observer,
	}
}

// Run executes the entire graph concurrently and returns an error if any
// strict node fails. It respects the cancellation signal from the provided
// context.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	defer e.executeCleanupStack(ctx)

	readyChan := make(chan *Node, len(e.Graph.Nodes))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rootNodeCount := 0
	for _, node := range e.Graph.Nodes {
		if node.depCount.Load() == 0 {
			readyChan <- node
			rootNodeCount++
		}
	}
	logger.Debug("Found all root nodes.", "count", rootNodeCount)

	e.wg.Add(len(e.Graph.Nodes))

	logger.Debug("Starting worker pool.", "workers", e.numWorkers)
	for i := 0; i < e.numWorkers; i++ {
		go e.worker(runCtx, readyChan, cancel, i)
	}

	e.wg.Wait()
	close(readyChan)
	logger.Debug("All nodes completed.")

	var failedNodes []string
	var rootCauseError error
	for _, node := range e.Graph.Nodes {
		if node.GetState() == Failed {
			logger.Error("Node failed execution.", "nodeID", node.ID, "error", node.Error)
			if node.Error != nil && !errors.Is(node.Error, errSkipped) && !errors.Is(node.Error, context.Canceled) {
				failedNodes = append(failedNodes, node.ID)
				if rootCauseError == nil {
					rootCauseError = node.Error
				}
			}
		}
	}

	if rootCauseError != nil {
		return fmt.Errorf("execution failed for %s: %w", strings.Join(failedNodes, ", "), rootCauseError)
	}
	return nil
}

// skipDependents recursively marks all downstream nodes as failed and
// releases their WaitGroup slots.
func (e *Executor) skipDependents(ctx context.Context, node *Node) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range node.Dependents {
		dependent.skipOnce.Do(func() {
			logger.Warn("Skipping dependent node due to upstream failure.", "nodeID", dependent.ID, "dependency", node.ID)
			dependent.SetState(Failed)
			dependent.Error = fmt.Errorf("%w of '%s'", errSkipped, node.ID)
			e.wg.Done()
			e.skipDependents(ctx, dependent)
		})
	}
}

// worker is the core processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *Node, cancel context.CancelFunc, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for node := range readyChan {
		workerLogger := logger.With("workerID", workerID, "nodeID", node.ID)

		if ctx.Err() != nil {
			node.skipOnce.Do(func() {
				workerLogger.Warn("Context canceled, skipping node execution.")
				node.SetState(Failed)
				node.Error = ctx.Err()
				e.wg.Done()
				// Dependents still hold WaitGroup slots; drain them too or
				// Run blocks on wg.Wait forever.
				e.skipDependents(ctx, node)
			})
			continue
		}

		workerLogger.Debug("Worker picked up node for execution.")
		node.SetState(Running)
		started := time.Now()

		var err error
		switch node.Type {
		case ResourceNode:
			err = e.executeResourceNode(ctx, node)
		case StepNode:
			err = e.executeStepNode(ctx, node)
		}
		elapsed := time.Since(started)

		if err != nil {
			if node.Type == StepNode && node.StepConfig.ContinueOnError {
				workerLogger.Warn("Step failed, but continue_on_error is set; treating as advisory.", "error", err)
				node.Error = err
				node.AdvisoryFailure = true
				e.observeStep(node, "advisory_failure", elapsed)
			} else {
				workerLogger.Error("Node execution failed.", "error", err)
				node.SetState(Failed)
				node.Error = err
				e.observeStep(node, "failed", elapsed)
				cancel()
				e.skipDependents(ctx, node)
				e.wg.Done()
				continue
			}
		} else {
			e.observeStep(node, "succeeded", elapsed)
		}

		node.SetState(Done)

		for _, dependent := range node.Dependents {
			if dependent.DecrementDepCount() == 0 {
				workerLogger.Debug("Unlocking dependent node.", "dependentID", dependent.ID)
				readyChan <- dependent
			}
		}

		// Destroy a resource as soon as its last step consumer finishes.
		if node.Type == StepNode {
			for _, dep := range node.Deps {
				if dep.Type == ResourceNode {
					if dep.descendantCount.Add(-1) == 0 {
						workerLogger.Debug("Scheduling efficient destruction for resource.", "resourceID", dep.ID)
						go e.destroyResource(ctx, dep)
					}
				}
			}
		}

		e.wg.Done()
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// observeStep reports a step outcome to the observer, if any.
func (e *Executor) observeStep(node *Node, status string, elapsed time.Duration) {
	if e.observer == nil || node.Type != StepNode {
		return
	}
	e.observer.ObserveStep(node.StepConfig.RunnerType, status, elapsed.Seconds())
}

// pushCleanup registers a destroy function to run when the graph finishes.
func (e *Executor) pushCleanup(node *Node, fn func()) {
	node.destroyFn = fn
	e.cleanupMu.Lock()
	defer e.cleanupMu.Unlock()
	e.cleanupStack = append(e.cleanupStack, func() { node.destroyOnce.Do(fn) })
}

// destroyResource tears a resource down early, once.
func (e *Executor) destroyResource(ctx context.Context, node *Node) {
	if node.destroyFn == nil {
		return
	}
	node.destroyOnce.Do(node.destroyFn)
}

// executeCleanupStack destroys any still-live resources in LIFO order.
func (e *Executor) executeCleanupStack(ctx context.Context) {
	e.cleanupMu.Lock()
	stack := e.cleanupStack
	e.cleanupStack = nil
	e.cleanupMu.Unlock()

	for i := len(stack) - 1; i >= 0; i-- {
		stack[i]()
	}
}
