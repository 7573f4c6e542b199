// Package scheduler drives one workflow run to completion (spec C6): a FIFO
// job queue, delivery/join logic at every fan-in, DEAD_BRANCH propagation so
// a join never waits on a branch that will never fire, and loop re-entry via
// "loop"-typed back-edges. It is the only caller of internal/kernel.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/kernel"
)

// Observer receives per-node lifecycle notifications as a run progresses.
// internal/recorder.Recorder satisfies this structurally; the scheduler
// never imports the recorder package directly, so Observer is the seam
// spec §6's "Recorder event stream" is wired through from the REST layer.
type Observer interface {
	NodeStarted(executionID, nodeName, nodeType string, timestampUnix int64)
	NodeCompleted(executionID, nodeName, nodeType string, data []domain.Item, durationMs int64)
	NodeFailed(executionID, nodeName, nodeType, message string)
}

// Scheduler runs executions against a shared Kernel. One Scheduler may drive
// many concurrent executions; they share no mutable state beyond the
// cancellation registry.
type Scheduler struct {
	Kernel   *kernel.Kernel
	Observer Observer // optional

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New returns a Scheduler that runs jobs through k.
func New(k *kernel.Kernel) *Scheduler {
	return &Scheduler{Kernel: k, cancels: make(map[string]context.CancelFunc)}
}

// FindStartNode returns the first trigger-typed node in wf, in declaration
// order — the deterministic entry point of a run.
func (s *Scheduler) FindStartNode(wf *domain.Workflow) *domain.NodeDefinition {
	return wf.FindStartNode(s.Kernel.Registry.IsTrigger)
}

// Run executes wf starting at startNodeName with initialItems, to
// completion or cancellation, and returns the finalized ExecutionContext.
func (s *Scheduler) Run(ctx context.Context, wf *domain.Workflow, startNodeName string, initialItems []domain.Item, mode domain.Mode) (*domain.ExecutionContext, error) {
	return s.runWithID(ctx, uuid.NewString(), wf, startNodeName, initialItems, mode)
}

func (s *Scheduler) runWithID(ctx context.Context, executionID string, wf *domain.Workflow, startNodeName string, initialItems []domain.Item, mode domain.Mode) (*domain.ExecutionContext, error) {
	ec := domain.NewExecutionContext(wf, executionID, mode)

	runCtx, cancel := context.WithCancel(ctx)
	s.track(executionID, cancel)
	defer func() {
		s.untrack(executionID)
		cancel()
	}()

	r := &run{
		wf:        wf,
		ec:        ec,
		reachable: reachableFrom(wf, startNodeName),
		queue:     []kernel.Job{{NodeName: startNodeName, Items: initialItems, RunIndex: 0}},
	}

	for len(r.queue) > 0 {
		if runCtx.Err() != nil {
			ec.Cancelled = true
			ec.RecordError("", domain.NewCancellationError(executionID).Error())
			break
		}

		job := r.queue[0]
		r.queue = r.queue[1:]

		nodeType := ""
		if def := wf.NodeByName(job.NodeName); def != nil {
			nodeType = def.Type
		}
		started := time.Now()
		if s.Observer != nil {
			s.Observer.NodeStarted(executionID, job.NodeName, nodeType, started.Unix())
		}

		result, err := s.Kernel.Run(runCtx, ec, job)
		if err != nil {
			if s.Observer != nil {
				s.Observer.NodeFailed(executionID, job.NodeName, nodeType, err.Error())
			}
			if result.Failed {
				for _, conn := range wf.OutgoingConnectionsAnyOutput(job.NodeName) {
					r.deliver(conn, domain.DeadBranch)
				}
			}
			continue
		}

		if s.Observer != nil {
			var data []domain.Item
			if main, ok := result.Outputs["main"]; ok {
				data = domain.Items(main)
			}
			s.Observer.NodeCompleted(executionID, job.NodeName, nodeType, data, time.Since(started).Milliseconds())
		}

		for _, conn := range wf.OutgoingConnectionsAnyOutput(job.NodeName) {
			payload := result.Outputs[conn.SourceOutput]
			if payload == nil {
				payload = domain.DeadBranch
			}
			r.deliver(conn, payload)
		}
	}

	ec.Finalize()
	return ec, nil
}

// RunAsync starts a run in a background goroutine and returns its execution
// id immediately (spec §6: "run(...) → ExecutionContext (async)"). onStart,
// if non-nil, runs synchronously with the freshly minted id before the
// background run is allowed to proceed — this is the hook callers use to
// register the execution with the recorder before any node:start event
// could possibly race ahead of it. onDone, if non-nil, is called with the
// finalized context once the run completes.
func (s *Scheduler) RunAsync(ctx context.Context, wf *domain.Workflow, startNodeName string, initialItems []domain.Item, mode domain.Mode, onStart func(executionID string), onDone func(*domain.ExecutionContext, error)) string {
	executionID := uuid.NewString()
	if onStart != nil {
		onStart(executionID)
	}
	go func() {
		ec, err := s.runWithID(ctx, executionID, wf, startNodeName, initialItems, mode)
		if onDone != nil {
			onDone(ec, err)
		}
	}()
	return executionID
}

// Cancel requests that the execution identified by executionID stop pulling
// new jobs. It reports whether a running execution with that id was found.
func (s *Scheduler) Cancel(executionID string) bool {
	s.mu.Lock()
	cancel, ok := s.cancels[executionID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

func (s *Scheduler) track(executionID string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancels[executionID] = cancel
	s.mu.Unlock()
}

func (s *Scheduler) untrack(executionID string) {
	s.mu.Lock()
	delete(s.cancels, executionID)
	s.mu.Unlock()
}

// reachableFrom computes the set of node names reachable from start via any
// outgoing connection, including start itself. This is the static
// reachability filter expectedEdges uses so a join never waits on an edge
// whose source can never fire at all (the dynamic "already fired" case is
// instead handled by DEAD_BRANCH propagation in deliver).
func reachableFrom(wf *domain.Workflow, start string) map[string]bool {
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, c := range wf.OutgoingConnectionsAnyOutput(n) {
			if !seen[c.TargetNode] {
				seen[c.TargetNode] = true
				queue = append(queue, c.TargetNode)
			}
		}
	}
	return seen
}
