package scheduler

import (
	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/kernel"
)

// run holds the mutable state of one in-flight execution: the job queue and
// the join buffer living on ec.PendingInputs.
type run struct {
	wf        *domain.Workflow
	ec        *domain.ExecutionContext
	reachable map[string]bool
	queue     []kernel.Job
}

func (r *run) enqueue(nodeName string, items []domain.Item) {
	r.queue = append(r.queue, kernel.Job{
		NodeName: nodeName,
		Items:    items,
		RunIndex: r.ec.NodeRunCounts[nodeName],
	})
}

// deliver routes payload along conn, applying join logic at the target when
// conn is an ordinary edge, or bypassing the join buffer entirely when conn
// is a loop back-edge — a loop re-entry is a fresh round for the loop
// controller, not a sibling waiting alongside its original trigger edge, so
// it never participates in the target's join.
func (r *run) deliver(conn domain.Connection, payload domain.Payload) {
	if conn.IsLoopBack() {
		if domain.IsDeadBranch(payload) {
			return
		}
		r.enqueue(conn.TargetNode, domain.Items(payload))
		return
	}

	target := conn.TargetNode
	if r.ec.PendingInputs[target] == nil {
		r.ec.PendingInputs[target] = make(map[string]domain.Payload)
	}
	buf := r.ec.PendingInputs[target]
	buf[conn.EdgeKey()] = payload

	expected := r.expectedEdges(target)
	for _, key := range expected {
		if _, ok := buf[key]; !ok {
			return // still waiting on another edge
		}
	}

	allDead := true
	for _, key := range expected {
		if !domain.IsDeadBranch(buf[key]) {
			allDead = false
			break
		}
	}
	delete(r.ec.PendingInputs, target)

	if allDead {
		for _, out := range r.wf.OutgoingConnectionsAnyOutput(target) {
			r.deliver(out, domain.DeadBranch)
		}
		return
	}

	var merged []domain.Item
	for _, key := range expected {
		merged = append(merged, domain.Items(buf[key])...)
	}
	r.enqueue(target, merged)
}

// expectedEdges is the set of connections terminating at target that the
// join waits on: every non-loop-back incoming connection whose source is
// reachable from the run's start node. A source that is never reachable
// would otherwise stall this join forever, since it will never deliver
// either items or DEAD_BRANCH.
func (r *run) expectedEdges(target string) []string {
	var keys []string
	for _, c := range r.wf.IncomingConnections(target) {
		if c.IsLoopBack() {
			continue
		}
		if !r.reachable[c.SourceNode] {
			continue
		}
		keys = append(keys, c.EdgeKey())
	}
	return keys
}
