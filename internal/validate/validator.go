// Package validate implements the pre-execution structural checks (spec C3):
// duplicate names, unknown types, dangling connections, unreachable nodes,
// and cycles not explained by a loop-typed back-edge.
package validate

import (
	"fmt"

	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/registry"
)

// Severity distinguishes a fail-validation Error from an advisory Warning.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue codes, stable identifiers a caller can switch on without parsing Message.
const (
	CodeZeroNodes          = "zero_nodes"
	CodeDuplicateName      = "duplicate_name"
	CodeUnknownType        = "unknown_type"
	CodeDanglingConnection = "dangling_connection"
	CodeSelfReference      = "self_reference"
	CodeMissingParameter   = "missing_parameter"
	CodeTriggerHasIncoming = "trigger_has_incoming"
	CodeUnreachable        = "unreachable"
	CodeCycle              = "cycle"
	CodeMergeTooFewInputs  = "merge_too_few_inputs"
	CodeNoOutgoingEdges    = "no_outgoing_edges"
)

// Issue is a single structural finding.
type Issue struct {
	Severity Severity
	Code     string
	NodeName string
	Message  string
}

// Report is the result of validating a workflow.
type Report struct {
	Valid    bool
	Errors   []Issue
	Warnings []Issue
}

// Validator checks workflows against a node registry.
type Validator struct {
	registry *registry.Registry
}

// New builds a Validator bound to reg.
func New(reg *registry.Registry) *Validator {
	return &Validator{registry: reg}
}

// Validate runs every structural check and returns a Report. Calling it
// twice on the same workflow yields an identical report (it reads, never
// mutates).
func (v *Validator) Validate(wf *domain.Workflow) Report {
	var errs, warns []Issue

	if len(wf.Nodes) == 0 {
		return Report{
			Valid: false,
			Errors: []Issue{{
				Severity: SeverityError,
				Code:     CodeZeroNodes,
				Message:  "workflow must have at least one node",
			}},
		}
	}

	names := make(map[string]bool, len(wf.Nodes))
	for _, n := range wf.Nodes {
		if names[n.Name] {
			errs = append(errs, Issue{
				Severity: SeverityError,
				Code:     CodeDuplicateName,
				NodeName: n.Name,
				Message:  fmt.Sprintf("duplicate node name %q", n.Name),
			})
		}
		names[n.Name] = true
	}

	for _, n := range wf.Nodes {
		if !v.registry.Has(n.Type) {
			errs = append(errs, Issue{
				Severity: SeverityError,
				Code:     CodeUnknownType,
				NodeName: n.Name,
				Message:  fmt.Sprintf("node %q has unknown type %q", n.Name, n.Type),
			})
		}
	}

	for _, c := range wf.Connections {
		if !names[c.SourceNode] {
			errs = append(errs, Issue{
				Severity: SeverityError,
				Code:     CodeDanglingConnection,
				NodeName: c.SourceNode,
				Message:  fmt.Sprintf("connection references missing source node %q", c.SourceNode),
			})
		}
		if !names[c.TargetNode] {
			errs = append(errs, Issue{
				Severity: SeverityError,
				Code:     CodeDanglingConnection,
				NodeName: c.TargetNode,
				Message:  fmt.Sprintf("connection references missing target node %q", c.TargetNode),
			})
		}
		if c.SourceNode == c.TargetNode && !c.IsLoopBack() {
			errs = append(errs, Issue{
				Severity: SeverityError,
				Code:     CodeSelfReference,
				NodeName: c.SourceNode,
				Message:  fmt.Sprintf("node %q has a self-referencing connection on output %q", c.SourceNode, c.SourceOutput),
			})
		}
	}

	for _, n := range wf.Nodes {
		desc, ok := v.registry.Describe(n.Type)
		if !ok {
			continue
		}
		for _, req := range desc.RequiredParameters() {
			if _, present := n.Parameters[req]; !present {
				errs = append(errs, Issue{
					Severity: SeverityError,
					Code:     CodeMissingParameter,
					NodeName: n.Name,
					Message:  fmt.Sprintf("node %q is missing required parameter %q", n.Name, req),
				})
			}
		}
	}

	for _, n := range wf.Nodes {
		if v.registry.IsTrigger(n.Type) && len(wf.IncomingConnections(n.Name)) > 0 {
			warns = append(warns, Issue{
				Severity: SeverityWarning,
				Code:     CodeTriggerHasIncoming,
				NodeName: n.Name,
				Message:  fmt.Sprintf("trigger node %q has incoming connections, which are ignored at runtime", n.Name),
			})
		}
	}

	reachable := bfsReachable(wf, v.registry.IsTrigger)
	for _, n := range wf.Nodes {
		if !reachable[n.Name] {
			warns = append(warns, Issue{
				Severity: SeverityWarning,
				Code:     CodeUnreachable,
				NodeName: n.Name,
				Message:  fmt.Sprintf("node %q is unreachable from any trigger", n.Name),
			})
		}
	}

	for _, ce := range detectCycles(wf) {
		if ce.Conn.IsLoopBack() {
			continue
		}
		warns = append(warns, Issue{
			Severity: SeverityWarning,
			Code:     CodeCycle,
			NodeName: ce.Conn.SourceNode,
			Message:  fmt.Sprintf("cycle detected: %v", ce.Path),
		})
	}

	for _, n := range wf.Nodes {
		if n.Type == domain.NodeTypeMerge && len(wf.IncomingConnections(n.Name)) < 2 {
			warns = append(warns, Issue{
				Severity: SeverityWarning,
				Code:     CodeMergeTooFewInputs,
				NodeName: n.Name,
				Message:  fmt.Sprintf("merge node %q has fewer than two incoming edges", n.Name),
			})
		}
		if (n.Type == domain.NodeTypeIf || n.Type == domain.NodeTypeSwitch) && len(wf.OutgoingConnectionsAnyOutput(n.Name)) == 0 {
			warns = append(warns, Issue{
				Severity: SeverityWarning,
				Code:     CodeNoOutgoingEdges,
				NodeName: n.Name,
				Message:  fmt.Sprintf("node %q has no outgoing connections", n.Name),
			})
		}
	}

	return Report{Valid: len(errs) == 0, Errors: errs, Warnings: warns}
}

func bfsReachable(wf *domain.Workflow, isTrigger func(string) bool) map[string]bool {
	reached := make(map[string]bool)
	queue := make([]string, 0)
	for _, n := range wf.Nodes {
		if isTrigger(n.Type) && !reached[n.Name] {
			reached[n.Name] = true
			queue = append(queue, n.Name)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range wf.OutgoingConnectionsAnyOutput(cur) {
			if !reached[c.TargetNode] {
				reached[c.TargetNode] = true
				queue = append(queue, c.TargetNode)
			}
		}
	}
	return reached
}

type cycleEdge struct {
	Conn domain.Connection
	Path []string
}

// detectCycles runs DFS with a recursion stack and reports one cycleEdge per
// back-edge found, with Path holding the cycle from the re-entry point.
func detectCycles(wf *domain.Workflow) []cycleEdge {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	var path []string
	var cycles []cycleEdge

	var dfs func(name string)
	dfs = func(name string) {
		visited[name] = true
		recStack[name] = true
		path = append(path, name)

		for _, c := range wf.OutgoingConnectionsAnyOutput(name) {
			if !visited[c.TargetNode] {
				dfs(c.TargetNode)
				continue
			}
			if recStack[c.TargetNode] {
				cyclePath := []string{c.TargetNode}
				for i := len(path) - 1; i >= 0; i-- {
					cyclePath = append(cyclePath, path[i])
					if path[i] == c.TargetNode {
						break
					}
				}
				for i, j := 0, len(cyclePath)-1; i < j; i, j = i+1, j-1 {
					cyclePath[i], cyclePath[j] = cyclePath[j], cyclePath[i]
				}
				cycles = append(cycles, cycleEdge{Conn: c, Path: cyclePath})
			}
		}

		path = path[:len(path)-1]
		recStack[name] = false
	}

	for _, n := range wf.Nodes {
		if !visited[n.Name] {
			dfs(n.Name)
		}
	}
	return cycles
}
