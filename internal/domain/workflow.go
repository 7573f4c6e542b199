package domain

import "time"

// Workflow is a graph definition: a list of nodes and the connections
// between them, plus a settings bag. Immutable during an execution — editing
// a workflow creates a new definition, it never mutates one mid-run.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Active      bool           `json:"active"`
	Nodes       []NodeDefinition `json:"nodes"`
	Connections []Connection   `json:"connections"`
	Settings    map[string]any `json:"settings"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`

	byName map[string]*NodeDefinition
}

// indexed lazily-builds the name lookup, and is idempotent to call.
func (w *Workflow) indexed() map[string]*NodeDefinition {
	if w.byName != nil && len(w.byName) == len(w.Nodes) {
		return w.byName
	}
	idx := make(map[string]*NodeDefinition, len(w.Nodes))
	for i := range w.Nodes {
		idx[w.Nodes[i].Name] = &w.Nodes[i]
	}
	w.byName = idx
	return idx
}

// NodeByName returns the node definition with the given name, or nil.
func (w *Workflow) NodeByName(name string) *NodeDefinition {
	return w.indexed()[name]
}

// OutgoingConnections returns the connections leaving (nodeName, output), in
// declaration order — the order fan-out and tie-breaking rely on.
func (w *Workflow) OutgoingConnections(nodeName, output string) []Connection {
	var out []Connection
	for _, c := range w.Connections {
		if c.SourceNode == nodeName && c.SourceOutput == output {
			out = append(out, c)
		}
	}
	return out
}

// OutgoingConnectionsAnyOutput returns every outgoing connection from
// nodeName regardless of output name, in declaration order.
func (w *Workflow) OutgoingConnectionsAnyOutput(nodeName string) []Connection {
	var out []Connection
	for _, c := range w.Connections {
		if c.SourceNode == nodeName {
			out = append(out, c)
		}
	}
	return out
}

// IncomingConnections returns the connections arriving at nodeName, in
// declaration order.
func (w *Workflow) IncomingConnections(nodeName string) []Connection {
	var in []Connection
	for _, c := range w.Connections {
		if c.TargetNode == nodeName {
			in = append(in, c)
		}
	}
	return in
}

// FindStartNode returns the first node whose type isTrigger accepts, in
// declaration order — the deterministic entry point of a run.
func (w *Workflow) FindStartNode(isTrigger func(nodeType string) bool) *NodeDefinition {
	for i := range w.Nodes {
		if isTrigger(w.Nodes[i].Type) {
			return &w.Nodes[i]
		}
	}
	return nil
}
