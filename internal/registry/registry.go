// Package registry is the node-type catalog (spec C2): registration of
// constructors and descriptors, keyed by type name, consulted by the
// validator (structural checks), the kernel (constructing a node instance
// per job) and external collaborators (UI property schema delivery).
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowbridge/engine/internal/domain"
)

// Result is what a node implementation returns: a mapping of output name to
// payload. A nil or DeadBranch payload on an output means "did not fire."
type Result struct {
	Outputs map[string]domain.Payload
}

// Resolver lets a node implementation resolve templates against the
// evaluation context of one specific item in its input batch. The kernel
// resolves a node's whole parameter bag once (against item 0) before
// Execute is called; node types whose contract requires genuine per-item
// binding (If, Switch, Set, HttpRequest) use Resolver directly against
// def.Parameters for the items where it matters.
type Resolver interface {
	// ResolveParams resolves every template in raw against itemIndex's
	// evaluation context.
	ResolveParams(raw map[string]any, itemIndex int) (map[string]any, error)
	// ResolveValue resolves a single templated value (string, or a
	// map/slice containing templated strings) against itemIndex.
	ResolveValue(raw any, itemIndex int) (any, error)
	// ResolveBool evaluates a bare (no `{{ }}`) boolean expression against
	// itemIndex, defaulting to false on any evaluation failure.
	ResolveBool(expr string, itemIndex int) bool
}

// Node is the per-job contract every built-in or custom node implements.
// Implementations are total: errors are returned, never panicked, so the
// kernel's retry/continue-on-fail policy has something to act on.
//
// resolvedParams is def.Parameters with every template already resolved
// against the job's first input item (or an empty item, for triggers);
// items is the node's full, unresolved input batch for this run.
type Node interface {
	Execute(ctx context.Context, ec *domain.ExecutionContext, def *domain.NodeDefinition, resolver Resolver, resolvedParams map[string]any, items []domain.Item) (Result, error)
}

// Constructor builds a fresh Node instance. The kernel constructs a new
// instance for every node-run (never shared across runs), so an instance's
// fields do not survive from one run to the next; durable per-node state
// belongs in ExecutionContext.NodeInternalState instead.
type Constructor func() Node

// InputCardinality replaces the "Infinity input count" pattern with an
// explicit enum: a node's main input is either a fixed list of named inputs,
// or Dynamic (arbitrary incoming connections all feeding "main", e.g. Merge).
type InputCardinality struct {
	Dynamic bool
	Names   []string
}

// StaticInputs declares a fixed list of named inputs.
func StaticInputs(names ...string) InputCardinality {
	return InputCardinality{Names: names}
}

// DynamicInputs declares an arbitrary number of incoming connections on the
// "main" input, the Merge-node shape.
var DynamicInputs = InputCardinality{Dynamic: true, Names: []string{"main"}}

// OutputStrategy is how a descriptor derives its set of output names.
type OutputStrategy int

const (
	// OutputsStatic lists fixed output names (e.g. If's "true"/"false").
	OutputsStatic OutputStrategy = iota
	// OutputsFromCollectionParam derives output names from a list-valued
	// parameter (Switch's rules), optionally adding a fallback output.
	OutputsFromCollectionParam
	// OutputsFixedN derives N positionally-named outputs ("output0".."outputN-1").
	OutputsFixedN
)

// Outputs describes a node type's output set.
type Outputs struct {
	Strategy    OutputStrategy
	Names       []string
	Param       string
	AddFallback bool
	N           int
}

// StaticOutputs declares a fixed output name list.
func StaticOutputs(names ...string) Outputs {
	return Outputs{Strategy: OutputsStatic, Names: names}
}

// FromCollectionParam declares outputs derived from a parameter holding a
// list (e.g. Switch's "rules"), with an optional fallback output appended.
func FromCollectionParam(param string, addFallback bool) Outputs {
	return Outputs{Strategy: OutputsFromCollectionParam, Param: param, AddFallback: addFallback}
}

// FixedOutputs declares N positional outputs.
func FixedOutputs(n int) Outputs {
	return Outputs{Strategy: OutputsFixedN, N: n}
}

// PropertyField is one entry of a node type's UI property schema. It is
// consumed only by external collaborators (the editor/REST layer); the
// execution path never reads it except for RequiredParameters validation.
type PropertyField struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// Descriptor is the static shape of a node type: its cardinalities, its
// output strategy, and its UI property schema.
type Descriptor struct {
	DisplayName string
	IsTrigger   bool
	Inputs      InputCardinality
	Outputs     Outputs
	Properties  []PropertyField
}

// RequiredParameters returns the parameter names the descriptor's property
// schema marks required — used by the validator's missing-required-parameter
// check (e.g. HttpRequest without "url", Code without "code").
func (d Descriptor) RequiredParameters() []string {
	var names []string
	for _, p := range d.Properties {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

type entry struct {
	constructor Constructor
	descriptor  Descriptor
}

// Registry is the catalog of registered node types. It is read-only during
// execution; registration happens once at process start-up.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a node type. Registering the same type twice is an error.
func (r *Registry) Register(nodeType string, constructor Constructor, descriptor Descriptor) error {
	if nodeType == "" {
		return fmt.Errorf("registry: node type must not be empty")
	}
	if constructor == nil {
		return fmt.Errorf("registry: node type %q: constructor must not be nil", nodeType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[nodeType]; exists {
		return fmt.Errorf("registry: node type %q already registered", nodeType)
	}
	r.entries[nodeType] = entry{constructor: constructor, descriptor: descriptor}
	return nil
}

// Has reports whether nodeType is registered.
func (r *Registry) Has(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[nodeType]
	return ok
}

// Get constructs a fresh Node instance for nodeType.
func (r *Registry) Get(nodeType string) (Node, error) {
	r.mu.RLock()
	e, ok := r.entries[nodeType]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.NewUnknownNodeTypeError(nodeType)
	}
	return e.constructor(), nil
}

// Describe returns the descriptor registered for nodeType.
func (r *Registry) Describe(nodeType string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[nodeType]
	return e.descriptor, ok
}

// List returns every registered type name, in no particular order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for t := range r.entries {
		out = append(out, t)
	}
	return out
}

// IsTrigger reports whether nodeType is a trigger type (zero inputs, valid
// entry point of a run). Unknown types are not triggers.
func (r *Registry) IsTrigger(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[nodeType]
	return ok && e.descriptor.IsTrigger
}
