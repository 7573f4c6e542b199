package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/expression"
	"github.com/flowbridge/engine/internal/kernel"
	"github.com/flowbridge/engine/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The node bodies below are deliberately minimal stand-ins for the real
// built-ins (C7) — just enough of each contract's routing behavior to
// exercise the scheduler's join/fan-out/loop machinery in isolation.

type passthroughNode struct{}

func (passthroughNode) Execute(ctx context.Context, ec *domain.ExecutionContext, def *domain.NodeDefinition, r registry.Resolver, params map[string]any, items []domain.Item) (registry.Result, error) {
	return registry.Result{Outputs: map[string]domain.Payload{"main": domain.ItemsPayload(items)}}, nil
}

type setNode struct{}

func (setNode) Execute(ctx context.Context, ec *domain.ExecutionContext, def *domain.NodeDefinition, r registry.Resolver, params map[string]any, items []domain.Item) (registry.Result, error) {
	values, _ := def.Parameters["values"].(map[string]any)
	out := make([]domain.Item, len(items))
	for i, it := range items {
		js := make(map[string]any, len(it.JSON)+len(values))
		for k, v := range it.JSON {
			js[k] = v
		}
		resolved, err := r.ResolveParams(values, i)
		if err != nil {
			return registry.Result{}, err
		}
		for k, v := range resolved {
			js[k] = v
		}
		out[i] = domain.Item{JSON: js}
	}
	return registry.Result{Outputs: map[string]domain.Payload{"main": domain.ItemsPayload(out)}}, nil
}

type ifNode struct{}

func (ifNode) Execute(ctx context.Context, ec *domain.ExecutionContext, def *domain.NodeDefinition, r registry.Resolver, params map[string]any, items []domain.Item) (registry.Result, error) {
	field, _ := def.Parameters["field"].(string)
	value := def.Parameters["value"]
	var trueItems, falseItems []domain.Item
	for _, it := range items {
		if fmt.Sprintf("%v", it.JSON[field]) == fmt.Sprintf("%v", value) {
			trueItems = append(trueItems, it)
		} else {
			falseItems = append(falseItems, it)
		}
	}
	outputs := map[string]domain.Payload{}
	if len(trueItems) > 0 {
		outputs["true"] = domain.ItemsPayload(trueItems)
	} else {
		outputs["true"] = domain.DeadBranch
	}
	if len(falseItems) > 0 {
		outputs["false"] = domain.ItemsPayload(falseItems)
	} else {
		outputs["false"] = domain.DeadBranch
	}
	return registry.Result{Outputs: outputs}, nil
}

type switchNode struct{}

func (switchNode) Execute(ctx context.Context, ec *domain.ExecutionContext, def *domain.NodeDefinition, r registry.Resolver, params map[string]any, items []domain.Item) (registry.Result, error) {
	rulesRaw, _ := def.Parameters["rules"].([]any)
	fallback, _ := def.Parameters["fallbackOutput"].(string)

	var outputNames []string
	for _, rr := range rulesRaw {
		rule := rr.(map[string]any)
		outputNames = append(outputNames, rule["output"].(string))
	}
	if fallback != "" {
		outputNames = append(outputNames, fallback)
	}

	buckets := make(map[string][]domain.Item, len(outputNames))
	for _, it := range items {
		matched := ""
		for _, rr := range rulesRaw {
			rule := rr.(map[string]any)
			field, _ := rule["field"].(string)
			if fmt.Sprintf("%v", it.JSON[field]) == fmt.Sprintf("%v", rule["value"]) {
				matched = rule["output"].(string)
				break
			}
		}
		if matched == "" {
			matched = fallback
		}
		buckets[matched] = append(buckets[matched], it)
	}

	outputs := make(map[string]domain.Payload, len(outputNames))
	for _, name := range outputNames {
		if its, ok := buckets[name]; ok && len(its) > 0 {
			outputs[name] = domain.ItemsPayload(its)
		} else {
			outputs[name] = domain.DeadBranch
		}
	}
	return registry.Result{Outputs: outputs}, nil
}

// splitState is the controller's nodeInternalState entry.
type splitState struct {
	full   []domain.Item
	cursor int
}

type splitInBatchesNode struct{}

func (splitInBatchesNode) Execute(ctx context.Context, ec *domain.ExecutionContext, def *domain.NodeDefinition, r registry.Resolver, params map[string]any, items []domain.Item) (registry.Result, error) {
	st, ok := ec.NodeInternalState[def.Name].(*splitState)
	if !ok {
		st = &splitState{full: items}
		ec.NodeInternalState[def.Name] = st
	}
	batchSize, _ := params["batchSize"].(int)
	if batchSize <= 0 {
		batchSize = len(st.full)
	}

	if st.cursor >= len(st.full) {
		return registry.Result{Outputs: map[string]domain.Payload{
			"loop": domain.DeadBranch,
			"done": domain.ItemsPayload(st.full),
		}}, nil
	}

	end := st.cursor + batchSize
	if end > len(st.full) {
		end = len(st.full)
	}
	batch := st.full[st.cursor:end]
	st.cursor = end
	return registry.Result{Outputs: map[string]domain.Payload{
		"loop": domain.ItemsPayload(batch),
		"done": domain.DeadBranch,
	}}, nil
}

// loopBackNode is the trivial "loop body" feeding its input straight back to
// the controller on an output also named "loop", matching the controller's
// own port name as the scenario's back-edge convention requires.
type loopBackNode struct {
	sizes *[]int
}

func (n loopBackNode) Execute(ctx context.Context, ec *domain.ExecutionContext, def *domain.NodeDefinition, r registry.Resolver, params map[string]any, items []domain.Item) (registry.Result, error) {
	*n.sizes = append(*n.sizes, len(items))
	return registry.Result{Outputs: map[string]domain.Payload{"loop": domain.ItemsPayload(items)}}, nil
}

type alwaysFailNode struct{ calls *int }

func (n alwaysFailNode) Execute(ctx context.Context, ec *domain.ExecutionContext, def *domain.NodeDefinition, r registry.Resolver, params map[string]any, items []domain.Item) (registry.Result, error) {
	*n.calls++
	return registry.Result{}, errors.New("boom")
}

func newScheduler(t *testing.T, reg *registry.Registry) *Scheduler {
	t.Helper()
	k := kernel.New(reg, expression.New())
	k.Sleep = func(time.Duration) {}
	return New(k)
}

func TestIfTrueRouting(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register("start", func() registry.Node { return passthroughNode{} }, registry.Descriptor{IsTrigger: true}))
	require.NoError(t, reg.Register("if", func() registry.Node { return ifNode{} }, registry.Descriptor{}))
	require.NoError(t, reg.Register("set", func() registry.Node { return setNode{} }, registry.Descriptor{}))

	wf := &domain.Workflow{
		Nodes: []domain.NodeDefinition{
			{Name: "Start", Type: "start"},
			{Name: "Cond", Type: "if", Parameters: map[string]any{"field": "status", "value": "active"}},
			{Name: "TrueSetter", Type: "set", Parameters: map[string]any{"values": map[string]any{"result": "was-true"}}},
			{Name: "FalseSetter", Type: "set", Parameters: map[string]any{"values": map[string]any{"result": "was-false"}}},
		},
		Connections: []domain.Connection{
			{SourceNode: "Start", SourceOutput: "main", TargetNode: "Cond", TargetInput: "main"},
			{SourceNode: "Cond", SourceOutput: "true", TargetNode: "TrueSetter", TargetInput: "main"},
			{SourceNode: "Cond", SourceOutput: "false", TargetNode: "FalseSetter", TargetInput: "main"},
		},
	}

	s := newScheduler(t, reg)
	ec, err := s.Run(context.Background(), wf, "Start", []domain.Item{{JSON: map[string]any{"status": "active"}}}, domain.ModeManual)
	require.NoError(t, err)

	require.Contains(t, ec.NodeStates, "TrueSetter")
	assert.Equal(t, []domain.Item{{JSON: map[string]any{"status": "active", "result": "was-true"}}}, ec.NodeStates["TrueSetter"])
	assert.NotContains(t, ec.NodeStates, "FalseSetter")
	assert.Empty(t, ec.Errors)
}

func TestSwitchWithFallback(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register("start", func() registry.Node { return passthroughNode{} }, registry.Descriptor{IsTrigger: true}))
	require.NoError(t, reg.Register("switch", func() registry.Node { return switchNode{} }, registry.Descriptor{}))
	require.NoError(t, reg.Register("set", func() registry.Node { return setNode{} }, registry.Descriptor{}))

	rules := []any{
		map[string]any{"field": "category", "value": "electronics", "output": "output0"},
		map[string]any{"field": "category", "value": "clothing", "output": "output1"},
		map[string]any{"field": "category", "value": "food", "output": "output2"},
	}
	wf := &domain.Workflow{
		Nodes: []domain.NodeDefinition{
			{Name: "Start", Type: "start"},
			{Name: "Router", Type: "switch", Parameters: map[string]any{"rules": rules, "fallbackOutput": "output3"}},
			{Name: "ClothingHandler", Type: "set", Parameters: map[string]any{"values": map[string]any{}}},
		},
		Connections: []domain.Connection{
			{SourceNode: "Start", SourceOutput: "main", TargetNode: "Router", TargetInput: "main"},
			{SourceNode: "Router", SourceOutput: "output1", TargetNode: "ClothingHandler", TargetInput: "main"},
		},
	}

	s := newScheduler(t, reg)
	item := domain.Item{JSON: map[string]any{"category": "clothing", "name": "shirt"}}
	ec, err := s.Run(context.Background(), wf, "Start", []domain.Item{item}, domain.ModeManual)
	require.NoError(t, err)

	require.Contains(t, ec.NodeStates, "ClothingHandler")
	assert.Equal(t, []domain.Item{item}, ec.NodeStates["ClothingHandler"])
}

func TestMultiItemRouting(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register("start", func() registry.Node { return passthroughNode{} }, registry.Descriptor{IsTrigger: true}))
	require.NoError(t, reg.Register("if", func() registry.Node { return ifNode{} }, registry.Descriptor{}))
	require.NoError(t, reg.Register("set", func() registry.Node { return setNode{} }, registry.Descriptor{}))

	wf := &domain.Workflow{
		Nodes: []domain.NodeDefinition{
			{Name: "Start", Type: "start"},
			{Name: "Cond", Type: "if", Parameters: map[string]any{"field": "type", "value": "A"}},
			{Name: "TrueSetter", Type: "set", Parameters: map[string]any{"values": map[string]any{}}},
			{Name: "FalseSetter", Type: "set", Parameters: map[string]any{"values": map[string]any{}}},
		},
		Connections: []domain.Connection{
			{SourceNode: "Start", SourceOutput: "main", TargetNode: "Cond", TargetInput: "main"},
			{SourceNode: "Cond", SourceOutput: "true", TargetNode: "TrueSetter", TargetInput: "main"},
			{SourceNode: "Cond", SourceOutput: "false", TargetNode: "FalseSetter", TargetInput: "main"},
		},
	}

	s := newScheduler(t, reg)
	items := []domain.Item{
		{JSON: map[string]any{"type": "A", "id": float64(1)}},
		{JSON: map[string]any{"type": "B", "id": float64(2)}},
		{JSON: map[string]any{"type": "A", "id": float64(3)}},
	}
	ec, err := s.Run(context.Background(), wf, "Start", items, domain.ModeManual)
	require.NoError(t, err)

	require.Len(t, ec.NodeStates["TrueSetter"], 2)
	assert.Equal(t, float64(1), ec.NodeStates["TrueSetter"][0].JSON["id"])
	assert.Equal(t, float64(3), ec.NodeStates["TrueSetter"][1].JSON["id"])
	require.Len(t, ec.NodeStates["FalseSetter"], 1)
	assert.Equal(t, float64(2), ec.NodeStates["FalseSetter"][0].JSON["id"])
}

func TestSplitInBatchesLoop(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register("start", func() registry.Node { return passthroughNode{} }, registry.Descriptor{IsTrigger: true}))
	require.NoError(t, reg.Register("splitInBatches", func() registry.Node { return splitInBatchesNode{} }, registry.Descriptor{}))

	var sizes []int
	require.NoError(t, reg.Register("loopBody", func() registry.Node { return loopBackNode{sizes: &sizes} }, registry.Descriptor{}))

	wf := &domain.Workflow{
		Nodes: []domain.NodeDefinition{
			{Name: "Start", Type: "start"},
			{Name: "Controller", Type: "splitInBatches", Parameters: map[string]any{"batchSize": 3}},
			{Name: "Body", Type: "loopBody"},
		},
		Connections: []domain.Connection{
			{SourceNode: "Start", SourceOutput: "main", TargetNode: "Controller", TargetInput: "main"},
			{SourceNode: "Controller", SourceOutput: "loop", TargetNode: "Body", TargetInput: "main"},
			{SourceNode: "Body", SourceOutput: "loop", TargetNode: "Controller", TargetInput: "main"},
		},
	}

	items := make([]domain.Item, 10)
	for i := range items {
		items[i] = domain.Item{JSON: map[string]any{"i": i}}
	}

	s := newScheduler(t, reg)
	ec, err := s.Run(context.Background(), wf, "Start", items, domain.ModeManual)
	require.NoError(t, err)

	assert.Equal(t, []int{3, 3, 3, 1}, sizes)
	assert.Equal(t, 5, ec.NodeRunCounts["Controller"])
	assert.Len(t, ec.NodeStates["Controller"], 10)
}

func TestRetryExhaustionStopsDownstream(t *testing.T) {
	calls := 0
	reg := registry.New()
	require.NoError(t, reg.Register("start", func() registry.Node { return passthroughNode{} }, registry.Descriptor{IsTrigger: true}))
	require.NoError(t, reg.Register("fail", func() registry.Node { return alwaysFailNode{calls: &calls} }, registry.Descriptor{}))
	require.NoError(t, reg.Register("set", func() registry.Node { return setNode{} }, registry.Descriptor{}))

	wf := &domain.Workflow{
		Nodes: []domain.NodeDefinition{
			{Name: "Start", Type: "start"},
			{Name: "Fail", Type: "fail", ErrorPolicy: &domain.ErrorPolicy{RetryOnFail: 2, RetryDelayMs: 5}},
			{Name: "Downstream", Type: "set", Parameters: map[string]any{"values": map[string]any{}}},
		},
		Connections: []domain.Connection{
			{SourceNode: "Start", SourceOutput: "main", TargetNode: "Fail", TargetInput: "main"},
			{SourceNode: "Fail", SourceOutput: "main", TargetNode: "Downstream", TargetInput: "main"},
		},
	}

	s := newScheduler(t, reg)
	ec, err := s.Run(context.Background(), wf, "Start", []domain.Item{{JSON: map[string]any{}}}, domain.ModeManual)
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
	require.Len(t, ec.Errors, 1)
	assert.Contains(t, ec.Errors[0].Message, "3 attempts")
	assert.NotContains(t, ec.NodeStates, "Downstream")
	assert.Equal(t, domain.StatusFailed, ec.Status)
}

func TestContinueOnFailLetsDownstreamRun(t *testing.T) {
	calls := 0
	reg := registry.New()
	require.NoError(t, reg.Register("start", func() registry.Node { return passthroughNode{} }, registry.Descriptor{IsTrigger: true}))
	require.NoError(t, reg.Register("fail", func() registry.Node { return alwaysFailNode{calls: &calls} }, registry.Descriptor{}))
	require.NoError(t, reg.Register("set", func() registry.Node { return setNode{} }, registry.Descriptor{}))

	wf := &domain.Workflow{
		Nodes: []domain.NodeDefinition{
			{Name: "Start", Type: "start"},
			{Name: "Fail", Type: "fail", ErrorPolicy: &domain.ErrorPolicy{ContinueOnFail: true}},
			{Name: "Downstream", Type: "set", Parameters: map[string]any{"values": map[string]any{}}},
		},
		Connections: []domain.Connection{
			{SourceNode: "Start", SourceOutput: "main", TargetNode: "Fail", TargetInput: "main"},
			{SourceNode: "Fail", SourceOutput: "main", TargetNode: "Downstream", TargetInput: "main"},
		},
	}

	s := newScheduler(t, reg)
	ec, err := s.Run(context.Background(), wf, "Start", []domain.Item{{JSON: map[string]any{}}}, domain.ModeManual)
	require.NoError(t, err)

	require.Len(t, ec.Errors, 1)
	require.Contains(t, ec.NodeStates, "Downstream")
	require.Len(t, ec.NodeStates["Downstream"], 1)
	assert.Equal(t, "boom", ec.NodeStates["Downstream"][0].JSON["error"])
	assert.Equal(t, domain.StatusFailed, ec.Status)
}

func TestFindStartNode(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register("start", func() registry.Node { return passthroughNode{} }, registry.Descriptor{IsTrigger: true}))
	require.NoError(t, reg.Register("set", func() registry.Node { return setNode{} }, registry.Descriptor{}))

	wf := &domain.Workflow{
		Nodes: []domain.NodeDefinition{
			{Name: "Setter", Type: "set"},
			{Name: "Start", Type: "start"},
		},
	}
	s := newScheduler(t, reg)
	got := s.FindStartNode(wf)
	require.NotNil(t, got)
	assert.Equal(t, "Start", got.Name)
}

func TestCancelStopsBeforeNextJob(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register("start", func() registry.Node { return passthroughNode{} }, registry.Descriptor{IsTrigger: true}))
	require.NoError(t, reg.Register("set", func() registry.Node { return setNode{} }, registry.Descriptor{}))

	wf := &domain.Workflow{
		Nodes: []domain.NodeDefinition{
			{Name: "Start", Type: "start"},
			{Name: "Next", Type: "set", Parameters: map[string]any{"values": map[string]any{}}},
		},
		Connections: []domain.Connection{
			{SourceNode: "Start", SourceOutput: "main", TargetNode: "Next", TargetInput: "main"},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already cancelled before the run ever starts
	s := newScheduler(t, reg)
	ec, err := s.Run(ctx, wf, "Start", []domain.Item{{JSON: map[string]any{}}}, domain.ModeManual)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, ec.Status)
}
