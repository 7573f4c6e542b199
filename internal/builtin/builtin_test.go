package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/expression"
	"github.com/flowbridge/engine/internal/kernel"
	"github.com/flowbridge/engine/internal/registry"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	require.NoError(t, RegisterAll(reg))
	return reg
}

// runNode drives def through a real Kernel (registry + expression engine),
// so built-in tests exercise parameter resolution exactly as the scheduler
// would invoke it, not just the node body in isolation.
func runNode(t *testing.T, def domain.NodeDefinition, items []domain.Item) registry.Result {
	t.Helper()
	reg := newTestRegistry(t)
	wf := &domain.Workflow{Nodes: []domain.NodeDefinition{def}}
	ec := domain.NewExecutionContext(wf, "exec-1", domain.ModeManual)
	k := kernel.New(reg, expression.New())
	res, err := k.Run(context.Background(), ec, kernel.Job{NodeName: def.Name, Items: items})
	require.NoError(t, err)
	require.False(t, res.Failed)
	return registry.Result{Outputs: res.Outputs}
}

func TestStartEmitsInputVerbatim(t *testing.T) {
	items := []domain.Item{{JSON: map[string]any{"a": 1}}}
	res := runNode(t, domain.NodeDefinition{Name: "Start", Type: domain.NodeTypeStart}, items)
	assert.Equal(t, items, domain.Items(res.Outputs["main"]))
}

func TestStartFailsOnEmptyInput(t *testing.T) {
	reg := newTestRegistry(t)
	wf := &domain.Workflow{Nodes: []domain.NodeDefinition{{Name: "Start", Type: domain.NodeTypeStart}}}
	ec := domain.NewExecutionContext(wf, "exec-1", domain.ModeManual)
	k := kernel.New(reg, expression.New())
	res, err := k.Run(context.Background(), ec, kernel.Job{NodeName: "Start"})
	assert.Error(t, err)
	assert.True(t, res.Failed)
}

func TestNoOpPassesItemsThroughUnchanged(t *testing.T) {
	items := []domain.Item{{JSON: map[string]any{"a": 1}}}
	res := runNode(t, domain.NodeDefinition{Name: "NoOp", Type: domain.NodeTypeNoOp}, items)
	assert.Equal(t, items, domain.Items(res.Outputs["main"]))
}

func TestSetManualModeOverwritesOnlyConfiguredKeys(t *testing.T) {
	def := domain.NodeDefinition{
		Name: "Setter",
		Type: domain.NodeTypeSet,
		Parameters: map[string]any{
			"fields": []any{
				map[string]any{"name": "result", "value": "was-true"},
			},
		},
	}
	items := []domain.Item{{JSON: map[string]any{"status": "active"}}}
	res := runNode(t, def, items)
	out := domain.Items(res.Outputs["main"])
	require.Len(t, out, 1)
	assert.Equal(t, "active", out[0].JSON["status"])
	assert.Equal(t, "was-true", out[0].JSON["result"])
}

func TestSetKeepOnlySetDropsOtherKeys(t *testing.T) {
	def := domain.NodeDefinition{
		Name: "Setter",
		Type: domain.NodeTypeSet,
		Parameters: map[string]any{
			"keepOnlySet": true,
			"fields": []any{
				map[string]any{"name": "result", "value": "only-this"},
			},
		},
	}
	items := []domain.Item{{JSON: map[string]any{"status": "active", "extra": 1}}}
	res := runNode(t, def, items)
	out := domain.Items(res.Outputs["main"])
	require.Len(t, out, 1)
	assert.Equal(t, map[string]any{"result": "only-this"}, out[0].JSON)
}

// TestIfTrueRouting exercises spec.md §8 scenario 1.
func TestIfTrueRouting(t *testing.T) {
	def := domain.NodeDefinition{
		Name: "Gate",
		Type: domain.NodeTypeIf,
		Parameters: map[string]any{
			"field":     "status",
			"operation": "equals",
			"value":     "active",
		},
	}
	items := []domain.Item{{JSON: map[string]any{"status": "active"}}}
	res := runNode(t, def, items)
	assert.Equal(t, items, domain.Items(res.Outputs["true"]))
	assert.True(t, domain.IsDeadBranch(res.Outputs["false"]))
}

// TestIfMultiItemRouting exercises spec.md §8 scenario 3.
func TestIfMultiItemRouting(t *testing.T) {
	def := domain.NodeDefinition{
		Name: "Gate",
		Type: domain.NodeTypeIf,
		Parameters: map[string]any{
			"field":     "type",
			"operation": "equals",
			"value":     "A",
		},
	}
	items := []domain.Item{
		{JSON: map[string]any{"type": "A", "id": 1.0}},
		{JSON: map[string]any{"type": "B", "id": 2.0}},
		{JSON: map[string]any{"type": "A", "id": 3.0}},
	}
	res := runNode(t, def, items)
	trueItems := domain.Items(res.Outputs["true"])
	falseItems := domain.Items(res.Outputs["false"])
	require.Len(t, trueItems, 2)
	assert.Equal(t, 1.0, trueItems[0].JSON["id"])
	assert.Equal(t, 3.0, trueItems[1].JSON["id"])
	require.Len(t, falseItems, 1)
	assert.Equal(t, 2.0, falseItems[0].JSON["id"])
}

// TestSwitchWithFallback exercises spec.md §8 scenario 2.
func TestSwitchWithFallback(t *testing.T) {
	def := domain.NodeDefinition{
		Name: "Router",
		Type: domain.NodeTypeSwitch,
		Parameters: map[string]any{
			"fallbackOutput": true,
			"rules": []any{
				map[string]any{"field": "category", "operation": "equals", "value": "electronics"},
				map[string]any{"field": "category", "operation": "equals", "value": "clothing"},
				map[string]any{"field": "category", "operation": "equals", "value": "food"},
			},
		},
	}
	items := []domain.Item{{JSON: map[string]any{"category": "clothing", "name": "shirt"}}}
	res := runNode(t, def, items)
	assert.True(t, domain.IsDeadBranch(res.Outputs["output0"]))
	assert.Equal(t, items, domain.Items(res.Outputs["output1"]))
	assert.True(t, domain.IsDeadBranch(res.Outputs["output2"]))
	assert.True(t, domain.IsDeadBranch(res.Outputs[FallbackOutputName]))
}

func TestMergeIsIdentityOverAlreadyJoinedItems(t *testing.T) {
	def := domain.NodeDefinition{Name: "M", Type: domain.NodeTypeMerge}
	items := []domain.Item{{JSON: map[string]any{"a": 1}}, {JSON: map[string]any{"b": 2}}}
	res := runNode(t, def, items)
	assert.Equal(t, items, domain.Items(res.Outputs["main"]))
}

// TestSplitInBatchesLoop exercises spec.md §8 scenario 4's per-call shape:
// four chunks of 3/3/3/1, then a done emission of the full 10. The
// scheduler (not exercised here) is what wires "loop" back into repeated
// kernel.Run calls; this test drives that sequence directly.
func TestSplitInBatchesLoop(t *testing.T) {
	reg := newTestRegistry(t)
	def := domain.NodeDefinition{
		Name:       "Controller",
		Type:       domain.NodeTypeSplitInBatches,
		Parameters: map[string]any{"batchSize": 3},
	}
	wf := &domain.Workflow{Nodes: []domain.NodeDefinition{def}}
	ec := domain.NewExecutionContext(wf, "exec-1", domain.ModeManual)
	k := kernel.New(reg, expression.New())

	all := make([]domain.Item, 10)
	for i := range all {
		all[i] = domain.Item{JSON: map[string]any{"i": i}}
	}

	wantLoopSizes := []int{3, 3, 3, 1}
	for round, want := range wantLoopSizes {
		res, err := k.Run(context.Background(), ec, kernel.Job{NodeName: "Controller", Items: all, RunIndex: round})
		require.NoError(t, err)
		require.False(t, res.Failed)
		assert.True(t, domain.IsDeadBranch(res.Outputs["done"]))
		assert.Len(t, domain.Items(res.Outputs["loop"]), want, "round %d", round)
	}

	res, err := k.Run(context.Background(), ec, kernel.Job{NodeName: "Controller", Items: all, RunIndex: 4})
	require.NoError(t, err)
	assert.True(t, domain.IsDeadBranch(res.Outputs["loop"]))
	assert.Equal(t, all, domain.Items(res.Outputs["done"]))
	assert.Equal(t, 5, ec.NodeRunCounts["Controller"])
}

func TestSplitInBatchesSizeGreaterThanInputEmitsFullListOnce(t *testing.T) {
	reg := newTestRegistry(t)
	def := domain.NodeDefinition{
		Name:       "Controller",
		Type:       domain.NodeTypeSplitInBatches,
		Parameters: map[string]any{"batchSize": 100},
	}
	wf := &domain.Workflow{Nodes: []domain.NodeDefinition{def}}
	ec := domain.NewExecutionContext(wf, "exec-1", domain.ModeManual)
	k := kernel.New(reg, expression.New())
	items := []domain.Item{{JSON: map[string]any{"i": 0}}, {JSON: map[string]any{"i": 1}}}

	res, err := k.Run(context.Background(), ec, kernel.Job{NodeName: "Controller", Items: items})
	require.NoError(t, err)
	assert.Equal(t, items, domain.Items(res.Outputs["loop"]))
	assert.True(t, domain.IsDeadBranch(res.Outputs["done"]))

	res, err = k.Run(context.Background(), ec, kernel.Job{NodeName: "Controller", Items: items, RunIndex: 1})
	require.NoError(t, err)
	assert.True(t, domain.IsDeadBranch(res.Outputs["loop"]))
	assert.Equal(t, items, domain.Items(res.Outputs["done"]))
}

func TestCodeNodeRunsUserExpressionOverItems(t *testing.T) {
	def := domain.NodeDefinition{
		Name: "Transform",
		Type: domain.NodeTypeCode,
		Parameters: map[string]any{
			"code": `map(items, {json: {"doubled": #.json.n * 2}})`,
		},
	}
	items := []domain.Item{{JSON: map[string]any{"n": 2.0}}, {JSON: map[string]any{"n": 5.0}}}
	res := runNode(t, def, items)
	out := domain.Items(res.Outputs["main"])
	require.Len(t, out, 2)
	assert.Equal(t, 4.0, out[0].JSON["doubled"])
	assert.Equal(t, 10.0, out[1].JSON["doubled"])
}

func TestCodeNodeMissingCodeFails(t *testing.T) {
	reg := newTestRegistry(t)
	def := domain.NodeDefinition{Name: "Transform", Type: domain.NodeTypeCode}
	wf := &domain.Workflow{Nodes: []domain.NodeDefinition{def}}
	ec := domain.NewExecutionContext(wf, "exec-1", domain.ModeManual)
	k := kernel.New(reg, expression.New())
	res, err := k.Run(context.Background(), ec, kernel.Job{NodeName: "Transform", Items: []domain.Item{{JSON: map[string]any{}}}})
	assert.Error(t, err)
	assert.True(t, res.Failed)
}

func TestWaitDurationHonorsCancellation(t *testing.T) {
	reg := newTestRegistry(t)
	def := domain.NodeDefinition{
		Name:       "Pause",
		Type:       domain.NodeTypeWait,
		Parameters: map[string]any{"durationMs": 60000},
	}
	wf := &domain.Workflow{Nodes: []domain.NodeDefinition{def}}
	ec := domain.NewExecutionContext(wf, "exec-1", domain.ModeManual)
	k := kernel.New(reg, expression.New())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := k.Run(ctx, ec, kernel.Job{NodeName: "Pause", Items: []domain.Item{{JSON: map[string]any{}}}})
	assert.Error(t, err)
}
