package builtin

import (
	"context"

	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/registry"
)

// splitState is the opaque per-node cursor SplitInBatches keeps in
// ExecutionContext.NodeInternalState between loop re-entries.
type splitState struct {
	all       []domain.Item
	cursor    int
	batchSize int
}

// splitInBatchesNode is stateful: on first entry it captures the full input
// list and a cursor; each re-entry (via its own "loop" back-edge) emits the
// next chunk on "loop" and DEAD_BRANCH on "done", until the cursor is
// exhausted, at which point it emits DEAD_BRANCH on "loop" and the original
// full list on "done".
type splitInBatchesNode struct{}

func newSplitInBatchesNode() registry.Node { return splitInBatchesNode{} }

func (splitInBatchesNode) Execute(_ context.Context, ec *domain.ExecutionContext, def *domain.NodeDefinition, _ registry.Resolver, resolvedParams map[string]any, items []domain.Item) (registry.Result, error) {
	st, ok := ec.NodeInternalState[def.Name].(*splitState)
	if !ok {
		batchSize, _ := asInt(resolvedParams["batchSize"])
		if batchSize <= 0 {
			batchSize = 1
		}
		st = &splitState{all: items, cursor: 0, batchSize: batchSize}
		ec.NodeInternalState[def.Name] = st
	}

	if st.cursor >= len(st.all) {
		delete(ec.NodeInternalState, def.Name)
		return registry.Result{Outputs: map[string]domain.Payload{
			"loop": domain.DeadBranch,
			"done": domain.ItemsPayload(st.all),
		}}, nil
	}

	end := st.cursor + st.batchSize
	if end > len(st.all) {
		end = len(st.all)
	}
	chunk := append([]domain.Item(nil), st.all[st.cursor:end]...)
	st.cursor = end

	return registry.Result{Outputs: map[string]domain.Payload{
		"loop": domain.ItemsPayload(chunk),
		"done": domain.DeadBranch,
	}}, nil
}
