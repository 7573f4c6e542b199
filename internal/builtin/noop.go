package builtin

import (
	"context"

	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/registry"
)

// noOpNode passes its input through unchanged. It exists purely to mark the
// end of a branch for host UI layout (§4.7.2) — distinct from the Disabled
// flag, which is a per-node override rather than a type of its own.
type noOpNode struct{}

func newNoOpNode() registry.Node {
	return &noOpNode{}
}

func (n *noOpNode) Execute(_ context.Context, _ *domain.ExecutionContext, _ *domain.NodeDefinition, _ registry.Resolver, _ map[string]any, items []domain.Item) (registry.Result, error) {
	return registry.Result{Outputs: map[string]domain.Payload{"main": domain.ItemsPayload(items)}}, nil
}
