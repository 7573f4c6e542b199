package builtin

import (
	"context"

	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/registry"
)

// mergeNode's own contract (wait for every incoming connection, concatenate
// the live inputs in declaration order, DEAD_BRANCH if all incoming are
// dead) is exactly the scheduler's generic join policy (C6 deliver()), so
// by the time the kernel invokes this node its input batch is already the
// merged result — the node body itself is the identity function.
type mergeNode struct{}

func newMergeNode() registry.Node { return mergeNode{} }

func (mergeNode) Execute(_ context.Context, _ *domain.ExecutionContext, _ *domain.NodeDefinition, _ registry.Resolver, _ map[string]any, items []domain.Item) (registry.Result, error) {
	return registry.Result{Outputs: map[string]domain.Payload{"main": domain.ItemsPayload(items)}}, nil
}
