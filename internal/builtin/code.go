package builtin

import (
	"context"
	"fmt"

	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/registry"
	"github.com/flowbridge/engine/internal/sandbox"
)

// codeNode runs user code inside internal/sandbox: no host I/O, no
// environment, time-bounded, memory-bounded by its expr-lang evaluation
// model. resolvedParams["code"] passes through the kernel's templating step
// unchanged (it contains no "{{ }}" tokens of its own), so the sandbox sees
// exactly what the node author wrote.
type codeNode struct {
	sandbox *sandbox.Sandbox
}

func newCodeNode() registry.Node {
	return &codeNode{sandbox: sandbox.New()}
}

func (n *codeNode) Execute(ctx context.Context, ec *domain.ExecutionContext, def *domain.NodeDefinition, _ registry.Resolver, resolvedParams map[string]any, items []domain.Item) (registry.Result, error) {
	code, _ := resolvedParams["code"].(string)
	if code == "" {
		return registry.Result{}, fmt.Errorf("code node %q: missing %q parameter", def.Name, "code")
	}

	sb := *n.sandbox
	if ms, ok := asInt(def.Parameters["timeoutMs"]); ok && ms > 0 {
		sb.Deadline = durationMs(ms)
	}

	out, err := sb.Run(ctx, code, items)
	if err != nil {
		return registry.Result{}, domain.NewNodeExecutionError(def.Name, domain.NodeTypeCode, ec.ExecutionID, 1, err.Error(), err)
	}
	return registry.Result{Outputs: map[string]domain.Payload{"main": domain.ItemsPayload(out)}}, nil
}
