package builtin

import (
	"context"

	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/registry"
)

// ifNode evaluates (field, operation, value) per input item and routes each
// item to the matching "true"/"false" output. The output that received no
// items emits DEAD_BRANCH so a downstream join isn't left waiting (spec
// §4.7, §9 "every branching node MUST emit DEAD_BRANCH on non-selected
// outputs").
type ifNode struct{}

func newIfNode() registry.Node { return ifNode{} }

func (ifNode) Execute(_ context.Context, _ *domain.ExecutionContext, def *domain.NodeDefinition, resolver registry.Resolver, _ map[string]any, items []domain.Item) (registry.Result, error) {
	var trueItems, falseItems []domain.Item
	for i, it := range items {
		params, err := resolver.ResolveParams(def.Parameters, i)
		if err != nil {
			return registry.Result{}, err
		}
		field, _ := params["field"].(string)
		op, _ := params["operation"].(string)
		matched, err := evalCondition(it.JSON, field, op, params["value"])
		if err != nil {
			return registry.Result{}, err
		}
		if matched {
			trueItems = append(trueItems, it)
		} else {
			falseItems = append(falseItems, it)
		}
	}

	outputs := map[string]domain.Payload{
		"true":  domain.DeadBranch,
		"false": domain.DeadBranch,
	}
	if len(trueItems) > 0 {
		outputs["true"] = domain.ItemsPayload(trueItems)
	}
	if len(falseItems) > 0 {
		outputs["false"] = domain.ItemsPayload(falseItems)
	}
	return registry.Result{Outputs: outputs}, nil
}
