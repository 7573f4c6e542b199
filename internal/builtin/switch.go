package builtin

import (
	"context"
	"fmt"

	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/registry"
)

// FallbackOutputName is the output every Switch node emits to when
// "fallbackOutput" is enabled and an item matched no rule.
const FallbackOutputName = "fallback"

// switchNode evaluates its ordered "rules" list per item; each item goes to
// the first matching rule's "outputN", or to FallbackOutputName when no
// rule matches and a fallback is configured. Every output the item set
// doesn't reach emits DEAD_BRANCH.
type switchNode struct{}

func newSwitchNode() registry.Node { return switchNode{} }

func (switchNode) Execute(_ context.Context, _ *domain.ExecutionContext, def *domain.NodeDefinition, resolver registry.Resolver, _ map[string]any, items []domain.Item) (registry.Result, error) {
	rules, _ := def.Parameters["rules"].([]any)
	hasFallback, _ := def.Parameters["fallbackOutput"].(bool)

	buckets := make([][]domain.Item, len(rules))
	var fallbackItems []domain.Item

	for i, it := range items {
		matched := -1
		for ri, raw := range rules {
			rm, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			field, _ := rm["field"].(string)
			op, _ := rm["operation"].(string)
			value, err := resolver.ResolveValue(rm["value"], i)
			if err != nil {
				return registry.Result{}, err
			}
			ok2, err := evalCondition(it.JSON, field, op, value)
			if err != nil {
				return registry.Result{}, err
			}
			if ok2 {
				matched = ri
				break
			}
		}
		if matched >= 0 {
			buckets[matched] = append(buckets[matched], it)
		} else if hasFallback {
			fallbackItems = append(fallbackItems, it)
		}
	}

	outputs := make(map[string]domain.Payload, len(rules)+1)
	for i := range rules {
		name := fmt.Sprintf("output%d", i)
		if len(buckets[i]) > 0 {
			outputs[name] = domain.ItemsPayload(buckets[i])
		} else {
			outputs[name] = domain.DeadBranch
		}
	}
	if hasFallback {
		if len(fallbackItems) > 0 {
			outputs[FallbackOutputName] = domain.ItemsPayload(fallbackItems)
		} else {
			outputs[FallbackOutputName] = domain.DeadBranch
		}
	}
	return registry.Result{Outputs: outputs}, nil
}
