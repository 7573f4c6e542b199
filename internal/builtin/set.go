package builtin

import (
	"context"
	"encoding/json"

	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/registry"
)

// setNode has two modes: "manual" writes a list of {name, value} pairs
// (value may be templated) onto each item; "json" parses a JSON literal and
// replaces the item's json with it. keepOnlySet drops every other key in
// manual mode.
type setNode struct{}

func newSetNode() registry.Node { return setNode{} }

func (setNode) Execute(_ context.Context, _ *domain.ExecutionContext, def *domain.NodeDefinition, resolver registry.Resolver, resolvedParams map[string]any, items []domain.Item) (registry.Result, error) {
	mode, _ := resolvedParams["mode"].(string)
	if mode == "" {
		mode = "manual"
	}
	keepOnlySet, _ := resolvedParams["keepOnlySet"].(bool)

	out := make([]domain.Item, len(items))
	for i, it := range items {
		switch mode {
		case "json":
			m, err := resolveJSONMode(resolver, def.Parameters["json"], i)
			if err != nil {
				return registry.Result{}, err
			}
			out[i] = domain.Item{JSON: m, Binary: it.Binary}
		default:
			base := make(map[string]any, len(it.JSON))
			if !keepOnlySet {
				for k, v := range it.JSON {
					base[k] = v
				}
			}
			fields, _ := def.Parameters["fields"].([]any)
			for _, raw := range fields {
				fm, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				name, _ := fm["name"].(string)
				if name == "" {
					continue
				}
				val, err := resolver.ResolveValue(fm["value"], i)
				if err != nil {
					return registry.Result{}, err
				}
				base[name] = val
			}
			out[i] = domain.Item{JSON: base, Binary: it.Binary}
		}
	}
	return registry.Result{Outputs: map[string]domain.Payload{"main": domain.ItemsPayload(out)}}, nil
}

func resolveJSONMode(resolver registry.Resolver, raw any, itemIndex int) (map[string]any, error) {
	resolved, err := resolver.ResolveValue(raw, itemIndex)
	if err != nil {
		return nil, err
	}
	if m, ok := resolved.(map[string]any); ok {
		return m, nil
	}
	if s, ok := resolved.(string); ok {
		var m map[string]any
		if jsonErr := json.Unmarshal([]byte(s), &m); jsonErr == nil {
			return m, nil
		}
	}
	return map[string]any{}, nil
}
