package expression

import (
	"github.com/flowbridge/engine/internal/domain"
)

// EvalContext is the read-only snapshot of data an expression evaluates
// against for one node invocation: the currently-processed item, the full
// input batch, the live node-state history, the host environment, and the
// execution/loop indices.
type EvalContext struct {
	Item        domain.Item
	InputItems  []domain.Item
	NodeStates  map[string][]domain.Item
	HostEnv     map[string]string
	ExecutionID string
	Mode        domain.Mode
	StartTime   string
	RunIndex    int
	ItemIndex   int
}

func itemToMap(it domain.Item) map[string]any {
	return map[string]any{"json": it.JSON, "binary": it.Binary}
}

func itemsToList(items []domain.Item) []map[string]any {
	out := make([]map[string]any, len(items))
	for i, it := range items {
		out[i] = itemToMap(it)
	}
	return out
}

// buildEnv assembles the expr-lang evaluation environment for one
// invocation. $-prefixed context names ($json, $input, $node, $env,
// $execution, $runIndex, $itemIndex) are exposed here without the leading
// "$" — the template preprocessor (see engine.go) rewrites the author-facing
// "$name" syntax into the plain identifiers used by this map before
// compiling, since expr-lang identifiers cannot start with "$".
func buildEnv(c EvalContext) map[string]any {
	nodeRefs := make(map[string]any, len(c.NodeStates))
	for name, items := range c.NodeStates {
		itemList := itemsToList(items)
		var lastJSON map[string]any
		if n := len(items); n > 0 {
			lastJSON = items[n-1].JSON
		}
		nodeRefs[name] = map[string]any{
			"json":  lastJSON,
			"items": itemList,
		}
	}

	envVars := make(map[string]any, len(c.HostEnv))
	for k, v := range c.HostEnv {
		envVars[k] = v
	}

	env := map[string]any{
		"json":  c.Item.JSON,
		"input": itemsToList(c.InputItems),
		"node":  nodeRefs,
		"env":   envVars,
		"execution": map[string]any{
			"id":        c.ExecutionID,
			"mode":      string(c.Mode),
			"startTime": c.StartTime,
		},
		"runIndex":  c.RunIndex,
		"itemIndex": c.ItemIndex,
	}
	for name, fn := range helperFuncs {
		env[name] = fn
	}
	return env
}
