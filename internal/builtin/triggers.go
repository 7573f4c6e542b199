package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/registry"
)

// startNode emits the initial items verbatim; it is an error to invoke it
// with none (the "empty initialItems causes Start to fail" boundary case).
type startNode struct{}

func newStartNode() registry.Node { return startNode{} }

func (startNode) Execute(_ context.Context, _ *domain.ExecutionContext, def *domain.NodeDefinition, _ registry.Resolver, _ map[string]any, items []domain.Item) (registry.Result, error) {
	if len(items) == 0 {
		return registry.Result{}, fmt.Errorf("start node %q invoked with no input items", def.Name)
	}
	return registry.Result{Outputs: map[string]domain.Payload{"main": domain.ItemsPayload(items)}}, nil
}

// webhookNode emits one item shaped {body, headers, query, method}. In
// normal operation the host (the REST/webhook boundary, out of scope here)
// builds that single item and hands it to the scheduler as initialItems;
// if the node is invoked with no items (e.g. ad-hoc testing) it falls back
// to assembling the item from its resolved parameters.
type webhookNode struct{}

func newWebhookNode() registry.Node { return webhookNode{} }

func (webhookNode) Execute(_ context.Context, _ *domain.ExecutionContext, _ *domain.NodeDefinition, _ registry.Resolver, resolvedParams map[string]any, items []domain.Item) (registry.Result, error) {
	if len(items) > 0 {
		return registry.Result{Outputs: map[string]domain.Payload{"main": domain.ItemsPayload(items)}}, nil
	}
	item := domain.Item{JSON: map[string]any{
		"body":    resolvedParams["body"],
		"headers": resolvedParams["headers"],
		"query":   resolvedParams["query"],
		"method":  resolvedParams["method"],
	}}
	return registry.Result{Outputs: map[string]domain.Payload{"main": domain.ItemsPayload([]domain.Item{item})}}, nil
}

// cronNode emits one item {triggeredAt, mode: "cron"}; the actual timer
// that decides when to fire is external to the engine (spec §4.7).
type cronNode struct{}

func newCronNode() registry.Node { return cronNode{} }

func (cronNode) Execute(_ context.Context, _ *domain.ExecutionContext, _ *domain.NodeDefinition, _ registry.Resolver, _ map[string]any, items []domain.Item) (registry.Result, error) {
	if len(items) > 0 {
		return registry.Result{Outputs: map[string]domain.Payload{"main": domain.ItemsPayload(items)}}, nil
	}
	item := domain.Item{JSON: map[string]any{
		"triggeredAt": time.Now().UTC().Format(time.RFC3339),
		"mode":        "cron",
	}}
	return registry.Result{Outputs: map[string]domain.Payload{"main": domain.ItemsPayload([]domain.Item{item})}}, nil
}

// errorTriggerNode emits one item describing another workflow's error; the
// host invokes it when a monitored workflow fails.
type errorTriggerNode struct{}

func newErrorTriggerNode() registry.Node { return errorTriggerNode{} }

func (errorTriggerNode) Execute(_ context.Context, _ *domain.ExecutionContext, _ *domain.NodeDefinition, _ registry.Resolver, resolvedParams map[string]any, items []domain.Item) (registry.Result, error) {
	if len(items) > 0 {
		return registry.Result{Outputs: map[string]domain.Payload{"main": domain.ItemsPayload(items)}}, nil
	}
	item := domain.Item{JSON: map[string]any{
		"workflowId": resolvedParams["workflowId"],
		"nodeName":   resolvedParams["nodeName"],
		"message":    resolvedParams["message"],
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}}
	return registry.Result{Outputs: map[string]domain.Payload{"main": domain.ItemsPayload([]domain.Item{item})}}, nil
}
