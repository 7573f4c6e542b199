package builtin

import (
	"context"
	"time"

	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/registry"
)

// waitNode sleeps for "durationMs", or — when "resumeOn" names a wait
// handle — blocks until the host calls the resumption hook it registers in
// ExecutionContext.WaitingNodes (the webhook-resume path). Either form
// honors cancellation immediately.
type waitNode struct {
	sleep func(ctx context.Context, d time.Duration) error
}

func newWaitNode() registry.Node {
	return &waitNode{sleep: ctxSleep}
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *waitNode) Execute(ctx context.Context, ec *domain.ExecutionContext, def *domain.NodeDefinition, _ registry.Resolver, resolvedParams map[string]any, items []domain.Item) (registry.Result, error) {
	if handle, _ := resolvedParams["resumeOn"].(string); handle != "" {
		done := make(chan struct{})
		ec.WaitingNodes[handle] = func() { close(done) }
		defer delete(ec.WaitingNodes, handle)
		select {
		case <-done:
		case <-ctx.Done():
			return registry.Result{}, ctx.Err()
		}
		return registry.Result{Outputs: map[string]domain.Payload{"main": domain.ItemsPayload(items)}}, nil
	}

	ms, _ := asInt(resolvedParams["durationMs"])
	if err := n.sleep(ctx, time.Duration(ms)*time.Millisecond); err != nil {
		return registry.Result{}, err
	}
	return registry.Result{Outputs: map[string]domain.Payload{"main": domain.ItemsPayload(items)}}, nil
}
