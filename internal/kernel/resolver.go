package kernel

import (
	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/expression"
)

// jobResolver implements registry.Resolver for a single job: runIndex and
// the job's item batch are fixed, itemIndex selects which item is "current".
type jobResolver struct {
	engine  *expression.Engine
	ec      *domain.ExecutionContext
	name    string
	job     Job
	hostEnv map[string]string
}

func (r *jobResolver) evalContext(itemIndex int) expression.EvalContext {
	var item domain.Item
	if itemIndex >= 0 && itemIndex < len(r.job.Items) {
		item = r.job.Items[itemIndex]
	}
	return expression.EvalContext{
		Item:        item,
		InputItems:  r.job.Items,
		NodeStates:  r.ec.NodeStates,
		HostEnv:     r.hostEnv,
		ExecutionID: r.ec.ExecutionID,
		Mode:        r.ec.Mode,
		StartTime:   r.ec.StartTime.Format("2006-01-02T15:04:05Z07:00"),
		RunIndex:    r.job.RunIndex,
		ItemIndex:   itemIndex,
	}
}

func (r *jobResolver) ResolveParams(raw map[string]any, itemIndex int) (map[string]any, error) {
	resolved, err := r.engine.ResolveValue(r.ec, r.name, r.evalContext(itemIndex), raw)
	if err != nil {
		return nil, err
	}
	m, _ := resolved.(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func (r *jobResolver) ResolveValue(raw any, itemIndex int) (any, error) {
	return r.engine.ResolveValue(r.ec, r.name, r.evalContext(itemIndex), raw)
}

func (r *jobResolver) ResolveBool(expr string, itemIndex int) bool {
	return r.engine.ResolveBool(r.evalContext(itemIndex), expr)
}
