// Package kernel runs one node's job to completion (spec C5): the disabled
// short-circuit, the pinned-data override, parameter resolution through the
// expression engine, the node body invocation itself, and the
// retry/continue-on-fail policy around failure. The scheduler (C6) is the
// only caller; the kernel knows nothing about the graph beyond the single
// node it has been handed.
package kernel

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/expression"
	"github.com/flowbridge/engine/internal/registry"
)

// Job is one node-run request handed to the kernel by the scheduler. Items
// is already the fully joined/merged input batch for this run — the
// scheduler resolves fan-in before a job is ever built.
type Job struct {
	NodeName string
	Items    []domain.Item
	RunIndex int
}

// RunResult is what the kernel hands back to the scheduler. Failed marks a
// terminal, non-continued failure: the scheduler must treat it exactly like
// a node that emitted DeadBranch on every one of its outgoing connections,
// rather than trying to read Outputs (which is empty).
type RunResult struct {
	Outputs map[string]domain.Payload
	Failed  bool
}

// Kernel runs jobs against a shared registry and expression engine.
type Kernel struct {
	Registry   *registry.Registry
	Expression *expression.Engine
	HostEnv    map[string]string

	// Sleep is the retry-delay primitive; overridable in tests.
	Sleep func(time.Duration)
}

// New returns a Kernel wired to reg and eng, with the process environment
// captured once for $env lookups.
func New(reg *registry.Registry, eng *expression.Engine) *Kernel {
	return &Kernel{
		Registry:   reg,
		Expression: eng,
		HostEnv:    hostEnvMap(),
		Sleep:      time.Sleep,
	}
}

// Run executes job against ec, mutating ec's NodeStates/NodeRunCounts/Errors
// as it goes.
func (k *Kernel) Run(ctx context.Context, ec *domain.ExecutionContext, job Job) (RunResult, error) {
	def := ec.Workflow.NodeByName(job.NodeName)
	if def == nil {
		return RunResult{Failed: true}, fmt.Errorf("kernel: node %q not found in workflow", job.NodeName)
	}

	if def.Disabled {
		outputs := map[string]domain.Payload{"main": domain.ItemsPayload(job.Items)}
		k.recordSuccess(ec, def.Name, outputs)
		return RunResult{Outputs: outputs}, nil
	}

	if def.PinnedData != nil {
		outputs := map[string]domain.Payload{"main": domain.ItemsPayload(def.PinnedData)}
		k.recordSuccess(ec, def.Name, outputs)
		return RunResult{Outputs: outputs}, nil
	}

	node, err := k.Registry.Get(def.Type)
	if err != nil {
		ec.RecordError(def.Name, err.Error())
		return RunResult{Failed: true}, err
	}

	resolver := &jobResolver{engine: k.Expression, ec: ec, name: def.Name, job: job, hostEnv: k.HostEnv}

	resolvedParams, err := resolver.ResolveParams(def.Parameters, 0)
	if err != nil {
		ec.RecordError(def.Name, err.Error())
		return RunResult{Failed: true}, err
	}

	maxAttempts := 1 + def.RetryOnFail()
	var lastErr error
	var result registry.Result
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return RunResult{Failed: true}, err
		}
		result, lastErr = node.Execute(ctx, ec, def, resolver, resolvedParams, job.Items)
		if lastErr == nil {
			k.recordSuccess(ec, def.Name, result.Outputs)
			return RunResult{Outputs: result.Outputs}, nil
		}
		if attempt < maxAttempts {
			if delay := time.Duration(def.RetryDelayMs()) * time.Millisecond; delay > 0 {
				k.Sleep(delay)
			}
		}
	}

	if def.ContinueOnFail() {
		synthetic := []domain.Item{{JSON: map[string]any{"error": lastErr.Error()}}}
		outputs := map[string]domain.Payload{"main": domain.ItemsPayload(synthetic)}
		ec.RecordError(def.Name, fmt.Sprintf("%s (%d attempts, continuing)", lastErr.Error(), maxAttempts))
		k.recordSuccess(ec, def.Name, outputs)
		return RunResult{Outputs: outputs}, nil
	}

	ec.RecordError(def.Name, fmt.Sprintf("%s (%d attempts)", lastErr.Error(), maxAttempts))
	return RunResult{Failed: true}, lastErr
}

func (k *Kernel) recordSuccess(ec *domain.ExecutionContext, name string, outputs map[string]domain.Payload) {
	ec.NodeStates[name] = mergeOutputsForState(outputs)
	ec.NodeRunCounts[name]++
}

// mergeOutputsForState picks what a node-run contributes to $node[Name]:
// its "main" output if it has one, or the concatenation of every other
// output it produced, taken in output-name order (If, Switch and
// SplitInBatches have no "main").
func mergeOutputsForState(outputs map[string]domain.Payload) []domain.Item {
	if main, ok := outputs["main"]; ok {
		return domain.Items(main)
	}
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	var all []domain.Item
	for _, name := range names {
		all = append(all, domain.Items(outputs[name])...)
	}
	return all
}

func hostEnvMap() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}
