// Package sandbox implements the Code node's isolation contract (spec
// C13): user-supplied source runs with no filesystem access, no network
// access, no access to the scheduler or other nodes' state, and terminates
// within a hard deadline. It is built on github.com/expr-lang/expr rather
// than an embedded JS VM — no example in the reference pack vendors one
// (goja/otto/v8go), expr-lang is already a direct dependency elsewhere in
// this engine, and its standard library has no I/O, filesystem, or network
// builtins, so it satisfies the contract without pulling in a new
// dependency family. See DESIGN.md.
package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/expr-lang/expr"

	"github.com/flowbridge/engine/internal/domain"
)

// DefaultDeadline bounds a Code node run when the node definition does not
// override it.
const DefaultDeadline = 5 * time.Second

// Sandbox runs user code against an input item batch.
type Sandbox struct {
	Deadline time.Duration
}

// New returns a Sandbox with DefaultDeadline.
func New() *Sandbox {
	return &Sandbox{Deadline: DefaultDeadline}
}

func itemEnv(items []domain.Item) map[string]any {
	list := make([]map[string]any, len(items))
	for i, it := range items {
		list[i] = map[string]any{"json": it.JSON, "binary": it.Binary}
	}
	return map[string]any{"items": list}
}

// Run compiles and evaluates code against items, isolated behind a
// deadline. code is expected to evaluate to a list of {json: {...}}-shaped
// values; a bare object per element is also accepted as shorthand for that
// element's json. The code's environment exposes only "items" — no host
// env, no node registry, no scheduler state.
func (s *Sandbox) Run(ctx context.Context, code string, items []domain.Item) ([]domain.Item, error) {
	deadline := s.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}

	type outcome struct {
		val any
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		prog, err := expr.Compile(code, expr.Env(map[string]any{}))
		if err != nil {
			ch <- outcome{err: fmt.Errorf("sandbox: compile: %w", err)}
			return
		}
		out, err := expr.Run(prog, itemEnv(items))
		ch <- outcome{val: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("sandbox: %w", ctx.Err())
	case <-time.After(deadline):
		return nil, domain.NewTimeoutError("", domain.NodeTypeCode, "", 1, deadline.Milliseconds())
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		return toItems(res.val)
	}
}

func toItems(v any) ([]domain.Item, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("sandbox: code must return a list of items, got %T", v)
	}
	out := make([]domain.Item, len(list))
	for i, el := range list {
		m, ok := el.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("sandbox: item %d is not an object", i)
		}
		json, ok := m["json"].(map[string]any)
		if !ok {
			json = m
		}
		out[i] = domain.Item{JSON: json}
	}
	return out, nil
}
