// Package expression implements the `{{ … }}` template sub-language (spec
// C4): resolving bindings against the live execution context (current item,
// full input batch, previously-produced node outputs, host environment,
// execution/loop indices) via github.com/expr-lang/expr.
package expression

import (
	"regexp"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/flowbridge/engine/internal/domain"
)

var (
	templatePattern = regexp.MustCompile(`(?s)\{\{(.*?)\}\}`)
	wholeTemplate   = regexp.MustCompile(`(?s)^\{\{(.*)\}\}$`)
	dollarName      = regexp.MustCompile(`\$(json|input|node|env|execution|runIndex|itemIndex)\b`)
	inputAllCall    = regexp.MustCompile(`\binput\.all\(\)`)
)

// Engine resolves expression templates. Strict mode escalates a malformed
// template into an error instead of the default empty-string-plus-warning
// degradation.
type Engine struct {
	Strict bool

	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// New returns a ready-to-use Engine.
func New() *Engine {
	return &Engine{cache: make(map[string]*vm.Program)}
}

// preprocess rewrites the author-facing "$name" context syntax into the
// plain identifiers buildEnv exposes, and collapses the documented
// "$input.all()" call into a bare reference to the (already complete) input
// list.
func preprocess(src string) string {
	src = dollarName.ReplaceAllString(src, "$1")
	src = inputAllCall.ReplaceAllString(src, "input")
	return src
}

func (e *Engine) compile(src string) (*vm.Program, error) {
	e.mu.RLock()
	if p, ok := e.cache[src]; ok {
		e.mu.RUnlock()
		return p, nil
	}
	e.mu.RUnlock()

	prog, err := expr.Compile(preprocess(src), expr.Env(map[string]any{}), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[src] = prog
	e.mu.Unlock()
	return prog, nil
}

// eval compiles (if needed) and runs src against c, returning ok=false for
// any compile or runtime failure rather than propagating the error, so
// callers can apply the documented degrade-gracefully edge policy.
func (e *Engine) eval(src string, c EvalContext) (any, bool) {
	prog, err := e.compile(src)
	if err != nil {
		return nil, false
	}
	out, err := expr.Run(prog, buildEnv(c))
	if err != nil {
		return nil, false
	}
	return out, true
}

// Resolve evaluates raw as a template: if, after trimming surrounding
// whitespace, raw is exactly one `{{ … }}` token, the typed value is
// returned unconverted; otherwise every `{{ … }}` occurrence is interpolated
// into the surrounding text as a string, with a malformed occurrence
// degrading to an empty string and a recorded warning (unless Strict).
func (e *Engine) Resolve(ec *domain.ExecutionContext, nodeName string, c EvalContext, raw string) (any, error) {
	if m := wholeTemplate.FindStringSubmatch(trimAll(raw)); m != nil && !strings.Contains(m[1], "{{") {
		val, ok := e.eval(m[1], c)
		if !ok {
			if e.Strict {
				return nil, domain.NewExpressionError(raw, "expression failed to evaluate", nil)
			}
			if ec != nil {
				ec.RecordWarning(nodeName, "malformed template: "+raw)
			}
			return "", nil
		}
		return val, nil
	}

	var firstErr error
	result := templatePattern.ReplaceAllStringFunc(raw, func(match string) string {
		inner := templatePattern.FindStringSubmatch(match)[1]
		val, ok := e.eval(inner, c)
		if !ok {
			if e.Strict && firstErr == nil {
				firstErr = domain.NewExpressionError(match, "expression failed to evaluate", nil)
			}
			if ec != nil {
				ec.RecordWarning(nodeName, "malformed template: "+match)
			}
			return ""
		}
		return helperToString(val)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return result, nil
}

// ResolveBool evaluates src (without `{{ }}` delimiters) expecting a boolean
// result, defaulting to false on any evaluation failure — the contract If
// and Switch use for rule conditions.
func (e *Engine) ResolveBool(c EvalContext, src string) bool {
	val, ok := e.eval(src, c)
	if !ok {
		return false
	}
	b, ok := val.(bool)
	return ok && b
}

// ResolveValue recursively resolves templates inside v: strings are passed
// through Resolve, maps and slices are walked, other types are returned
// unchanged. This is how a node's whole `parameters` bag is resolved in one
// pass (kernel step 3).
func (e *Engine) ResolveValue(ec *domain.ExecutionContext, nodeName string, c EvalContext, v any) (any, error) {
	switch x := v.(type) {
	case string:
		return e.Resolve(ec, nodeName, c, x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			rv, err := e.ResolveValue(ec, nodeName, c, vv)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, vv := range x {
			rv, err := e.ResolveValue(ec, nodeName, c, vv)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

func trimAll(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
