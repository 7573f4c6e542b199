// Package builtin implements the semantic contracts of the built-in node
// types (spec C7): Start, Webhook, Cron, ErrorTrigger, Set, HttpRequest,
// Code, If, Switch, Merge, SplitInBatches, Wait, and the LLM completion
// node the domain stack adds. Each type is grounded on the equivalent
// executor in the teacher's internal/application/executor/node_executors.go
// (per-type struct + Execute method shape), re-targeted to the
// registry.Node contract and the spec's output-routing rules.
package builtin

import (
	"strconv"
	"strings"
	"time"
)

// durationMs converts a millisecond count into a time.Duration.
func durationMs(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// asInt coerces a resolved parameter value (float64 from JSON decoding, a
// literal int, or a numeric string) into an int, defaulting to 0.
func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// getPath resolves a dot-notation path ("a.b.c") against a JSON-like map,
// returning nil for any missing segment.
func getPath(data map[string]any, path string) any {
	if path == "" {
		return nil
	}
	var cur any = data
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[seg]
	}
	return cur
}
