package expression

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// helperFuncs are the string/conversion/collection/time/reflection helpers
// the expression context exposes, per spec.md §4.3 ("semantics, not
// syntax" — names match the spec; calling convention is ordinary function
// call syntax, e.g. trim($json.name)).
var helperFuncs = map[string]any{
	"trim":      func(s string) string { return strings.TrimSpace(s) },
	"split":     func(s, sep string) []string { return strings.Split(s, sep) },
	"join":      helperJoin,
	"replace":   func(s, old, new string) string { return strings.ReplaceAll(s, old, new) },
	"includes":  helperIncludes,
	"substring": helperSubstring,
	"length":    helperLength,

	"String":     helperToString,
	"Number":     helperToNumber,
	"JSON_parse": helperJSONParse,

	"first":   func(v any) any { return helperAt(v, 0) },
	"last":    func(v any) any { return helperAt(v, -1) },
	"at":      helperAt,
	"isArray": helperIsArray,
	"isEmpty": helperIsEmpty,

	"now":    func() string { return time.Now().UTC().Format(time.RFC3339) },
	"typeof": helperTypeof,
}

func helperJoin(v any, sep string) string {
	switch parts := v.(type) {
	case []string:
		return strings.Join(parts, sep)
	case []any:
		strs := make([]string, len(parts))
		for i, p := range parts {
			strs[i] = helperToString(p)
		}
		return strings.Join(strs, sep)
	default:
		return helperToString(v)
	}
}

func helperIncludes(haystack any, needle any) bool {
	switch h := haystack.(type) {
	case string:
		s, _ := needle.(string)
		return strings.Contains(h, s)
	default:
		rv := reflect.ValueOf(haystack)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			if reflect.DeepEqual(rv.Index(i).Interface(), needle) {
				return true
			}
		}
		return false
	}
}

func helperSubstring(s string, start, end int) string {
	r := []rune(s)
	if start < 0 {
		start = 0
	}
	if end > len(r) {
		end = len(r)
	}
	if start >= end || start >= len(r) {
		return ""
	}
	return string(r[start:end])
}

func helperLength(v any) int {
	switch x := v.(type) {
	case string:
		return len([]rune(x))
	case nil:
		return 0
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
			return rv.Len()
		default:
			return 0
		}
	}
}

func helperToString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	}
}

func helperToNumber(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		return x
	case int:
		return float64(x)
	case bool:
		if x {
			return float64(1)
		}
		return float64(0)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		return f
	default:
		return nil
	}
}

func helperJSONParse(s string) any {
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func helperAt(v any, i int) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	n := rv.Len()
	if n == 0 {
		return nil
	}
	if i < 0 {
		i = n + i
	}
	if i < 0 || i >= n {
		return nil
	}
	return rv.Index(i).Interface()
}

func helperIsArray(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func helperIsEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			return rv.Len() == 0
		default:
			return false
		}
	}
}

func helperTypeof(v any) string {
	switch v.(type) {
	case nil:
		return "undefined"
	case string:
		return "string"
	case float64, int:
		return "number"
	case bool:
		return "boolean"
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			return "array"
		case reflect.Map:
			return "object"
		default:
			return "object"
		}
	}
}
