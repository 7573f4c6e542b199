package builtin

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// evalCondition implements the (field, operation, value) contract shared by
// If and Switch: field is a dot-notation path into the item's json, op is
// one of the spec's documented operations, value is the (already resolved)
// comparison operand.
func evalCondition(data map[string]any, field, op string, value any) (bool, error) {
	fieldVal := getPath(data, field)
	switch op {
	case "equals":
		return looseEqual(fieldVal, value), nil
	case "notEquals":
		return !looseEqual(fieldVal, value), nil
	case "contains":
		return containsVal(fieldVal, value), nil
	case "gt":
		n, ok := compareNum(fieldVal, value)
		return ok && n > 0, nil
	case "gte":
		n, ok := compareNum(fieldVal, value)
		return ok && n >= 0, nil
	case "lt":
		n, ok := compareNum(fieldVal, value)
		return ok && n < 0, nil
	case "lte":
		n, ok := compareNum(fieldVal, value)
		return ok && n <= 0, nil
	case "isEmpty":
		return isEmptyVal(fieldVal), nil
	case "isNotEmpty":
		return !isEmptyVal(fieldVal), nil
	case "isTrue":
		b, _ := fieldVal.(bool)
		return b, nil
	case "isFalse":
		b, ok := fieldVal.(bool)
		return ok && !b, nil
	case "regex":
		s, _ := fieldVal.(string)
		pattern, _ := value.(string)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, nil
		}
		return re.MatchString(s), nil
	default:
		return false, fmt.Errorf("unknown condition operation %q", op)
	}
}

func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func containsVal(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		s := fmt.Sprintf("%v", needle)
		return strings.Contains(h, s)
	default:
		rv := reflect.ValueOf(haystack)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			if looseEqual(rv.Index(i).Interface(), needle) {
				return true
			}
		}
		return false
	}
}

// compareNum compares a and b numerically, reporting ok=false when either
// side cannot be read as a number.
func compareNum(a, b any) (int, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func isEmptyVal(v any) bool {
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
