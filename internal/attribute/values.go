// internal/attribute/values.go
package attribute

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/qamatrix/internal/expr"
	"github.com/solatis/qamatrix/internal/types"
)

/*
 * Code value rendering and coercion.
 *
 * Code ids come from the catalog as string, int64, float64 or time.Time.
 * They appear in condition text in two spellings:
 *   - plain (formatValue): used to match condition terms back to codes
 *   - literal (literalValue): numbers bare, everything else single-quoted
 *     with embedded quotes doubled
 *
 * Numeric matching of user input against code names (the "01" == "1" case)
 * goes through parseNumber, which accepts the same forms strconv does after
 * trimming. Whitespace-only strings are not numbers.
 */

const dateLayout = "2006-01-02"

// formatValue renders a code id without quoting.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format(dateLayout)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// literalValue renders a code id as it appears in a condition.
func literalValue(v any) string {
	s := formatValue(v)
	switch v.(type) {
	case int, int64, float64:
		return s
	}
	if _, ok := parseNumber(s); ok {
		if _, isString := v.(string); !isString {
			return s
		}
	}
	return expr.Quote(s)
}

// parseNumber reports whether s spells a finite number.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// nullObject returns the first placeholder id of fieldType that does not
// collide with any existing code value. It stands for "no value" inside
// ISNULL(field, id) conditions.
func nullObject(fieldType types.FieldType, existing []any) any {
	used := make(map[string]bool, len(existing))
	for _, v := range existing {
		used[formatValue(v)] = true
	}

	switch fieldType {
	case types.FieldString:
		candidate := "<NULL>"
		for used[candidate] {
			candidate += "_"
		}
		return candidate
	case types.FieldDouble:
		candidate := -1.0
		for used[formatValue(candidate)] {
			candidate--
		}
		return candidate
	case types.FieldDate:
		candidate := time.Time{}
		for used[formatValue(candidate)] {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate
	default:
		candidate := int64(-1)
		for used[formatValue(candidate)] {
			candidate--
		}
		return candidate
	}
}

// normalizeValue converts catalog values to the canonical Go type of
// fieldType so that ids compare and render consistently.
func normalizeValue(fieldType types.FieldType, v any) any {
	switch fieldType {
	case types.FieldInteger:
		switch x := v.(type) {
		case int:
			return int64(x)
		case float64:
			if x == math.Trunc(x) {
				return int64(x)
			}
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
				return n
			}
		}
	case types.FieldDouble:
		switch x := v.(type) {
		case int:
			return float64(x)
		case int64:
			return float64(x)
		case string:
			if f, ok := parseNumber(x); ok {
				return f
			}
		}
	case types.FieldString:
		if _, ok := v.(string); !ok && v != nil {
			return formatValue(v)
		}
	case types.FieldDate:
		if s, ok := v.(string); ok {
			if t, err := time.Parse(dateLayout, strings.TrimSpace(s)); err == nil {
				return t
			}
		}
	}
	return v
}
