package harness

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/dvaldb/internal/engine"
)

// AssertionError describes a failed assertion. Trace is set for trace
// assertions so the failure shows what actually ran.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
	if len(e.Trace) > 0 {
		b.WriteString("\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&b, "  [%d] %s %s %v -> %s\n", ev.Seq, ev.Op, ev.Table, ev.Args, ev.Outcome)
		}
	}
	return b.String()
}

// assertTraceContains checks if the trace contains a step matching the
// specified op, table and args (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Op != assertion.Op {
			continue
		}
		if assertion.Table != "" && !strings.EqualFold(event.Table, assertion.Table) {
			continue
		}
		if matchArgs(event.Args, assertion.Args) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("op %s on %s with args %v", assertion.Op, assertion.Table, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if ops appear in the specified order.
// Ops don't need to be consecutive (intervening steps are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for _, want := range assertion.Ops {
		found := false
		for pos < len(trace) {
			pos++
			if trace[pos-1].Op == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", assertion.Ops),
				Actual:   fmt.Sprintf("%s not found after position %d", want, pos),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the op appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == assertion.Op && (assertion.Table == "" || strings.EqualFold(event.Table, assertion.Table)) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks that exactly one row of the table matches Where
// and that it contains Expect. Rows are read through the engine, so
// relations compare as nested objects.
func assertFinalState(ctx context.Context, eng *engine.Engine, assertion Assertion) error {
	t, err := eng.Table(assertion.Table)
	if err != nil {
		return err
	}
	rows, err := eng.FetchAll(ctx, t)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("fetch table %s", assertion.Table),
			Actual:   fmt.Sprintf("fetch error: %v", err),
		}
	}
	all, err := rowsToGo(rows)
	if err != nil {
		return err
	}

	var matched []any
	for _, row := range all {
		if matchArgs(row, assertion.Where) {
			matched = append(matched, row)
		}
	}

	whereDesc := formatWhereClause(assertion.Where)
	switch len(matched) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, whereDesc),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, whereDesc),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actualRow := matched[0].(map[string]any)
	for _, key := range sortedKeys(assertion.Expect) {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in row: %v", key, actualRow),
			}
		}
		if !valuesEqual(actualValue, expectedValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}
	return nil
}

func assertRowCount(ctx context.Context, eng *engine.Engine, assertion Assertion) error {
	t, err := eng.Table(assertion.Table)
	if err != nil {
		return err
	}
	n, err := eng.Count(ctx, t)
	if err != nil {
		return err
	}
	if n != int64(assertion.Count) {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s", assertion.Count, assertion.Table),
			Actual:   fmt.Sprintf("%d rows", n),
		}
	}
	return nil
}

func assertLocked(ctx context.Context, eng *engine.Engine, assertion Assertion) error {
	t, err := eng.Table(assertion.Table)
	if err != nil {
		return err
	}
	locked, err := eng.IsLocked(ctx, t)
	if err != nil {
		return err
	}
	if locked != assertion.Locked {
		return &AssertionError{
			Type:     AssertLocked,
			Expected: fmt.Sprintf("%s locked=%v", assertion.Table, assertion.Locked),
			Actual:   fmt.Sprintf("locked=%v", locked),
		}
	}
	return nil
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// matchArgs checks if actual contains all expected keys (subset match).
// Extra keys in actual are ignored. Nested objects match as subsets too.
func matchArgs(actual any, expected map[string]any) bool {
	if len(expected) == 0 {
		return true
	}

	actualMap, ok := actual.(map[string]any)
	if !ok {
		return false
	}

	for key, expectedVal := range expected {
		actualVal, exists := actualMap[key]
		if !exists {
			return false
		}
		if !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares a decoded value with a YAML-decoded expectation.
// Numbers compare by value whatever their Go type; expected maps are
// subset matches.
func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}

	if em, ok := expected.(map[string]any); ok {
		return matchArgs(actual, em)
	}
	if el, ok := expected.([]any); ok {
		al, ok := actual.([]any)
		if !ok || len(al) != len(el) {
			return false
		}
		for i := range el {
			if !valuesEqual(al[i], el[i]) {
				return false
			}
		}
		return true
	}

	an, aok := toFloat(actual)
	en, eok := toFloat(expected)
	if aok && eok {
		return an == en || (math.IsNaN(an) && math.IsNaN(en))
	}

	return reflect.DeepEqual(actual, expected)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// AssertionContext gives state assertions access to the engine.
type AssertionContext struct {
	Engine *engine.Engine
	Ctx    context.Context
}

type traceCheck func([]TraceEvent, Assertion) error

type stateCheck func(context.Context, *engine.Engine, Assertion) error

var (
	traceChecks = map[string]traceCheck{
		AssertTraceContains: assertTraceContains,
		AssertTraceOrder:    assertTraceOrder,
		AssertTraceCount:    assertTraceCount,
	}
	stateChecks = map[string]stateCheck{
		AssertFinalState: assertFinalState,
		AssertRowCount:   assertRowCount,
		AssertLocked:     assertLocked,
	}
)

// EvaluateAssertions returns one message per failed assertion. State
// assertions fail when actx carries no engine.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		if check, ok := traceChecks[a.Type]; ok {
			err = check(result.Trace, a)
		} else if check, ok := stateChecks[a.Type]; ok {
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: %s requires engine context", i, a.Type)
			} else {
				err = check(actx.Ctx, actx.Engine, a)
			}
		} else {
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}
