package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Op: OpInsert, Table: "Person", Args: map[string]any{"fields": map[string]any{"name": "Ada", "age": 36}}, Outcome: OutcomeOK},
		{Seq: 2, Op: OpFetch, Table: "Person", Outcome: OutcomeOK},
		{Seq: 3, Op: OpInsert, Table: "Post", Args: map[string]any{"fields": map[string]any{"title": "Hello"}}, Outcome: OutcomeOK},
		{Seq: 4, Op: OpSetColumn, Table: "Person", Outcome: "LOCKED"},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpInsert, Table: "post"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpInsert, Args: map[string]any{"fields": map[string]any{"age": int64(36)}}}))

	err := assertTraceContains(trace, Assertion{Op: OpDelete})
	var aerr *AssertionError
	assert.ErrorAs(t, err, &aerr)
	assert.Contains(t, err.Error(), "Full trace:")
	assert.Contains(t, err.Error(), "[4] set_column Person")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{OpInsert, OpFetch, OpSetColumn}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{OpInsert, OpInsert}}))
	assert.Error(t, assertTraceOrder(trace, Assertion{Ops: []string{OpSetColumn, OpFetch}}))
	assert.Error(t, assertTraceOrder(trace, Assertion{Ops: []string{OpInsert, OpInsert, OpInsert}}))
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpInsert, Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpInsert, Table: "Person", Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpDelete, Count: 0}))
	assert.ErrorContains(t, assertTraceCount(trace, Assertion{Op: OpFetch, Count: 3}), "1 occurrences")
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		actual   any
		expected any
		want     bool
	}{
		{"int vs int64", int64(36), 36, true},
		{"float vs int", float64(2), 2, true},
		{"float mismatch", 1.5, 2, false},
		{"strings", "Ada", "Ada", true},
		{"nil both", nil, nil, true},
		{"nil one", nil, "x", false},
		{"nested subset", map[string]any{"name": "Ada", "id": "x"}, map[string]any{"name": "Ada"}, true},
		{"nested mismatch", map[string]any{"name": "Ada"}, map[string]any{"name": "Grace"}, false},
		{"lists", []any{int64(1), "a"}, []any{1, "a"}, true},
		{"list length", []any{int64(1)}, []any{1, 2}, false},
		{"bools", true, true, true},
		{"type mismatch", "1", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, valuesEqual(tt.actual, tt.expected))
		})
	}
}

func TestMatchArgs(t *testing.T) {
	actual := map[string]any{"a": int64(1), "b": "x"}

	assert.True(t, matchArgs(actual, nil))
	assert.True(t, matchArgs(actual, map[string]any{"a": 1}))
	assert.False(t, matchArgs(actual, map[string]any{"c": 1}))
	assert.False(t, matchArgs("not a map", map[string]any{"a": 1}))
}

func TestFormatWhereClause(t *testing.T) {
	assert.Equal(t, "(no conditions)", formatWhereClause(nil))
	assert.Equal(t, "a=1 AND b=x", formatWhereClause(map[string]any{"b": "x", "a": 1}))
}

func TestEvaluateAssertions_StateNeedsEngine(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: AssertRowCount, Table: "Person"}}, nil)
	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires engine context")
}
