package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSchema(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.cue")
	require.NoError(t, os.WriteFile(path, []byte(`
table: Person: columns: {
	name: string
	age:  int
}
`), 0o644))
	return path
}

func TestRun_BlogRelationsGolden(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "blog_relations.yaml"))
	require.NoError(t, err)

	require.NoError(t, RunWithGolden(t, scenario))
}

func TestRun_ReportsExpectMismatches(t *testing.T) {
	scenario := &Scenario{
		Name:   "mismatch",
		Schema: writeSchema(t),
		Flow: []Step{
			{Op: OpInsert, Table: "Person", Fields: map[string]any{"name": "Ada", "age": 36}},
			{Op: OpCount, Table: "Person", Expect: &ExpectClause{Result: map[string]any{"count": 5}}},
			{Op: OpSetColumn, Table: "Person", Column: "age", Type: "Str", Expect: &ExpectClause{Error: "NOT_FOUND"}},
			{Op: OpFetch, Table: "Person", Expect: &ExpectClause{Rows: []map[string]any{{"name": "Grace"}}}},
		},
		Assertions: []Assertion{{Type: AssertRowCount, Table: "Person", Count: 1}},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "flow step 1 (count Person)")
	assert.Contains(t, result.Errors[1], "expected outcome NOT_FOUND, got LOCKED")
	assert.Contains(t, result.Errors[2], "does not contain")
}

func TestRun_SuccessfulFlow(t *testing.T) {
	scenario := &Scenario{
		Name:   "lifecycle",
		Schema: writeSchema(t),
		Flow: []Step{
			{Op: OpInsert, Table: "Person", Fields: map[string]any{"name": "Ada", "age": 36}},
			{Op: OpUpdate, Table: "Person", Fields: map[string]any{"id": "00000000-0000-4000-8000-000000000001", "age": 37}},
			{Op: OpAddColumn, Table: "Person", Column: "email", Type: "Str", Expect: &ExpectClause{Result: map[string]any{"version": 1}}},
			{Op: OpSetColumn, Table: "Person", Column: "name", Rename: "fullName"},
			{Op: OpBeginMigration, Table: "Person", Column: "age", Expect: &ExpectClause{Result: map[string]any{"starting_version": 2}}},
			{Op: OpBeginMigration, Table: "Person", Column: "age", Expect: &ExpectClause{Error: OutcomeMigrationActive}},
			{Op: OpFetch, Table: "Person", By: "fullName", Value: "Ada", Expect: &ExpectClause{Rows: []map[string]any{{"age": 37}}}},
			{Op: OpInsert, Table: "Ghost", Fields: map[string]any{}, Expect: &ExpectClause{Error: "NOT_FOUND"}},
			{Op: OpDelete, Table: "Person", Fields: map[string]any{"id": "00000000-0000-4000-8000-000000000001"}},
		},
		Assertions: []Assertion{
			{Type: AssertRowCount, Table: "Person", Count: 0},
			{Type: AssertLocked, Table: "Person", Locked: false},
			{Type: AssertTraceCount, Op: OpBeginMigration, Count: 2},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Len(t, result.Trace, 9)
	assert.Equal(t, []any{}, result.State["Person"])
}

func TestRun_SetupFailureAborts(t *testing.T) {
	scenario := &Scenario{
		Name:       "bad setup",
		Schema:     writeSchema(t),
		Setup:      []Step{{Op: OpInsert, Table: "Person", Fields: map[string]any{"age": "old"}}},
		Flow:       []Step{{Op: OpCount, Table: "Person"}},
		Assertions: []Assertion{{Type: AssertRowCount, Table: "Person"}},
	}

	_, err := Run(context.Background(), scenario)
	assert.ErrorContains(t, err, "setup step 0")
}

func TestRun_FinalStateAssertion(t *testing.T) {
	scenario := &Scenario{
		Name:   "final state",
		Schema: writeSchema(t),
		Setup: []Step{
			{Op: OpInsert, Table: "Person", Fields: map[string]any{"name": "Ada", "age": 36}},
			{Op: OpInsert, Table: "Person", Fields: map[string]any{"name": "Ada", "age": 40}},
		},
		Flow: []Step{{Op: OpCount, Table: "Person"}},
		Assertions: []Assertion{
			{Type: AssertFinalState, Table: "Person", Where: map[string]any{"age": 36}, Expect: map[string]any{"name": "Ada"}},
			{Type: AssertFinalState, Table: "Person", Where: map[string]any{"name": "Ada"}, Expect: map[string]any{"age": 36}},
			{Type: AssertFinalState, Table: "Person", Where: map[string]any{"name": "Grace"}, Expect: map[string]any{"age": 1}},
			{Type: AssertFinalState, Table: "Person", Where: map[string]any{"age": 40}, Expect: map[string]any{"email": "x"}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "multiple rows matched")
	assert.Contains(t, result.Errors[1], "row not found")
	assert.Contains(t, result.Errors[2], `field "email" to exist`)
}

func TestMarshalSnapshot_TrailingNewline(t *testing.T) {
	result := NewResult()
	result.AddTrace(TraceEvent{Op: OpCount, Table: "Person", Outcome: OutcomeOK})

	data, err := MarshalSnapshot("x", result)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])
	assert.Contains(t, string(data), `"seq": 1`)
}
