package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a persistence scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is a CUE or YAML table-definition file. Relative paths are
	// resolved against the scenario file's directory.
	Schema string `yaml:"schema"`

	// Setup steps establish initial rows. They must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the steps under test.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and rows.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one engine operation.
type Step struct {
	// Op names the operation (OpInsert, OpFetch, ...).
	Op string `yaml:"op"`

	// Table is the display name the operation targets.
	Table string `yaml:"table"`

	// Fields is the object for insert, update and delete.
	Fields map[string]any `yaml:"fields,omitempty"`

	// By and Value select rows for fetch. Without By every row is fetched.
	By    string `yaml:"by,omitempty"`
	Value any    `yaml:"value,omitempty"`

	// Column, Type and Rename describe schema edits.
	Column string `yaml:"column,omitempty"`
	Type   string `yaml:"type,omitempty"`
	Rename string `yaml:"rename,omitempty"`

	// Expect specifies the expected outcome. Nil means the step must
	// succeed with any result.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected step behavior.
type ExpectClause struct {
	// Error is the expected error code (e.g. "LOCKED", "NOT_FOUND",
	// "MIGRATION_ACTIVE"). Empty means success.
	Error string `yaml:"error,omitempty"`

	// Result contains expected result fields.
	// This is a subset match - only specified fields are validated.
	Result map[string]any `yaml:"result,omitempty"`

	// Rows are the expected fetched rows in order, each a subset match.
	Rows []map[string]any `yaml:"rows,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op is the operation name (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Ops is the expected operation order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Table is the display name (trace_contains, final_state, row_count, locked).
	Table string `yaml:"table,omitempty"`

	// Args are the expected step args (trace_contains). Subset match.
	Args map[string]any `yaml:"args,omitempty"`

	// Where selects the row (final_state). All fields must match.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number (trace_count, row_count).
	Count int `yaml:"count,omitempty"`

	// Locked is the expected lock state (locked).
	Locked bool `yaml:"locked,omitempty"`
}

// Operation names.
const (
	OpInsert         = "insert"
	OpUpdate         = "update"
	OpDelete         = "delete"
	OpTruncate       = "truncate"
	OpFetch          = "fetch"
	OpCount          = "count"
	OpAddColumn      = "add_column"
	OpSetColumn      = "set_column"
	OpBeginMigration = "begin_migration"
)

var knownOps = map[string]bool{
	OpInsert: true, OpUpdate: true, OpDelete: true, OpTruncate: true,
	OpFetch: true, OpCount: true, OpAddColumn: true, OpSetColumn: true,
	OpBeginMigration: true,
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertRowCount      = "row_count"
	AssertLocked        = "locked"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}
	if _, err := os.Stat(scenario.Schema); err != nil {
		return nil, fmt.Errorf("invalid scenario: schema file not found: %s", scenario.Schema)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the file system.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step); err != nil {
			return err
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: setup steps cannot have expect", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(where string, step Step) error {
	if step.Op == "" {
		return fmt.Errorf("%s: op is required", where)
	}
	if !knownOps[step.Op] {
		return fmt.Errorf("%s: unknown op %q", where, step.Op)
	}
	if step.Table == "" {
		return fmt.Errorf("%s: table is required", where)
	}
	switch step.Op {
	case OpInsert, OpUpdate, OpDelete:
		if step.Fields == nil {
			return fmt.Errorf("%s: fields is required for %s (use empty map if no fields)", where, step.Op)
		}
	case OpAddColumn, OpSetColumn, OpBeginMigration:
		if step.Column == "" {
			return fmt.Errorf("%s: column is required for %s", where, step.Op)
		}
	}
	if step.Op == OpSetColumn && step.Type == "" && step.Rename == "" {
		return fmt.Errorf("%s: set_column needs type or rename", where)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertLocked:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for locked", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
