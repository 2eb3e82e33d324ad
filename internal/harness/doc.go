// Package harness runs persistence scenarios against the engine.
//
// A scenario loads table definitions from a schema file, runs a flow of
// engine operations over a fresh in-memory SQLite store, checks each step's
// outcome and evaluates assertions over the trace and the final rows.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	schema: blog.yaml
//	setup:
//	  - op: insert
//	    table: Person
//	    fields: { name: Ada }
//	flow:
//	  - op: insert
//	    table: Post
//	    fields: { title: Hello, author: { name: Grace } }
//	    expect:
//	      result: { id: "00000000-0000-4000-8000-000000000002" }
//	  - op: set_column
//	    table: Post
//	    column: title
//	    type: Int
//	    expect: { error: LOCKED }
//	assertions:
//	  - type: row_count
//	    table: Person
//	    count: 2
//	  - type: final_state
//	    table: Post
//	    where: { title: Hello }
//	    expect: { author: { name: Grace } }
//
// # Operations
//
// insert, update, delete, truncate, fetch, count, add_column, set_column
// and begin_migration map onto the engine operation of the same name.
// A step without an expect clause must succeed.
//
// # Assertion Types
//
//   - trace_contains: an operation on a table appears in the trace with matching args
//   - trace_order: operations appear in the given order
//   - trace_count: an operation appears exactly N times
//   - final_state: exactly one row matches where and contains expect
//   - row_count: a table holds exactly N rows
//   - locked: a table's lock state
//
// # Deterministic Testing
//
// Row ids come from testutil.SequentialUUIDs and table ids are derived from
// table names, so traces and final state are identical across runs and can
// be compared against golden files with RunWithGolden.
package harness
