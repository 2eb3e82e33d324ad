package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roach88/dvaldb/internal/dval"
	"github.com/roach88/dvaldb/internal/engine"
	"github.com/roach88/dvaldb/internal/logging"
	"github.com/roach88/dvaldb/internal/schema"
	"github.com/roach88/dvaldb/internal/schemafile"
	"github.com/roach88/dvaldb/internal/store"
	"github.com/roach88/dvaldb/internal/testutil"
)

// tableNamespace derives deterministic table ids from display names.
var tableNamespace = uuid.MustParse("6f1c2a7e-3c1e-4a57-9d0e-2b8f7c4d5e60")

// Harness executes scenario steps against one engine.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	logger *zap.SugaredLogger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and engine with sequential row ids
// 2. Create every table of the schema file
// 3. Execute setup steps, failing on any error
// 4. Execute flow steps with expect validation
// 5. Evaluate assertions and capture the final rows of every table
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := logging.Nop()
	eng := engine.New(st, nil,
		engine.WithIDSource(testutil.NewSequentialUUIDs().Next),
		engine.WithLogger(logger),
	)
	h := &Harness{store: st, engine: eng, logger: logger}

	if err := h.createTables(ctx, scenario.Schema); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Setup {
		event, err := h.execute(ctx, step)
		result.AddTrace(event)
		if err != nil {
			return nil, fmt.Errorf("setup step %d: %w", i, err)
		}
	}

	for i, step := range scenario.Flow {
		event, err := h.execute(ctx, step)
		result.AddTrace(event)
		for _, msg := range checkExpect(step, event, err) {
			result.AddError(fmt.Sprintf("flow step %d (%s %s): %s", i, step.Op, step.Table, msg))
		}
		h.logger.Debugw("flow step completed", "step", i, "op", step.Op, "table", step.Table, "outcome", event.Outcome)
	}

	actx := &AssertionContext{Engine: eng, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	for _, t := range eng.Registry().Tables() {
		rows, err := eng.FetchAll(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("capture state of %s: %w", t.DisplayName, err)
		}
		out, err := rowsToGo(rows)
		if err != nil {
			return nil, fmt.Errorf("capture state of %s: %w", t.DisplayName, err)
		}
		result.State[t.DisplayName] = out
	}

	return result, nil
}

func (h *Harness) createTables(ctx context.Context, path string) error {
	defs, err := schemafile.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}
	for _, def := range defs {
		id := uuid.NewSHA1(tableNamespace, []byte(def.Name))
		if _, err := h.engine.CreateTable(ctx, def.Table(id, h.engine.HoleIDs().Next)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", def.Name, err)
		}
	}
	return nil
}

// execute runs one step. The returned error is the engine's; the event
// carries its code as the outcome.
func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, error) {
	event := TraceEvent{Op: step.Op, Table: step.Table, Args: stepArgs(step)}
	result, err := h.dispatch(ctx, step)
	event.Outcome = outcome(err)
	if err == nil {
		event.Result = result
	}
	return event, err
}

func (h *Harness) dispatch(ctx context.Context, step Step) (any, error) {
	eng := h.engine
	t, err := eng.Table(step.Table)
	if err != nil {
		return nil, err
	}

	switch step.Op {
	case OpInsert:
		fields, err := h.fields(t, step.Fields)
		if err != nil {
			return nil, err
		}
		id, err := eng.Insert(ctx, t, fields)
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": id.String()}, nil

	case OpUpdate:
		fields, err := h.fields(t, step.Fields)
		if err != nil {
			return nil, err
		}
		return nil, eng.Update(ctx, t, fields)

	case OpDelete:
		fields, err := h.fields(t, step.Fields)
		if err != nil {
			return nil, err
		}
		return nil, eng.Delete(ctx, t, fields)

	case OpTruncate:
		return nil, eng.DeleteAll(ctx, t)

	case OpFetch:
		var rows []dval.DObj
		if step.By == "" {
			rows, err = eng.FetchAll(ctx, t)
		} else {
			var where dval.DObj
			where, err = h.fields(t, map[string]any{step.By: step.Value})
			if err != nil {
				return nil, err
			}
			rows, err = eng.FetchBy(ctx, t, step.By, where[step.By])
		}
		if err != nil {
			return nil, err
		}
		out, err := rowsToGo(rows)
		if err != nil {
			return nil, err
		}
		return map[string]any{"count": int64(len(rows)), "rows": out}, nil

	case OpCount:
		n, err := eng.Count(ctx, t)
		if err != nil {
			return nil, err
		}
		return map[string]any{"count": n}, nil

	case OpAddColumn:
		holes := eng.HoleIDs()
		nameID, typeID := holes.Next(), holes.Next()
		edits := []schema.Edit{schema.EditAddColumn(nameID, typeID), schema.EditSetColumnName(nameID, step.Column)}
		if step.Type != "" {
			tipe, err := dval.ParseTipe(step.Type)
			if err != nil {
				return nil, err
			}
			edits = append(edits, schema.EditSetColumnType(typeID, tipe))
		}
		t, err = eng.EditSchema(ctx, step.Table, schema.Chain(edits...))
		if err != nil {
			return nil, err
		}
		return map[string]any{"version": int64(t.Version)}, nil

	case OpSetColumn:
		col, ok := t.ColumnNamed(step.Column)
		if !ok {
			return nil, fmt.Errorf("table %s has no column %q", t.DisplayName, step.Column)
		}
		var edits []schema.Edit
		if step.Type != "" {
			tipe, err := dval.ParseTipe(step.Type)
			if err != nil {
				return nil, err
			}
			if col.Type.IsFull() {
				edits = append(edits, schema.EditChangeColumnType(col.Type.ID(), tipe))
			} else {
				edits = append(edits, schema.EditSetColumnType(col.Type.ID(), tipe))
			}
		}
		if step.Rename != "" {
			edits = append(edits, schema.EditChangeColumnName(col.Name.ID(), step.Rename))
		}
		t, err = eng.EditSchema(ctx, step.Table, schema.Chain(edits...))
		if err != nil {
			return nil, err
		}
		return map[string]any{"version": int64(t.Version)}, nil

	case OpBeginMigration:
		col, ok := t.ColumnNamed(step.Column)
		if !ok {
			return nil, fmt.Errorf("table %s has no column %q", t.DisplayName, step.Column)
		}
		holes := eng.HoleIDs()
		t, err = eng.BeginMigration(ctx, step.Table, schema.ChangeColType, col.Type.ID(), holes.Next(), holes.Next())
		if err != nil {
			return nil, err
		}
		return map[string]any{"starting_version": int64(t.ActiveMigration.StartingVersion)}, nil
	}
	return nil, fmt.Errorf("unknown op %q", step.Op)
}

// fields converts YAML-decoded values and coerces them against t.
func (h *Harness) fields(t schema.Table, raw map[string]any) (dval.DObj, error) {
	v, err := dval.FromGo(raw)
	if err != nil {
		return nil, err
	}
	return h.engine.Coerce(t, v.(dval.DObj))
}

func outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	var engErr *engine.Error
	if errors.As(err, &engErr) {
		return string(engErr.Code)
	}
	if schema.IsMigrationActive(err) {
		return OutcomeMigrationActive
	}
	return OutcomeError
}

// checkExpect returns the mismatches between a step's outcome and its
// expect clause.
func checkExpect(step Step, event TraceEvent, err error) []string {
	want := step.Expect
	if want == nil {
		want = &ExpectClause{}
	}
	if event.Outcome != outcomeOrOK(want.Error) {
		msg := fmt.Sprintf("expected outcome %s, got %s", outcomeOrOK(want.Error), event.Outcome)
		if err != nil {
			msg += ": " + err.Error()
		}
		return []string{msg}
	}

	var msgs []string
	if len(want.Result) > 0 && !matchArgs(event.Result, want.Result) {
		msgs = append(msgs, fmt.Sprintf("result %v does not contain %v", event.Result, want.Result))
	}
	if want.Rows != nil {
		got, _ := event.Result.(map[string]any)
		rows, _ := got["rows"].([]any)
		if len(rows) != len(want.Rows) {
			msgs = append(msgs, fmt.Sprintf("expected %d rows, got %d", len(want.Rows), len(rows)))
		} else {
			for i := range rows {
				if !matchArgs(rows[i], want.Rows[i]) {
					msgs = append(msgs, fmt.Sprintf("row %d: %v does not contain %v", i, rows[i], want.Rows[i]))
				}
			}
		}
	}
	return msgs
}

func outcomeOrOK(code string) string {
	if code == "" {
		return OutcomeOK
	}
	return code
}

// stepArgs is the trace form of a step's inputs.
func stepArgs(step Step) map[string]any {
	args := map[string]any{}
	if step.Fields != nil {
		args["fields"] = step.Fields
	}
	if step.By != "" {
		args["by"] = step.By
		args["value"] = step.Value
	}
	if step.Column != "" {
		args["column"] = step.Column
	}
	if step.Type != "" {
		args["type"] = step.Type
	}
	if step.Rename != "" {
		args["rename"] = step.Rename
	}
	if len(args) == 0 {
		return nil
	}
	return args
}

func rowsToGo(rows []dval.DObj) ([]any, error) {
	out := make([]any, len(rows))
	for i, row := range rows {
		g, err := dval.ToGo(row)
		if err != nil {
			return nil, err
		}
		out[i] = g
	}
	return out, nil
}
