package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func seedPerson(t *testing.T, dsn string) string {
	t.Helper()
	mustRun(t, dsn, "create", "Person", "name:Str", "age:Int")
	out := mustRun(t, dsn, "insert", "Person", `{"name":"Ada","age":36}`)
	id := strings.TrimSpace(out)
	_, err := uuid.Parse(id)
	require.NoError(t, err, "insert prints the new id")
	return id
}

func TestCreateAndTables(t *testing.T) {
	dsn := testDSN(t)

	out := mustRun(t, dsn, "create", "Person", "name:Str", "age:Int")
	assert.Contains(t, out, "✓ Created Person (user_person, v0) name:Str age:Int")

	mustRun(t, dsn, "create", "Post", "title:Str", "author:Person", "comments:[Comment]")

	out = mustRun(t, dsn, "tables")
	assert.Contains(t, out, "Person (user_person, v0) name:Str age:Int")
	assert.Contains(t, out, "Post (user_post, v0) title:Str author:BelongsTo(Person) comments:HasMany(Comment)")
}

func TestCreate_Errors(t *testing.T) {
	dsn := testDSN(t)
	mustRun(t, dsn, "create", "Person", "name:Str")

	tests := []struct {
		name     string
		args     []string
		wantExit int
		wantOut  string
	}{
		{"duplicate table", []string{"create", "person", "x:Int"}, ExitFailure, "CONFLICT"},
		{"bad column", []string{"create", "A", "nocolon"}, ExitCommandError, "want name:Type"},
		{"bad type", []string{"create", "A", "x:nope"}, ExitCommandError, "unknown tipe"},
		{"no name", []string{"create"}, ExitCommandError, "needs a table name"},
		{"file and args", []string{"create", "A", "--file", "x.cue"}, ExitCommandError, "either --file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, dsn, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestCreate_FromCUEFile(t *testing.T) {
	dsn := testDSN(t)
	path := filepath.Join(t.TempDir(), "blog.cue")
	require.NoError(t, os.WriteFile(path, []byte(`
table: Person: columns: {
	name: string
}
table: Post: columns: {
	title:  string
	author: "Person"
}
`), 0o644))

	out := mustRun(t, dsn, "create", "--file", path)
	assert.Contains(t, out, "✓ Created 2 table(s)")

	out = mustRun(t, dsn, "create", "--file", path, "--format", "json")
	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"created": nil}, resp.Data)
}

func TestInsertFetchRoundTrip(t *testing.T) {
	dsn := testDSN(t)
	id := seedPerson(t, dsn)

	out := mustRun(t, dsn, "fetch", "Person")
	assert.Equal(t, `{age: 36, id: <ID: `+id+`>, name: "Ada"}`+"\n", out)

	out = mustRun(t, dsn, "fetch", "Person", "--format", "json")
	resp := decodeResponse(t, out)
	assert.Equal(t, []any{
		map[string]any{"id": id, "name": "Ada", "age": float64(36)},
	}, resp.Data)
}

func TestInsert_NestedRelation(t *testing.T) {
	dsn := testDSN(t)
	mustRun(t, dsn, "create", "Person", "name:Str")
	mustRun(t, dsn, "create", "Post", "title:Str", "author:Person")

	mustRun(t, dsn, "insert", "Post", `{"title":"Hello","author":{"name":"Ada"}}`)

	assert.Equal(t, "1\n", mustRun(t, dsn, "count", "Person"))
	out := mustRun(t, dsn, "fetch", "Post", "--format", "json")
	rows := decodeResponse(t, out).Data.([]any)
	require.Len(t, rows, 1)
	author := rows[0].(map[string]any)["author"].(map[string]any)
	assert.Equal(t, "Ada", author["name"])
}

func TestInsert_BadInput(t *testing.T) {
	dsn := testDSN(t)
	mustRun(t, dsn, "create", "Person", "name:Str", "age:Int")

	tests := []struct {
		name     string
		json     string
		wantExit int
		wantOut  string
	}{
		{"invalid json", `{"name":`, ExitCommandError, "invalid JSON"},
		{"not an object", `[1,2]`, ExitCommandError, "expected a JSON object"},
		{"unknown column", `{"nope":1}`, ExitFailure, "INVALID_VALUE"},
		{"wrong type", `{"age":"old"}`, ExitFailure, "INVALID_VALUE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, dsn, "insert", "Person", tt.json)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestFetchBy(t *testing.T) {
	dsn := testDSN(t)
	seedPerson(t, dsn)
	mustRun(t, dsn, "insert", "Person", `{"name":"Grace","age":45}`)

	out := mustRun(t, dsn, "fetch", "Person", "--by", "name", "--value", `"Grace"`)
	assert.Contains(t, out, `name: "Grace"`)
	assert.NotContains(t, out, "Ada")

	out = mustRun(t, dsn, "fetch", "Person", "--by", "age", "--value", "36")
	assert.Contains(t, out, `name: "Ada"`)

	out = mustRun(t, dsn, "fetch", "Person", "--by", "name", "--value", `"Nobody"`)
	assert.Empty(t, out)
}

func TestFetch_BSON(t *testing.T) {
	dsn := testDSN(t)
	id := seedPerson(t, dsn)

	out := mustRun(t, dsn, "fetch", "Person", "--format", "bson")

	var doc bson.M
	require.NoError(t, bson.Unmarshal([]byte(out), &doc))
	assert.Equal(t, id, doc["id"])
	assert.Equal(t, "Ada", doc["name"])
	assert.Equal(t, int64(36), doc["age"])
}

func TestUpdateDeleteTruncate(t *testing.T) {
	dsn := testDSN(t)
	id := seedPerson(t, dsn)

	mustRun(t, dsn, "update", "Person", `{"id":"`+id+`","age":37}`)
	out := mustRun(t, dsn, "fetch", "Person")
	assert.Contains(t, out, "age: 37")

	_, err := runCLI(t, dsn, "update", "Person", `{"age":38}`)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out = mustRun(t, dsn, "delete", "Person", id)
	assert.Contains(t, out, "✓ Deleted "+id)
	assert.Equal(t, "0\n", mustRun(t, dsn, "count", "Person"))

	_, err = runCLI(t, dsn, "delete", "Person", "not-a-uuid")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	mustRun(t, dsn, "insert", "Person", `{"name":"Grace"}`)
	mustRun(t, dsn, "insert", "Person", `{"name":"Linus"}`)
	out = mustRun(t, dsn, "truncate", "Person", "--format", "json")
	assert.Equal(t, map[string]any{"truncated": "Person"}, decodeResponse(t, out).Data)
	assert.Equal(t, "0\n", mustRun(t, dsn, "count", "Person"))
}

func TestDrop(t *testing.T) {
	dsn := testDSN(t)
	seedPerson(t, dsn)

	out, err := runCLI(t, dsn, "drop", "Person", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp := decodeResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "LOCKED", resp.Error.Code)

	mustRun(t, dsn, "truncate", "Person")
	out = mustRun(t, dsn, "drop", "person")
	assert.Contains(t, out, "✓ Dropped Person")
	assert.NotContains(t, mustRun(t, dsn, "tables"), "Person")

	mustRun(t, dsn, "create", "Person", "name:Str", "age:Int")
	out = mustRun(t, dsn, "drop", "Person", "--format", "json")
	assert.Equal(t, map[string]any{"dropped": "Person"}, decodeResponse(t, out).Data)
}

func TestUnknownTable(t *testing.T) {
	dsn := testDSN(t)

	for _, args := range [][]string{
		{"fetch", "Ghost"},
		{"count", "Ghost"},
		{"insert", "Ghost", "{}"},
		{"locked", "Ghost"},
		{"add-column", "Ghost", "x", "Int"},
		{"drop", "Ghost"},
	} {
		t.Run(args[0], func(t *testing.T) {
			out, err := runCLI(t, dsn, append(args, "--format", "json")...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			resp := decodeResponse(t, out)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "NOT_FOUND", resp.Error.Code)
		})
	}
}

func TestLockedAndUnlocked(t *testing.T) {
	dsn := testDSN(t)
	seedPerson(t, dsn)
	mustRun(t, dsn, "create", "Post", "title:Str")

	assert.Equal(t, "true\n", mustRun(t, dsn, "locked", "Person"))
	assert.Equal(t, "false\n", mustRun(t, dsn, "locked", "Post"))
	assert.Equal(t, "Post\n", mustRun(t, dsn, "unlocked"))

	out := mustRun(t, dsn, "unlocked", "--format", "json")
	assert.Equal(t, map[string]any{"unlocked": []any{"Post"}}, decodeResponse(t, out).Data)
}

func TestAddColumn(t *testing.T) {
	dsn := testDSN(t)
	seedPerson(t, dsn)

	out := mustRun(t, dsn, "add-column", "Person", "email", "Str")
	assert.Contains(t, out, "name:Str age:Int email:Str")

	mustRun(t, dsn, "insert", "Person", `{"name":"Grace","email":"grace@example.com"}`)
	out = mustRun(t, dsn, "fetch", "Person", "--by", "email", "--value", `"grace@example.com"`)
	assert.Contains(t, out, `name: "Grace"`)

	// Without a type the column has no physical counterpart yet.
	out = mustRun(t, dsn, "add-column", "Person", "nickname")
	assert.NotContains(t, out, "nickname")
	out = mustRun(t, dsn, "set-column", "Person", "nickname", "--type", "Str")
	assert.Contains(t, out, "nickname:Str")
}

func TestSetColumn(t *testing.T) {
	dsn := testDSN(t)
	seedPerson(t, dsn)
	mustRun(t, dsn, "create", "Post", "title:Str")

	out := mustRun(t, dsn, "set-column", "Person", "name", "--rename", "fullName")
	assert.Contains(t, out, "fullName:Str")
	assert.Contains(t, mustRun(t, dsn, "fetch", "Person"), `fullName: "Ada"`)

	out, err := runCLI(t, dsn, "set-column", "Person", "age", "--type", "Str")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [LOCKED]")

	out = mustRun(t, dsn, "set-column", "Post", "title", "--type", "Int")
	assert.Contains(t, out, "title:Int")

	_, err = runCLI(t, dsn, "set-column", "Post", "title")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	_, err = runCLI(t, dsn, "set-column", "Post", "missing", "--rename", "x")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestBeginMigration(t *testing.T) {
	dsn := testDSN(t)
	seedPerson(t, dsn)

	out := mustRun(t, dsn, "begin-migration", "Person", "age")
	assert.Contains(t, out, "[migration: ChangeColType on slot")
	assert.Contains(t, out, "since v0]")

	out, err := runCLI(t, dsn, "begin-migration", "Person", "name", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, ErrCodeMigrationActive, decodeResponse(t, out).Error.Code)

	// The open migration survives a restart.
	assert.Contains(t, mustRun(t, dsn, "tables"), "[migration: ChangeColType")
}

func TestVerboseLogsGoToErrWriter(t *testing.T) {
	dsn := testDSN(t)
	path := filepath.Join(t.TempDir(), "schema.yml")
	require.NoError(t, os.WriteFile(path, []byte("table:\n  Person:\n    columns:\n      name: Str\n"), 0o644))

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{"--driver", "sqlite3", "--dsn", dsn, "--format", "json", "-v", "create", "--file", path})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, stderr.String(), "Loaded "+path)
	assert.Equal(t, "ok", decodeResponse(t, stdout.String()).Status)
}
