package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/dvaldb/internal/dval"
	"github.com/roach88/dvaldb/internal/engine"
	"github.com/roach88/dvaldb/internal/schema"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(CLIError{Code: "NOT_FOUND", Message: "no such table", Table: "Person"})
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "Person", resp.Error.Table)
}

func TestOutputFormatter_BSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "bson",
		Writer: buf,
	}

	require.NoError(t, formatter.Success(map[string]any{"count": int64(3)}))

	raw := bson.Raw(buf.Bytes())
	require.NoError(t, raw.Validate())
	assert.Equal(t, "ok", raw.Lookup("status").StringValue())
	assert.Equal(t, int64(3), raw.Lookup("data", "count").Int64())
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("All tables created")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "All tables created")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error(CLIError{Code: "LOCKED", Message: "table holds rows", Table: "Person"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [LOCKED]")
	assert.Contains(t, buf.String(), "table holds rows")
	assert.NotContains(t, buf.String(), "Details:")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	err := formatter.Error(CLIError{Code: "LOCKED", Message: "table holds rows", Table: "Person", Field: "age"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Details: table=Person field=age")
}

func TestOutputFormatter_Rows(t *testing.T) {
	rows := []dval.DObj{
		{"name": dval.DStr("Ada"), "age": dval.DInt(36)},
		{"name": dval.DStr("Grace"), "age": dval.DNull{}},
	}

	t.Run("text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "text", Writer: buf}
		require.NoError(t, f.Rows(rows))
		assert.Equal(t, "{age: 36, name: \"Ada\"}\n{age: null, name: \"Grace\"}\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, f.Rows(rows))
		assert.JSONEq(t, `{"status":"ok","data":[{"age":36,"name":"Ada"},{"age":null,"name":"Grace"}]}`, buf.String())
	})

	t.Run("bson", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "bson", Writer: buf}
		require.NoError(t, f.Rows(rows))

		data := buf.Bytes()
		var docs []bson.M
		for len(data) > 0 {
			raw, rest, ok := readDocument(data)
			require.True(t, ok)
			var doc bson.M
			require.NoError(t, bson.Unmarshal(raw, &doc))
			docs = append(docs, doc)
			data = rest
		}
		require.Len(t, docs, 2)
		assert.Equal(t, "Ada", docs[0]["name"])
		assert.Equal(t, int64(36), docs[0]["age"])
		assert.Nil(t, docs[1]["age"])
	})

	t.Run("unrepresentable", func(t *testing.T) {
		f := &OutputFormatter{Format: "json", Writer: &bytes.Buffer{}}
		err := f.Rows([]dval.DObj{{"x": dval.DBlock{}}})
		assert.Error(t, err)
	})
}

// readDocument splits the first length-prefixed document off data.
func readDocument(data []byte) (bson.Raw, []byte, bool) {
	if len(data) < 4 {
		return nil, nil, false
	}
	n := int(int32(data[0]) | int32(data[1])<<8 | int32(data[2])<<16 | int32(data[3])<<24)
	if n > len(data) {
		return nil, nil, false
	}
	return bson.Raw(data[:n]), data[n:], true
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Processing %s", "schema.cue")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Processing schema.cue")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestOutputFormatter_FailClassifies(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{
			name:     "engine error",
			err:      fmt.Errorf("wrapped: %w", &engine.Error{Code: engine.ErrCodeLocked, Message: "table holds rows", Table: "Person"}),
			wantCode: "LOCKED",
			wantExit: ExitFailure,
		},
		{
			name:     "migration active",
			err:      &schema.Error{Table: "Person", Op: "begin migration", Err: schema.ErrMigrationActive},
			wantCode: ErrCodeMigrationActive,
			wantExit: ExitFailure,
		},
		{
			name:     "bad arguments",
			err:      NewExitError(ExitCommandError, "invalid JSON"),
			wantCode: ErrCodeInvalidArgs,
			wantExit: ExitCommandError,
		},
		{
			name:     "anything else",
			err:      errors.New("disk full"),
			wantCode: ErrCodeGeneric,
			wantExit: ExitCommandError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: "json", Writer: buf}

			err := f.Fail(tt.err)

			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.True(t, IsReported(err))
			assert.ErrorIs(t, err, tt.err)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitFailure, "x"))))
	assert.False(t, IsReported(errors.New("plain")))
}
