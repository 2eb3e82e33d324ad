package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dvaldb/internal/dval"
	"github.com/roach88/dvaldb/internal/testutil"
)

func TestDecode_Scalars(t *testing.T) {
	e, _ := setupEngine(t)
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	tests := []struct {
		name string
		tipe dval.Tipe
		cell string
		want dval.Dval
	}{
		{"id", dval.TID, id.String(), dval.NewID(id)},
		{"int", dval.TInt, "-42", dval.DInt(-42)},
		{"float", dval.TFloat, "1.5", dval.DFloat(1.5)},
		{"float integral", dval.TFloat, "3", dval.DFloat(3)},
		{"str", dval.TStr, "hello, world", dval.DStr("hello, world")},
		{"empty str", dval.TStr, "", dval.DStr("")},
		{"title", dval.TTitle, "Ada", dval.DTitle("Ada")},
		{"url", dval.TURL, "https://example.com", dval.DURL("https://example.com")},
		{"bool true", dval.TBool, "t", dval.DBool(true)},
		{"bool false", dval.TBool, "f", dval.DBool(false)},
		{"empty date", dval.TDate, "", dval.NewDate(time.Unix(0, 0).UTC())},
		{"date", dval.TDate, "2024-03-01 12:30:00", dval.NewDate(time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Decode(context.Background(), tt.tipe, tt.cell)
			require.NoError(t, err)
			assertDval(t, tt.want, got)
		})
	}
}

func TestDecode_FatalCells(t *testing.T) {
	e, _ := setupEngine(t)

	tests := []struct {
		name string
		tipe dval.Tipe
		cell string
	}{
		{"bool other", dval.TBool, "x"},
		{"bool word", dval.TBool, "true"},
		{"int malformed", dval.TInt, "12abc"},
		{"int empty", dval.TInt, ""},
		{"float malformed", dval.TFloat, "one"},
		{"id malformed", dval.TID, "not-a-uuid"},
		{"date malformed", dval.TDate, "yesterday"},
		{"list", dval.TList, "{}"},
		{"obj", dval.TObj, "{}"},
		{"block", dval.TBlock, ""},
		{"any", dval.TAny, "x"},
		{"dblist malformed", dval.DbList{Elem: dval.TInt}, "1,2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Decode(context.Background(), tt.tipe, tt.cell)
			require.Error(t, err)
			assert.True(t, IsInternal(err), "want INTERNAL, got %v", err)
		})
	}
}

func TestDecode_HasManyEmpty(t *testing.T) {
	e, _ := setupEngine(t, newTable("Comment", col{"body", dval.TStr}))

	got, err := e.Decode(context.Background(), dval.HasMany{Table: "Comment"}, "{}")
	require.NoError(t, err)
	assertDval(t, dval.DList{}, got)
}

func TestDecode_DbList(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()

	got, err := e.Decode(ctx, dval.DbList{Elem: dval.TInt}, "{1,,2}")
	require.NoError(t, err)
	assertDval(t, dval.DList{dval.DInt(1), dval.DInt(2)}, got)

	got, err = e.Decode(ctx, dval.DbList{Elem: dval.TStr}, `{"a b", c ,""}`)
	require.NoError(t, err)
	assertDval(t, dval.DList{dval.DStr("a b"), dval.DStr("c"), dval.DStr("")}, got)

	got, err = e.Decode(ctx, dval.DbList{Elem: dval.TStr}, "{}")
	require.NoError(t, err)
	assertDval(t, dval.DList{}, got)

	got, err = e.Decode(ctx, dval.DbList{Elem: dval.TInt}, "{1,NULL}")
	require.NoError(t, err)
	assertDval(t, dval.DList{dval.DInt(1), dval.DNull{}}, got)
}

func TestDecode_BelongsToDanglingIsNull(t *testing.T) {
	e, _ := setupEngine(t, personTable())

	got, err := e.Decode(context.Background(), dval.BelongsTo{Table: "Person"}, testutil.UUID(99).String())
	require.NoError(t, err)
	assertDval(t, dval.DNull{}, got)
}

func TestDecode_BelongsToResolvesRow(t *testing.T) {
	e, _ := setupEngine(t, personTable())
	ctx := context.Background()
	person, _ := e.Table("Person")

	id, err := e.Insert(ctx, person, dval.DObj{"name": dval.DStr("Ada"), "age": dval.DInt(36)})
	require.NoError(t, err)

	got, err := e.Decode(ctx, dval.BelongsTo{Table: "person"}, id.String())
	require.NoError(t, err)
	assertDval(t, dval.DObj{"id": dval.NewID(id), "name": dval.DStr("Ada"), "age": dval.DInt(36)}, got)
}

func TestDecode_UnknownRelationTarget(t *testing.T) {
	e, _ := setupEngine(t)

	_, err := e.Decode(context.Background(), dval.BelongsTo{Table: "Ghost"}, testutil.UUID(1).String())
	assert.True(t, IsInternal(err))

	_, err = e.Decode(context.Background(), dval.HasMany{Table: "Ghost"}, "{}")
	assert.True(t, IsInternal(err))
}

func TestRowToObj_ArityMismatch(t *testing.T) {
	e, s := setupEngine(t, personTable())
	person, _ := e.Table("Person")

	_, err := e.rowToObj(context.Background(), s, nil, person, person.RowColumns(), []string{testutil.UUID(1).String(), "Ada"})
	require.Error(t, err)
	assert.True(t, IsInternal(err))
	assert.Contains(t, err.Error(), "expected=3, actual=2")
}

func TestRowToObj_NamesField(t *testing.T) {
	e, s := setupEngine(t, personTable())
	person, _ := e.Table("Person")

	_, err := e.rowToObj(context.Background(), s, nil, person, person.RowColumns(), []string{testutil.UUID(1).String(), "Ada", "old"})
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "Person", ee.Table)
	assert.Equal(t, "age", ee.Field)
	assert.Equal(t, "Int", ee.Expected)
}

func TestDecode_AbsentCells(t *testing.T) {
	e, _ := setupEngine(t, personTable())
	ctx := context.Background()

	got, err := e.Decode(ctx, dval.BelongsTo{Table: "Person"}, "")
	require.NoError(t, err)
	assertDval(t, dval.DNull{}, got)

	got, err = e.Decode(ctx, dval.HasMany{Table: "Person"}, "")
	require.NoError(t, err)
	assertDval(t, dval.DList{}, got)

	got, err = e.Decode(ctx, dval.DbList{Elem: dval.TInt}, "")
	require.NoError(t, err)
	assertDval(t, dval.DList{}, got)
}

func TestFetch_SelfReferenceStopsAtID(t *testing.T) {
	e, _ := setupEngine(t, newTable("Person", col{"name", dval.TStr}, col{"manager", dval.BelongsTo{Table: "Person"}}))
	ctx := context.Background()
	person, _ := e.Table("Person")

	id, err := e.Insert(ctx, person, dval.DObj{"name": dval.DStr("Ada")})
	require.NoError(t, err)
	require.NoError(t, e.Update(ctx, person, dval.DObj{"id": dval.NewID(id), "manager": dval.NewID(id)}))

	rows, err := e.FetchBy(ctx, person, "id", dval.NewID(id))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assertDval(t, dval.DObj{"id": dval.NewID(id), "name": dval.DStr("Ada"), "manager": dval.NewID(id)}, rows[0])
}

func TestFetch_MutualReferenceStopsAtID(t *testing.T) {
	thread := newTable("Thread", col{"title", dval.TStr}, col{"replies", dval.HasMany{Table: "Reply"}})
	reply := newTable("Reply", col{"body", dval.TStr}, col{"thread", dval.BelongsTo{Table: "Thread"}})
	e, _ := setupEngine(t, thread, reply)
	ctx := context.Background()
	thread, _ = e.Table("Thread")
	reply, _ = e.Table("Reply")

	threadID, err := e.Insert(ctx, thread, dval.DObj{
		"title":   dval.DStr("Hello"),
		"replies": dval.DList{dval.DObj{"body": dval.DStr("first")}},
	})
	require.NoError(t, err)
	replyID := testutil.UUID(2)
	require.NoError(t, e.Update(ctx, reply, dval.DObj{"id": dval.NewID(replyID), "thread": dval.NewID(threadID)}))

	threads, err := e.FetchAll(ctx, thread)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assertDval(t, dval.DObj{
		"id":    dval.NewID(threadID),
		"title": dval.DStr("Hello"),
		"replies": dval.DList{dval.DObj{
			"id":     dval.NewID(replyID),
			"body":   dval.DStr("first"),
			"thread": dval.NewID(threadID),
		}},
	}, threads[0])

	replies, err := e.FetchBy(ctx, reply, "id", dval.NewID(replyID))
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assertDval(t, dval.DObj{
		"id":   dval.NewID(replyID),
		"body": dval.DStr("first"),
		"thread": dval.DObj{
			"id":      dval.NewID(threadID),
			"title":   dval.DStr("Hello"),
			"replies": dval.DList{dval.NewID(replyID)},
		},
	}, replies[0])
}

func TestFetch_SharedRowExpandsOnEveryBranch(t *testing.T) {
	e, _ := setupEngine(t, personTable(), newTable("Pair",
		col{"first", dval.BelongsTo{Table: "Person"}},
		col{"second", dval.BelongsTo{Table: "Person"}},
	))
	ctx := context.Background()
	person, _ := e.Table("Person")
	pair, _ := e.Table("Pair")

	adaID, err := e.Insert(ctx, person, dval.DObj{"name": dval.DStr("Ada"), "age": dval.DInt(36)})
	require.NoError(t, err)
	_, err = e.Insert(ctx, pair, dval.DObj{"first": dval.NewID(adaID), "second": dval.NewID(adaID)})
	require.NoError(t, err)

	rows, err := e.FetchAll(ctx, pair)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	ada := dval.DObj{"id": dval.NewID(adaID), "name": dval.DStr("Ada"), "age": dval.DInt(36)}
	assertDval(t, ada, rows[0]["first"])
	assertDval(t, ada, rows[0]["second"])
}
