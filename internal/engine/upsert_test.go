package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dvaldb/internal/dval"
	"github.com/roach88/dvaldb/internal/schema"
	"github.com/roach88/dvaldb/internal/testutil"
)

func postTable() schema.Table {
	return newTable("Post",
		col{"title", dval.TStr},
		col{"author", dval.BelongsTo{Table: "Person"}},
		col{"comments", dval.HasMany{Table: "Comment"}},
	)
}

func commentTable() schema.Table {
	return newTable("Comment", col{"body", dval.TStr})
}

func TestInsert_AdaExample(t *testing.T) {
	e, _ := setupEngine(t, personTable())
	ctx := context.Background()
	person, _ := e.Table("Person")

	id, err := e.Insert(ctx, person, dval.DObj{"name": dval.DStr("Ada"), "age": dval.DInt(36)})
	require.NoError(t, err)
	assert.Equal(t, testutil.UUID(1), id)

	rows, err := e.FetchBy(ctx, person, "id", dval.NewID(id))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assertDval(t, dval.DObj{"id": dval.NewID(id), "name": dval.DStr("Ada"), "age": dval.DInt(36)}, rows[0])
}

func TestInsert_ScalarRoundTrip(t *testing.T) {
	everything := newTable("Everything",
		col{"s", dval.TStr},
		col{"i", dval.TInt},
		col{"f", dval.TFloat},
		col{"b", dval.TBool},
		col{"d", dval.TDate},
		col{"title", dval.TTitle},
		col{"url", dval.TURL},
		col{"ref", dval.TID},
		col{"tags", dval.DbList{Elem: dval.TStr}},
		col{"scores", dval.DbList{Elem: dval.TInt}},
	)
	e, _ := setupEngine(t, everything)
	ctx := context.Background()

	fields := dval.DObj{
		"s":      dval.DStr("it's a \"quoted\" {string}, with commas"),
		"i":      dval.DInt(-7),
		"f":      dval.DFloat(2.25),
		"b":      dval.DBool(true),
		"d":      dval.NewDate(time.Date(1815, 12, 10, 8, 0, 0, 0, time.UTC)),
		"title":  dval.DTitle("Notes"),
		"url":    dval.DURL("https://example.com/?q=1&r=2"),
		"ref":    dval.NewID(testutil.UUID(42)),
		"tags":   dval.DList{dval.DStr("a b"), dval.DStr("c,d"), dval.DStr(`q"uote`)},
		"scores": dval.DList{dval.DInt(1), dval.DInt(2)},
	}
	id, err := e.Insert(ctx, everything, fields)
	require.NoError(t, err)

	rows, err := e.FetchBy(ctx, everything, "id", dval.NewID(id))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	want := fields.Clone()
	want["id"] = dval.NewID(id)
	assertDval(t, want, rows[0])
}

func TestInsert_DoesNotMutateFields(t *testing.T) {
	e, _ := setupEngine(t, personTable())
	person, _ := e.Table("Person")

	fields := dval.DObj{"name": dval.DStr("Ada")}
	_, err := e.Insert(context.Background(), person, fields)
	require.NoError(t, err)

	_, hasID := fields["id"]
	assert.False(t, hasID)
}

func TestInsert_RelationRoundTrip(t *testing.T) {
	e, s := setupEngine(t, personTable(), commentTable(), postTable())
	ctx := context.Background()
	post, _ := e.Table("Post")
	person, _ := e.Table("Person")

	postID, err := e.Insert(ctx, post, dval.DObj{
		"title":    dval.DStr("Notes"),
		"author":   dval.DObj{"name": dval.DStr("Ada"), "age": dval.DInt(36)},
		"comments": dval.DList{},
	})
	require.NoError(t, err)

	n, err := e.Count(ctx, person)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "exactly one child row")

	// Parent id is minted before the child's.
	childID := testutil.UUID(2)
	raw, err := s.Query(ctx, `SELECT "author", "comments" FROM "user_post"`)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{childID.String(), "{}"}}, raw)

	rows, err := e.FetchBy(ctx, post, "id", dval.NewID(postID))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assertDval(t, dval.DObj{
		"id":       dval.NewID(postID),
		"title":    dval.DStr("Notes"),
		"author":   dval.DObj{"id": dval.NewID(childID), "name": dval.DStr("Ada"), "age": dval.DInt(36)},
		"comments": dval.DList{},
	}, rows[0])
}

func TestInsert_HasManyRoundTrip(t *testing.T) {
	e, _ := setupEngine(t, personTable(), commentTable(), postTable())
	ctx := context.Background()
	post, _ := e.Table("Post")

	postID, err := e.Insert(ctx, post, dval.DObj{
		"title": dval.DStr("Notes"),
		"comments": dval.DList{
			dval.DObj{"body": dval.DStr("first")},
			dval.DObj{"body": dval.DStr("second")},
		},
	})
	require.NoError(t, err)

	rows, err := e.FetchBy(ctx, post, "id", dval.NewID(postID))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assertDval(t, dval.DList{
		dval.DObj{"id": dval.NewID(testutil.UUID(2)), "body": dval.DStr("first")},
		dval.DObj{"id": dval.NewID(testutil.UUID(3)), "body": dval.DStr("second")},
	}, rows[0]["comments"])
}

func TestInsert_ExistingRelatedRowIsUpdated(t *testing.T) {
	e, _ := setupEngine(t, personTable(), commentTable(), postTable())
	ctx := context.Background()
	post, _ := e.Table("Post")
	person, _ := e.Table("Person")

	adaID, err := e.Insert(ctx, person, dval.DObj{"name": dval.DStr("Ada"), "age": dval.DInt(36)})
	require.NoError(t, err)

	_, err = e.Insert(ctx, post, dval.DObj{
		"title":  dval.DStr("Notes"),
		"author": dval.DObj{"id": dval.NewID(adaID), "name": dval.DStr("Ada Lovelace"), "age": dval.DInt(36)},
	})
	require.NoError(t, err)

	n, err := e.Count(ctx, person)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "no new person row")

	rows, err := e.FetchBy(ctx, person, "id", dval.NewID(adaID))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assertDval(t, dval.DStr("Ada Lovelace"), rows[0]["name"])
}

func TestUpdate_Idempotent(t *testing.T) {
	e, _ := setupEngine(t, personTable())
	ctx := context.Background()
	person, _ := e.Table("Person")

	id, err := e.Insert(ctx, person, dval.DObj{"name": dval.DStr("Ada"), "age": dval.DInt(36)})
	require.NoError(t, err)

	fields := dval.DObj{"id": dval.NewID(id), "name": dval.DStr("Ada"), "age": dval.DInt(37)}
	require.NoError(t, e.Update(ctx, person, fields))
	once, err := e.FetchAll(ctx, person)
	require.NoError(t, err)

	require.NoError(t, e.Update(ctx, person, fields))
	twice, err := e.FetchAll(ctx, person)
	require.NoError(t, err)

	require.Len(t, twice, 1)
	assertDval(t, dval.DList{once[0]}, dval.DList{twice[0]})
	assertDval(t, dval.DInt(37), twice[0]["age"])
}

func TestUpdate_OnlyIDIsNoop(t *testing.T) {
	e, _ := setupEngine(t, personTable())
	ctx := context.Background()
	person, _ := e.Table("Person")

	id, err := e.Insert(ctx, person, dval.DObj{"name": dval.DStr("Ada"), "age": dval.DInt(36)})
	require.NoError(t, err)
	assert.NoError(t, e.Update(ctx, person, dval.DObj{"id": dval.NewID(id)}))
}

func TestUpdate_RequiresID(t *testing.T) {
	e, _ := setupEngine(t, personTable())
	person, _ := e.Table("Person")

	err := e.Update(context.Background(), person, dval.DObj{"name": dval.DStr("Ada")})
	require.Error(t, err)
	assert.True(t, IsInternal(err))
}

// Classification is by runtime shape: an object in a scalar column is
// treated as a relation and rejected because the column is not one.
func TestInsert_ObjectInScalarColumnIsTreatedAsRelation(t *testing.T) {
	e, _ := setupEngine(t, personTable())
	ctx := context.Background()
	person, _ := e.Table("Person")

	_, err := e.Insert(ctx, person, dval.DObj{"name": dval.DObj{"first": dval.DStr("Ada")}})
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrCodeInternal, ee.Code)
	assert.Equal(t, "name", ee.Field)
	assert.Equal(t, "Str", ee.Actual)
}

// The empty list is vacuously a list of objects, so it takes the relation
// path too, and a scalar list column rejects it.
func TestInsert_EmptyListInScalarListColumnIsTreatedAsRelation(t *testing.T) {
	tags := newTable("Tagged", col{"tags", dval.DbList{Elem: dval.TStr}})
	e, _ := setupEngine(t, tags)

	_, err := e.Insert(context.Background(), tags, dval.DObj{"tags": dval.DList{}})
	assert.True(t, IsInternal(err))
}

func TestInsert_UnknownRelationalFieldRollsBack(t *testing.T) {
	e, _ := setupEngine(t, personTable(), commentTable(), postTable())
	ctx := context.Background()
	post, _ := e.Table("Post")
	person, _ := e.Table("Person")

	// "author" sorts before "zzz", so the child is written before the failure.
	_, err := e.Insert(ctx, post, dval.DObj{
		"author": dval.DObj{"name": dval.DStr("Ada")},
		"zzz":    dval.DObj{"x": dval.DInt(1)},
	})
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrCodeInternal, ee.Code)
	assert.Equal(t, "zzz", ee.Field)

	n, err := e.Count(ctx, person)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "child insert rolled back")
}

func TestUpsertRelated_RejectsNonObjects(t *testing.T) {
	e, s := setupEngine(t, personTable(), commentTable(), postTable())
	post, _ := e.Table("Post")

	_, err := e.upsertRelated(context.Background(), s, post, "author", dval.DStr("Ada"))
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "expected a complex object", ee.Message)

	_, err = e.upsertRelated(context.Background(), s, post, "comments", dval.DList{dval.DInt(1)})
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "expected a complex object", ee.Message)
}

func TestUpsertRelated_UnknownTarget(t *testing.T) {
	orphan := newTable("Orphan", col{"parent", dval.BelongsTo{Table: "Ghost"}})
	e, _ := setupEngine(t, orphan)

	_, err := e.Insert(context.Background(), orphan, dval.DObj{"parent": dval.DObj{}})
	assert.True(t, IsInternal(err))
}

func TestInsert_SubMicrosecondDateRoundTrips(t *testing.T) {
	e, _ := setupEngine(t, newTable("Event", col{"at", dval.TDate}))
	ctx := context.Background()
	event, _ := e.Table("Event")

	fields, err := e.Coerce(event, dval.DObj{"at": dval.DStr("2024-03-01T12:00:00.123456789Z")})
	require.NoError(t, err)
	id, err := e.Insert(ctx, event, fields)
	require.NoError(t, err)

	rows, err := e.FetchBy(ctx, event, "id", dval.NewID(id))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assertDval(t, fields["at"], rows[0]["at"])
	assertDval(t, dval.NewDate(time.Date(2024, 3, 1, 12, 0, 0, 123456000, time.UTC)), rows[0]["at"])
}
