package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestParseObjectID(t *testing.T) {
	oid := primitive.NewObjectID()

	got, err := parseObjectID(oid.Hex())
	require.NoError(t, err)
	assert.Equal(t, oid, got)

	for _, bad := range []string{"", "123", "zzzzzzzzzzzzzzzzzzzzzzzz", oid.Hex() + "0"} {
		_, err := parseObjectID(bad)
		assert.ErrorIs(t, err, ErrMalformedID, bad)
	}
}

func TestTodoFromDocument(t *testing.T) {
	oid := primitive.NewObjectID()
	ref := primitive.NewObjectID()
	doc := bson.M{
		"_id":   oid,
		"title": "buy milk",
		"done":  false,
		"count": int32(2),
		"big":   int64(7),
		"meta":  primitive.M{"tags": primitive.A{"a", "b"}, "ref": ref},
		"order": primitive.D{{Key: "x", Value: 1.5}},
	}

	todo := todoFromDocument(doc)

	assert.Equal(t, oid.Hex(), todo.ID)
	assert.Equal(t, map[string]any{
		"title": "buy milk",
		"done":  false,
		"count": float64(2),
		"big":   float64(7),
		"meta":  map[string]any{"tags": []any{"a", "b"}, "ref": ref.Hex()},
		"order": map[string]any{"x": 1.5},
	}, todo.Fields)
}

func newMockMongo(mt *mtest.T) (*MongoService, string) {
	ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
	return &MongoService{client: mt.Client, collection: mt.Coll}, ns
}

func TestMongoService(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("create assigns object id", func(mt *mtest.T) {
		store, _ := newMockMongo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		todo, err := store.Create(ctx, map[string]any{"_id": "forged", "title": "buy milk", "done": false})
		require.NoError(mt, err)

		_, err = primitive.ObjectIDFromHex(todo.ID)
		require.NoError(mt, err)
		assert.Equal(mt, map[string]any{"title": "buy milk", "done": false}, todo.Fields)

		evt := mt.GetStartedEvent()
		require.Equal(mt, "insert", evt.CommandName)
		docs, err := evt.Command.Lookup("documents").Array().Values()
		require.NoError(mt, err)
		require.Len(mt, docs, 1)
		doc := docs[0].Document()
		assert.Equal(mt, todo.ID, doc.Lookup("_id").ObjectID().Hex())
		assert.Equal(mt, "buy milk", doc.Lookup("title").StringValue())
	})

	mt.Run("create storage failure", func(mt *mtest.T) {
		store, _ := newMockMongo(mt)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}))

		_, err := store.Create(ctx, map[string]any{"title": "t"})
		var se *StorageError
		assert.ErrorAs(mt, err, &se)
	})

	mt.Run("get found", func(mt *mtest.T) {
		store, ns := newMockMongo(mt)
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "title", Value: "buy milk"},
			{Key: "done", Value: false},
		}))

		todo, err := store.Get(ctx, oid.Hex())
		require.NoError(mt, err)
		assert.Equal(mt, &Todo{ID: oid.Hex(), Fields: map[string]any{"title": "buy milk", "done": false}}, todo)

		evt := mt.GetStartedEvent()
		require.Equal(mt, "find", evt.CommandName)
		assert.Equal(mt, oid, evt.Command.Lookup("filter", "_id").ObjectID())
	})

	mt.Run("get not found", func(mt *mtest.T) {
		store, ns := newMockMongo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := store.Get(ctx, primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("get storage failure", func(mt *mtest.T) {
		store, _ := newMockMongo(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "boom"}))

		_, err := store.Get(ctx, primitive.NewObjectID().Hex())
		var se *StorageError
		assert.ErrorAs(mt, err, &se)
		assert.NotErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("update returns merged document", func(mt *mtest.T) {
		store, _ := newMockMongo(mt)
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: oid},
			{Key: "title", Value: "buy milk"},
			{Key: "done", Value: true},
		}}))

		todo, err := store.Update(ctx, oid.Hex(), map[string]any{"done": true, "_id": "other"})
		require.NoError(mt, err)
		assert.Equal(mt, &Todo{ID: oid.Hex(), Fields: map[string]any{"title": "buy milk", "done": true}}, todo)

		evt := mt.GetStartedEvent()
		require.Equal(mt, "findAndModify", evt.CommandName)
		assert.True(mt, evt.Command.Lookup("new").Boolean())
		assert.True(mt, evt.Command.Lookup("update", "$set", "done").Boolean())
		_, err = evt.Command.LookupErr("update", "$set", "_id")
		assert.Error(mt, err)
	})

	mt.Run("update not found", func(mt *mtest.T) {
		store, _ := newMockMongo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := store.Update(ctx, primitive.NewObjectID().Hex(), map[string]any{"done": true})
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("empty update is a read", func(mt *mtest.T) {
		store, ns := newMockMongo(mt)
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "title", Value: "t"},
		}))

		todo, err := store.Update(ctx, oid.Hex(), map[string]any{"_id": "ignored"})
		require.NoError(mt, err)
		assert.Equal(mt, "t", todo.Fields["title"])
		assert.Equal(mt, "find", mt.GetStartedEvent().CommandName)
	})

	mt.Run("delete missing is a no-op", func(mt *mtest.T) {
		store, _ := newMockMongo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		assert.NoError(mt, store.Delete(ctx, primitive.NewObjectID().Hex()))
		assert.Equal(mt, "delete", mt.GetStartedEvent().CommandName)
	})

	mt.Run("delete storage failure", func(mt *mtest.T) {
		store, _ := newMockMongo(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "boom"}))

		var se *StorageError
		assert.ErrorAs(mt, store.Delete(ctx, primitive.NewObjectID().Hex()), &se)
	})

	mt.Run("list empty", func(mt *mtest.T) {
		store, ns := newMockMongo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		todos, err := store.List(ctx)
		require.NoError(mt, err)
		require.NotNil(mt, todos)
		assert.Empty(mt, todos)
	})

	mt.Run("list sorts by id", func(mt *mtest.T) {
		store, ns := newMockMongo(mt)
		first, second := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: first}, {Key: "title", Value: "a"}},
			bson.D{{Key: "_id", Value: second}, {Key: "title", Value: "b"}},
		))

		todos, err := store.List(ctx)
		require.NoError(mt, err)
		require.Len(mt, todos, 2)
		assert.Equal(mt, []string{first.Hex(), second.Hex()}, []string{todos[0].ID, todos[1].ID})

		evt := mt.GetStartedEvent()
		require.Equal(mt, "find", evt.CommandName)
		var direction int64
		require.NoError(mt, evt.Command.Lookup("sort", "_id").Unmarshal(&direction))
		assert.Equal(mt, int64(1), direction)
	})

	mt.Run("ping", func(mt *mtest.T) {
		store, _ := newMockMongo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		assert.NoError(mt, store.Ping(ctx))
	})

	mt.Run("malformed id issues no command", func(mt *mtest.T) {
		store, _ := newMockMongo(mt)

		_, err := store.Get(ctx, "nope")
		assert.ErrorIs(mt, err, ErrMalformedID)
		_, err = store.Update(ctx, "nope", map[string]any{"done": true})
		assert.ErrorIs(mt, err, ErrMalformedID)
		assert.ErrorIs(mt, store.Delete(ctx, "nope"), ErrMalformedID)
		assert.Nil(mt, mt.GetStartedEvent())
	})
}
