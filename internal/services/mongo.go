package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ytakahashi/todo-api/internal/models"
)

// MongoService stores todos as plain documents keyed by an ObjectID _id.
type MongoService struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoService(ctx context.Context, uri, database string) (*MongoService, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to create Mongo client: %w", err)
	}

	return &MongoService{
		client:     client,
		collection: client.Database(database).Collection(todosCollection),
	}, nil
}

func (ms *MongoService) Close(ctx context.Context) error {
	return ms.client.Disconnect(ctx)
}

func (ms *MongoService) Ping(ctx context.Context) error {
	if err := ms.client.Ping(ctx, readpref.Primary()); err != nil {
		return storageError("ping mongo", err)
	}
	return nil
}

func (ms *MongoService) List(ctx context.Context) ([]*Todo, error) {
	// ObjectIDs start with a timestamp, so _id order approximates insertion order.
	cur, err := ms.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, storageError("list todos", err)
	}
	defer cur.Close(ctx)

	todos := []*Todo{}
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, storageError("decode todo", err)
		}
		todos = append(todos, todoFromDocument(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, storageError("iterate todos", err)
	}

	return todos, nil
}

func (ms *MongoService) Create(ctx context.Context, fields map[string]any) (*Todo, error) {
	oid := primitive.NewObjectID()
	todo := models.NewTodo(oid.Hex(), fields)

	doc := bson.M{"_id": oid}
	for k, v := range todo.Fields {
		doc[k] = v
	}
	if _, err := ms.collection.InsertOne(ctx, doc); err != nil {
		return nil, storageError("create todo", err)
	}

	return todo, nil
}

func (ms *MongoService) Get(ctx context.Context, id string) (*Todo, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	var doc bson.M
	err = ms.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, storageError("get todo", err)
	}

	return todoFromDocument(doc), nil
}

func (ms *MongoService) Update(ctx context.Context, id string, fields map[string]any) (*Todo, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	set := bson.M(models.SanitizeFields(fields))
	if len(set) == 0 {
		// $set rejects an empty document; an empty merge is a read.
		return ms.Get(ctx, id)
	}

	var doc bson.M
	err = ms.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, storageError("update todo", err)
	}

	return todoFromDocument(doc), nil
}

func (ms *MongoService) Delete(ctx context.Context, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}

	if _, err := ms.collection.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return storageError("delete todo", err)
	}

	return nil
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrMalformedID
	}
	return oid, nil
}

func todoFromDocument(doc bson.M) *Todo {
	var id string
	switch v := doc["_id"].(type) {
	case primitive.ObjectID:
		id = v.Hex()
	case string:
		id = v
	}

	fields := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == models.IDField {
			continue
		}
		fields[k] = plainValue(v)
	}
	return &Todo{ID: id, Fields: fields}
}

// plainValue converts driver container types back to the shapes the JSON
// decoder produced, so todos compare equal regardless of backend.
func plainValue(v any) any {
	switch val := v.(type) {
	case primitive.M:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = plainValue(inner)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = plainValue(inner)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = plainValue(inner)
		}
		return out
	case primitive.ObjectID:
		return val.Hex()
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	default:
		return v
	}
}
