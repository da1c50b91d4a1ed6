package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ytakahashi/todo-api/internal/models"
)

// firestoreTodo is the stored shape. Client fields live under a nested map
// so arbitrary keys never collide with createdAt.
type firestoreTodo struct {
	Fields    map[string]interface{} `firestore:"fields"`
	CreatedAt time.Time              `firestore:"createdAt"`
}

type FirestoreService struct {
	client *firestore.Client
}

func NewFirestoreService(ctx context.Context, projectID string) (*FirestoreService, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreService{
		client: client,
	}, nil
}

func (fs *FirestoreService) Close(context.Context) error {
	return fs.client.Close()
}

func (fs *FirestoreService) Ping(ctx context.Context) error {
	iter := fs.client.Collection(todosCollection).Limit(1).Documents(ctx)
	defer iter.Stop()

	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return storageError("ping firestore", err)
	}
	return nil
}

func (fs *FirestoreService) List(ctx context.Context) ([]*Todo, error) {
	iter := fs.client.Collection(todosCollection).
		OrderBy("createdAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	todos := []*Todo{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, storageError("iterate todos", err)
		}

		todo, err := todoFromSnapshot(doc)
		if err != nil {
			return nil, err
		}
		todos = append(todos, todo)
	}

	return todos, nil
}

func (fs *FirestoreService) Create(ctx context.Context, fields map[string]any) (*Todo, error) {
	todo := models.NewTodo(uuid.New().String(), fields)

	_, err := fs.client.Collection(todosCollection).Doc(todo.ID).Set(ctx, firestoreTodo{
		Fields:    todo.Fields,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return nil, storageError("create todo", err)
	}

	return todo, nil
}

func (fs *FirestoreService) Get(ctx context.Context, id string) (*Todo, error) {
	if err := validateDocID(id); err != nil {
		return nil, err
	}

	doc, err := fs.client.Collection(todosCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, storageError("get todo", err)
	}

	return todoFromSnapshot(doc)
}

// Update merges fields inside a transaction so the returned document is the
// one that was written.
func (fs *FirestoreService) Update(ctx context.Context, id string, fields map[string]any) (*Todo, error) {
	if err := validateDocID(id); err != nil {
		return nil, err
	}

	ref := fs.client.Collection(todosCollection).Doc(id)
	updates := fieldUpdates(fields)

	var merged *Todo
	err := fs.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		todo, err := todoFromSnapshot(doc)
		if err != nil {
			return err
		}
		todo.Merge(fields)
		merged = todo

		if len(updates) == 0 {
			return nil
		}
		return tx.Update(ref, updates)
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, storageError("update todo", err)
	}

	return merged, nil
}

func (fs *FirestoreService) Delete(ctx context.Context, id string) error {
	if err := validateDocID(id); err != nil {
		return err
	}

	_, err := fs.client.Collection(todosCollection).Doc(id).Delete(ctx)
	if err != nil {
		return storageError("delete todo", err)
	}

	return nil
}

func todoFromSnapshot(doc *firestore.DocumentSnapshot) (*Todo, error) {
	var stored firestoreTodo
	if err := doc.DataTo(&stored); err != nil {
		return nil, storageError("unmarshal todo", err)
	}
	return models.NewTodo(doc.Ref.ID, stored.Fields), nil
}

func fieldUpdates(fields map[string]any) []firestore.Update {
	clean := models.SanitizeFields(fields)
	updates := make([]firestore.Update, 0, len(clean))
	for k, v := range clean {
		updates = append(updates, firestore.Update{
			FieldPath: firestore.FieldPath{"fields", k},
			Value:     v,
		})
	}
	return updates
}

// validateDocID rejects ids Firestore would treat as a path or reserve.
func validateDocID(id string) error {
	if id == "" || id == "." || id == ".." || strings.Contains(id, "/") {
		return ErrMalformedID
	}
	if strings.HasPrefix(id, "__") && strings.HasSuffix(id, "__") {
		return ErrMalformedID
	}
	return nil
}
