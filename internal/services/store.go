package services

import (
	"context"

	"github.com/ytakahashi/todo-api/internal/models"
)

type Todo = models.Todo

const todosCollection = "todos"

// TodoStore is the persistence accessor behind the HTTP routes. Get and
// Update return ErrNotFound for an unknown id; every method returns
// ErrMalformedID for an id the backend cannot parse. Delete of an unknown
// id is a no-op.
type TodoStore interface {
	List(ctx context.Context) ([]*Todo, error)
	Create(ctx context.Context, fields map[string]any) (*Todo, error)
	Get(ctx context.Context, id string) (*Todo, error)
	Update(ctx context.Context, id string, fields map[string]any) (*Todo, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
