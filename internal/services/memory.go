package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ytakahashi/todo-api/internal/models"
)

// MemoryService keeps todos in process memory in insertion order. It backs
// tests and STORE_BACKEND=memory.
type MemoryService struct {
	mu    sync.RWMutex
	items map[string]*Todo
	order []string
}

func NewMemoryService() *MemoryService {
	return &MemoryService{items: make(map[string]*Todo)}
}

func (ms *MemoryService) Close(context.Context) error { return nil }

func (ms *MemoryService) Ping(context.Context) error { return nil }

func (ms *MemoryService) List(ctx context.Context) ([]*Todo, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	todos := make([]*Todo, 0, len(ms.order))
	for _, id := range ms.order {
		todos = append(todos, ms.items[id].Clone())
	}
	return todos, nil
}

func (ms *MemoryService) Create(ctx context.Context, fields map[string]any) (*Todo, error) {
	todo := models.NewTodo(uuid.NewString(), fields)

	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.items[todo.ID] = todo
	ms.order = append(ms.order, todo.ID)
	return todo.Clone(), nil
}

func (ms *MemoryService) Get(ctx context.Context, id string) (*Todo, error) {
	if id == "" {
		return nil, ErrMalformedID
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()
	todo, ok := ms.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return todo.Clone(), nil
}

func (ms *MemoryService) Update(ctx context.Context, id string, fields map[string]any) (*Todo, error) {
	if id == "" {
		return nil, ErrMalformedID
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	todo, ok := ms.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	todo.Merge(fields)
	return todo.Clone(), nil
}

func (ms *MemoryService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrMalformedID
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if _, ok := ms.items[id]; !ok {
		return nil
	}
	delete(ms.items, id)
	for i, v := range ms.order {
		if v == id {
			ms.order = append(ms.order[:i], ms.order[i+1:]...)
			break
		}
	}
	return nil
}
