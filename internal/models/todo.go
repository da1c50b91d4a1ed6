package models

import (
	"errors"

	"github.com/bytedance/sonic"
)

// IDField is the JSON key carrying a todo's identifier.
const IDField = "_id"

var errNotObject = errors.New("todo must be a JSON object")

// Todo represents a todo item: a store-assigned identifier plus whatever
// top-level fields the client sent.
type Todo struct {
	ID     string
	Fields map[string]any
}

// NewTodo builds a Todo from client fields. The identifier key is dropped
// from fields so it can never be rewritten by a request body.
func NewTodo(id string, fields map[string]any) *Todo {
	return &Todo{ID: id, Fields: SanitizeFields(fields)}
}

// MarshalJSON renders the todo as a flat object with the identifier under "_id".
func (t Todo) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Fields)+1)
	for k, v := range t.Fields {
		out[k] = v
	}
	out[IDField] = t.ID
	return sonic.ConfigStd.Marshal(out)
}

func (t *Todo) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := sonic.ConfigStd.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errNotObject
	}
	id, _ := raw[IDField].(string)
	delete(raw, IDField)
	t.ID = id
	t.Fields = raw
	return nil
}

// Clone returns a copy whose top-level field map can be modified without
// touching the original.
func (t *Todo) Clone() *Todo {
	if t == nil {
		return nil
	}
	fields := make(map[string]any, len(t.Fields))
	for k, v := range t.Fields {
		fields[k] = v
	}
	return &Todo{ID: t.ID, Fields: fields}
}

// Merge applies a shallow merge: every top-level key in fields replaces the
// same key on the todo, other keys are left alone.
func (t *Todo) Merge(fields map[string]any) {
	if t.Fields == nil {
		t.Fields = make(map[string]any, len(fields))
	}
	for k, v := range SanitizeFields(fields) {
		t.Fields[k] = v
	}
}

// SanitizeFields returns a copy of fields without the identifier key.
func SanitizeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == IDField {
			continue
		}
		out[k] = v
	}
	return out
}
