// Package docstore describes the document collection capability the
// repository layer is written against, plus helpers for reading typed values
// back out of a decoded document.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// IDField is the key holding a document's primary identifier.
const IDField = "_id"

var (
	ErrNotFound     = errors.New("document not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// Document is a schema-flexible record. Values are scalars: string, bool,
// numbers, time.Time or nil.
type Document map[string]any

// Filter matches documents whose fields equal every given value.
type Filter map[string]any

type Collection interface {
	InsertOne(ctx context.Context, doc Document) error
	FindByID(ctx context.Context, id string) (Document, error)
	FindOne(ctx context.Context, filter Filter) (Document, error)
	Find(ctx context.Context, filter Filter, skip, limit int64) ([]Document, error)
	// UpdateFields overwrites the given fields of one document and returns it
	// as stored after the write.
	UpdateFields(ctx context.Context, id string, set Document) (Document, error)
	DeleteByID(ctx context.Context, id string) error
	Count(ctx context.Context, filter Filter) (int64, error)
	EnsureUniqueIndex(ctx context.Context, field string) error
	Ping(ctx context.Context) error
}

func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

func (d Document) String(key string) (string, error) {
	switch v := d[key].(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("field %q: want string, got %T", key, v)
	}
}

func (d Document) Bool(key string) (bool, error) {
	switch v := d[key].(type) {
	case bool:
		return v, nil
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("field %q: want bool, got %T", key, v)
	}
}

// Time reads a timestamp. JSON-backed stores hand timestamps back as RFC 3339
// strings, so both forms are accepted. A missing or null field yields nil.
func (d Document) Time(key string) (*time.Time, error) {
	switch v := d[key].(type) {
	case nil:
		return nil, nil
	case time.Time:
		t := v.UTC()
		return &t, nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		t = t.UTC()
		return &t, nil
	default:
		return nil, fmt.Errorf("field %q: want time, got %T", key, v)
	}
}

// Clone returns a shallow copy so callers cannot mutate stored state.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Matches reports whether every filter entry equals the document's value.
func (f Filter) Matches(d Document) bool {
	for k, want := range f {
		if d[k] != want {
			return false
		}
	}
	return true
}
