package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/geocoder89/userhub/internal/docstore"
)

// Collection keeps documents in process memory, in insertion order.
type Collection struct {
	mu     sync.RWMutex
	items  map[string]docstore.Document
	order  []string
	unique map[string]struct{} // fields with a unique index
}

func NewCollection() *Collection {
	return &Collection{
		items:  make(map[string]docstore.Document),
		unique: make(map[string]struct{}),
	}
}

func (c *Collection) InsertOne(ctx context.Context, doc docstore.Document) error {
	id := doc.ID()
	if id == "" {
		return fmt.Errorf("memory: insert: missing %s", docstore.IDField)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[id]; ok {
		return fmt.Errorf("memory: insert %s: %w", id, docstore.ErrDuplicateKey)
	}

	if err := c.checkUnique(id, doc); err != nil {
		return err
	}

	c.items[id] = doc.Clone()
	c.order = append(c.order, id)

	return nil
}

func (c *Collection) FindByID(ctx context.Context, id string) (docstore.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.items[id]
	if !ok {
		return nil, docstore.ErrNotFound
	}

	return doc.Clone(), nil
}

func (c *Collection) FindOne(ctx context.Context, filter docstore.Filter) (docstore.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, id := range c.order {
		doc := c.items[id]
		if filter.Matches(doc) {
			return doc.Clone(), nil
		}
	}

	return nil, docstore.ErrNotFound
}

func (c *Collection) Find(ctx context.Context, filter docstore.Filter, skip, limit int64) ([]docstore.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]docstore.Document, 0)
	var seen int64

	for _, id := range c.order {
		if limit > 0 && int64(len(out)) >= limit {
			break
		}

		doc := c.items[id]
		if !filter.Matches(doc) {
			continue
		}

		seen++
		if seen <= skip {
			continue
		}

		out = append(out, doc.Clone())
	}

	return out, nil
}

func (c *Collection) UpdateFields(ctx context.Context, id string, set docstore.Document) (docstore.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.items[id]
	if !ok {
		return nil, docstore.ErrNotFound
	}

	next := current.Clone()
	for k, v := range set {
		if k == docstore.IDField {
			continue
		}
		next[k] = v
	}

	if err := c.checkUnique(id, next); err != nil {
		return nil, err
	}

	c.items[id] = next

	return next.Clone(), nil
}

func (c *Collection) DeleteByID(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[id]; !ok {
		return docstore.ErrNotFound
	}

	delete(c.items, id)

	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}

	return nil
}

func (c *Collection) Count(ctx context.Context, filter docstore.Filter) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(filter) == 0 {
		return int64(len(c.items)), nil
	}

	var n int64
	for _, doc := range c.items {
		if filter.Matches(doc) {
			n++
		}
	}

	return n, nil
}

func (c *Collection) EnsureUniqueIndex(ctx context.Context, field string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[any]string, len(c.items))
	for id, doc := range c.items {
		v, ok := doc[field]
		if !ok || v == nil {
			continue
		}
		if other, dup := seen[v]; dup {
			return fmt.Errorf("memory: unique index on %q: %s and %s collide: %w", field, other, id, docstore.ErrDuplicateKey)
		}
		seen[v] = id
	}

	c.unique[field] = struct{}{}

	return nil
}

func (c *Collection) Ping(ctx context.Context) error {
	return nil
}

// checkUnique must be called with the write lock held.
func (c *Collection) checkUnique(id string, doc docstore.Document) error {
	for field := range c.unique {
		v, ok := doc[field]
		if !ok || v == nil {
			continue
		}

		for otherID, other := range c.items {
			if otherID == id {
				continue
			}
			if other[field] == v {
				return fmt.Errorf("memory: %s=%v: %w", field, v, docstore.ErrDuplicateKey)
			}
		}
	}

	return nil
}
