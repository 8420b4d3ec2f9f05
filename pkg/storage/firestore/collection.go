package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

type ToFirestoreFunc[T any] func(*T) map[string]interface{}
type FromFirestoreFunc[T any] func(id string, data map[string]interface{}) *T

type Collection[T any] struct {
	Ref           *firestore.CollectionRef
	ToFirestore   ToFirestoreFunc[T]
	FromFirestore FromFirestoreFunc[T]
}

func (c *Collection[T]) Doc(id string) *DocumentRef[T] {
	return &DocumentRef[T]{
		Ref:           c.Ref.Doc(id),
		ToFirestore:   c.ToFirestore,
		FromFirestore: c.FromFirestore,
	}
}

// FindFirst runs a single-field query and returns the first match, or
// (nil, nil) when nothing matches.
func (c *Collection[T]) FindFirst(ctx context.Context, path, op string, value interface{}) (*T, error) {
	iter := c.Ref.Where(path, op, value).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.FromFirestore(snap.Ref.ID, snap.Data()), nil
}

// FindFirstWhere runs a multi-condition query and returns the first
// match, or (nil, nil) when nothing matches.
func (c *Collection[T]) FindFirstWhere(ctx context.Context, conds []Condition) (*T, error) {
	q := c.Ref.Query
	for _, cond := range conds {
		q = q.Where(cond.Path, cond.Op, cond.Value)
	}
	iter := q.Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.FromFirestore(snap.Ref.ID, snap.Data()), nil
}

type Condition struct {
	Path  string
	Op    string
	Value interface{}
}

type DocumentRef[T any] struct {
	Ref           *firestore.DocumentRef
	ToFirestore   ToFirestoreFunc[T]
	FromFirestore FromFirestoreFunc[T]
}

func (d *DocumentRef[T]) ID() string {
	return d.Ref.ID
}

func (d *DocumentRef[T]) Get(ctx context.Context) (*T, error) {
	snap, err := d.Ref.Get(ctx)
	if err != nil {
		return nil, err
	}
	return d.FromFirestore(snap.Ref.ID, snap.Data()), nil
}

func (d *DocumentRef[T]) Set(ctx context.Context, data *T) error {
	m := d.ToFirestore(data)
	_, err := d.Ref.Set(ctx, m, firestore.MergeAll)
	return err
}

func (d *DocumentRef[T]) Update(ctx context.Context, updates map[string]interface{}) error {
	// Simple map update - keys must match Firestore snake_case fields.
	// Nested maps merge per leaf, so sibling fields survive partial
	// credential writes.
	_, err := d.Ref.Set(ctx, updates, firestore.MergeAll)
	return err
}
