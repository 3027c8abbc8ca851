package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/core2cover/api/internal/platform/pagination"
)

// Encoder serialises an entity into a Firestore document payload.
type Encoder[T any] func(value T) (any, error)

// Decoder hydrates an entity from a snapshot.
type Decoder[T any] func(snap *firestore.DocumentSnapshot) (T, error)

// QueryBuilder customises Firestore queries before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// CursorFunc returns the ordering timestamp and document ID used to build page tokens.
type CursorFunc[T any] func(value T) (time.Time, string)

// Collection provides typed access to one Firestore collection.
type Collection[T any] struct {
	provider *Provider
	name     string
	encode   Encoder[T]
	decode   Decoder[T]
}

// NewCollection binds a typed collection to provider.
func NewCollection[T any](provider *Provider, name string, encode Encoder[T], decode Decoder[T]) *Collection[T] {
	return &Collection[T]{
		provider: provider,
		name:     strings.TrimSpace(name),
		encode:   encode,
		decode:   decode,
	}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Encode exposes the encoder for transactional writes.
func (c *Collection[T]) Encode(value T) (any, error) {
	data, err := c.encode(value)
	if err != nil {
		return nil, fmt.Errorf("%s: encode: %w", c.name, err)
	}
	return data, nil
}

// Decode exposes the decoder for transactional reads.
func (c *Collection[T]) Decode(snap *firestore.DocumentSnapshot) (T, error) {
	value, err := c.decode(snap)
	if err != nil {
		return value, fmt.Errorf("%s: decode %s: %w", c.name, snap.Ref.ID, err)
	}
	return value, nil
}

// Ref returns the collection reference.
func (c *Collection[T]) Ref(ctx context.Context) (*firestore.CollectionRef, error) {
	if c == nil || c.provider == nil {
		return nil, errors.New("firestore: provider is nil")
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.name), nil
}

// Doc returns the document reference for id.
func (c *Collection[T]) Doc(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(c.op("doc"), errors.New("firestore: document id is required"))
	}
	ref, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}
	return ref.Doc(id), nil
}

// Get fetches and decodes the document.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return zero, err
	}
	snap, err := doc.Get(ctx)
	if err != nil {
		return zero, WrapError(c.op("get"), err)
	}
	return c.Decode(snap)
}

// Create writes a new document and fails with an AlreadyExists error when id is taken.
func (c *Collection[T]) Create(ctx context.Context, id string, value T) error {
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	data, err := c.Encode(value)
	if err != nil {
		return err
	}
	if _, err := doc.Create(ctx, data); err != nil {
		return WrapError(c.op("create"), err)
	}
	return nil
}

// Set upserts the document.
func (c *Collection[T]) Set(ctx context.Context, id string, value T) error {
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	data, err := c.Encode(value)
	if err != nil {
		return err
	}
	if _, err := doc.Set(ctx, data); err != nil {
		return WrapError(c.op("set"), err)
	}
	return nil
}

// Query runs the built query and decodes every document.
func (c *Collection[T]) Query(ctx context.Context, build QueryBuilder) ([]T, error) {
	ref, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}
	query := ref.Query
	if build != nil {
		query = build(query)
	}
	return c.collect(ctx, query)
}

// Page runs the built query ordered by orderField then document ID, newest first, and
// returns at most pageSize items plus the token for the next page.
func (c *Collection[T]) Page(ctx context.Context, build QueryBuilder, orderField string, pageSize int, pageToken string, cursor CursorFunc[T]) ([]T, string, error) {
	ref, err := c.Ref(ctx)
	if err != nil {
		return nil, "", err
	}
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	query := ref.Query
	if build != nil {
		query = build(query)
	}
	query = query.OrderBy(orderField, firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)

	at, id, ok, err := pagination.DecodeTimeCursor(pageToken)
	if err != nil {
		return nil, "", err
	}
	if ok {
		query = query.StartAfter(at, id)
	}

	items, err := c.collect(ctx, query.Limit(pageSize+1))
	if err != nil {
		return nil, "", err
	}
	if len(items) <= pageSize {
		return items, "", nil
	}
	items = items[:pageSize]
	lastAt, lastID := cursor(items[pageSize-1])
	next, err := pagination.TimeCursor(lastAt, lastID)
	if err != nil {
		return nil, "", err
	}
	return items, next, nil
}

func (c *Collection[T]) collect(ctx context.Context, query firestore.Query) ([]T, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var items []T
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return items, nil
		}
		if err != nil {
			return nil, WrapError(c.op("query"), err)
		}
		item, err := c.Decode(snap)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
}

func (c *Collection[T]) op(action string) string {
	name := "firestore"
	if c != nil && c.name != "" {
		name = c.name
	}
	return name + "." + action
}
