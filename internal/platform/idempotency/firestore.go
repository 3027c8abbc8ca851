package idempotency

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/core2cover/api/internal/platform/firestore"
)

const defaultCollection = "idempotencyKeys"

type entryDocument struct {
	Key         string              `firestore:"key"`
	Fingerprint string              `firestore:"fingerprint"`
	State       string              `firestore:"state"`
	StatusCode  int                 `firestore:"statusCode,omitempty"`
	Header      map[string][]string `firestore:"header,omitempty"`
	Body        []byte              `firestore:"body,omitempty"`
	CreatedAt   time.Time           `firestore:"createdAt"`
	ExpiresAt   time.Time           `firestore:"expiresAt"`
}

func newEntryDocument(e Entry) entryDocument {
	return entryDocument{
		Key:         e.Key,
		Fingerprint: e.Fingerprint,
		State:       string(e.State),
		StatusCode:  e.StatusCode,
		Header:      e.Header,
		Body:        e.Body,
		CreatedAt:   e.CreatedAt.UTC(),
		ExpiresAt:   e.ExpiresAt.UTC(),
	}
}

func (d entryDocument) toEntry() Entry {
	return Entry{
		Key:         d.Key,
		Fingerprint: d.Fingerprint,
		State:       State(d.State),
		StatusCode:  d.StatusCode,
		Header:      d.Header,
		Body:        d.Body,
		CreatedAt:   d.CreatedAt,
		ExpiresAt:   d.ExpiresAt,
	}
}

// FirestoreStore shares keys across instances through a Firestore collection.
type FirestoreStore struct {
	provider   *pfirestore.Provider
	collection string
}

// NewFirestoreStore constructs a store on the "idempotencyKeys" collection.
func NewFirestoreStore(provider *pfirestore.Provider) *FirestoreStore {
	return &FirestoreStore{provider: provider, collection: defaultCollection}
}

func (s *FirestoreStore) doc(ctx context.Context, key string) (*firestore.DocumentRef, error) {
	if s == nil || s.provider == nil {
		return nil, errors.New("idempotency: firestore provider not configured")
	}
	client, err := s.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(s.collection).Doc(documentID(key)), nil
}

// Begin implements Store inside a transaction so concurrent requests race on one document.
func (s *FirestoreStore) Begin(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Entry, bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now = now.UTC()
	ref, err := s.doc(ctx, key)
	if err != nil {
		return Entry{}, false, err
	}

	var (
		result Entry
		fresh  bool
	)
	err = s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil {
			var doc entryDocument
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			existing := doc.toEntry()
			if !existing.expired(now) {
				if existing.Fingerprint != fingerprint {
					return ErrKeyReused
				}
				result, fresh = existing, false
				return nil
			}
		}
		entry := Entry{
			Key:         key,
			Fingerprint: fingerprint,
			State:       StateInFlight,
			CreatedAt:   now,
			ExpiresAt:   now.Add(ttl),
		}
		if err := tx.Set(ref, newEntryDocument(entry)); err != nil {
			return err
		}
		result, fresh = entry, true
		return nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	return result, fresh, nil
}

// Finish implements Store.
func (s *FirestoreStore) Finish(ctx context.Context, entry Entry) error {
	ref, err := s.doc(ctx, entry.Key)
	if err != nil {
		return err
	}
	entry.State = StateDone
	if _, err := ref.Set(ctx, newEntryDocument(entry)); err != nil {
		return pfirestore.WrapError("idempotency.finish", err)
	}
	return nil
}

// Abandon implements Store.
func (s *FirestoreStore) Abandon(ctx context.Context, key string) error {
	ref, err := s.doc(ctx, key)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return pfirestore.WrapError("idempotency.abandon", err)
	}
	return nil
}

// Purge deletes up to limit expired keys.
func (s *FirestoreStore) Purge(ctx context.Context, now time.Time, limit int) (int, error) {
	if s == nil || s.provider == nil {
		return 0, errors.New("idempotency: firestore provider not configured")
	}
	client, err := s.provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	if limit <= 0 {
		limit = 200
	}
	snaps, err := client.Collection(s.collection).
		Where("expiresAt", "<=", now.UTC()).
		Limit(limit).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, pfirestore.WrapError("idempotency.purge", err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}
	bw := client.BulkWriter(ctx)
	for _, snap := range snaps {
		if _, err := bw.Delete(snap.Ref); err != nil {
			bw.End()
			return 0, pfirestore.WrapError("idempotency.purge", err)
		}
	}
	bw.End()
	return len(snaps), nil
}
