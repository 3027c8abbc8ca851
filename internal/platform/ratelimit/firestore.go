package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/core2cover/api/internal/platform/firestore"
)

const (
	defaultCollection = "rateLimits"
	sweepBatchSize    = 300
)

type counterDocument struct {
	Key     string    `firestore:"key"`
	Count   int       `firestore:"count"`
	ResetAt time.Time `firestore:"resetAt"`
}

// FirestoreStore shares counters between instances. Each key owns one document updated in a
// transaction, so concurrent requests across instances never overshoot the limit.
type FirestoreStore struct {
	provider   *pfirestore.Provider
	collection string
	now        func() time.Time
}

// NewFirestoreStore constructs a store on the "rateLimits" collection.
func NewFirestoreStore(provider *pfirestore.Provider, now func() time.Time) *FirestoreStore {
	if now == nil {
		now = time.Now
	}
	return &FirestoreStore{provider: provider, collection: defaultCollection, now: now}
}

func (s *FirestoreStore) collectionRef(ctx context.Context) (*firestore.CollectionRef, error) {
	if s == nil || s.provider == nil {
		return nil, errors.New("ratelimit: firestore provider not configured")
	}
	client, err := s.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(s.collection), nil
}

// CheckAndIncrement implements Store.
func (s *FirestoreStore) CheckAndIncrement(ctx context.Context, key string, limit int, span time.Duration) (Decision, error) {
	if limit <= 0 || span <= 0 {
		return Decision{}, ErrInvalidLimit
	}
	coll, err := s.collectionRef(ctx)
	if err != nil {
		return Decision{}, err
	}
	sum := sha256.Sum256([]byte(key))
	ref := coll.Doc(hex.EncodeToString(sum[:]))

	var decision Decision
	err = s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := s.now().UTC()
		doc := counterDocument{Key: key, ResetAt: now.Add(span)}

		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			var stored counterDocument
			if err := snap.DataTo(&stored); err != nil {
				return err
			}
			if now.Before(stored.ResetAt) {
				doc = stored
			}
		case status.Code(err) != codes.NotFound:
			return err
		}

		if doc.Count >= limit {
			decision = decide(doc.Count, limit, doc.ResetAt, false)
			return nil
		}
		doc.Count++
		decision = decide(doc.Count, limit, doc.ResetAt, true)
		return tx.Set(ref, doc)
	}, pfirestore.WithTxAttempts(3))
	if err != nil {
		return Decision{}, err
	}
	return decision, nil
}

// Sweep deletes counters whose window has ended, one batch per call.
func (s *FirestoreStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	coll, err := s.collectionRef(ctx)
	if err != nil {
		return 0, err
	}
	snaps, err := coll.Where("resetAt", "<=", now.UTC()).Limit(sweepBatchSize).Documents(ctx).GetAll()
	if err != nil {
		return 0, pfirestore.WrapError("ratelimit.sweep", err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}
	client, err := s.provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	bw := client.BulkWriter(ctx)
	for _, snap := range snaps {
		if _, err := bw.Delete(snap.Ref); err != nil {
			bw.End()
			return 0, pfirestore.WrapError("ratelimit.sweep", err)
		}
	}
	bw.End()
	return len(snaps), nil
}
