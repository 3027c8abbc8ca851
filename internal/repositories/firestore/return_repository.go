package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	domain "github.com/core2cover/api/internal/domain"
	pfirestore "github.com/core2cover/api/internal/platform/firestore"
	"github.com/core2cover/api/internal/repositories"
)

// ReturnRepository implements repositories.ReturnRepository. Return IDs are derived from the
// order item ID, so Create doubles as the one-return-per-item guard.
type ReturnRepository struct {
	provider *pfirestore.Provider
	returns  *pfirestore.Collection[domain.ReturnRequest]
	credits  *pfirestore.Collection[domain.StoreCreditAccount]
}

// NewReturnRepository constructs a Firestore-backed return repository.
func NewReturnRepository(provider *pfirestore.Provider) (*ReturnRepository, error) {
	if provider == nil {
		return nil, errors.New("return repository requires firestore provider")
	}
	encode, decode := structCodec(newReturnDocument, returnDocument.toDomain)
	return &ReturnRepository{
		provider: provider,
		returns:  pfirestore.NewCollection[domain.ReturnRequest](provider, returnsCollection, encode, decode),
		credits:  newStoreCreditCollection(provider),
	}, nil
}

// Create inserts ret. An existing document yields an error whose IsConflict reports true.
func (r *ReturnRepository) Create(ctx context.Context, ret domain.ReturnRequest) error {
	if r == nil || r.returns == nil {
		return errors.New("return repository not initialised")
	}
	return r.returns.Create(ctx, ret.ID, ret)
}

// FindByID loads one return.
func (r *ReturnRepository) FindByID(ctx context.Context, returnID string) (domain.ReturnRequest, error) {
	if r == nil || r.returns == nil {
		return domain.ReturnRequest{}, errors.New("return repository not initialised")
	}
	return r.returns.Get(ctx, returnID)
}

// FindByOrderItemIDs returns the returns keyed by order item ID. Items without a return are absent.
func (r *ReturnRepository) FindByOrderItemIDs(ctx context.Context, itemIDs []string) (map[string]domain.ReturnRequest, error) {
	if r == nil || r.returns == nil {
		return nil, errors.New("return repository not initialised")
	}
	result := make(map[string]domain.ReturnRequest, len(itemIDs))
	for _, chunk := range chunkIDs(itemIDs) {
		returns, err := r.returns.Query(ctx, func(q firestore.Query) firestore.Query {
			return q.Where("orderItemId", "in", chunk)
		})
		if err != nil {
			return nil, err
		}
		for _, ret := range returns {
			result[ret.OrderItemID] = ret
		}
	}
	return result, nil
}

// List pages through a customer's or a seller's returns, newest first.
func (r *ReturnRepository) List(ctx context.Context, filter repositories.ReturnListFilter) (domain.CursorPage[domain.ReturnRequest], error) {
	if r == nil || r.returns == nil {
		return domain.CursorPage[domain.ReturnRequest]{}, errors.New("return repository not initialised")
	}
	field, value := "customerId", strings.TrimSpace(filter.CustomerID)
	if value == "" {
		field, value = "sellerId", strings.TrimSpace(filter.SellerID)
	}
	if value == "" {
		return domain.CursorPage[domain.ReturnRequest]{}, errors.New("return list requires customer or seller")
	}

	returns, next, err := r.returns.Page(ctx, func(q firestore.Query) firestore.Query {
		return q.Where(field, "==", value)
	}, "createdAt", filter.Pagination.PageSize, filter.Pagination.PageToken, func(ret domain.ReturnRequest) (time.Time, string) {
		return ret.CreatedAt, ret.ID
	})
	if err != nil {
		return domain.CursorPage[domain.ReturnRequest]{}, err
	}
	return domain.CursorPage[domain.ReturnRequest]{Items: returns, NextPageToken: next}, nil
}

// Update replaces the return when the stored UpdatedAt still equals expectedUpdatedAt.
func (r *ReturnRepository) Update(ctx context.Context, ret domain.ReturnRequest, expectedUpdatedAt time.Time) error {
	if r == nil || r.provider == nil {
		return errors.New("return repository not initialised")
	}
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.checkedRef(ctx, tx, ret.ID, expectedUpdatedAt)
		if err != nil {
			return err
		}
		payload, err := r.returns.Encode(ret)
		if err != nil {
			return err
		}
		return tx.Set(ref, payload)
	})
	return pfirestore.WrapError("returns.update", err)
}

// CompleteRefund stores the completed return and adds credit to the customer's balance atomically.
func (r *ReturnRepository) CompleteRefund(ctx context.Context, ret domain.ReturnRequest, credit decimal.Decimal) error {
	if r == nil || r.provider == nil {
		return errors.New("return repository not initialised")
	}
	if credit.IsNegative() {
		return repositories.NewStoreCreditError(ret.CustomerID, repositories.StoreCreditErrorInvalidAmount, "credit must not be negative")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var creditRef *firestore.DocumentRef
		var account domain.StoreCreditAccount
		if credit.IsPositive() {
			ref, err := r.credits.Doc(ctx, ret.CustomerID)
			if err != nil {
				return err
			}
			if account, err = readStoreCredit(tx, r.credits, ref); err != nil {
				return err
			}
			creditRef = ref
		}

		ref, err := r.checkedRef(ctx, tx, ret.ID, ret.UpdatedAt)
		if err != nil {
			return err
		}

		completed := ret
		completed.RefundStatus = domain.RefundCompleted
		now := time.Now().UTC()
		if completed.RefundedAt == nil {
			completed.RefundedAt = &now
		}
		completed.UpdatedAt = now
		payload, err := r.returns.Encode(completed)
		if err != nil {
			return err
		}
		if err := tx.Set(ref, payload); err != nil {
			return err
		}

		if creditRef != nil {
			return tx.Set(creditRef, storeCreditDocument{
				Balance:   amount(account.Balance.Add(credit)),
				UpdatedAt: storedTime(now),
			})
		}
		return nil
	})
	return pfirestore.WrapError("returns.completeRefund", err)
}

func (r *ReturnRepository) checkedRef(ctx context.Context, tx *firestore.Transaction, id string, expected time.Time) (*firestore.DocumentRef, error) {
	ref, err := r.returns.Doc(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := tx.Get(ref)
	if err != nil {
		return nil, err
	}
	current, err := r.returns.Decode(snap)
	if err != nil {
		return nil, err
	}
	if !current.UpdatedAt.Equal(storedTime(expected)) {
		return nil, conflictError("returns.update", "return %s was modified concurrently", id)
	}
	return ref, nil
}
