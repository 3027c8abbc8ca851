package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/core2cover/api/internal/domain"
	pfirestore "github.com/core2cover/api/internal/platform/firestore"
	"github.com/core2cover/api/internal/repositories"
)

// OrderItemRepository implements repositories.OrderItemRepository.
type OrderItemRepository struct {
	provider *pfirestore.Provider
	items    *pfirestore.Collection[domain.OrderItem]
}

// NewOrderItemRepository constructs a Firestore-backed order item repository.
func NewOrderItemRepository(provider *pfirestore.Provider) (*OrderItemRepository, error) {
	if provider == nil {
		return nil, errors.New("order item repository requires firestore provider")
	}
	return &OrderItemRepository{provider: provider, items: newOrderItemCollection(provider)}, nil
}

// FindByID loads one item.
func (r *OrderItemRepository) FindByID(ctx context.Context, itemID string) (domain.OrderItem, error) {
	if r == nil || r.items == nil {
		return domain.OrderItem{}, errors.New("order item repository not initialised")
	}
	return r.items.Get(ctx, itemID)
}

// ListBySeller pages through a seller's items, newest first, optionally restricted to statuses.
func (r *OrderItemRepository) ListBySeller(ctx context.Context, filter repositories.SellerItemFilter) (domain.CursorPage[domain.OrderItem], error) {
	if r == nil || r.items == nil {
		return domain.CursorPage[domain.OrderItem]{}, errors.New("order item repository not initialised")
	}
	items, next, err := r.items.Page(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("sellerId", "==", filter.SellerID)
		if len(filter.Statuses) > 0 {
			statuses := make([]string, 0, len(filter.Statuses))
			for _, s := range filter.Statuses {
				statuses = append(statuses, string(s))
			}
			q = q.Where("status", "in", statuses)
		}
		return q
	}, "createdAt", filter.Pagination.PageSize, filter.Pagination.PageToken, func(item domain.OrderItem) (time.Time, string) {
		return item.CreatedAt, item.ID
	})
	if err != nil {
		return domain.CursorPage[domain.OrderItem]{}, err
	}
	return domain.CursorPage[domain.OrderItem]{Items: items, NextPageToken: next}, nil
}

// UpdateStatus transitions the item inside a transaction. A concurrent change of status yields
// a conflict error.
func (r *OrderItemRepository) UpdateStatus(ctx context.Context, itemID string, expected, next domain.OrderStatus, at time.Time) (domain.OrderItem, error) {
	if r == nil || r.provider == nil {
		return domain.OrderItem{}, errors.New("order item repository not initialised")
	}

	var updated domain.OrderItem
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.items.Doc(ctx, itemID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		item, err := r.items.Decode(snap)
		if err != nil {
			return err
		}
		if item.Status != expected {
			return conflictError("orderItems.updateStatus", "item %s is %s, expected %s", itemID, item.Status, expected)
		}

		item.Status = next
		item.UpdatedAt = storedTime(at)
		if err := tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(next)},
			{Path: "updatedAt", Value: item.UpdatedAt},
		}); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return domain.OrderItem{}, pfirestore.WrapError("orderItems.updateStatus", err)
	}
	return updated, nil
}
