package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/core2cover/api/internal/domain"
	pfirestore "github.com/core2cover/api/internal/platform/firestore"
	"github.com/core2cover/api/internal/repositories"
)

// Firestore caps "in" filters at 30 values.
const maxInValues = 30

// OrderRepository implements repositories.OrderRepository. Items live in their own top-level
// collection so sellers can list them without reading whole orders.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.Collection[domain.Order]
	items    *pfirestore.Collection[domain.OrderItem]
	credits  *pfirestore.Collection[domain.StoreCreditAccount]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   newOrderCollection(provider),
		items:    newOrderItemCollection(provider),
		credits:  newStoreCreditCollection(provider),
	}, nil
}

func newOrderCollection(provider *pfirestore.Provider) *pfirestore.Collection[domain.Order] {
	encode, decode := structCodec(newOrderDocument, orderDocument.toDomain)
	return pfirestore.NewCollection[domain.Order](provider, ordersCollection, encode, decode)
}

func newOrderItemCollection(provider *pfirestore.Provider) *pfirestore.Collection[domain.OrderItem] {
	encode, decode := structCodec(newOrderItemDocument, orderItemDocument.toDomain)
	return pfirestore.NewCollection[domain.OrderItem](provider, orderItemsCollection, encode, decode)
}

// Insert writes the order, every item and the store credit debit in one transaction. A debit
// larger than the balance fails with a StoreCreditError and nothing is written.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order, creditDebit decimal.Decimal) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}
	if creditDebit.IsNegative() {
		return repositories.NewStoreCreditError(order.CustomerID, repositories.StoreCreditErrorInvalidAmount, "debit must not be negative")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var creditRef *firestore.DocumentRef
		var balance decimal.Decimal
		if creditDebit.IsPositive() {
			ref, err := r.credits.Doc(ctx, order.CustomerID)
			if err != nil {
				return err
			}
			account, err := readStoreCredit(tx, r.credits, ref)
			if err != nil {
				return err
			}
			if account.Balance.LessThan(creditDebit) {
				return repositories.NewStoreCreditError(order.CustomerID, repositories.StoreCreditErrorInsufficient,
					fmt.Sprintf("balance %s cannot cover %s", account.Balance.StringFixed(2), creditDebit.StringFixed(2)))
			}
			creditRef = ref
			balance = account.Balance.Sub(creditDebit)
		}

		orderRef, err := r.orders.Doc(ctx, order.ID)
		if err != nil {
			return err
		}
		payload, err := r.orders.Encode(order)
		if err != nil {
			return err
		}
		if err := tx.Create(orderRef, payload); err != nil {
			return err
		}

		for _, item := range order.Items {
			itemRef, err := r.items.Doc(ctx, item.ID)
			if err != nil {
				return err
			}
			payload, err := r.items.Encode(item)
			if err != nil {
				return err
			}
			if err := tx.Create(itemRef, payload); err != nil {
				return err
			}
		}

		if creditRef != nil {
			return tx.Set(creditRef, storeCreditDocument{Balance: amount(balance), UpdatedAt: storedTime(order.CreatedAt)})
		}
		return nil
	})
	if err != nil {
		var creditErr *repositories.StoreCreditError
		if errors.As(err, &creditErr) {
			return creditErr
		}
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// FindByID loads the order and its items.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	order, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	items, err := r.itemsForOrders(ctx, []string{order.ID})
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items[order.ID]
	return order, nil
}

// ListByCustomer pages through the customer's orders, newest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.orders == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}
	orders, next, err := r.orders.Page(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("customerId", "==", filter.CustomerID)
	}, "createdAt", filter.Pagination.PageSize, filter.Pagination.PageToken, orderCursor)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	ids := make([]string, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID)
	}
	items, err := r.itemsForOrders(ctx, ids)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return domain.CursorPage[domain.Order]{Items: orders, NextPageToken: next}, nil
}

func (r *OrderRepository) itemsForOrders(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	result := make(map[string][]domain.OrderItem, len(orderIDs))
	for _, chunk := range chunkIDs(orderIDs) {
		items, err := r.items.Query(ctx, func(q firestore.Query) firestore.Query {
			return q.Where("orderId", "in", chunk)
		})
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			result[item.OrderID] = append(result[item.OrderID], item)
		}
	}
	return result, nil
}

func orderCursor(order domain.Order) (time.Time, string) {
	return order.CreatedAt, order.ID
}

func chunkIDs(ids []string) [][]string {
	var chunks [][]string
	for start := 0; start < len(ids); start += maxInValues {
		end := min(start+maxInValues, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// conflictError marks an optimistic precondition failure with repository conflict semantics.
func conflictError(op, format string, args ...any) error {
	return pfirestore.WrapError(op, status.Errorf(codes.FailedPrecondition, format, args...))
}
