package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/core2cover/api/internal/platform/firestore"
	"github.com/core2cover/api/internal/repositories"
)

// Registry wires the Firestore repositories behind repositories.Registry.
type Registry struct {
	provider     *pfirestore.Provider
	orders       *OrderRepository
	orderItems   *OrderItemRepository
	returns      *ReturnRepository
	products     *ProductRepository
	storeCredits *StoreCreditRepository
	health       repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs every repository on the shared provider.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	orderItems, err := NewOrderItemRepository(provider)
	if err != nil {
		return nil, err
	}
	returns, err := NewReturnRepository(provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	storeCredits, err := NewStoreCreditRepository(provider)
	if err != nil {
		return nil, err
	}
	return &Registry{
		provider:     provider,
		orders:       orders,
		orderItems:   orderItems,
		returns:      returns,
		products:     products,
		storeCredits: storeCredits,
		health:       health,
	}, nil
}

func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) OrderItems() repositories.OrderItemRepository { return r.orderItems }

func (r *Registry) Returns() repositories.ReturnRepository { return r.returns }

func (r *Registry) Products() repositories.ProductRepository { return r.products }

func (r *Registry) StoreCredits() repositories.StoreCreditRepository { return r.storeCredits }

func (r *Registry) Health() repositories.HealthRepository { return r.health }
