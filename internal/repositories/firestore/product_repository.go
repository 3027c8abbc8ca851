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

// ProductRepository implements repositories.ProductRepository.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.Collection[domain.Product]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	encode, decode := structCodec(newProductDocument, productDocument.toDomain)
	return &ProductRepository{
		provider: provider,
		products: pfirestore.NewCollection[domain.Product](provider, productsCollection, encode, decode),
	}, nil
}

// Insert creates a new listing.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if r == nil || r.products == nil {
		return errors.New("product repository not initialised")
	}
	return r.products.Create(ctx, product.ID, product)
}

// Update replaces an existing listing, failing with not found when it was never created.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	if r == nil || r.provider == nil {
		return errors.New("product repository not initialised")
	}
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.products.Doc(ctx, product.ID)
		if err != nil {
			return err
		}
		if _, err := tx.Get(ref); err != nil {
			return err
		}
		payload, err := r.products.Encode(product)
		if err != nil {
			return err
		}
		return tx.Set(ref, payload)
	})
	return pfirestore.WrapError("products.update", err)
}

// FindByID loads one listing.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	return r.products.Get(ctx, productID)
}

// ListBySeller pages through a seller's listings, most recently updated first.
func (r *ProductRepository) ListBySeller(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if r == nil || r.products == nil {
		return domain.CursorPage[domain.Product]{}, errors.New("product repository not initialised")
	}
	products, next, err := r.products.Page(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("sellerId", "==", filter.SellerID)
	}, "updatedAt", filter.Pagination.PageSize, filter.Pagination.PageToken, func(p domain.Product) (time.Time, string) {
		return p.UpdatedAt, p.ID
	})
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}
	return domain.CursorPage[domain.Product]{Items: products, NextPageToken: next}, nil
}
