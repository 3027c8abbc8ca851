package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	domain "github.com/core2cover/api/internal/domain"
	"github.com/core2cover/api/internal/platform/storage"
	"github.com/core2cover/api/internal/platform/textutil"
	"github.com/core2cover/api/internal/repositories"
)

const (
	productIDPrefix        = "prd_"
	maxProductNameLen      = 200
	maxProductCategoryLen  = 100
	maxProductDescLen      = 5000
	maxProductImagePaths   = 10
	maxProductUnitsPerTrip = 10_000
)

var (
	// ErrProductInvalidInput indicates the listing failed validation.
	ErrProductInvalidInput = errors.New("product: invalid input")
	// ErrProductNotFound indicates the product does not exist or belongs to another seller.
	ErrProductNotFound = errors.New("product: not found")
	// ErrProductUploadsUnavailable indicates media uploads are not configured.
	ErrProductUploadsUnavailable = errors.New("product: uploads unavailable")
	// ErrProductUnavailable indicates persistence is currently unavailable.
	ErrProductUnavailable = errors.New("product: unavailable")
)

// ProductServiceDeps bundles collaborators required by the product service.
type ProductServiceDeps struct {
	Products    repositories.ProductRepository
	Uploads     UploadSigner
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type productService struct {
	products repositories.ProductRepository
	uploads  UploadSigner
	now      func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewProductService constructs a ProductService validating required dependencies.
func NewProductService(deps ProductServiceDeps) (ProductService, error) {
	if deps.Products == nil {
		return nil, errors.New("product service: product repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &productService{
		products: deps.Products,
		uploads:  deps.Uploads,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// CreateProduct validates and stores a new listing. Price is derived from BasePrice.
func (s *productService) CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	sellerID := strings.TrimSpace(cmd.SellerID)
	if sellerID == "" {
		return Product{}, fmt.Errorf("%w: seller id is required", ErrProductInvalidInput)
	}
	product := Product{ID: productIDPrefix + s.newID(), SellerID: sellerID}
	if err := applyProductFields(&product, cmd); err != nil {
		return Product{}, err
	}
	now := s.now()
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.products.Insert(ctx, product); err != nil {
		return Product{}, s.mapRepositoryError(err)
	}
	s.logger(ctx, "product.created", map[string]any{
		"productId": product.ID,
		"sellerId":  sellerID,
		"price":     product.Price.StringFixed(2),
	})
	return product, nil
}

// UpdateProduct replaces the editable fields of one of the seller's listings and recomputes Price.
func (s *productService) UpdateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	sellerID := strings.TrimSpace(cmd.SellerID)
	productID := strings.TrimSpace(cmd.ProductID)
	if sellerID == "" || productID == "" {
		return Product{}, fmt.Errorf("%w: seller and product id are required", ErrProductInvalidInput)
	}
	product, err := s.ownedProduct(ctx, sellerID, productID)
	if err != nil {
		return Product{}, err
	}
	if err := applyProductFields(&product, cmd); err != nil {
		return Product{}, err
	}
	product.UpdatedAt = s.now()

	if err := s.products.Update(ctx, product); err != nil {
		return Product{}, s.mapRepositoryError(err)
	}
	s.logger(ctx, "product.updated", map[string]any{
		"productId": product.ID,
		"sellerId":  sellerID,
		"price":     product.Price.StringFixed(2),
	})
	return product, nil
}

func (s *productService) ListSellerProducts(ctx context.Context, sellerID string, page Pagination) (domain.CursorPage[Product], error) {
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return domain.CursorPage[Product]{}, ErrProductInvalidInput
	}
	result, err := s.products.ListBySeller(ctx, repositories.ProductListFilter{SellerID: sellerID, Pagination: page})
	if err != nil {
		return domain.CursorPage[Product]{}, s.mapRepositoryError(err)
	}
	return result, nil
}

// IssueImageUpload signs an upload URL under the product's image prefix.
func (s *productService) IssueImageUpload(ctx context.Context, cmd ProductImageUploadCommand) (SignedUpload, error) {
	if s.uploads == nil {
		return SignedUpload{}, ErrProductUploadsUnavailable
	}
	sellerID := strings.TrimSpace(cmd.SellerID)
	productID := strings.TrimSpace(cmd.ProductID)
	if sellerID == "" || productID == "" {
		return SignedUpload{}, ErrProductInvalidInput
	}
	if _, err := s.ownedProduct(ctx, sellerID, productID); err != nil {
		return SignedUpload{}, err
	}
	objectPath, err := storage.ProductImagePath(sellerID, productID, s.newID(), cmd.FileName)
	if err != nil {
		return SignedUpload{}, fmt.Errorf("%w: %v", ErrProductInvalidInput, err)
	}
	upload, err := s.uploads.SignedUpload(ctx, objectPath, cmd.ContentType, cmd.SizeBytes)
	if err != nil {
		if errors.Is(err, storage.ErrContentTypeDenied) || errors.Is(err, storage.ErrUploadTooLarge) {
			return SignedUpload{}, fmt.Errorf("%w: %v", ErrProductInvalidInput, err)
		}
		return SignedUpload{}, err
	}
	return upload, nil
}

func (s *productService) ownedProduct(ctx context.Context, sellerID, productID string) (Product, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Product{}, s.mapRepositoryError(err)
	}
	if product.SellerID != sellerID {
		return Product{}, ErrProductNotFound
	}
	return product, nil
}

func (s *productService) mapRepositoryError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrProductNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrProductUnavailable, err)
		}
	}
	return err
}

func applyProductFields(product *Product, cmd UpsertProductCommand) error {
	name := textutil.PlainText(cmd.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrProductInvalidInput)
	}
	if textutil.RuneLen(name) > maxProductNameLen {
		return fmt.Errorf("%w: name must be at most %d characters", ErrProductInvalidInput, maxProductNameLen)
	}
	category := textutil.PlainText(cmd.Category)
	if textutil.RuneLen(category) > maxProductCategoryLen {
		return fmt.Errorf("%w: category must be at most %d characters", ErrProductInvalidInput, maxProductCategoryLen)
	}
	description := textutil.PlainTextMultiline(cmd.Description)
	if textutil.RuneLen(description) > maxProductDescLen {
		return fmt.Errorf("%w: description must be at most %d characters", ErrProductInvalidInput, maxProductDescLen)
	}

	base, err := requiredAmount("basePrice", cmd.BasePrice)
	if err != nil {
		return err
	}
	if !base.IsPositive() {
		return fmt.Errorf("%w: basePrice must be greater than zero", ErrProductInvalidInput)
	}

	unitsPerTrip := cmd.UnitsPerTrip
	if unitsPerTrip == 0 {
		unitsPerTrip = 1
	}
	if unitsPerTrip < 1 || unitsPerTrip > maxProductUnitsPerTrip {
		return fmt.Errorf("%w: unitsPerTrip must be between 1 and %d", ErrProductInvalidInput, maxProductUnitsPerTrip)
	}

	shippingType, shippingCharge, err := shippingTerms(cmd.ShippingChargeType, cmd.ShippingChargePerTrip)
	if err != nil {
		return err
	}
	installation, installationCharge, err := installationTerms(cmd.InstallationAvailable, cmd.InstallationChargePerUnit)
	if err != nil {
		return err
	}
	images, err := productImagePaths(cmd.ImagePaths, product.SellerID, product.ID)
	if err != nil {
		return err
	}

	product.Name = name
	product.Category = category
	product.Description = description
	product.BasePrice = base.Round(2)
	product.Price = ComputeListingPrice(product.BasePrice)
	product.UnitsPerTrip = unitsPerTrip
	product.ShippingChargeType = shippingType
	product.ShippingChargePerTrip = shippingCharge
	product.InstallationAvailable = installation
	product.InstallationChargePerUnit = installationCharge
	product.ImagePaths = images
	return nil
}

func shippingTerms(rawType, rawCharge string) (domain.ShippingChargeType, decimal.Decimal, error) {
	switch {
	case domain.ShippingChargeType(rawType).IsFree():
		return domain.ShippingChargeFree, decimal.Zero, nil
	case strings.EqualFold(strings.TrimSpace(rawType), string(domain.ShippingChargePaid)):
		charge, err := requiredAmount("shippingChargePerTrip", rawCharge)
		if err != nil {
			return "", decimal.Zero, err
		}
		return domain.ShippingChargePaid, charge, nil
	default:
		return "", decimal.Zero, fmt.Errorf("%w: shippingChargeType must be Free or Paid", ErrProductInvalidInput)
	}
}

func installationTerms(rawFlag, rawCharge string) (domain.InstallationAvailability, decimal.Decimal, error) {
	flag := strings.ToLower(strings.TrimSpace(rawFlag))
	switch domain.InstallationAvailability(flag) {
	case domain.InstallationYes:
		charge, err := requiredAmount("installationChargePerUnit", rawCharge)
		if err != nil {
			return "", decimal.Zero, err
		}
		return domain.InstallationYes, charge, nil
	case domain.InstallationNo, "":
		return domain.InstallationNo, decimal.Zero, nil
	default:
		return "", decimal.Zero, fmt.Errorf("%w: installationAvailable must be yes or no", ErrProductInvalidInput)
	}
}

func requiredAmount(field, raw string) (decimal.Decimal, error) {
	value, ok := parseDecimal(raw)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s must be a number", ErrProductInvalidInput, field)
	}
	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s must not be negative", ErrProductInvalidInput, field)
	}
	return value.Round(2), nil
}

func productImagePaths(paths []string, sellerID, productID string) ([]string, error) {
	if len(paths) > maxProductImagePaths {
		return nil, fmt.Errorf("%w: at most %d images", ErrProductInvalidInput, maxProductImagePaths)
	}
	prefix := "products/" + sellerID + "/" + productID
	out := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !storage.IsOwnedPath(p, prefix) {
			return nil, fmt.Errorf("%w: image %q does not belong to this product", ErrProductInvalidInput, p)
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}
