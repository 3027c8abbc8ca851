package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/core2cover/api/internal/domain"
)

func newTestProductService(t *testing.T, repo *stubProductRepo, uploads UploadSigner) ProductService {
	t.Helper()
	svc, err := NewProductService(ProductServiceDeps{
		Products:    repo,
		Uploads:     uploads,
		Clock:       fixedClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
		IDGenerator: sequentialIDs("01P"),
	})
	if err != nil {
		t.Fatalf("NewProductService: %v", err)
	}
	return svc
}

func validProductCommand() UpsertProductCommand {
	return UpsertProductCommand{
		SellerID:                  "seller-1",
		Name:                      " <i>Teak</i> Sofa ",
		Description:               "Three seater.\r\n\r\n\r\n<script>x</script>Solid teak.",
		Category:                  "Living",
		BasePrice:                 "10000",
		UnitsPerTrip:              2,
		ShippingChargeType:        "paid",
		ShippingChargePerTrip:     "500",
		InstallationAvailable:     "YES",
		InstallationChargePerUnit: "300",
	}
}

func TestProductServiceCreateDerivesListingPrice(t *testing.T) {
	repo := &stubProductRepo{}
	svc := newTestProductService(t, repo, nil)

	product, err := svc.CreateProduct(context.Background(), validProductCommand())
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if product.ID != "prd_01P01" || product.Name != "Teak Sofa" {
		t.Fatalf("unexpected product identity %q %q", product.ID, product.Name)
	}
	if product.Description != "Three seater.\n\nSolid teak." {
		t.Fatalf("unexpected description %q", product.Description)
	}
	if !product.Price.Equal(decimal.NewFromInt(10500)) {
		t.Fatalf("expected listing price 10500, got %s", product.Price)
	}
	if product.ShippingChargeType != domain.ShippingChargePaid || product.InstallationAvailable != domain.InstallationYes {
		t.Fatalf("unexpected material terms %+v", product)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected one insert, got %d", len(repo.inserted))
	}
}

func TestProductServiceCreateValidation(t *testing.T) {
	svc := newTestProductService(t, &stubProductRepo{}, nil)
	mutate := []struct {
		name string
		fn   func(*UpsertProductCommand)
	}{
		{"missing name", func(c *UpsertProductCommand) { c.Name = "<b></b>" }},
		{"zero price", func(c *UpsertProductCommand) { c.BasePrice = "0" }},
		{"bad price", func(c *UpsertProductCommand) { c.BasePrice = "ten" }},
		{"negative shipping", func(c *UpsertProductCommand) { c.ShippingChargePerTrip = "-1" }},
		{"unknown shipping type", func(c *UpsertProductCommand) { c.ShippingChargeType = "express" }},
		{"unknown installation flag", func(c *UpsertProductCommand) { c.InstallationAvailable = "maybe" }},
		{"negative units", func(c *UpsertProductCommand) { c.UnitsPerTrip = -2 }},
		{"foreign image", func(c *UpsertProductCommand) { c.ImagePaths = []string{"products/seller-2/prd_x/u/a.jpg"} }},
	}
	for _, tc := range mutate {
		t.Run(tc.name, func(t *testing.T) {
			cmd := validProductCommand()
			tc.fn(&cmd)
			if _, err := svc.CreateProduct(context.Background(), cmd); !errors.Is(err, ErrProductInvalidInput) {
				t.Fatalf("expected ErrProductInvalidInput, got %v", err)
			}
		})
	}
}

func TestProductServiceFreeShippingAndNoInstallationZeroCharges(t *testing.T) {
	svc := newTestProductService(t, &stubProductRepo{}, nil)
	cmd := validProductCommand()
	cmd.BasePrice = "999.99"
	cmd.ShippingChargeType = "FREE"
	cmd.ShippingChargePerTrip = "not-used"
	cmd.InstallationAvailable = ""
	cmd.UnitsPerTrip = 0

	product, err := svc.CreateProduct(context.Background(), cmd)
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if !product.Price.Equal(decimal.RequireFromString("1069.99")) {
		t.Fatalf("expected 1069.99, got %s", product.Price)
	}
	if !product.ShippingChargePerTrip.IsZero() || !product.InstallationChargePerUnit.IsZero() || product.UnitsPerTrip != 1 {
		t.Fatalf("unexpected defaults %+v", product)
	}
}

func TestProductServiceUpdateRecomputesPriceAndChecksOwner(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := &stubProductRepo{products: map[string]domain.Product{
		"prd_1": {ID: "prd_1", SellerID: "seller-1", Name: "Old", BasePrice: decimal.NewFromInt(100), Price: decimal.NewFromInt(107), CreatedAt: created},
	}}
	svc := newTestProductService(t, repo, nil)

	cmd := validProductCommand()
	cmd.ProductID = "prd_1"
	cmd.BasePrice = "60000"
	cmd.ImagePaths = []string{"products/seller-1/prd_1/u1/front.jpg", "products/seller-1/prd_1/u1/front.jpg"}
	product, err := svc.UpdateProduct(context.Background(), cmd)
	if err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	if !product.Price.Equal(decimal.NewFromInt(62100)) {
		t.Fatalf("expected 62100, got %s", product.Price)
	}
	if !product.CreatedAt.Equal(created) || len(product.ImagePaths) != 1 {
		t.Fatalf("unexpected update result %+v", product)
	}

	cmd.SellerID = "seller-2"
	if _, err := svc.UpdateProduct(context.Background(), cmd); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound for another seller, got %v", err)
	}
}

func TestProductServiceIssueImageUpload(t *testing.T) {
	repo := &stubProductRepo{products: map[string]domain.Product{"prd_1": {ID: "prd_1", SellerID: "seller-1"}}}
	uploads := &stubUploadSigner{}
	svc := newTestProductService(t, repo, uploads)

	upload, err := svc.IssueImageUpload(context.Background(), ProductImageUploadCommand{SellerID: "seller-1", ProductID: "prd_1", FileName: "front.png", ContentType: "image/png", SizeBytes: 2048})
	if err != nil {
		t.Fatalf("IssueImageUpload: %v", err)
	}
	if upload.ObjectPath != "products/seller-1/prd_1/01P01/front.png" {
		t.Fatalf("unexpected object path %q", upload.ObjectPath)
	}
	if _, err := svc.IssueImageUpload(context.Background(), ProductImageUploadCommand{SellerID: "seller-1", ProductID: "prd_1", FileName: "../x.png", ContentType: "image/png"}); !errors.Is(err, ErrProductInvalidInput) {
		t.Fatalf("expected ErrProductInvalidInput, got %v", err)
	}

	noUploads := newTestProductService(t, repo, nil)
	if _, err := noUploads.IssueImageUpload(context.Background(), ProductImageUploadCommand{SellerID: "seller-1", ProductID: "prd_1", FileName: "a.png"}); !errors.Is(err, ErrProductUploadsUnavailable) {
		t.Fatalf("expected ErrProductUploadsUnavailable, got %v", err)
	}
}

func TestStoreCreditServiceBalance(t *testing.T) {
	repo := &stubStoreCreditRepo{balances: map[string]decimal.Decimal{"cust-1": decimal.RequireFromString("1250.505")}}
	svc, err := NewStoreCreditService(StoreCreditServiceDeps{StoreCredits: repo})
	if err != nil {
		t.Fatalf("NewStoreCreditService: %v", err)
	}

	account, err := svc.Balance(context.Background(), " cust-1 ")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if account.CustomerID != "cust-1" || !account.Balance.Equal(decimal.RequireFromString("1250.51")) {
		t.Fatalf("unexpected account %+v", account)
	}
	empty, err := svc.Balance(context.Background(), "cust-2")
	if err != nil || !empty.Balance.IsZero() {
		t.Fatalf("missing account should read as zero, got %v %+v", err, empty)
	}
	if _, err := svc.Balance(context.Background(), ""); !errors.Is(err, ErrStoreCreditInvalidInput) {
		t.Fatalf("expected ErrStoreCreditInvalidInput, got %v", err)
	}

	repo.err = stubRepoError{unavailable: true}
	if _, err := svc.Balance(context.Background(), "cust-1"); !errors.Is(err, ErrStoreCreditUnavailable) {
		t.Fatalf("expected ErrStoreCreditUnavailable, got %v", err)
	}
}
