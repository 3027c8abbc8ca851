//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/core2cover/api/internal/domain"
	pconfig "github.com/core2cover/api/internal/platform/config"
	pfirestore "github.com/core2cover/api/internal/platform/firestore"
	"github.com/core2cover/api/internal/repositories"
)

func emulatorProvider(t *testing.T) *pfirestore.Provider {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "c2c-repo-test", EmulatorHost: host})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })
	return provider
}

func seedCredit(t *testing.T, ctx context.Context, provider *pfirestore.Provider, customerID string, balance decimal.Decimal) {
	t.Helper()
	credits := newStoreCreditCollection(provider)
	if err := credits.Set(ctx, customerID, domain.StoreCreditAccount{Balance: balance, UpdatedAt: time.Now()}); err != nil {
		t.Fatalf("seed credit: %v", err)
	}
}

func TestOrderInsertDebitsCreditOnce(t *testing.T) {
	provider := emulatorProvider(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	customer := fmt.Sprintf("cust-%d", time.Now().UnixNano())
	seedCredit(t, ctx, provider, customer, decimal.NewFromInt(500))

	orders, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("new order repository: %v", err)
	}
	credits, _ := NewStoreCreditRepository(provider)

	const workers = 4
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, insufficient := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			now := time.Now().UTC()
			order := domain.Order{
				ID:         fmt.Sprintf("%s-ord-%d", customer, i),
				CustomerID: customer,
				Status:     domain.OrderStatusPending,
				Currency:   "INR",
				Items: []domain.OrderItem{{
					ID: fmt.Sprintf("%s-item-%d", customer, i), OrderID: fmt.Sprintf("%s-ord-%d", customer, i),
					CustomerID: customer, SellerID: "seller-1", Status: domain.OrderStatusPending,
					Quantity: 1, UnitPrice: decimal.NewFromInt(300), Total: decimal.NewFromInt(300),
					CreatedAt: now, UpdatedAt: now,
				}},
				GrandTotal: decimal.NewFromInt(300),
				CreditUsed: decimal.NewFromInt(300),
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			err := orders.Insert(ctx, order, decimal.NewFromInt(300))
			mu.Lock()
			defer mu.Unlock()
			var creditErr *repositories.StoreCreditError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &creditErr) && creditErr.Code == repositories.StoreCreditErrorInsufficient:
				insufficient++
			default:
				t.Errorf("insert %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 1 || insufficient != workers-1 {
		t.Fatalf("expected exactly one debit to succeed, got %d ok / %d insufficient", succeeded, insufficient)
	}
	account, err := credits.Get(ctx, customer)
	if err != nil {
		t.Fatalf("get credit: %v", err)
	}
	if !account.Balance.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected balance 200, got %s", account.Balance)
	}
}

func TestReturnCreateIsUniquePerItemAndRefundCredits(t *testing.T) {
	provider := emulatorProvider(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	returns, err := NewReturnRepository(provider)
	if err != nil {
		t.Fatalf("new return repository: %v", err)
	}
	credits, _ := NewStoreCreditRepository(provider)

	itemID := fmt.Sprintf("item-%d", time.Now().UnixNano())
	now := time.Now().UTC()
	ret := domain.ReturnRequest{
		ID:                   "ret_" + itemID,
		OrderID:              "ord-1",
		OrderItemID:          itemID,
		CustomerID:           "cust-" + itemID,
		SellerID:             "seller-1",
		RefundMethod:         domain.RefundMethodStoreCredit,
		RefundAmount:         decimal.RequireFromString("1250.50"),
		SellerApprovalStatus: domain.ApprovalApproved,
		AdminApprovalStatus:  domain.ApprovalApproved,
		RefundStatus:         domain.RefundPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := returns.Create(ctx, ret); err != nil {
		t.Fatalf("create: %v", err)
	}
	err = returns.Create(ctx, ret)
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict on duplicate create, got %v", err)
	}

	stored, err := returns.FindByID(ctx, ret.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if err := returns.CompleteRefund(ctx, stored, stored.RefundAmount); err != nil {
		t.Fatalf("complete refund: %v", err)
	}
	if err := returns.CompleteRefund(ctx, stored, stored.RefundAmount); !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected stale refund to conflict, got %v", err)
	}

	account, err := credits.Get(ctx, ret.CustomerID)
	if err != nil {
		t.Fatalf("get credit: %v", err)
	}
	if !account.Balance.Equal(decimal.RequireFromString("1250.50")) {
		t.Fatalf("expected credited balance 1250.50, got %s", account.Balance)
	}

	byItem, err := returns.FindByOrderItemIDs(ctx, []string{itemID, "missing"})
	if err != nil {
		t.Fatalf("find by items: %v", err)
	}
	if got := byItem[itemID]; got.RefundStatus != domain.RefundCompleted {
		t.Fatalf("expected completed refund, got %+v", got)
	}
}
