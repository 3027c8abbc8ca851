package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/core2cover/api/internal/domain"
	"github.com/core2cover/api/internal/repositories"
)

type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepoError) Error() string {
	return fmt.Sprintf("repo error notFound=%v conflict=%v unavailable=%v", e.notFound, e.conflict, e.unavailable)
}
func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

var (
	errStubNotFound = stubRepoError{notFound: true}
	errStubConflict = stubRepoError{conflict: true}
)

type stubOrderRepo struct {
	insertFn func(context.Context, domain.Order, decimal.Decimal) error
	findFn   func(context.Context, string) (domain.Order, error)
	listFn   func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
}

func (s *stubOrderRepo) Insert(ctx context.Context, order domain.Order, debit decimal.Decimal) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, order, debit)
	}
	return nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFn != nil {
		return s.findFn(ctx, orderID)
	}
	return domain.Order{}, errStubNotFound
}

func (s *stubOrderRepo) ListByCustomer(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

type stubOrderItemRepo struct {
	items    map[string]domain.OrderItem
	listFn   func(context.Context, repositories.SellerItemFilter) (domain.CursorPage[domain.OrderItem], error)
	updateFn func(context.Context, string, domain.OrderStatus, domain.OrderStatus, time.Time) (domain.OrderItem, error)
}

func (s *stubOrderItemRepo) FindByID(_ context.Context, itemID string) (domain.OrderItem, error) {
	item, ok := s.items[itemID]
	if !ok {
		return domain.OrderItem{}, errStubNotFound
	}
	return item, nil
}

func (s *stubOrderItemRepo) ListBySeller(ctx context.Context, filter repositories.SellerItemFilter) (domain.CursorPage[domain.OrderItem], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.OrderItem]{}, nil
}

func (s *stubOrderItemRepo) UpdateStatus(ctx context.Context, itemID string, expected, next domain.OrderStatus, at time.Time) (domain.OrderItem, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, itemID, expected, next, at)
	}
	item, ok := s.items[itemID]
	if !ok {
		return domain.OrderItem{}, errStubNotFound
	}
	if item.Status != expected {
		return domain.OrderItem{}, errStubConflict
	}
	item.Status = next
	item.UpdatedAt = at
	s.items[itemID] = item
	return item, nil
}

// memoryReturnRepo mimics the Firestore repository closely enough to exercise the return flow,
// including optimistic concurrency on UpdatedAt and the store credit side effect.
type memoryReturnRepo struct {
	mu      sync.Mutex
	returns map[string]domain.ReturnRequest
	credits map[string]decimal.Decimal
	now     func() time.Time
}

func newMemoryReturnRepo(now func() time.Time) *memoryReturnRepo {
	return &memoryReturnRepo{
		returns: make(map[string]domain.ReturnRequest),
		credits: make(map[string]decimal.Decimal),
		now:     now,
	}
}

func (r *memoryReturnRepo) Create(_ context.Context, ret domain.ReturnRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.returns[ret.ID]; ok {
		return errStubConflict
	}
	r.returns[ret.ID] = ret
	return nil
}

func (r *memoryReturnRepo) FindByID(_ context.Context, id string) (domain.ReturnRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret, ok := r.returns[id]
	if !ok {
		return domain.ReturnRequest{}, errStubNotFound
	}
	return ret, nil
}

func (r *memoryReturnRepo) FindByOrderItemIDs(_ context.Context, itemIDs []string) (map[string]domain.ReturnRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]domain.ReturnRequest)
	for _, id := range itemIDs {
		for _, ret := range r.returns {
			if ret.OrderItemID == id {
				out[id] = ret
			}
		}
	}
	return out, nil
}

func (r *memoryReturnRepo) List(_ context.Context, filter repositories.ReturnListFilter) (domain.CursorPage[domain.ReturnRequest], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []domain.ReturnRequest
	for _, ret := range r.returns {
		if (filter.CustomerID != "" && ret.CustomerID == filter.CustomerID) || (filter.SellerID != "" && ret.SellerID == filter.SellerID) {
			items = append(items, ret)
		}
	}
	return domain.CursorPage[domain.ReturnRequest]{Items: items}, nil
}

func (r *memoryReturnRepo) Update(_ context.Context, ret domain.ReturnRequest, expected time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.returns[ret.ID]
	if !ok {
		return errStubNotFound
	}
	if !current.UpdatedAt.Equal(expected) {
		return errStubConflict
	}
	r.returns[ret.ID] = ret
	return nil
}

func (r *memoryReturnRepo) CompleteRefund(_ context.Context, ret domain.ReturnRequest, credit decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.returns[ret.ID]
	if !ok {
		return errStubNotFound
	}
	if !current.UpdatedAt.Equal(ret.UpdatedAt) {
		return errStubConflict
	}
	now := r.now()
	ret.RefundStatus = domain.RefundCompleted
	ret.RefundedAt = &now
	ret.UpdatedAt = now
	r.returns[ret.ID] = ret
	if credit.IsPositive() {
		r.credits[ret.CustomerID] = r.credits[ret.CustomerID].Add(credit)
	}
	return nil
}

type stubProductRepo struct {
	products map[string]domain.Product
	inserted []domain.Product
	updated  []domain.Product
	listFn   func(context.Context, repositories.ProductListFilter) (domain.CursorPage[domain.Product], error)
}

func (s *stubProductRepo) Insert(_ context.Context, product domain.Product) error {
	s.inserted = append(s.inserted, product)
	if s.products == nil {
		s.products = make(map[string]domain.Product)
	}
	s.products[product.ID] = product
	return nil
}

func (s *stubProductRepo) Update(_ context.Context, product domain.Product) error {
	if _, ok := s.products[product.ID]; !ok {
		return errStubNotFound
	}
	s.updated = append(s.updated, product)
	s.products[product.ID] = product
	return nil
}

func (s *stubProductRepo) FindByID(_ context.Context, productID string) (domain.Product, error) {
	product, ok := s.products[productID]
	if !ok {
		return domain.Product{}, errStubNotFound
	}
	return product, nil
}

func (s *stubProductRepo) ListBySeller(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Product]{}, nil
}

type stubStoreCreditRepo struct {
	balances map[string]decimal.Decimal
	err      error
}

func (s *stubStoreCreditRepo) Get(_ context.Context, customerID string) (domain.StoreCreditAccount, error) {
	if s.err != nil {
		return domain.StoreCreditAccount{}, s.err
	}
	return domain.StoreCreditAccount{CustomerID: customerID, Balance: s.balances[customerID]}, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	orders  []OrderCreatedEvent
	returns []ReturnUpdatedEvent
	err     error
}

func (p *recordingPublisher) PublishOrderCreated(_ context.Context, event OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, event)
	return p.err
}

func (p *recordingPublisher) PublishReturnUpdated(_ context.Context, event ReturnUpdatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.returns = append(p.returns, event)
	return p.err
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%02d", prefix, n)
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
