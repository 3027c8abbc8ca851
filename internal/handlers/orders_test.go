package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/core2cover/api/internal/domain"
	"github.com/core2cover/api/internal/services"
)

type stubOrderService struct {
	view       services.OrderView
	page       domain.CursorPage[services.OrderView]
	items      domain.CursorPage[services.OrderItemView]
	itemView   services.OrderItemView
	err        error
	getArgs    [2]string
	listFilter services.OrderListFilter
	itemFilter services.SellerItemFilter
	updateCmd  services.UpdateItemStatusCommand
}

func (s *stubOrderService) GetOrder(_ context.Context, customerID, orderID string) (services.OrderView, error) {
	s.getArgs = [2]string{customerID, orderID}
	return s.view, s.err
}

func (s *stubOrderService) ListOrders(_ context.Context, filter services.OrderListFilter) (domain.CursorPage[services.OrderView], error) {
	s.listFilter = filter
	return s.page, s.err
}

func (s *stubOrderService) ListSellerItems(_ context.Context, filter services.SellerItemFilter) (domain.CursorPage[services.OrderItemView], error) {
	s.itemFilter = filter
	return s.items, s.err
}

func (s *stubOrderService) UpdateItemStatus(_ context.Context, cmd services.UpdateItemStatusCommand) (services.OrderItemView, error) {
	s.updateCmd = cmd
	return s.itemView, s.err
}

type stubStoreCreditService struct {
	account services.StoreCreditAccount
	err     error
}

func (s *stubStoreCreditService) Balance(_ context.Context, customerID string) (services.StoreCreditAccount, error) {
	if s.err != nil {
		return services.StoreCreditAccount{}, s.err
	}
	account := s.account
	account.CustomerID = customerID
	return account, nil
}

func deliveredOrderView() services.OrderView {
	now := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)
	state := domain.ReturnStateApproved
	ret := services.ReturnRequest{
		ID:                   "ret_itm_1",
		OrderID:              "ord_1",
		OrderItemID:          "itm_1",
		CustomerID:           "cust-1",
		SellerID:             "seller-1",
		RefundMethod:         domain.RefundMethodStoreCredit,
		RefundAmount:         decimal.NewFromInt(4500),
		SellerApprovalStatus: domain.ApprovalApproved,
		AdminApprovalStatus:  domain.ApprovalApproved,
		RefundStatus:         domain.RefundPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	return services.OrderView{
		Order: services.Order{
			ID:         "ord_1",
			CustomerID: "cust-1",
			Status:     domain.OrderStatusFulfilled,
			Currency:   "INR",
			Subtotal:   decimal.NewFromInt(4500),
			GrandTotal: decimal.NewFromInt(5500),
			CreatedAt:  now,
		},
		Items: []services.OrderItemView{{
			Item: services.OrderItem{
				ID:       "itm_1",
				OrderID:  "ord_1",
				SellerID: "seller-1",
				Status:   domain.OrderStatusFulfilled,
				Quantity: 1,
				Total:    decimal.NewFromInt(4500),
			},
			Return:      &ret,
			ReturnState: &state,
			Label:       services.LabelForOrder(domain.OrderStatusFulfilled, &state, ret.RefundMethod, ret.RefundStatus),
		}},
	}
}

func TestOrderHandlersGetOrder(t *testing.T) {
	svc := &stubOrderService{view: deliveredOrderView()}
	h := NewOrderHandlers(nil, svc)
	router := NewRouter(WithMiddlewares(withTestIdentity("cust-1")), WithOrderRoutes(h.Routes))

	rr := doJSON(t, router, http.MethodGet, "/api/v1/orders/ord_1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.getArgs != [2]string{"cust-1", "ord_1"} {
		t.Fatalf("unexpected args %v", svc.getArgs)
	}

	body := decodeResponse[orderPayload](t, rr)
	if body.GrandTotal != "5500.00" {
		t.Fatalf("expected grand total 5500.00, got %s", body.GrandTotal)
	}
	item := body.Items[0]
	if item.Label.Text != "Returned (Store Credit)" || item.Label.Style != domain.StyleSuccess {
		t.Fatalf("unexpected label %+v", item.Label)
	}
	if item.ReturnState != string(domain.ReturnStateApproved) || item.Return == nil {
		t.Fatalf("expected embedded return, got %+v", item)
	}
	if item.Return.State != string(domain.ReturnStateApproved) || item.Return.RefundAmount != "4500.00" {
		t.Fatalf("unexpected embedded return %+v", item.Return)
	}
}

func TestOrderHandlersNotFound(t *testing.T) {
	svc := &stubOrderService{err: services.ErrOrderNotFound}
	h := NewOrderHandlers(nil, svc)
	router := NewRouter(WithMiddlewares(withTestIdentity("cust-2")), WithOrderRoutes(h.Routes))

	rr := doJSON(t, router, http.MethodGet, "/api/v1/orders/ord_1", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "order_not_found" {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestOrderHandlersListPagination(t *testing.T) {
	svc := &stubOrderService{page: domain.CursorPage[services.OrderView]{
		Items:         []services.OrderView{deliveredOrderView()},
		NextPageToken: "next-1",
	}}
	h := NewOrderHandlers(nil, svc)
	router := NewRouter(WithMiddlewares(withTestIdentity("cust-1")), WithOrderRoutes(h.Routes))

	rr := doJSON(t, router, http.MethodGet, "/api/v1/orders?pageSize=5", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.listFilter.CustomerID != "cust-1" || svc.listFilter.Pagination.PageSize != 5 {
		t.Fatalf("unexpected filter %+v", svc.listFilter)
	}
	body := decodeResponse[pagePayload[orderPayload]](t, rr)
	if len(body.Items) != 1 || body.NextPageToken != "next-1" {
		t.Fatalf("unexpected page %+v", body)
	}

	rr = doJSON(t, router, http.MethodGet, "/api/v1/orders?pageSize=abc", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid page size, got %d", rr.Code)
	}
}

func TestMeHandlersStoreCredit(t *testing.T) {
	svc := &stubStoreCreditService{account: services.StoreCreditAccount{Balance: decimal.RequireFromString("1250.5")}}
	h := NewMeHandlers(nil, svc, "")
	router := NewRouter(WithMiddlewares(withTestIdentity("cust-1")), WithMeRoutes(h.Routes))

	rr := doJSON(t, router, http.MethodGet, "/api/v1/me/store-credit", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeResponse[storeCreditPayload](t, rr)
	if body.CustomerID != "cust-1" || body.Balance != "1250.50" || body.Currency != "INR" {
		t.Fatalf("unexpected payload %+v", body)
	}
	if body.Formatted == "" {
		t.Fatalf("expected formatted balance")
	}

	svc.err = services.ErrStoreCreditUnavailable
	rr = doJSON(t, router, http.MethodGet, "/api/v1/me/store-credit", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
