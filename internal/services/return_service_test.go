package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/core2cover/api/internal/domain"
	"github.com/core2cover/api/internal/platform/storage"
)

type stubRefundGateway struct {
	requests []RefundRequest
	err      error
}

func (g *stubRefundGateway) Refund(_ context.Context, req RefundRequest) (RefundResult, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return RefundResult{}, g.err
	}
	return RefundResult{Reference: "re_" + req.IdempotencyKey, Status: "succeeded"}, nil
}

type stubUploadSigner struct {
	paths []string
	err   error
}

func (s *stubUploadSigner) SignedUpload(_ context.Context, objectPath, contentType string, _ int64) (SignedUpload, error) {
	s.paths = append(s.paths, objectPath)
	if s.err != nil {
		return SignedUpload{}, s.err
	}
	return SignedUpload{URL: "https://storage.example/" + objectPath, Method: "PUT", ObjectPath: objectPath, Headers: map[string]string{"Content-Type": contentType}}, nil
}

type returnFixture struct {
	svc       ReturnService
	returns   *memoryReturnRepo
	items     *stubOrderItemRepo
	refunds   *stubRefundGateway
	uploads   *stubUploadSigner
	publisher *recordingPublisher
	clock     *time.Time
}

func newReturnFixture(t *testing.T) *returnFixture {
	t.Helper()
	now := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	fx := &returnFixture{
		items: &stubOrderItemRepo{items: map[string]domain.OrderItem{
			"itm_1": {ID: "itm_1", OrderID: "ord_1", CustomerID: "cust-1", SellerID: "seller-1", Status: domain.OrderStatusFulfilled, Total: decimal.NewFromInt(4500)},
			"itm_2": {ID: "itm_2", OrderID: "ord_1", CustomerID: "cust-1", SellerID: "seller-1", Status: domain.OrderStatusOutForDelivery, Total: decimal.NewFromInt(900)},
		}},
		refunds:   &stubRefundGateway{},
		uploads:   &stubUploadSigner{},
		publisher: &recordingPublisher{},
		clock:     &now,
	}
	clock := func() time.Time {
		*fx.clock = fx.clock.Add(time.Second)
		return *fx.clock
	}
	fx.returns = newMemoryReturnRepo(clock)
	orders := &stubOrderRepo{findFn: func(_ context.Context, id string) (domain.Order, error) {
		if id != "ord_1" {
			return domain.Order{}, errStubNotFound
		}
		return domain.Order{ID: "ord_1", CustomerID: "cust-1", Currency: "INR", PaymentReference: "pi_123"}, nil
	}}
	svc, err := NewReturnService(ReturnServiceDeps{
		Returns:           fx.returns,
		OrderItems:        fx.items,
		Orders:            orders,
		Refunds:           fx.refunds,
		Uploads:           fx.uploads,
		Notifications:     fx.publisher,
		EnableStoreCredit: true,
		Clock:             clock,
		IDGenerator:       sequentialIDs("up"),
	})
	if err != nil {
		t.Fatalf("NewReturnService: %v", err)
	}
	fx.svc = svc
	return fx
}

func (fx *returnFixture) create(t *testing.T, method string) ReturnView {
	t.Helper()
	view, err := fx.svc.CreateReturn(context.Background(), CreateReturnCommand{
		CustomerID:   "cust-1",
		OrderItemID:  "itm_1",
		Reason:       "  <b>Cracked</b> on   arrival ",
		RefundMethod: method,
		ImagePaths:   []string{"returns/cust-1/itm_1/up01/photo.jpg"},
	})
	if err != nil {
		t.Fatalf("CreateReturn: %v", err)
	}
	return view
}

func TestReturnServiceCreateReturn(t *testing.T) {
	fx := newReturnFixture(t)
	view := fx.create(t, "store_credit")

	if view.Return.ID != "ret_itm_1" || view.Return.Reason != "Cracked on arrival" {
		t.Fatalf("unexpected return %+v", view.Return)
	}
	if !view.Return.RefundAmount.Equal(decimal.NewFromInt(4500)) {
		t.Fatalf("refund amount should copy item total, got %s", view.Return.RefundAmount)
	}
	if view.State != domain.ReturnStateRequested || view.Label.Text != "Return Requested" {
		t.Fatalf("unexpected state %s label %q", view.State, view.Label.Text)
	}
	if len(fx.publisher.returns) != 1 || fx.publisher.returns[0].Action != "created" {
		t.Fatalf("expected created notification, got %+v", fx.publisher.returns)
	}

	_, err := fx.svc.CreateReturn(context.Background(), CreateReturnCommand{CustomerID: "cust-1", OrderItemID: "itm_1", Reason: "again", RefundMethod: "STORE_CREDIT"})
	if !errors.Is(err, ErrReturnAlreadyExists) {
		t.Fatalf("expected ErrReturnAlreadyExists, got %v", err)
	}
}

func TestReturnServiceCreateReturnValidation(t *testing.T) {
	fx := newReturnFixture(t)
	ctx := context.Background()
	cases := []struct {
		name string
		cmd  CreateReturnCommand
		want error
	}{
		{"blank reason", CreateReturnCommand{CustomerID: "cust-1", OrderItemID: "itm_1", Reason: "<p> </p>", RefundMethod: "STORE_CREDIT"}, ErrReturnInvalidInput},
		{"long reason", CreateReturnCommand{CustomerID: "cust-1", OrderItemID: "itm_1", Reason: strings.Repeat("x", 1001), RefundMethod: "STORE_CREDIT"}, ErrReturnInvalidInput},
		{"unknown method", CreateReturnCommand{CustomerID: "cust-1", OrderItemID: "itm_1", Reason: "broken", RefundMethod: "cash"}, ErrReturnInvalidInput},
		{"foreign image", CreateReturnCommand{CustomerID: "cust-1", OrderItemID: "itm_1", Reason: "broken", RefundMethod: "STORE_CREDIT", ImagePaths: []string{"returns/cust-2/itm_1/up/a.jpg"}}, ErrReturnInvalidInput},
		{"not delivered", CreateReturnCommand{CustomerID: "cust-1", OrderItemID: "itm_2", Reason: "broken", RefundMethod: "STORE_CREDIT"}, ErrReturnNotEligible},
		{"other customer", CreateReturnCommand{CustomerID: "cust-9", OrderItemID: "itm_1", Reason: "broken", RefundMethod: "STORE_CREDIT"}, ErrReturnNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := fx.svc.CreateReturn(ctx, tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestReturnServiceDecisionsAndStoreCreditRefund(t *testing.T) {
	fx := newReturnFixture(t)
	ctx := context.Background()
	fx.create(t, "STORE_CREDIT")

	if _, err := fx.svc.SellerDecision(ctx, ReturnDecisionCommand{ReturnID: "ret_itm_1", ActorID: "seller-9", Approve: true}); !errors.Is(err, ErrReturnForbidden) {
		t.Fatalf("expected ErrReturnForbidden, got %v", err)
	}
	view, err := fx.svc.SellerDecision(ctx, ReturnDecisionCommand{ReturnID: "ret_itm_1", ActorID: "seller-1", Approve: true})
	if err != nil {
		t.Fatalf("SellerDecision: %v", err)
	}
	if view.State != domain.ReturnStateUnderReview {
		t.Fatalf("expected under review, got %s", view.State)
	}
	if _, err := fx.svc.SellerDecision(ctx, ReturnDecisionCommand{ReturnID: "ret_itm_1", ActorID: "seller-1", Approve: false}); !errors.Is(err, ErrReturnInvalidState) {
		t.Fatalf("seller cannot decide twice, got %v", err)
	}
	if _, err := fx.svc.CompleteRefund(ctx, CompleteRefundCommand{ReturnID: "ret_itm_1"}); !errors.Is(err, ErrReturnInvalidState) {
		t.Fatalf("refund before admin approval must fail, got %v", err)
	}

	view, err = fx.svc.AdminDecision(ctx, ReturnDecisionCommand{ReturnID: "ret_itm_1", ActorID: "svc:returns-admin", Approve: true})
	if err != nil {
		t.Fatalf("AdminDecision: %v", err)
	}
	if view.State != domain.ReturnStateApproved || view.Label.Text != "Returned (Store Credit)" {
		t.Fatalf("unexpected approved view %s %q", view.State, view.Label.Text)
	}

	view, err = fx.svc.CompleteRefund(ctx, CompleteRefundCommand{ReturnID: "ret_itm_1", ActorID: "svc:returns-admin"})
	if err != nil {
		t.Fatalf("CompleteRefund: %v", err)
	}
	if view.Label.Text != "Refund Completed" || view.Return.RefundedAt == nil {
		t.Fatalf("unexpected completed view %+v", view)
	}
	if got := fx.returns.credits["cust-1"]; !got.Equal(decimal.NewFromInt(4500)) {
		t.Fatalf("expected 4500 store credit, got %s", got)
	}
	if len(fx.refunds.requests) != 0 {
		t.Fatalf("store credit refund must not call the payment gateway")
	}
	if _, err := fx.svc.CompleteRefund(ctx, CompleteRefundCommand{ReturnID: "ret_itm_1"}); !errors.Is(err, ErrReturnInvalidState) {
		t.Fatalf("second refund must fail, got %v", err)
	}

	actions := make([]string, 0, len(fx.publisher.returns))
	for _, event := range fx.publisher.returns {
		actions = append(actions, event.Action)
	}
	want := []string{"created", "seller_approved", "admin_approved", "refund_completed"}
	if strings.Join(actions, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected notification actions %v", actions)
	}
}

func TestReturnServiceRejectionVetoesFurtherDecisions(t *testing.T) {
	fx := newReturnFixture(t)
	ctx := context.Background()
	fx.create(t, "STORE_CREDIT")

	view, err := fx.svc.AdminDecision(ctx, ReturnDecisionCommand{ReturnID: "ret_itm_1", ActorID: "svc:admin", Approve: false})
	if err != nil {
		t.Fatalf("AdminDecision: %v", err)
	}
	if view.State != domain.ReturnStateRejected || view.Label.Text != "Return Rejected" {
		t.Fatalf("unexpected rejected view %s %q", view.State, view.Label.Text)
	}
	if _, err := fx.svc.SellerDecision(ctx, ReturnDecisionCommand{ReturnID: "ret_itm_1", ActorID: "seller-1", Approve: true}); !errors.Is(err, ErrReturnInvalidState) {
		t.Fatalf("expected ErrReturnInvalidState after rejection, got %v", err)
	}
}

func TestReturnServiceOriginalPaymentRefund(t *testing.T) {
	fx := newReturnFixture(t)
	ctx := context.Background()
	fx.create(t, "ORIGINAL_PAYMENT")
	if _, err := fx.svc.SellerDecision(ctx, ReturnDecisionCommand{ReturnID: "ret_itm_1", ActorID: "seller-1", Approve: true}); err != nil {
		t.Fatalf("SellerDecision: %v", err)
	}
	view, err := fx.svc.AdminDecision(ctx, ReturnDecisionCommand{ReturnID: "ret_itm_1", ActorID: "svc:admin", Approve: true})
	if err != nil {
		t.Fatalf("AdminDecision: %v", err)
	}
	if view.Label.Text != "Refund Processing" {
		t.Fatalf("expected Refund Processing, got %q", view.Label.Text)
	}

	fx.refunds.err = errors.New("card_declined")
	if _, err := fx.svc.CompleteRefund(ctx, CompleteRefundCommand{ReturnID: "ret_itm_1"}); !errors.Is(err, ErrReturnRefundFailed) {
		t.Fatalf("expected ErrReturnRefundFailed, got %v", err)
	}
	fx.refunds.err = nil

	view, err = fx.svc.CompleteRefund(ctx, CompleteRefundCommand{ReturnID: "ret_itm_1"})
	if err != nil {
		t.Fatalf("CompleteRefund: %v", err)
	}
	if view.Return.RefundReference != "re_ret_itm_1" || view.Label.Text != "Refund Completed" {
		t.Fatalf("unexpected refund view %+v", view.Return)
	}
	if len(fx.refunds.requests) != 2 {
		t.Fatalf("expected two gateway attempts, got %d", len(fx.refunds.requests))
	}
	req := fx.refunds.requests[1]
	if req.IdempotencyKey != "ret_itm_1" || req.PaymentReference != "pi_123" || !req.Amount.Equal(decimal.NewFromInt(4500)) || req.Currency != "INR" {
		t.Fatalf("unexpected refund request %+v", req)
	}
	if req.IdempotencyKey != fx.refunds.requests[0].IdempotencyKey {
		t.Fatalf("retries must reuse the idempotency key")
	}
	if len(fx.returns.credits) != 0 {
		t.Fatalf("original payment refund must not credit the balance")
	}
}

func TestReturnServiceGetReturnVisibility(t *testing.T) {
	fx := newReturnFixture(t)
	ctx := context.Background()
	fx.create(t, "STORE_CREDIT")

	for _, actor := range []ReturnActor{{CustomerID: "cust-1"}, {SellerID: "seller-1"}, {Admin: true}} {
		if _, err := fx.svc.GetReturn(ctx, actor, "ret_itm_1"); err != nil {
			t.Fatalf("actor %+v should see the return: %v", actor, err)
		}
	}
	if _, err := fx.svc.GetReturn(ctx, ReturnActor{CustomerID: "cust-2"}, "ret_itm_1"); !errors.Is(err, ErrReturnNotFound) {
		t.Fatalf("expected ErrReturnNotFound, got %v", err)
	}
	if _, err := fx.svc.ListReturns(ctx, ReturnListFilter{CustomerID: "cust-1", SellerID: "seller-1"}); !errors.Is(err, ErrReturnInvalidInput) {
		t.Fatalf("expected ErrReturnInvalidInput for ambiguous filter, got %v", err)
	}
	page, err := fx.svc.ListReturns(ctx, ReturnListFilter{SellerID: "seller-1"})
	if err != nil || len(page.Items) != 1 {
		t.Fatalf("expected one return for seller, got %v %+v", err, page)
	}
}

func TestReturnServiceIssueEvidenceUpload(t *testing.T) {
	fx := newReturnFixture(t)
	ctx := context.Background()

	upload, err := fx.svc.IssueEvidenceUpload(ctx, ReturnEvidenceUploadCommand{CustomerID: "cust-1", OrderItemID: "itm_1", FileName: "photo.jpg", ContentType: "image/jpeg", SizeBytes: 1024})
	if err != nil {
		t.Fatalf("IssueEvidenceUpload: %v", err)
	}
	if upload.ObjectPath != "returns/cust-1/itm_1/up01/photo.jpg" {
		t.Fatalf("unexpected object path %q", upload.ObjectPath)
	}

	fx.uploads.err = storage.ErrContentTypeDenied
	if _, err := fx.svc.IssueEvidenceUpload(ctx, ReturnEvidenceUploadCommand{CustomerID: "cust-1", OrderItemID: "itm_1", FileName: "a.exe", ContentType: "application/x-msdownload"}); !errors.Is(err, ErrReturnInvalidInput) {
		t.Fatalf("expected ErrReturnInvalidInput, got %v", err)
	}
	if _, err := fx.svc.IssueEvidenceUpload(ctx, ReturnEvidenceUploadCommand{CustomerID: "cust-1", OrderItemID: "itm_2", FileName: "a.jpg", ContentType: "image/jpeg"}); !errors.Is(err, ErrReturnNotEligible) {
		t.Fatalf("expected ErrReturnNotEligible, got %v", err)
	}
}
