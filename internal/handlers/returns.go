package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/core2cover/api/internal/platform/auth"
	"github.com/core2cover/api/internal/platform/httpx"
	"github.com/core2cover/api/internal/services"
)

// ReturnHandlers exposes the customer side of the return flow.
type ReturnHandlers struct {
	authn   *auth.Authenticator
	returns services.ReturnService
	opts    routeOptions
}

// NewReturnHandlers constructs customer return handlers.
func NewReturnHandlers(authn *auth.Authenticator, returns services.ReturnService, opts ...RouteOption) *ReturnHandlers {
	return &ReturnHandlers{
		authn:   authn,
		returns: returns,
		opts:    buildRouteOptions(opts),
	}
}

// Routes wires the /returns endpoints.
func (h *ReturnHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r.With(requireAuth(h.authn)...).With(h.opts.authenticated...)
	group.Get("/", h.listReturns)
	group.Method(http.MethodPost, "/", h.opts.guard(h.createReturn))
	group.Post("/evidence:upload-url", h.evidenceUpload)
	group.Get("/{returnID}", h.getReturn)
}

type createReturnRequest struct {
	OrderItemID  string   `json:"orderItemId"`
	Reason       string   `json:"reason"`
	RefundMethod string   `json:"refundMethod"`
	ImagePaths   []string `json:"imagePaths"`
}

type evidenceUploadRequest struct {
	uploadRequest
	OrderItemID string `json:"orderItemId"`
}

func (h *ReturnHandlers) createReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.returns == nil {
		unavailable(ctx, w, "return")
		return
	}
	uid, ok := identityUID(ctx, w)
	if !ok {
		return
	}
	var req createReturnRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	view, err := h.returns.CreateReturn(ctx, services.CreateReturnCommand{
		CustomerID:   uid,
		OrderItemID:  strings.TrimSpace(req.OrderItemID),
		Reason:       req.Reason,
		RefundMethod: req.RefundMethod,
		ImagePaths:   req.ImagePaths,
	})
	if err != nil {
		writeReturnError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/returns/"+view.Return.ID)
	httpx.WriteJSON(w, http.StatusCreated, buildReturn(view))
}

func (h *ReturnHandlers) listReturns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.returns == nil {
		unavailable(ctx, w, "return")
		return
	}
	uid, ok := identityUID(ctx, w)
	if !ok {
		return
	}
	page, ok := pageParams(ctx, w, r)
	if !ok {
		return
	}
	result, err := h.returns.ListReturns(ctx, services.ReturnListFilter{CustomerID: uid, Pagination: page})
	if err != nil {
		writeReturnError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildReturnPage(result.Items, result.NextPageToken))
}

func (h *ReturnHandlers) getReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.returns == nil {
		unavailable(ctx, w, "return")
		return
	}
	uid, ok := identityUID(ctx, w)
	if !ok {
		return
	}
	returnID, ok := returnIDParam(ctx, w, r)
	if !ok {
		return
	}
	view, err := h.returns.GetReturn(ctx, services.ReturnActor{CustomerID: uid}, returnID)
	if err != nil {
		writeReturnError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildReturn(view))
}

func (h *ReturnHandlers) evidenceUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.returns == nil {
		unavailable(ctx, w, "return")
		return
	}
	uid, ok := identityUID(ctx, w)
	if !ok {
		return
	}
	var req evidenceUploadRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	upload := req.uploadRequest.normalized()

	signed, err := h.returns.IssueEvidenceUpload(ctx, services.ReturnEvidenceUploadCommand{
		CustomerID:  uid,
		OrderItemID: strings.TrimSpace(req.OrderItemID),
		FileName:    upload.FileName,
		ContentType: upload.ContentType,
		SizeBytes:   upload.SizeBytes,
	})
	if err != nil {
		writeReturnError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildUpload(signed))
}

// InternalReturnHandlers exposes the admin side of the return flow to trusted back-office
// services authenticated with OIDC.
type InternalReturnHandlers struct {
	returns services.ReturnService
}

// NewInternalReturnHandlers constructs internal return handlers.
func NewInternalReturnHandlers(returns services.ReturnService) *InternalReturnHandlers {
	return &InternalReturnHandlers{returns: returns}
}

// Routes wires the /internal/returns endpoints.
func (h *InternalReturnHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/returns/{returnID}", h.getReturn)
	r.Post("/returns/{returnID}:approve", h.decide(true))
	r.Post("/returns/{returnID}:reject", h.decide(false))
	r.Post("/returns/{returnID}:complete-refund", h.completeRefund)
}

func (h *InternalReturnHandlers) getReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.returns == nil {
		unavailable(ctx, w, "return")
		return
	}
	returnID, ok := returnIDParam(ctx, w, r)
	if !ok {
		return
	}
	view, err := h.returns.GetReturn(ctx, services.ReturnActor{Admin: true}, returnID)
	if err != nil {
		writeReturnError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildReturn(view))
}

func (h *InternalReturnHandlers) decide(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if h.returns == nil {
			unavailable(ctx, w, "return")
			return
		}
		returnID, ok := returnIDParam(ctx, w, r)
		if !ok {
			return
		}
		view, err := h.returns.AdminDecision(ctx, services.ReturnDecisionCommand{
			ReturnID: returnID,
			ActorID:  serviceActor(ctx),
			Approve:  approve,
		})
		if err != nil {
			writeReturnError(ctx, w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, buildReturn(view))
	}
}

func (h *InternalReturnHandlers) completeRefund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.returns == nil {
		unavailable(ctx, w, "return")
		return
	}
	returnID, ok := returnIDParam(ctx, w, r)
	if !ok {
		return
	}
	view, err := h.returns.CompleteRefund(ctx, services.CompleteRefundCommand{
		ReturnID: returnID,
		ActorID:  serviceActor(ctx),
	})
	if err != nil {
		writeReturnError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildReturn(view))
}

func returnIDParam(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	returnID := strings.TrimSpace(chi.URLParam(r, "returnID"))
	if returnID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_return_id", "return id is required", http.StatusBadRequest))
		return "", false
	}
	return returnID, true
}

func buildReturnPage(views []services.ReturnView, next string) pagePayload[returnPayload] {
	payload := pagePayload[returnPayload]{Items: make([]returnPayload, 0, len(views)), NextPageToken: next}
	for _, view := range views {
		payload.Items = append(payload.Items, buildReturn(view))
	}
	return payload
}

func writeReturnError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrReturnInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrReturnNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("return_not_found", "return not found", http.StatusNotFound))
	case errors.Is(err, services.ErrReturnForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "not allowed to act on this return", http.StatusForbidden))
	case errors.Is(err, services.ErrReturnNotEligible):
		httpx.WriteError(ctx, w, httpx.NewError("return_not_eligible", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrReturnAlreadyExists):
		httpx.WriteError(ctx, w, httpx.NewError("return_exists", "a return already exists for this item", http.StatusConflict))
	case errors.Is(err, services.ErrReturnInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_return_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrReturnConflict):
		httpx.WriteError(ctx, w, httpx.NewError("return_conflict", "return was modified concurrently", http.StatusConflict))
	case errors.Is(err, services.ErrReturnRefundFailed):
		httpx.WriteError(ctx, w, httpx.NewError("refund_failed", "payment provider rejected the refund", http.StatusBadGateway))
	case errors.Is(err, services.ErrReturnRefundUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("refund_unavailable", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrReturnUploadsUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("uploads_unavailable", "uploads are not configured", http.StatusServiceUnavailable))
	case errors.Is(err, services.ErrReturnUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("return_unavailable", "return service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("return_error", "failed to process return request", http.StatusInternalServerError))
	}
}
