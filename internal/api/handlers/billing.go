// Package handlers contains the HTTP handler implementations for the Huddle
// billing API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"huddle/internal/core"
	"huddle/internal/types"
)

// CheckoutService is the slice of the checkout orchestrator the handler needs.
type CheckoutService interface {
	// CreateSession runs the full checkout flow and returns the hosted
	// checkout redirect URL.
	CreateSession(ctx context.Context, identity types.Identity, priceID string, couponCode string) (string, error)
}

// SubscriptionReader returns the stored subscription row for a user, or
// (nil, nil) when the user has no row.
type SubscriptionReader interface {
	GetByUserID(ctx context.Context, userID string) (*types.SubscriptionRecord, error)
}

// BillingHandler serves the authenticated billing surface: checkout session
// creation and the caller's current subscription.
type BillingHandler struct {
	checkout  CheckoutService
	subs      SubscriptionReader
	validator *core.Validator
	logger    *slog.Logger
}

func NewBillingHandler(checkout CheckoutService, subs SubscriptionReader, validator *core.Validator, logger *slog.Logger) *BillingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingHandler{
		checkout:  checkout,
		subs:      subs,
		validator: validator,
		logger:    logger,
	}
}

// RegisterRoutes mounts the billing endpoints. The caller mounts these under
// the authenticated /v1 group.
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/billing/checkout-session", h.HandleCreateCheckoutSession)
	r.Get("/billing/subscription", h.HandleGetSubscription)
}

// CreateCheckoutRequest is the request body for POST /v1/billing/checkout-session.
type CreateCheckoutRequest struct {
	PriceID    string `json:"priceId" validate:"required"`
	CouponCode string `json:"couponCode,omitempty"`
}

// CheckoutSessionResponse carries the hosted checkout redirect URL.
type CheckoutSessionResponse struct {
	URL string `json:"url"`
}

// HandleCreateCheckoutSession creates a hosted checkout session for the
// authenticated user. Return-destination URLs are constructed server-side;
// clients cannot supply redirect targets.
func (h *BillingHandler) HandleCreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := types.GetIdentity(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenInvalid, "no authenticated identity", nil))
		return
	}

	var req CreateCheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	url, err := h.checkout.CreateSession(r.Context(), identity, req.PriceID, req.CouponCode)
	if err != nil {
		h.logger.WarnContext(r.Context(), "checkout session creation failed",
			"user_id", identity.UserID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: CheckoutSessionResponse{URL: url}})
}

// HandleGetSubscription returns the caller's stored subscription record. A
// user with no row is on the implicit free plan and gets that record back
// rather than a 404.
func (h *BillingHandler) HandleGetSubscription(w http.ResponseWriter, r *http.Request) {
	identity, ok := types.GetIdentity(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenInvalid, "no authenticated identity", nil))
		return
	}

	rec, err := h.subs.GetByUserID(r.Context(), identity.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if rec == nil {
		rec = types.FreeSubscription(identity.UserID)
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: rec})
}
