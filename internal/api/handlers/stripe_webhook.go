package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"huddle/internal/billing"
	"huddle/internal/core"
	"huddle/internal/external"
	"huddle/internal/types"
)

// maxWebhookBodySize caps Stripe webhook payloads at 64 KB. Real payloads are
// far smaller; the limit protects against abuse.
const maxWebhookBodySize = 64 * 1024

// EventReconciler is the slice of the subscription reconciler the webhook
// handler needs.
type EventReconciler interface {
	HandleCheckoutCompleted(ctx context.Context, ev billing.CheckoutCompletedEvent) error
	HandleSubscriptionUpdated(ctx context.Context, ev billing.SubscriptionEvent) error
	HandleSubscriptionDeleted(ctx context.Context, ev billing.SubscriptionEvent) error
}

// StripeWebhookHandler handles asynchronous events from Stripe. It is not
// behind bearer auth; the provider authenticates with the Stripe-Signature
// header, verified over the raw body before anything is parsed.
//
// Response semantics drive the provider's redelivery:
//   - 200 with a small ack body: processed, or recognized no-op.
//   - 400: the payload will never verify or parse; do not redeliver.
//   - 404: the referenced customer is unknown here; reported for manual
//     reconciliation.
//   - 5xx: a collaborator failed; the provider should redeliver.
type StripeWebhookHandler struct {
	verifier   external.WebhookVerifier
	reconciler EventReconciler
	secret     types.SecretString
	logger     *slog.Logger
}

func NewStripeWebhookHandler(
	verifier external.WebhookVerifier,
	reconciler EventReconciler,
	secret types.SecretString,
	logger *slog.Logger,
) *StripeWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{
		verifier:   verifier,
		reconciler: reconciler,
		secret:     secret,
		logger:     logger,
	}
}

// RegisterRoutes mounts the webhook endpoint. The caller mounts this under
// the unauthenticated /webhooks group.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/stripe", h.Handle)
}

// webhookAck is the acknowledgment body Stripe receives on success.
type webhookAck struct {
	Received bool `json:"received"`
}

// Handle processes one inbound Stripe event: read the raw body, verify the
// signature over the exact bytes, parse, and dispatch by event type. No side
// effect happens before verification succeeds.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidField, "failed to read request body", err))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		h.logger.WarnContext(r.Context(), "missing Stripe-Signature header")
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthSignatureInvalid, "missing Stripe-Signature header", nil))
		return
	}
	if err := h.verifier.Verify(payload, sigHeader, h.secret.Unmask()); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthSignatureInvalid, "webhook signature verification failed", err))
		return
	}

	var event stripeWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to parse webhook event JSON", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidField, "invalid webhook event JSON", err))
		return
	}

	h.logger.InfoContext(r.Context(), "processing stripe webhook event",
		"event_id", event.ID,
		"event_type", event.Type,
	)

	if err := h.routeEvent(r.Context(), &event); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event processing failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
		// Surface the real status. 4xx stops redelivery of events that can
		// never succeed; 5xx makes the provider retry transient failures.
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, webhookAck{Received: true})
}

// routeEvent dispatches by event type. Types outside the handled set are
// acknowledged as no-ops so the provider does not retry them forever.
func (h *StripeWebhookHandler) routeEvent(ctx context.Context, event *stripeWebhookEvent) error {
	switch event.Type {
	case external.EventStripeCheckoutCompleted:
		ev, err := event.toCheckoutCompleted()
		if err != nil {
			return err
		}
		return h.reconciler.HandleCheckoutCompleted(ctx, ev)

	case external.EventStripeSubUpdated:
		ev, err := event.toSubscriptionEvent()
		if err != nil {
			return err
		}
		return h.reconciler.HandleSubscriptionUpdated(ctx, ev)

	case external.EventStripeSubDeleted:
		ev, err := event.toSubscriptionEvent()
		if err != nil {
			return err
		}
		return h.reconciler.HandleSubscriptionDeleted(ctx, ev)

	default:
		h.logger.InfoContext(ctx, "acknowledging unhandled webhook event type",
			"event_type", event.Type,
		)
		return nil
	}
}

// ---------------------------------------------------------------------------
// Stripe Event Parsing
// ---------------------------------------------------------------------------

// stripeWebhookEvent is a minimal representation of a Stripe webhook event,
// tailored to the fields the reconciler needs. The full stripe.Event type is
// deliberately not imported; a local struct keeps the handler decoupled from
// the SDK's envelope and makes testing straightforward.
type stripeWebhookEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

// stripeCheckoutSessionObj holds the minimal fields of a completed checkout
// session.
type stripeCheckoutSessionObj struct {
	ClientReferenceID string             `json:"client_reference_id"`
	Customer          string             `json:"customer"`
	CustomerEmail     string             `json:"customer_email"`
	CustomerDetails   *stripeCustDetails `json:"customer_details"`
	Subscription      string             `json:"subscription"`
	Metadata          map[string]string  `json:"metadata"`
}

type stripeCustDetails struct {
	Email string `json:"email"`
}

// stripeSubscriptionObj holds the minimal fields of a subscription lifecycle
// event's data object.
type stripeSubscriptionObj struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              stripeSubItems    `json:"items"`
}

type stripeSubItems struct {
	Data []stripeSubItem `json:"data"`
}

type stripeSubItem struct {
	Price stripeSubPrice `json:"price"`
}

type stripeSubPrice struct {
	ID        string             `json:"id"`
	Recurring stripeSubRecurring `json:"recurring"`
}

type stripeSubRecurring struct {
	Interval string `json:"interval"`
}

func (e *stripeWebhookEvent) eventTimestamp() time.Time {
	return time.Unix(e.Created, 0).UTC()
}

// toCheckoutCompleted maps a checkout.session.completed payload to the
// reconciler's event. The user id comes from session metadata, falling back
// to client_reference_id (both are set by our session creation).
func (e *stripeWebhookEvent) toCheckoutCompleted() (billing.CheckoutCompletedEvent, error) {
	var session stripeCheckoutSessionObj
	if err := json.Unmarshal(e.Data.Object, &session); err != nil {
		return billing.CheckoutCompletedEvent{}, types.NewAppError(
			types.ErrCodeValidationInvalidField, "invalid checkout session payload", err)
	}

	userID := session.Metadata["user_id"]
	if userID == "" {
		userID = session.ClientReferenceID
	}

	email := session.CustomerEmail
	if email == "" && session.CustomerDetails != nil {
		email = session.CustomerDetails.Email
	}

	return billing.CheckoutCompletedEvent{
		EventID:        e.ID,
		CreatedAt:      e.eventTimestamp(),
		CustomerID:     session.Customer,
		CustomerEmail:  email,
		SubscriptionID: session.Subscription,
		UserID:         userID,
		PlanMetadata:   session.Metadata["plan"],
	}, nil
}

// toSubscriptionEvent maps a customer.subscription.* payload to the
// reconciler's event.
func (e *stripeWebhookEvent) toSubscriptionEvent() (billing.SubscriptionEvent, error) {
	var sub stripeSubscriptionObj
	if err := json.Unmarshal(e.Data.Object, &sub); err != nil {
		return billing.SubscriptionEvent{}, types.NewAppError(
			types.ErrCodeValidationInvalidField, "invalid subscription payload", err)
	}

	ev := billing.SubscriptionEvent{
		EventID:           e.ID,
		CreatedAt:         e.eventTimestamp(),
		SubscriptionID:    sub.ID,
		CustomerID:        sub.Customer,
		Status:            sub.Status,
		PlanMetadata:      sub.Metadata["plan"],
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if len(sub.Items.Data) > 0 {
		ev.Interval = types.BillingInterval(sub.Items.Data[0].Price.Recurring.Interval)
	}
	if sub.CurrentPeriodStart > 0 {
		start := time.Unix(sub.CurrentPeriodStart, 0).UTC()
		ev.CurrentPeriodStart = &start
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		ev.CurrentPeriodEnd = &end
	}
	return ev, nil
}
