package billing

import (
	"context"
	"log/slog"
	"time"

	"huddle/internal/external"
	"huddle/internal/types"
)

// linkStore is the slice of the customer link repository the reconciler needs.
type linkStore interface {
	GetByExternalCustomerID(ctx context.Context, externalID string) (*types.CustomerLink, error)
	Upsert(ctx context.Context, link *types.CustomerLink) error
}

// subscriptionStore persists the per-user subscription row. Upsert reports
// whether the write applied; false means the stored snapshot carries a newer
// timestamp than the event.
type subscriptionStore interface {
	Upsert(ctx context.Context, rec *types.SubscriptionRecord) (bool, error)
}

// UserDirectory is the read-only identity lookup used for the email-fallback
// correlation on checkout completion.
type UserDirectory interface {
	GetIDByEmail(ctx context.Context, email string) (string, error)
}

// subscriptionFetcher retrieves a provider subscription by id, for sessions
// that reference a subscription but carry no plan metadata.
type subscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*external.GatewaySubscription, error)
}

// CheckoutCompletedEvent is the reconciler's view of a completed checkout
// session. UserID comes from session metadata and is the primary correlation
// key; CustomerEmail only matters when that metadata is absent.
type CheckoutCompletedEvent struct {
	EventID        string
	CreatedAt      time.Time
	CustomerID     string
	CustomerEmail  string
	SubscriptionID string
	UserID         string
	PlanMetadata   string
}

// SubscriptionEvent is the reconciler's view of a subscription lifecycle
// change (updated or deleted).
type SubscriptionEvent struct {
	EventID            string
	CreatedAt          time.Time
	SubscriptionID     string
	CustomerID         string
	Status             string
	Interval           types.BillingInterval
	PlanMetadata       string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
}

// SubscriptionReconciler turns verified gateway events into idempotent,
// monotonic updates to the subscription record. Every write carries the
// event's created_at as the record timestamp; the store's conditional upsert
// refuses writes older than the stored snapshot, which makes same-event
// replay a no-op and discards late-arriving stale updates.
type SubscriptionReconciler struct {
	links   linkStore
	subs    subscriptionStore
	users   UserDirectory
	gateway subscriptionFetcher
	logger  *slog.Logger
}

func NewSubscriptionReconciler(
	links linkStore,
	subs subscriptionStore,
	users UserDirectory,
	gateway subscriptionFetcher,
	logger *slog.Logger,
) *SubscriptionReconciler {
	return &SubscriptionReconciler{
		links:   links,
		subs:    subs,
		users:   users,
		gateway: gateway,
		logger:  logger,
	}
}

// HandleCheckoutCompleted resolves the paying user, classifies the plan, and
// upserts both the customer link and the subscription record.
//
// User resolution prefers the user id carried in session metadata. The email
// lookup is a degraded fallback: it breaks when two accounts share an email
// or the account was renamed between checkout and delivery, so its use is
// logged. With neither path resolving, the event fails as reportable rather
// than being dropped.
func (r *SubscriptionReconciler) HandleCheckoutCompleted(ctx context.Context, ev CheckoutCompletedEvent) error {
	userID := ev.UserID
	if userID == "" {
		if ev.CustomerEmail == "" {
			return types.NewAppErrorWithDetails(types.ErrCodeNotFoundUser,
				"checkout session carries neither user metadata nor a customer email", nil,
				map[string]any{"event_id": ev.EventID})
		}
		r.logger.WarnContext(ctx, "checkout session missing user metadata; falling back to email lookup",
			"event_id", ev.EventID,
			"customer_id", ev.CustomerID,
		)
		id, err := r.users.GetIDByEmail(ctx, ev.CustomerEmail)
		if err != nil {
			return err
		}
		userID = id
	}

	plan := ClassifyPlan("", ev.PlanMetadata)
	status := types.SubStatusActive
	var periodStart, periodEnd *time.Time
	cancelAtPeriodEnd := false

	// The session never carries lifecycle state. Whenever it references a
	// subscription, fetch it so status and period bounds come from the
	// provider instead of being assumed; session plan metadata still wins
	// over whatever the subscription infers.
	if ev.SubscriptionID != "" {
		sub, err := r.gateway.GetSubscription(ctx, ev.SubscriptionID)
		if err != nil {
			return err
		}
		metadataPlan := ev.PlanMetadata
		if metadataPlan == "" {
			metadataPlan = sub.PlanMetadata
		}
		plan = ClassifyPlan(sub.Interval, metadataPlan)
		status = types.SubscriptionStatus(sub.Status)
		periodStart = sub.CurrentPeriodStart
		periodEnd = sub.CurrentPeriodEnd
		cancelAtPeriodEnd = sub.CancelAtPeriodEnd
	}

	if err := r.links.Upsert(ctx, &types.CustomerLink{
		UserID:             userID,
		ExternalCustomerID: ev.CustomerID,
		Email:              ev.CustomerEmail,
	}); err != nil {
		return err
	}

	rec := &types.SubscriptionRecord{
		UserID:             userID,
		ExternalCustomerID: ev.CustomerID,
		PlanType:           plan,
		Status:             status,
		CurrentPeriodStart: periodStart,
		CurrentPeriodEnd:   periodEnd,
		CancelAtPeriodEnd:  cancelAtPeriodEnd,
		UpdatedAt:          ev.CreatedAt,
	}
	if ev.SubscriptionID != "" {
		subID := ev.SubscriptionID
		rec.ExternalSubscriptionID = &subID
	}

	return r.applyUpsert(ctx, rec, ev.EventID)
}

// HandleSubscriptionUpdated reclassifies the plan from the subscription's
// current interval and overwrites status, period bounds, and the
// cancellation flag. Resolution is strict: only an exact customer link match
// counts, and a miss is an UnknownCustomer failure so operators can reconcile
// manually instead of the event being silently dropped.
func (r *SubscriptionReconciler) HandleSubscriptionUpdated(ctx context.Context, ev SubscriptionEvent) error {
	link, err := r.links.GetByExternalCustomerID(ctx, ev.CustomerID)
	if err != nil {
		return err
	}

	subID := ev.SubscriptionID
	rec := &types.SubscriptionRecord{
		UserID:                 link.UserID,
		ExternalCustomerID:     ev.CustomerID,
		ExternalSubscriptionID: &subID,
		PlanType:               ClassifyPlan(ev.Interval, ev.PlanMetadata),
		Status:                 types.SubscriptionStatus(ev.Status),
		CurrentPeriodStart:     ev.CurrentPeriodStart,
		CurrentPeriodEnd:       ev.CurrentPeriodEnd,
		CancelAtPeriodEnd:      ev.CancelAtPeriodEnd,
		UpdatedAt:              ev.CreatedAt,
	}

	return r.applyUpsert(ctx, rec, ev.EventID)
}

// HandleSubscriptionDeleted resets the user to the free state: plan free,
// status canceled, subscription reference and period bounds cleared.
func (r *SubscriptionReconciler) HandleSubscriptionDeleted(ctx context.Context, ev SubscriptionEvent) error {
	link, err := r.links.GetByExternalCustomerID(ctx, ev.CustomerID)
	if err != nil {
		return err
	}

	rec := &types.SubscriptionRecord{
		UserID:             link.UserID,
		ExternalCustomerID: ev.CustomerID,
		PlanType:           types.PlanFree,
		Status:             types.SubStatusCanceled,
		CancelAtPeriodEnd:  false,
		UpdatedAt:          ev.CreatedAt,
	}

	return r.applyUpsert(ctx, rec, ev.EventID)
}

// applyUpsert writes the record and logs when the store refuses a stale
// event. A refused write is still a successful handling outcome; the
// provider must not redeliver it.
func (r *SubscriptionReconciler) applyUpsert(ctx context.Context, rec *types.SubscriptionRecord, eventID string) error {
	applied, err := r.subs.Upsert(ctx, rec)
	if err != nil {
		return err
	}
	if !applied {
		r.logger.InfoContext(ctx, "discarded stale subscription event",
			"event_id", eventID,
			"user_id", rec.UserID,
			"event_time", rec.UpdatedAt,
		)
	}
	return nil
}
