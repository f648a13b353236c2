package billing

import (
	"context"
	"errors"
	"log/slog"

	"huddle/internal/external"
	"huddle/internal/types"
)

// customerLinkStore is the slice of the customer link repository the resolver
// needs.
type customerLinkStore interface {
	GetByUserID(ctx context.Context, userID string) (*types.CustomerLink, error)
	Create(ctx context.Context, link *types.CustomerLink) error
}

// customerCreator is the gateway capability the resolver depends on.
type customerCreator interface {
	CreateCustomer(ctx context.Context, email string, userID string) (string, error)
}

// CustomerResolver maps an authenticated user to the provider-side customer
// id, creating the customer on first use.
type CustomerResolver struct {
	links   customerLinkStore
	gateway customerCreator
	logger  *slog.Logger
}

func NewCustomerResolver(links customerLinkStore, gateway customerCreator, logger *slog.Logger) *CustomerResolver {
	return &CustomerResolver{links: links, gateway: gateway, logger: logger}
}

var _ customerCreator = (external.PaymentGateway)(nil)

// Resolve returns the provider customer id for the identity. On first
// checkout it creates the provider customer (carrying the user id as
// metadata) and persists the link. A link persistence failure after the
// provider customer exists is logged and swallowed: the new id is still
// returned, and a duplicate customer on a later retry is an accepted bounded
// cost rather than a fatal error.
func (r *CustomerResolver) Resolve(ctx context.Context, identity types.Identity) (string, error) {
	link, err := r.links.GetByUserID(ctx, identity.UserID)
	if err == nil {
		return link.ExternalCustomerID, nil
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeNotFoundCustomer {
		return "", err
	}

	customerID, err := r.gateway.CreateCustomer(ctx, identity.Email, identity.UserID)
	if err != nil {
		return "", err
	}

	newLink := &types.CustomerLink{
		UserID:             identity.UserID,
		ExternalCustomerID: customerID,
		Email:              identity.Email,
	}
	if persistErr := r.links.Create(ctx, newLink); persistErr != nil {
		r.logger.WarnContext(ctx, "customer created at gateway but link persistence failed; flagging for out-of-band repair",
			"user_id", identity.UserID,
			"external_customer_id", customerID,
			"error", persistErr,
		)
	}

	return customerID, nil
}
