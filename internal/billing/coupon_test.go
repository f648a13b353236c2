package billing

import (
	"io"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"huddle/internal/types"
)

// memCouponStore mirrors the store's conditional-increment semantics in
// memory so redemption races can be exercised without a database.
type memCouponStore struct {
	mu  sync.Mutex
	rec *types.CouponRecord
}

func (s *memCouponStore) GetByCode(_ context.Context, code string) (*types.CouponRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil || s.rec.Code != code {
		return nil, nil
	}
	cp := *s.rec
	return &cp, nil
}

func (s *memCouponStore) ConsumeOnce(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.rec
	if rec == nil || rec.Code != code || !rec.IsActive {
		return false, nil
	}
	if rec.ExpiresAt != nil && rec.ExpiresAt.Before(time.Now().UTC()) {
		return false, nil
	}
	if rec.UsageLimit != nil && rec.UsedCount >= *rec.UsageLimit {
		return false, nil
	}
	rec.UsedCount++
	return true, nil
}

func newTestRedeemer(store couponStore) *CouponRedeemer {
	return NewCouponRedeemer(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func activeCoupon(code string, limit *int) *types.CouponRecord {
	return &types.CouponRecord{
		Code:          code,
		DiscountType:  types.DiscountPercentage,
		DiscountValue: 20,
		UsageLimit:    limit,
		IsActive:      true,
		UpdatedAt:     time.Now().UTC(),
	}
}

func TestCouponRedeemer_UnknownCodeIsNotApplicable(t *testing.T) {
	redeemer := newTestRedeemer(&memCouponStore{})

	terms, err := redeemer.Redeem(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, terms)
}

func TestCouponRedeemer_InactiveCodeIsNotApplicable(t *testing.T) {
	rec := activeCoupon("SAVE20", nil)
	rec.IsActive = false
	redeemer := newTestRedeemer(&memCouponStore{rec: rec})

	terms, err := redeemer.Redeem(context.Background(), "SAVE20")
	require.NoError(t, err)
	assert.Nil(t, terms)
}

func TestCouponRedeemer_EmptyCodeIsNotApplicable(t *testing.T) {
	redeemer := newTestRedeemer(&memCouponStore{})

	terms, err := redeemer.Redeem(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, terms)
}

func TestCouponRedeemer_NormalizesCase(t *testing.T) {
	store := &memCouponStore{rec: activeCoupon("SAVE20", nil)}
	redeemer := newTestRedeemer(store)

	terms, err := redeemer.Redeem(context.Background(), "  save20 ")
	require.NoError(t, err)
	require.NotNil(t, terms)
	assert.Equal(t, "SAVE20", terms.Code)
	assert.Equal(t, types.DiscountPercentage, terms.Type)
	assert.Equal(t, int64(20), terms.Value)
}

func TestCouponRedeemer_ExpiredCoupon(t *testing.T) {
	rec := activeCoupon("SAVE20", nil)
	past := time.Now().UTC().Add(-time.Hour)
	rec.ExpiresAt = &past
	redeemer := newTestRedeemer(&memCouponStore{rec: rec})

	_, err := redeemer.Redeem(context.Background(), "SAVE20")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeCouponExpired, appErr.Code)
}

func TestCouponRedeemer_SingleUseCoupon(t *testing.T) {
	limit := 1
	store := &memCouponStore{rec: activeCoupon("SAVE20", &limit)}
	redeemer := newTestRedeemer(store)

	terms, err := redeemer.Redeem(context.Background(), "SAVE20")
	require.NoError(t, err)
	require.NotNil(t, terms)

	_, err = redeemer.Redeem(context.Background(), "SAVE20")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeCouponLimitExceeded, appErr.Code)
	assert.Equal(t, 1, store.rec.UsedCount)
}

func TestCouponRedeemer_ConcurrentRedemptionsNeverOverconsume(t *testing.T) {
	const limit = 5
	l := limit
	store := &memCouponStore{rec: activeCoupon("TEAM5", &l)}
	redeemer := newTestRedeemer(store)

	var successes sync.Map
	g := new(errgroup.Group)
	for i := 0; i < limit+1; i++ {
		i := i
		g.Go(func() error {
			terms, err := redeemer.Redeem(context.Background(), "TEAM5")
			if err != nil {
				var appErr *types.AppError
				if errors.As(err, &appErr) && appErr.Code == types.ErrCodeCouponLimitExceeded {
					return nil
				}
				return err
			}
			if terms != nil {
				successes.Store(i, true)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	count := 0
	successes.Range(func(_, _ any) bool {
		count++
		return true
	})
	assert.Equal(t, limit, count)
	assert.Equal(t, limit, store.rec.UsedCount)
}

// errCouponStore fails every call, for surfacing store errors.
type errCouponStore struct{}

func (errCouponStore) GetByCode(context.Context, string) (*types.CouponRecord, error) {
	return nil, types.NewAppError(types.ErrCodeInternalDB, "boom", nil)
}

func (errCouponStore) ConsumeOnce(context.Context, string) (bool, error) {
	return false, types.NewAppError(types.ErrCodeInternalDB, "boom", nil)
}

func TestCouponRedeemer_StoreErrorPropagates(t *testing.T) {
	redeemer := newTestRedeemer(errCouponStore{})

	_, err := redeemer.Redeem(context.Background(), "SAVE20")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
