package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCode_HTTPStatus(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationInvalidField, http.StatusBadRequest},
		{ErrCodeCouponExpired, http.StatusBadRequest},
		{ErrCodeCouponLimitExceeded, http.StatusBadRequest},
		// Signature failures are 400, not 401: the provider must not
		// redeliver a payload that will never verify.
		{ErrCodeAuthSignatureInvalid, http.StatusBadRequest},
		{ErrCodeAuthTokenMissing, http.StatusUnauthorized},
		{ErrCodeAuthTokenInvalid, http.StatusUnauthorized},
		{ErrCodeAuthTokenExpired, http.StatusUnauthorized},
		{ErrCodeNotFoundCustomer, http.StatusNotFound},
		{ErrCodeNotFoundUser, http.StatusNotFound},
		{ErrCodeUpstreamStripe, http.StatusBadGateway},
		{ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{ErrCodeUpstreamRateLimited, http.StatusBadGateway},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},
		{ErrCodeConfigMissingSecret, http.StatusInternalServerError},
		{ErrorCode("something_new"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.code.HTTPStatus())
		})
	}
}

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("no rows in result set")
	appErr := NewAppError(ErrCodeNotFoundCustomer, "no customer link for user", cause)

	assert.Equal(t, "not_found_customer: no customer link for user", appErr.Error())
	assert.ErrorIs(t, appErr, cause)
}

func TestAppError_ErrorsAsThroughWrapping(t *testing.T) {
	inner := NewAppError(ErrCodeCouponExpired, "coupon has expired", nil)
	wrapped := fmt.Errorf("redeeming coupon: %w", inner)

	var appErr *AppError
	require.ErrorAs(t, wrapped, &appErr)
	assert.Equal(t, ErrCodeCouponExpired, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus())
}

func TestNewAppErrorWithDetails(t *testing.T) {
	appErr := NewAppErrorWithDetails(
		ErrCodeCouponLimitExceeded, "coupon usage limit reached", nil,
		map[string]any{"code": "SAVE20"},
	)

	assert.Equal(t, "SAVE20", appErr.Details["code"])
}
