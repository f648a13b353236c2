package core

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle/internal/types"
)

type checkoutPayload struct {
	PriceID    string `json:"priceId" validate:"required"`
	CouponCode string `json:"couponCode,omitempty"`
	Dashboard  string `json:"dashboard,omitempty" validate:"omitempty,url"`
}

func newTestValidator() *Validator {
	return NewValidator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestValidateStruct_Valid(t *testing.T) {
	v := newTestValidator()
	assert.NoError(t, v.ValidateStruct(checkoutPayload{PriceID: "price_1"}))
}

func TestValidateStruct_MissingRequiredField(t *testing.T) {
	v := newTestValidator()

	err := v.ValidateStruct(checkoutPayload{CouponCode: "SAVE20"})

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationMissingField, appErr.Code)
	assert.Equal(t, "required", appErr.Details["priceid"])
}

func TestValidateStruct_InvalidFieldFormat(t *testing.T) {
	v := newTestValidator()

	err := v.ValidateStruct(checkoutPayload{PriceID: "price_1", Dashboard: "not a url"})

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidField, appErr.Code)
	assert.Equal(t, "url", appErr.Details["dashboard"])
}

func TestValidateStruct_NonStructIsInternalError(t *testing.T) {
	v := newTestValidator()

	err := v.ValidateStruct("not a struct")

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalUnexpected, appErr.Code)
}
