package core

import (
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"huddle/internal/types"
)

// Validator wraps go-playground/validator and translates its failures into the
// service's structured AppError taxonomy so handlers return consistent 400s.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// ValidateStruct validates a request struct against its `validate` tags.
// Returns nil when the struct is valid, or a *types.AppError carrying one
// detail entry per failing field. "required" failures map to the missing-field
// code; everything else maps to the invalid-field code.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// InvalidValidationError: the caller passed a non-struct. This is a
		// programming error, not client input.
		v.logger.Error("validator received a non-struct value", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	code := types.ErrCodeValidationInvalidField
	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		details[field] = fe.Tag()
		if fe.Tag() == "required" {
			code = types.ErrCodeValidationMissingField
		}
	}

	return types.NewAppErrorWithDetails(code, "request validation failed", err, details)
}
