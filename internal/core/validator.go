package core

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"latebird/internal/types"
)

// Validator wraps go-playground/validator and translates its failures into
// the application error type.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator using struct field validation tags.
func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidateStruct validates a request struct against its tags. The first
// failing field is reported in the error message; the full list is attached
// as details.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return types.NewAppError(types.ErrCodeValidationFailed, "request validation failed", err)
	}

	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}

	first := verrs[0]
	appErr := types.NewAppError(
		types.ErrCodeValidationFailed,
		fmt.Sprintf("invalid value for field %s", first.Field()),
		err,
	)
	return appErr.WithDetails(map[string]any{"fields": fields})
}
