package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

func NewValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// ValidationMessage converts validator errors into readable messages
func ValidationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "min":
		if err.Kind().String() == "slice" {
			return fmt.Sprintf("must contain at least %s item(s)", err.Param())
		}
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		if err.Kind().String() == "slice" {
			return fmt.Sprintf("must contain at most %s item(s)", err.Param())
		}
		return fmt.Sprintf("must be at most %s", err.Param())
	default:
		return "is invalid"
	}
}
