package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/deals-backend/internal/model"
)

// New creates a validator with the custom tags used by request DTOs.
func New() *validator.Validate {
	v := validator.New()

	// notblank rejects whitespace-only strings, e.g. a deal title of "   ".
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true
		}
		return strings.TrimSpace(str) != ""
	})

	// issuer accepts only issuer types allowed to create deals.
	_ = v.RegisterValidation("issuer", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		return model.IssuerType(str).CanIssueDeals()
	})

	return v
}
