package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom rules registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// the romanized name is drawn with a Latin-only font face, so anything
	// outside printable ASCII would render as tofu
	_ = v.RegisterValidation("printascii_or_empty", printASCIIOrEmpty)

	return v
}

func printASCIIOrEmpty(fl validatorv10.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	for _, r := range s {
		if r < 0x20 || r > 0x7e {
			return false
		}
	}
	return true
}
