// Package validator wraps go-playground/validator with the custom rules the
// wizard's request payloads need.
package validator

import (
	"fmt"
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := &Validator{
		validate: validator.New(),
	}
	v.registerCustomValidations()
	return v
}

func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var errMessages []string
			for _, e := range validationErrors {
				errMessages = append(errMessages, fmt.Sprintf(
					"Field '%s' failed validation '%s'",
					e.Field(),
					e.Tag(),
				))
			}
			return fmt.Errorf("validation failed: %v", errMessages)
		}
		return err
	}
	return nil
}

// ValidateStructured returns a map of field -> error message for frontend usage
func (v *Validator) ValidateStructured(i interface{}) map[string]string {
	errs := make(map[string]string)
	if err := v.validate.Struct(i); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, e := range validationErrors {
				msg := fmt.Sprintf("failed validation on '%s'", e.Tag())
				switch e.Tag() {
				case "required":
					msg = "This field is required"
				case "min":
					msg = fmt.Sprintf("Must be at least %s", e.Param())
				case "max":
					msg = fmt.Sprintf("Must be at most %s", e.Param())
				case "gt":
					msg = fmt.Sprintf("Must be greater than %s", e.Param())
				case "local_phone":
					msg = "Invalid phone number"
				case "national_id":
					msg = "Invalid national ID number format"
				case "amount_text":
					msg = "Must be a non-negative number"
				}
				errs[e.Field()] = msg
			}
		} else {
			errs["_global"] = err.Error()
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (v *Validator) registerCustomValidations() {
	// Register decimal.Decimal to be validated as float64 for gt/lt checks
	v.validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if val, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := val.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// Local mobile numbers: 8-10 digits, optional +265 country prefix.
	localPhone := regexp.MustCompile(`^(\+265)?0?[1-9]\d{7,9}$`)
	_ = v.validate.RegisterValidation("local_phone", func(fl validator.FieldLevel) bool {
		phone := strings.ReplaceAll(strings.TrimSpace(fl.Field().String()), " ", "")
		if phone == "" {
			return true // optional fields validate emptiness via required
		}
		return localPhone.MatchString(phone)
	})

	// National ID: 8 alphanumeric characters as issued by the registry.
	nationalID := regexp.MustCompile(`^[A-Z0-9]{8}$`)
	_ = v.validate.RegisterValidation("national_id", func(fl validator.FieldLevel) bool {
		id := strings.ToUpper(strings.TrimSpace(fl.Field().String()))
		if id == "" {
			return true
		}
		return nationalID.MatchString(id)
	})

	// Free-text monetary figures on the employment form: empty or a
	// parseable non-negative decimal.
	_ = v.validate.RegisterValidation("amount_text", func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		if s == "" {
			return true
		}
		d, err := decimal.NewFromString(s)
		return err == nil && !d.IsNegative()
	})
}

// Sanitize cleans string input to prevent XSS attacks
func Sanitize(input string) string {
	return html.EscapeString(strings.TrimSpace(input))
}
