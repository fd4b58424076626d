package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/boddenberg/agent-ledger-go/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// phonePattern matches Egyptian mobile numbers (Vodafone, Etisalat,
// Orange, WE) after NormalizePhone.
var phonePattern = regexp.MustCompile(`^01[0125][0-9]{8}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("egphone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// NormalizePhone strips spaces and dashes.
func NormalizePhone(phone string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(phone))
}

// validateStruct runs the struct tags and maps the first failure to
// ErrValidation.
func validateStruct(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &domain.ErrValidation{Field: fe.Field(), Message: validationMessage(fe)}
	}
	return &domain.ErrValidation{Field: "body", Message: err.Error()}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "egphone":
		return "must be a valid mobile number (01XXXXXXXXX)"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "url":
		return "must be a valid URL"
	case "min":
		return "must not be empty"
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

func requirePositive(field string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return &domain.ErrValidation{Field: field, Message: "must be greater than 0"}
	}
	return nil
}

func requireNonNegative(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return &domain.ErrValidation{Field: field, Message: "must not be negative"}
	}
	return nil
}
