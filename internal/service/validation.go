package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"expensecontrol/internal/model"
	"expensecontrol/pkg/apperror"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var minMoney = decimal.New(1, -2) // 0.01

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// validateInput runs the struct tag rules on in and returns a BadRequest
// listing each failing "field: rule".
func validateInput(in interface{}) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperror.BadRequest("invalid payload: %v", err)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", trimNamespace(fe.Namespace()), rule))
	}
	return apperror.BadRequest("validation failed: %s", strings.Join(parts, "; "))
}

// trimNamespace drops the root struct name from "CreateRequestInput.lines[0].value".
func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// requireMoney checks a required money field is at least 0.01.
func requireMoney(field string, value decimal.Decimal) error {
	if value.LessThan(minMoney) {
		return apperror.BadRequest("validation failed: %s: min=0.01", field)
	}
	return nil
}

func roundMoney(value decimal.Decimal) decimal.Decimal {
	return value.Round(model.MoneyScale)
}

func formatMoney(value decimal.Decimal) string {
	return value.StringFixed(model.MoneyScale)
}
