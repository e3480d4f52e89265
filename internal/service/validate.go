// Package service implements the feed's business logic on top of the
// repositories.
package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"jobfeed/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateInput runs struct validation and turns the first failure into a
// VALIDATION_ERROR with a readable message.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return models.NewValidationError(err.Error())
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return models.NewValidationError(field + " is required")
	case "min":
		if fe.Param() == "1" {
			return models.NewValidationError(field + " is required")
		}
		return models.NewValidationError(fmt.Sprintf("%s too short (min %s)", field, fe.Param()))
	case "max":
		if fe.Kind() == reflect.Slice {
			return models.NewValidationError(fmt.Sprintf("%s cannot have more than %s entries", field, fe.Param()))
		}
		return models.NewValidationError(fmt.Sprintf("%s too long (max %s characters)", field, fe.Param()))
	case "oneof":
		return models.NewValidationError(fmt.Sprintf("Invalid %s: %v", field, fe.Value()))
	default:
		return models.NewValidationError(fmt.Sprintf("Invalid %s", field))
	}
}
