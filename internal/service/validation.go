package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/Freeeeeet/wellness_booking/internal/apperror"
	"github.com/Freeeeeet/wellness_booking/internal/model"
	"github.com/Freeeeeet/wellness_booking/internal/timeutil"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// в сообщениях используем json имена полей
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("session_category", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseSessionCategory(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, err := timeutil.ParseWeekday(fl.Field().String())
		return err == nil
	})

	return v
}

// validateStruct проверяет теги validate и переводит ошибки в ValidationError
func validateStruct(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperror.Validation("invalid input")
	}

	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("%s %s", fe.Field(), describeTag(fe)))
	}
	return apperror.Validation("invalid input: %s", strings.Join(parts, "; "))
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "gtfield":
		return "must be after " + fe.Param()
	case "url":
		return "must be a valid URL"
	case "session_category":
		return "must be one of YOGA, MEDITATION, DIET"
	case "weekday":
		return "must be a weekday name"
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}
