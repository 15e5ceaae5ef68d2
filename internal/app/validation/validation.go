package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/crmarques/quayconf/faults"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Messages use the option names of the payload files.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// Struct checks the validate tags of a module request. Every violation is
// reported in one validation error.
func Struct(request any) error {
	err := validate.Struct(request)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return faults.Validation("invalid module options", err)
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fieldErr := range fieldErrors {
		messages = append(messages, describe(fieldErr))
	}
	return faults.Validation(strings.Join(messages, "; "), nil)
}

func describe(fieldErr validator.FieldError) string {
	name := optionName(fieldErr)
	switch fieldErr.Tag() {
	case "required":
		return fmt.Sprintf("missing required argument: %s", name)
	case "oneof":
		return fmt.Sprintf("value of %s must be one of: %s, got: %v", name, strings.ReplaceAll(fieldErr.Param(), " ", ", "), fieldErr.Value())
	case "excluded_with":
		return fmt.Sprintf("parameters are mutually exclusive: %s|%s", name, strings.ToLower(fieldErr.Param()))
	case "required_with":
		return fmt.Sprintf("%s is required together with %s", name, strings.ToLower(fieldErr.Param()))
	case "url", "http_url":
		return fmt.Sprintf("value of %s must be a URL, got: %v", name, fieldErr.Value())
	case "email":
		return fmt.Sprintf("value of %s must be an email address, got: %v", name, fieldErr.Value())
	case "excludesall":
		return fmt.Sprintf("value of %s must not contain white spaces", name)
	case "lowercase":
		return fmt.Sprintf("value of %s must be in lowercase", name)
	default:
		return fmt.Sprintf("invalid value for %s (%s)", name, fieldErr.Tag())
	}
}

// optionName renders nested fields as perms[0].name.
func optionName(fieldErr validator.FieldError) string {
	namespace := fieldErr.Namespace()
	if _, rest, found := strings.Cut(namespace, "."); found {
		return rest
	}
	return fieldErr.Field()
}
