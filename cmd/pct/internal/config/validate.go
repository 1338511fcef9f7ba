package config

import (
	"errors"
	"fmt"
	"go/token"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/module"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their yaml key
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "goident", func(fl validator.FieldLevel) bool {
		return token.IsIdentifier(fl.Field().String())
	})
	mustRegister(v, "importpath", func(fl validator.FieldLevel) bool {
		return module.CheckImportPath(fl.Field().String()) == nil
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("config: register %s: %v", tag, err))
	}
}

// FieldError describes one invalid setting
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every invalid setting of a Config
type ValidationError []FieldError

func (e ValidationError) Error() string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fe.Message)
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(ValidationError, 0, len(validationErrs))
	for _, e := range validationErrs {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   e.Field(),
			Message: message(e),
		})
	}
	return fieldErrors
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "required_with":
		return fmt.Sprintf("%s is required when %s is set", e.Field(), snake(e.Param()))
	case "min":
		return fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param())
	case "startswith":
		return fmt.Sprintf("%s entries must start with %q", e.Field(), e.Param())
	case "goident":
		return fmt.Sprintf("%s %q is not a Go identifier", e.Field(), e.Value())
	case "importpath":
		return fmt.Sprintf("%s %q is not a valid import path", e.Field(), e.Value())
	}
	return fmt.Sprintf("%s is invalid", e.Field())
}

// snake turns a Go field name into its yaml key, e.g. RightDelim -> right_delim
func snake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
