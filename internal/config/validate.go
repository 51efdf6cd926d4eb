package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their config key, not the Go name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("loglevel", validateLogLevel)

	return v
}

func validateLogLevel(fl validator.FieldLevel) bool {
	_, err := zerolog.ParseLevel(fl.Field().String())
	return err == nil
}

// Validate checks configuration correctness.
// It performs declarative validation only and does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fieldError(fieldErrs[0])
		}
		return fmt.Errorf("validate config: %w", err)
	}

	// Cross-field rules the tags cannot express.
	if err := cfg.Geometry().Validate(); err != nil {
		return fmt.Errorf("flash: %w", err)
	}

	return nil
}

func fieldError(fe validator.FieldError) error {
	// Namespace is "Config.serial.baud"; drop the root type.
	_, key, _ := strings.Cut(fe.Namespace(), ".")

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", key)
	case "gt":
		return fmt.Errorf("%s must be greater than %s, got %v", key, fe.Param(), fe.Value())
	case "gte":
		return fmt.Errorf("%s must be at least %s, got %v", key, fe.Param(), fe.Value())
	case "loglevel":
		return fmt.Errorf("%s: unknown level %q", key, fe.Value())
	default:
		return fmt.Errorf("%s failed %s", key, fe.Tag())
	}
}
