package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xhit/go-str2duration/v2"

	"github.com/krug-dev/krug-mcp/internal/domain/auth"
)

// RegisterCustomValidators registers krug-mcp validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("failed to register duration validator: %w", err)
	}
	if err := v.RegisterValidation("token_hash", validateTokenHash); err != nil {
		return fmt.Errorf("failed to register token_hash validator: %w", err)
	}
	return nil
}

// validateDuration accepts positive durations, including day and week units.
func validateDuration(fl validator.FieldLevel) bool {
	d, err := str2duration.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

// validateTokenHash accepts "sha256:<64 hex>" or an argon2id PHC string.
func validateTokenHash(fl validator.FieldLevel) bool {
	return auth.DetectHashType(fl.Field().String()) != "unknown"
}

// Validate validates the Config using struct tags and cross-field rules.
// Returns an error if validation fails, with actionable error messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateAuthSecret(); err != nil {
		return err
	}

	if c.SessionGraceTTL() > c.SessionTTL() {
		return errors.New("session: grace_ttl must not exceed ttl")
	}

	return nil
}

// validateAuthSecret ensures exactly one of token or token_hash is set.
func (c *Config) validateAuthSecret() error {
	hasToken := c.Auth.Token != ""
	hasHash := c.Auth.TokenHash != ""

	switch {
	case hasToken && hasHash:
		return errors.New("auth: specify token OR token_hash, not both")
	case !hasToken && !hasHash:
		return errors.New("auth: token or token_hash is required (or run with --dev)")
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()

	switch e.Tag() {
	case "required", "required_with":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "duration":
		return fmt.Sprintf("%s must be a positive duration (e.g. 30m, 1h, 1d)", field)
	case "token_hash":
		return fmt.Sprintf("%s must be 'sha256:<hex>' or an argon2id hash", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
