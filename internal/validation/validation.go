// Package validation is the single home of the email-format and password-strength
// rules, plus the request-struct validator used by echo.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	apperrors "prepai/internal/errors"
)

// DefaultPasswordMinLength is used when no minimum is configured.
const DefaultPasswordMinLength = 8

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var (
	// ErrInvalidEmail is returned for syntactically invalid addresses.
	ErrInvalidEmail = fmt.Errorf("%w: invalid email format", apperrors.ErrValidation)
	// ErrEmailRequired is returned for blank addresses.
	ErrEmailRequired = fmt.Errorf("%w: email is required", apperrors.ErrValidation)
)

// NormalizeEmail trims and lower-cases email and checks its format.
func NormalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return "", ErrEmailRequired
	}
	if !emailPattern.MatchString(normalized) {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}

// ValidatePassword enforces the strength policy: minimum length plus at least one
// upper-case letter, lower-case letter, digit and special character.
func ValidatePassword(password string, minLength int) error {
	if minLength <= 0 {
		minLength = DefaultPasswordMinLength
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", apperrors.ErrValidation)
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}

	if len([]rune(password)) < minLength || !upper || !lower || !digit || !special {
		return fmt.Errorf(
			"%w: password must be at least %d characters long and include uppercase, lowercase, number, and special character",
			apperrors.ErrValidation, minLength,
		)
	}
	return nil
}

// Validator adapts go-playground/validator to echo.Validator. Errors name fields
// by their JSON tag and wrap apperrors.ErrValidation.
type Validator struct {
	validate *validator.Validate
}

// New builds a Validator with the notblank rule registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return &Validator{validate: v}
}

// Validate implements echo.Validator.
func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	var missing, invalid []string
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required", "notblank":
			missing = append(missing, fe.Field())
		default:
			invalid = append(invalid, fe.Field())
		}
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(invalid, ", "))
	}
	return fmt.Errorf("%w: %s", apperrors.ErrValidation, strings.Join(parts, "; "))
}
