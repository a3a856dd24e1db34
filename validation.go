package auth

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// MinPasswordLength is the shortest password the login form accepts.
const MinPasswordLength = 6

// LoginPayload is the login form.
type LoginPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	Next     string `form:"next" json:"next,omitempty"`
}

// Validate will validate the payload
func (p LoginPayload) Validate() error {
	p.Email = strings.TrimSpace(p.Email)
	return toValidationError(validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&p.Password, validation.Required, validation.Length(MinPasswordLength, 0)),
	))
}

// PasswordResetPayload is the password reset request form.
type PasswordResetPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (p PasswordResetPayload) Validate() error {
	p.Email = strings.TrimSpace(p.Email)
	return toValidationError(validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, validation.Length(3, 254), is.Email),
	))
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return NewValidationError(err.Error(), nil)
	}

	fields := make(map[string]string, len(verrs))
	for field, ferr := range verrs {
		if ferr != nil {
			fields[field] = ferr.Error()
		}
	}
	return NewValidationError("invalid input", fields)
}
