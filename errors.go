package auth

import (
	"errors"
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeValidation          = "validation_failed"
	TextCodeCredential          = "invalid_credentials"
	TextCodeNotAuthorized       = "admin_access_required"
	TextCodeRegistryUnavailable = "registry_unavailable"
	TextCodeRegistryDenied      = "registry_access_denied"
	TextCodeInvalidSession      = "invalid_session"
)

// RegistryPermissionsGuidance is attached to ErrRegistryUnavailable failures.
const RegistryPermissionsGuidance = "the authorization registry denied the read; check that the console's service account has read permissions on the admin registry"

// ErrValidation reports malformed input such as an empty email or a short password.
var ErrValidation = goerrors.New("invalid input", goerrors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(goerrors.CodeBadRequest)

// ErrCredential reports that the identity provider rejected the sign in.
var ErrCredential = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeCredential).
	WithCode(goerrors.CodeUnauthorized)

// ErrNotAuthorized reports a verified identity without an admin role. The
// message never reveals whether the account exists.
var ErrNotAuthorized = goerrors.New("admin access required", goerrors.CategoryAuthz).
	WithTextCode(TextCodeNotAuthorized).
	WithCode(goerrors.CodeForbidden)

// ErrRegistryUnavailable reports a misconfigured or unreachable registry. It
// is an operational failure and not an authorization decision.
var ErrRegistryUnavailable = goerrors.New("authorization registry unavailable", goerrors.CategoryOperation).
	WithTextCode(TextCodeRegistryUnavailable).
	WithCode(http.StatusServiceUnavailable)

// ErrRegistryAccessDenied is what registry implementations return (or wrap)
// when the storage layer refuses the read.
var ErrRegistryAccessDenied = goerrors.New("authorization registry access denied", goerrors.CategoryOperation).
	WithTextCode(TextCodeRegistryDenied).
	WithCode(http.StatusServiceUnavailable)

// ErrInvalidSession is returned when a session is built without an admin role
// or without the identity fields it needs.
var ErrInvalidSession = goerrors.New("invalid admin session", goerrors.CategoryInternal).
	WithTextCode(TextCodeInvalidSession).
	WithCode(goerrors.CodeInternal)

// NewValidationError returns an ErrValidation clone with per field messages.
func NewValidationError(message string, fields map[string]string) error {
	meta := map[string]any{}
	if len(fields) > 0 {
		meta["fields"] = fields
	}
	return cloneError(ErrValidation, message, nil, meta)
}

// NewCredentialError wraps a provider sign in rejection. The provider message
// is kept verbatim.
func NewCredentialError(message string, cause error) error {
	return cloneError(ErrCredential, message, cause, nil)
}

// NewRegistryAccessDenied wraps a storage level access denial.
func NewRegistryAccessDenied(cause error, meta map[string]any) error {
	return cloneError(ErrRegistryAccessDenied, "", cause, meta)
}

// IsValidationError checks for ErrValidation
func IsValidationError(err error) bool {
	return hasTextCode(err, TextCodeValidation)
}

// IsCredentialError checks for ErrCredential
func IsCredentialError(err error) bool {
	return hasTextCode(err, TextCodeCredential)
}

// IsNotAuthorized checks for ErrNotAuthorized
func IsNotAuthorized(err error) bool {
	return hasTextCode(err, TextCodeNotAuthorized)
}

// IsRegistryUnavailable checks for ErrRegistryUnavailable
func IsRegistryUnavailable(err error) bool {
	return hasTextCode(err, TextCodeRegistryUnavailable)
}

// IsRegistryAccessDenied checks for ErrRegistryAccessDenied
func IsRegistryAccessDenied(err error) bool {
	return hasTextCode(err, TextCodeRegistryDenied)
}

// IsInvalidSession checks for ErrInvalidSession
func IsInvalidSession(err error) bool {
	return hasTextCode(err, TextCodeInvalidSession)
}

// hasTextCode walks the whole chain, including rich error sources.
func hasTextCode(err error, code string) bool {
	for err != nil {
		var rich *goerrors.Error
		if !errors.As(err, &rich) || rich == nil {
			return false
		}
		if rich.TextCode == code {
			return true
		}
		err = rich.Source
	}
	return false
}

func cloneError(base *goerrors.Error, message string, cause error, meta map[string]any) error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	if message != "" {
		clone.Message = message
	}
	if cause != nil {
		clone.Source = cause
	}
	if len(meta) > 0 {
		clone = clone.WithMetadata(meta)
	}
	return clone
}

func notAuthorized(reason string, meta map[string]any) error {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["reason"] = reason
	return cloneError(ErrNotAuthorized, "", errors.New(reason), meta)
}

func invalidSession(field, value string) error {
	return cloneError(ErrInvalidSession, fmt.Sprintf("invalid admin session: bad %s", field), nil, map[string]any{
		"field": field,
		"value": value,
	})
}
