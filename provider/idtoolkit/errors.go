package idtoolkit

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	auth "github.com/goliatone/go-admin-auth"
	goerrors "github.com/goliatone/go-errors"
)

// Provider error codes as returned in error.message.
const (
	CodeEmailNotFound       = "EMAIL_NOT_FOUND"
	CodeInvalidPassword     = "INVALID_PASSWORD"
	CodeInvalidCredentials  = "INVALID_LOGIN_CREDENTIALS"
	CodeInvalidEmail        = "INVALID_EMAIL"
	CodeUserDisabled        = "USER_DISABLED"
	CodeTooManyAttempts     = "TOO_MANY_ATTEMPTS_TRY_LATER"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	CodeInvalidIDToken      = "INVALID_ID_TOKEN"
)

var credentialCodes = map[string]bool{
	CodeEmailNotFound:      true,
	CodeInvalidPassword:    true,
	CodeInvalidCredentials: true,
	CodeInvalidEmail:       true,
	CodeUserDisabled:       true,
	CodeTooManyAttempts:    true,
}

var sessionEndedCodes = map[string]bool{
	CodeTokenExpired:        true,
	CodeUserNotFound:        true,
	CodeUserDisabled:        true,
	CodeInvalidRefreshToken: true,
	CodeInvalidIDToken:      true,
}

// ErrUpstream reports an unexpected provider failure.
var ErrUpstream = goerrors.New("identity provider request failed", goerrors.CategoryOperation).
	WithTextCode("IDENTITY_PROVIDER_ERROR").
	WithCode(http.StatusBadGateway)

// ErrTokenInvalid reports an ID token that failed verification.
var ErrTokenInvalid = goerrors.New("identity token failed verification", goerrors.CategoryAuth).
	WithTextCode("ID_TOKEN_INVALID").
	WithCode(goerrors.CodeUnauthorized)

// ErrNoSession is returned by Claims when nobody is signed in.
var ErrNoSession = goerrors.New("no signed in identity", goerrors.CategoryAuth).
	WithTextCode("NO_SESSION").
	WithCode(goerrors.CodeUnauthorized)

// APIError is the decoded error body of a provider response.
type APIError struct {
	Status int
	// Code is the leading token of the provider message, e.g. INVALID_PASSWORD.
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("idtoolkit: %d %s", e.Status, e.Message)
}

type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newAPIError(status int, body errorBody) *APIError {
	msg := strings.TrimSpace(body.Error.Message)
	if msg == "" {
		msg = http.StatusText(status)
	}
	code := msg
	if i := strings.Index(code, " "); i > 0 {
		code = code[:i]
	}
	return &APIError{Status: status, Code: code, Message: msg}
}

// classify maps an APIError from a sign in call to the auth taxonomy. The
// provider message is kept verbatim for credential errors.
func classify(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return upstream(err)
	}
	if credentialCodes[apiErr.Code] {
		return auth.NewCredentialError(apiErr.Code, apiErr)
	}
	return upstream(apiErr)
}

func upstream(err error) error {
	clone := ErrUpstream.Clone()
	if clone == nil {
		return err
	}
	clone.Source = err
	return clone.WithMetadata(map[string]any{
		"provider": "idtoolkit",
		"cause":    err.Error(),
	})
}

func tokenInvalid(err error) error {
	clone := ErrTokenInvalid.Clone()
	if clone == nil {
		return err
	}
	clone.Source = err
	return clone.WithMetadata(map[string]any{
		"provider": "idtoolkit",
		"cause":    err.Error(),
	})
}

func sessionEnded(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && sessionEndedCodes[apiErr.Code]
}

func isNoSession(err error) bool {
	var rich *goerrors.Error
	return errors.As(err, &rich) && rich.TextCode == ErrNoSession.TextCode
}
