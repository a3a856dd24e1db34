package idtoolkit

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultIdentityEndpoint = "https://identitytoolkit.googleapis.com/v1"
	DefaultTokenEndpoint    = "https://securetoken.googleapis.com/v1"
	DefaultJWKSURL          = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
	// DefaultExpirySkew is how close to expiry a cached ID token is renewed.
	DefaultExpirySkew = 5 * time.Minute
)

// Config holds the REST provider configuration.
type Config struct {
	// APIKey is the web API key sent as the `key` query parameter.
	APIKey string
	// ProjectID is the token audience.
	ProjectID string

	// IdentityEndpoint is the accounts API base URL.
	// Default: DefaultIdentityEndpoint.
	IdentityEndpoint string
	// TokenEndpoint is the secure token API base URL.
	// Default: DefaultTokenEndpoint.
	TokenEndpoint string
	// JWKSURL publishes the ID token signing keys.
	// Default: DefaultJWKSURL.
	JWKSURL string
	// Issuer overrides the expected iss claim.
	// Default: "https://securetoken.google.com/{ProjectID}".
	Issuer string

	// ExpirySkew renews cached ID tokens this long before they expire.
	ExpirySkew time.Duration
	// HTTPClient is used for every call. Default: a client with a 10s timeout.
	HTTPClient *http.Client
}

func (c Config) withDefaults() (Config, error) {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.ProjectID = strings.TrimSpace(c.ProjectID)
	if c.APIKey == "" {
		return c, errors.New("idtoolkit: api key is required")
	}
	if c.ProjectID == "" {
		return c, errors.New("idtoolkit: project id is required")
	}

	if c.IdentityEndpoint == "" {
		c.IdentityEndpoint = DefaultIdentityEndpoint
	}
	if c.TokenEndpoint == "" {
		c.TokenEndpoint = DefaultTokenEndpoint
	}
	if c.JWKSURL == "" {
		c.JWKSURL = DefaultJWKSURL
	}
	if c.Issuer == "" {
		c.Issuer = "https://securetoken.google.com/" + c.ProjectID
	}
	if c.ExpirySkew <= 0 {
		c.ExpirySkew = DefaultExpirySkew
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	c.IdentityEndpoint = strings.TrimSuffix(c.IdentityEndpoint, "/")
	c.TokenEndpoint = strings.TrimSuffix(c.TokenEndpoint, "/")
	return c, nil
}
