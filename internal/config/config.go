// Package config loads admin console settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	auth "github.com/goliatone/go-admin-auth"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "ADMIN_CONSOLE_"

// DefaultAddr is the loopback listen address.
const DefaultAddr = "127.0.0.1:8080"

// Identity provider kinds.
const (
	ProviderLocal     = "local"
	ProviderIDToolkit = "idtoolkit"
)

// Config is the admin console runtime configuration.
type Config struct {
	Addr     string `env:"ADDR" envDefault:"127.0.0.1:8080"`
	Provider string `env:"PROVIDER" envDefault:"local"`

	Local     Local     `envPrefix:"LOCAL_"`
	IDToolkit IDToolkit `envPrefix:"IDTOOLKIT_"`
	Registry  Registry  `envPrefix:"REGISTRY_"`

	DashboardFixtures string        `env:"DASHBOARD_FIXTURES"`
	DashboardLatency  time.Duration `env:"DASHBOARD_LATENCY" envDefault:"0s"`

	Views       bool `env:"VIEWS" envDefault:"true"`
	Diagnostics bool `env:"DIAGNOSTICS" envDefault:"false"`
	Metrics     bool `env:"METRICS" envDefault:"true"`
	Verbosity   int  `env:"LOG_VERBOSITY" envDefault:"0"`
}

// Local configures the in-process identity provider.
type Local struct {
	AccountsFile string        `env:"ACCOUNTS_FILE"`
	SigningKey   string        `env:"SIGNING_KEY"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
}

// IDToolkit configures the REST identity provider.
type IDToolkit struct {
	APIKey    string `env:"API_KEY"`
	ProjectID string `env:"PROJECT_ID"`
	TokenFile string `env:"TOKEN_FILE"`

	IdentityEndpoint string `env:"IDENTITY_ENDPOINT"`
	TokenEndpoint    string `env:"TOKEN_ENDPOINT"`
	JWKSURL          string `env:"JWKS_URL"`
}

// Registry configures the authorization registry.
type Registry struct {
	Driver   string `env:"DRIVER" envDefault:"memory"`
	DSN      string `env:"DSN"`
	SeedFile string `env:"SEED_FILE"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: EnvPrefix})
}

// LoadFrom reads the configuration from vars instead of the process
// environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: EnvPrefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.Registry.Driver = strings.ToLower(strings.TrimSpace(cfg.Registry.Driver))
	return cfg, nil
}

// Validate checks the settings required by the selected provider and
// registry.
func (c Config) Validate() error {
	fields := map[string]string{}

	switch c.Provider {
	case ProviderLocal:
		if c.Local.SigningKey == "" {
			fields["local.signing_key"] = "required for the local provider"
		}
		if c.Local.AccountsFile == "" {
			fields["local.accounts_file"] = "required for the local provider"
		}
	case ProviderIDToolkit:
		if c.IDToolkit.APIKey == "" {
			fields["idtoolkit.api_key"] = "required for the idtoolkit provider"
		}
		if c.IDToolkit.ProjectID == "" {
			fields["idtoolkit.project_id"] = "required for the idtoolkit provider"
		}
	default:
		fields["provider"] = fmt.Sprintf("unknown provider %q", c.Provider)
	}

	if c.Registry.Driver != "memory" && c.Registry.DSN == "" {
		fields["registry.dsn"] = "required for sql registries"
	}

	if len(fields) > 0 {
		return auth.NewValidationError("invalid configuration", fields)
	}
	return nil
}
