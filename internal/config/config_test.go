package config_test

import (
	"errors"
	"net"
	"testing"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-admin-auth/internal/config"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, config.DefaultAddr, cfg.Addr)
	assert.Equal(t, config.ProviderLocal, cfg.Provider)
	assert.Equal(t, "memory", cfg.Registry.Driver)
	assert.Equal(t, time.Hour, cfg.Local.TokenTTL)
	assert.True(t, cfg.Views)
	assert.False(t, cfg.Diagnostics)
}

func TestLoadFrom_DefaultAddrIsLoopback(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{})
	require.NoError(t, err)

	host, port, err := net.SplitHostPort(cfg.Addr)
	require.NoError(t, err)
	assert.Equal(t, "8080", port)
	assert.True(t, net.ParseIP(host).IsLoopback(), "default host %q is not loopback", host)
	assert.Equal(t, config.DefaultAddr, cfg.Addr)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"ADMIN_CONSOLE_ADDR":                 "0.0.0.0:9000",
		"ADMIN_CONSOLE_PROVIDER":             " IDToolkit ",
		"ADMIN_CONSOLE_IDTOOLKIT_API_KEY":    "key",
		"ADMIN_CONSOLE_IDTOOLKIT_PROJECT_ID": "proj",
		"ADMIN_CONSOLE_REGISTRY_DRIVER":      "SQLite",
		"ADMIN_CONSOLE_REGISTRY_DSN":         "file:admin.db",
		"ADMIN_CONSOLE_DASHBOARD_LATENCY":    "250ms",
		"ADMIN_CONSOLE_DIAGNOSTICS":          "true",
		"ADMIN_CONSOLE_LOG_VERBOSITY":        "2",
	})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
	assert.Equal(t, config.ProviderIDToolkit, cfg.Provider)
	assert.Equal(t, "key", cfg.IDToolkit.APIKey)
	assert.Equal(t, "sqlite", cfg.Registry.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.DashboardLatency)
	assert.True(t, cfg.Diagnostics)
	assert.Equal(t, 2, cfg.Verbosity)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFrom_BadValue(t *testing.T) {
	_, err := config.LoadFrom(map[string]string{"ADMIN_CONSOLE_DIAGNOSTICS": "maybe"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.Config
		fields []string
	}{
		{
			name: "local ok",
			cfg: config.Config{
				Provider: config.ProviderLocal,
				Local:    config.Local{SigningKey: "k", AccountsFile: "accounts.yaml"},
				Registry: config.Registry{Driver: "memory"},
			},
		},
		{
			name:   "local missing key",
			cfg:    config.Config{Provider: config.ProviderLocal, Registry: config.Registry{Driver: "memory"}},
			fields: []string{"local.signing_key", "local.accounts_file"},
		},
		{
			name:   "unknown provider",
			cfg:    config.Config{Provider: "ldap", Registry: config.Registry{Driver: "memory"}},
			fields: []string{"provider"},
		},
		{
			name: "sql without dsn",
			cfg: config.Config{
				Provider:  config.ProviderIDToolkit,
				IDToolkit: config.IDToolkit{APIKey: "k", ProjectID: "p"},
				Registry:  config.Registry{Driver: "postgres"},
			},
			fields: []string{"registry.dsn"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, auth.IsValidationError(err))
			var rich *goerrors.Error
			require.True(t, errors.As(err, &rich))
			fields, ok := rich.Metadata["fields"].(map[string]string)
			require.True(t, ok)
			assert.Len(t, fields, len(tt.fields))
			for _, f := range tt.fields {
				assert.Contains(t, fields, f)
			}
		})
	}
}
