package views_test

import (
	"bytes"
	"testing"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-admin-auth/dashboard"
	"github.com/goliatone/go-admin-auth/internal/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LoadsAllTemplates(t *testing.T) {
	engine := views.New(false)
	require.NoError(t, engine.Load())

	for _, name := range views.Names() {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, engine.Render(&buf, name, fiber.Map{}))
			assert.Contains(t, buf.String(), "<html")
		})
	}
}

func TestLogin_RendersErrorAndNext(t *testing.T) {
	engine := views.New(false)
	require.NoError(t, engine.Load())

	var buf bytes.Buffer
	err := engine.Render(&buf, views.Login, fiber.Map{
		"next":   "/admin/users",
		"record": auth.LoginPayload{Email: "admin@x.com"},
		"error": auth.ErrorResponse{
			Code:    auth.TextCodeCredential,
			Message: "INVALID_LOGIN_CREDENTIALS",
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `value="/admin/users"`)
	assert.Contains(t, out, `value="admin@x.com"`)
	assert.Contains(t, out, "INVALID_LOGIN_CREDENTIALS")
}

func TestDashboard_RendersOverview(t *testing.T) {
	engine := views.New(false)
	require.NoError(t, engine.Load())

	var buf bytes.Buffer
	err := engine.Render(&buf, views.Dashboard, fiber.Map{
		"user":    auth.AdminUser{DisplayName: "Ada", Role: auth.RoleAdmin},
		"current": "7d",
		"ranges":  []string{"7d", "30d"},
		"overview": &dashboard.Overview{
			Range:   dashboard.Range7d,
			Summary: []dashboard.Metric{{Key: "signups", Label: "Signups", Value: 42}},
			Listing: []dashboard.ListingItem{{ID: "1", Title: "Top account"}},
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Ada (admin)")
	assert.Contains(t, out, "Signups")
	assert.Contains(t, out, "Top account")
}
