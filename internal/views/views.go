// Package views holds the embedded admin console templates.
package views

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/django/v3"
	auth "github.com/goliatone/go-admin-auth"
)

// Template names rendered by the console.
const (
	Login         = "login"
	PasswordReset = "password_reset"
	Loading       = "loading"
	Error         = "error"
	Dashboard     = "dashboard"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Names lists every embedded template.
func Names() []string {
	return []string{Login, PasswordReset, Loading, Error, Dashboard}
}

// New returns a django engine over the embedded templates with the auth
// template helpers registered as globals. With reload set the templates are
// parsed on every render.
func New(reload bool) *django.Engine {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		panic(err)
	}
	engine := django.NewFileSystem(http.FS(sub), ".html")
	engine.AddFuncMap(auth.TemplateHelpers())
	engine.Reload(reload)
	return engine
}
