package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// SessionService is what the controller needs from Store.
type SessionService interface {
	StateReader
	Login(ctx context.Context, email, password string) (*AuthSession, error)
	Logout(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error
}

type ControllerRoutes struct {
	Login         string
	Logout        string
	PasswordReset string
	Session       string
	// Landing is where a login without a valid next target ends up.
	Landing string
}

type ControllerViews struct {
	Login         string
	PasswordReset string
	Loading       string
	Error         string
}

// Controller serves the login entry point and session endpoints.
type Controller struct {
	Service SessionService
	Logger  Logger
	Routes  *ControllerRoutes
	Views   *ControllerViews
	// UseViews renders templates for browser requests; JSON is used otherwise.
	UseViews bool
}

type ControllerOption func(*Controller)

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) {
		c.Logger = normalizeLogger(logger)
	}
}

func WithControllerRoutes(routes ControllerRoutes) ControllerOption {
	return func(c *Controller) {
		if routes.Login != "" {
			c.Routes.Login = routes.Login
		}
		if routes.Logout != "" {
			c.Routes.Logout = routes.Logout
		}
		if routes.PasswordReset != "" {
			c.Routes.PasswordReset = routes.PasswordReset
		}
		if routes.Session != "" {
			c.Routes.Session = routes.Session
		}
		if routes.Landing != "" {
			c.Routes.Landing = routes.Landing
		}
	}
}

// WithViews turns on template rendering for browser requests.
func WithViews(views ControllerViews) ControllerOption {
	return func(c *Controller) {
		c.UseViews = true
		if views.Login != "" {
			c.Views.Login = views.Login
		}
		if views.PasswordReset != "" {
			c.Views.PasswordReset = views.PasswordReset
		}
		if views.Loading != "" {
			c.Views.Loading = views.Loading
		}
		if views.Error != "" {
			c.Views.Error = views.Error
		}
	}
}

func NewController(service SessionService, opts ...ControllerOption) *Controller {
	c := &Controller{
		Service: service,
		Logger:  defLogger{},
		Routes: &ControllerRoutes{
			Login:         DefaultLoginPath,
			Logout:        "/logout",
			PasswordReset: "/password-reset",
			Session:       "/api/session",
			Landing:       "/admin",
		},
		Views: &ControllerViews{
			Login:         "login",
			PasswordReset: "password_reset",
			Loading:       "loading",
			Error:         "error",
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// RegisterRoutes mounts the controller on r.
func (a *Controller) RegisterRoutes(r fiber.Router) {
	r.Get(a.Routes.Login, a.LoginShow)
	r.Post(a.Routes.Login, a.LoginPost)
	r.Post(a.Routes.Logout, a.LogOut)
	r.Get(a.Routes.PasswordReset, a.PasswordResetShow)
	r.Post(a.Routes.PasswordReset, a.PasswordResetPost)
	r.Get(a.Routes.Session, a.SessionShow)
}

// GuardConfig returns a GuardConfig that redirects to this controller's
// login route and renders its loading view.
func (a *Controller) GuardConfig() GuardConfig {
	cfg := GuardConfig{LoginPath: a.Routes.Login, Logger: a.Logger}
	if a.UseViews {
		cfg.WaitHandler = func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusServiceUnavailable).Render(a.Views.Loading, fiber.Map{
				"path": c.OriginalURL(),
			})
		}
	}
	return cfg
}

func (a *Controller) LoginShow(c *fiber.Ctx) error {
	next := c.Query(NextParam)
	state := a.Service.State()

	if state.Authenticated() {
		return c.Redirect(ReturnTarget(next, a.Routes.Landing), fiber.StatusFound)
	}

	if a.renderViews(c) {
		if state.Loading() {
			c.Set(fiber.HeaderRetryAfter, "1")
			return c.Status(fiber.StatusServiceUnavailable).Render(a.Views.Loading, fiber.Map{
				"path": c.OriginalURL(),
			})
		}
		return c.Render(a.Views.Login, fiber.Map{
			"next":   ReturnTarget(next, ""),
			"errors": nil,
			"record": LoginPayload{},
		})
	}

	return c.JSON(fiber.Map{
		"state": state.Kind.String(),
		"next":  ReturnTarget(next, ""),
	})
}

func (a *Controller) LoginPost(c *fiber.Ctx) error {
	payload := LoginPayload{}
	if err := c.BodyParser(&payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return a.respondError(c, NewValidationError("failed to parse form", nil), a.Views.Login, fiber.Map{
			"next": ReturnTarget(payload.Next, ""),
		})
	}

	payload.Email = strings.TrimSpace(payload.Email)
	viewData := fiber.Map{
		"next":   ReturnTarget(payload.Next, ""),
		"record": LoginPayload{Email: payload.Email},
	}

	if err := payload.Validate(); err != nil {
		return a.respondError(c, err, a.Views.Login, viewData)
	}

	session, err := a.Service.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return a.respondError(c, err, a.Views.Login, viewData)
	}

	target := ReturnTarget(payload.Next, a.Routes.Landing)
	if a.renderViews(c) {
		return c.Redirect(target, fiber.StatusSeeOther)
	}

	return c.JSON(fiber.Map{
		"redirect": target,
		"session":  session,
	})
}

func (a *Controller) LogOut(c *fiber.Ctx) error {
	if err := a.Service.Logout(c.UserContext()); err != nil {
		a.Logger.Warn("logout completed with provider error", "error", err)
	}

	if a.renderViews(c) {
		return c.Redirect(a.Routes.Login, fiber.StatusSeeOther)
	}
	return c.JSON(fiber.Map{"state": a.Service.State().Kind.String()})
}

func (a *Controller) PasswordResetShow(c *fiber.Ctx) error {
	if a.renderViews(c) {
		return c.Render(a.Views.PasswordReset, fiber.Map{
			"errors": nil,
			"sent":   false,
		})
	}
	return c.JSON(fiber.Map{"sent": false})
}

func (a *Controller) PasswordResetPost(c *fiber.Ctx) error {
	payload := PasswordResetPayload{}
	if err := c.BodyParser(&payload); err != nil {
		a.Logger.Error("password reset parse payload", "error", err)
		return a.respondError(c, NewValidationError("failed to parse form", nil), a.Views.PasswordReset, fiber.Map{})
	}

	payload.Email = strings.TrimSpace(payload.Email)
	if err := payload.Validate(); err != nil {
		return a.respondError(c, err, a.Views.PasswordReset, fiber.Map{"record": payload})
	}

	if err := a.Service.SendPasswordReset(c.UserContext(), payload.Email); err != nil {
		return a.respondError(c, err, a.Views.PasswordReset, fiber.Map{"record": payload})
	}

	if a.renderViews(c) {
		return c.Status(fiber.StatusAccepted).Render(a.Views.PasswordReset, fiber.Map{
			"sent": true,
		})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"sent": true})
}

// SessionShow exposes the store state as {loading, authenticated, session}.
func (a *Controller) SessionShow(c *fiber.Ctx) error {
	state := a.Service.State()
	c.Set(fiber.HeaderCacheControl, "no-store")

	var session any
	if state.Authenticated() {
		session = state.Session
	}

	return c.JSON(fiber.Map{
		"state":         state.Kind.String(),
		"loading":       state.Loading(),
		"authenticated": state.Authenticated(),
		"session":       session,
	})
}

func (a *Controller) renderViews(c *fiber.Ctx) bool {
	if !a.UseViews {
		return false
	}
	return c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMETextHTML
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Fields   map[string]string `json:"fields,omitempty"`
	Guidance string            `json:"guidance,omitempty"`
}

// DescribeError maps an error to the HTTP status and body shown to users.
func DescribeError(err error) (int, ErrorResponse) {
	var rich *goerrors.Error
	errors.As(err, &rich)

	switch {
	case IsValidationError(err):
		resp := ErrorResponse{Code: TextCodeValidation, Message: rich.Message}
		if fields, ok := rich.Metadata["fields"].(map[string]string); ok {
			resp.Fields = fields
		}
		return fiber.StatusBadRequest, resp
	case IsCredentialError(err):
		return fiber.StatusUnauthorized, ErrorResponse{Code: TextCodeCredential, Message: rich.Message}
	case IsNotAuthorized(err):
		return fiber.StatusForbidden, ErrorResponse{Code: TextCodeNotAuthorized, Message: ErrNotAuthorized.Message}
	case IsRegistryUnavailable(err):
		return fiber.StatusServiceUnavailable, ErrorResponse{
			Code:     TextCodeRegistryUnavailable,
			Message:  ErrRegistryUnavailable.Message,
			Guidance: RegistryPermissionsGuidance,
		}
	default:
		return fiber.StatusInternalServerError, ErrorResponse{Code: "internal_error", Message: "an unexpected error occurred"}
	}
}

func (a *Controller) respondError(c *fiber.Ctx, err error, view string, data fiber.Map) error {
	status, resp := DescribeError(err)

	var rich *goerrors.Error
	if errors.As(err, &rich) {
		a.Logger.Info("controller error",
			"path", c.Path(),
			"status", status,
			"text_code", rich.TextCode,
			"details", print.MaybePrettyJSON(rich.Metadata),
		)
	} else {
		a.Logger.Error("controller unexpected error", "path", c.Path(), "error", err)
	}

	if a.renderViews(c) {
		if data == nil {
			data = fiber.Map{}
		}
		data["error"] = resp
		if status == fiber.StatusInternalServerError {
			view = a.Views.Error
		}
		return c.Status(status).Render(view, data)
	}

	return c.Status(status).JSON(fiber.Map{"error": resp})
}
