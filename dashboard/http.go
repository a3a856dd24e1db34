package dashboard

import (
	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-admin-auth"
)

// OverviewHandler serves GET ?range=7d|30d from loader. Mount it behind
// auth.ProtectedRoute. A superseded fetch answers 204 with no body.
func OverviewHandler(loader *Loader, logger auth.Logger) fiber.Handler {
	if logger == nil {
		logger = auth.NopLogger()
	}

	return func(c *fiber.Ctx) error {
		r, err := ParseRange(c.Query("range"))
		if err != nil {
			status, resp := auth.DescribeError(err)
			return c.Status(status).JSON(fiber.Map{"error": resp})
		}

		overview, err := loader.Load(c.UserContext(), r)
		switch {
		case IsCancelled(err):
			return c.SendStatus(fiber.StatusNoContent)
		case err != nil:
			logger.Error("dashboard fetch failed", "range", r.String(), "error", err)
			status, resp := auth.DescribeError(err)
			return c.Status(status).JSON(fiber.Map{"error": resp})
		}

		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.JSON(overview)
	}
}

// PageHandler renders view with the session user and the overview for the
// requested range. Mount it behind auth.ProtectedRoute.
func PageHandler(loader *Loader, view string, logger auth.Logger) fiber.Handler {
	if logger == nil {
		logger = auth.NopLogger()
	}

	ranges := make([]string, 0, len(Ranges()))
	for _, r := range Ranges() {
		ranges = append(ranges, r.String())
	}

	return func(c *fiber.Ctx) error {
		session, ok := auth.SessionFromContext(c.UserContext())
		if !ok {
			return c.Redirect(auth.DefaultLoginPath, fiber.StatusFound)
		}

		r, err := ParseRange(c.Query("range"))
		if err != nil {
			r = DefaultRange
		}

		data := fiber.Map{
			"user":    session.User(),
			"current": r.String(),
			"ranges":  ranges,
		}

		overview, err := loader.Load(c.UserContext(), r)
		switch {
		case IsCancelled(err):
			return c.SendStatus(fiber.StatusNoContent)
		case err != nil:
			logger.Error("dashboard fetch failed", "range", r.String(), "error", err)
			_, resp := auth.DescribeError(err)
			data["error"] = resp
		default:
			data["overview"] = overview
		}

		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.Render(view, auth.MergeTemplateData(c, data))
	}
}
