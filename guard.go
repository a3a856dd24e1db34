package auth

import (
	"net/url"
	"strings"
)

// DefaultLoginPath is the login entry point used when none is configured.
const DefaultLoginPath = "/login"

// NextParam is the query parameter carrying the return target.
const NextParam = "next"

// GuardAction is what a protected view should do.
type GuardAction int

const (
	// GuardWait renders a neutral waiting indicator and nothing else.
	GuardWait GuardAction = iota
	// GuardRedirect sends the visitor to the login entry point.
	GuardRedirect
	// GuardRender renders the protected content.
	GuardRender
)

func (a GuardAction) String() string {
	switch a {
	case GuardWait:
		return "wait"
	case GuardRedirect:
		return "redirect"
	case GuardRender:
		return "render"
	default:
		return "unknown"
	}
}

// GuardDecision is the result of Guard. Location and Replace are only set for
// GuardRedirect; Replace means the navigation must not grow history.
type GuardDecision struct {
	Action   GuardAction
	Location string
	Replace  bool
	Session  *AuthSession
}

// Guard decides what a protected view does for the given store state and
// requested location. It holds no state and performs no I/O.
func Guard(state State, requested *url.URL, loginPath string) GuardDecision {
	switch {
	case state.Loading():
		return GuardDecision{Action: GuardWait}
	case state.Authenticated():
		return GuardDecision{Action: GuardRender, Session: state.Session}
	default:
		return GuardDecision{
			Action:   GuardRedirect,
			Location: LoginRedirect(loginPath, requestURI(requested)),
			Replace:  true,
		}
	}
}

// LoginRedirect returns the login entry point with requested (path and query)
// encoded in the next parameter.
func LoginRedirect(loginPath, requested string) string {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	if requested == "" || !isLocalPath(requested) {
		return loginPath
	}

	sep := "?"
	if strings.Contains(loginPath, "?") {
		sep = "&"
	}
	return loginPath + sep + url.Values{NextParam: {requested}}.Encode()
}

// ReturnTarget picks where to go after login. next is used only when it is a
// local absolute path; anything else falls back.
func ReturnTarget(next, fallback string) string {
	next = strings.TrimSpace(next)
	if next == "" || !isLocalPath(next) {
		return fallback
	}
	return next
}

func requestURI(u *url.URL) string {
	if u == nil {
		return ""
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		return path + "?" + u.RawQuery
	}
	return path
}

func isLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	u, err := url.Parse(p)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}
