package lifecycle

import (
	"strings"

	"github.com/mtp-io/toolportal/internal/platform"
)

// PageClass buckets routes for the redirect decision on session expiry.
// Auth pages, OAuth callback pages, and public pages suppress the redirect;
// only dashboard pages navigate to sign-in. Getting this wrong reintroduces
// redirect loops on the very pages the user is sent to after expiry.
type PageClass int

const (
	PageAuth PageClass = iota
	PageOAuthCallback
	PageDashboard
	PagePublic
)

func (c PageClass) String() string {
	switch c {
	case PageAuth:
		return "auth"
	case PageOAuthCallback:
		return "oauth-callback"
	case PageDashboard:
		return "dashboard"
	default:
		return "public"
	}
}

// ClassifyPath maps a route path to its page class.
func ClassifyPath(path string) PageClass {
	switch {
	case path == "/auth" || strings.HasPrefix(path, "/auth/") ||
		path == "/vendor/auth" || strings.HasPrefix(path, "/vendor/auth/"):
		return PageAuth
	case isOAuthCallbackPath(path):
		return PageOAuthCallback
	case path == "/dashboard" || strings.HasPrefix(path, "/dashboard/"):
		return PageDashboard
	default:
		return PagePublic
	}
}

// isOAuthCallbackPath matches /third-party/{provider}/callback.
func isOAuthCallbackPath(path string) bool {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	return len(parts) == 3 && parts[0] == "third-party" && parts[2] == "callback"
}

// SignInPath returns the role-appropriate sign-in page.
func SignInPath(role platform.Role) string {
	if role == platform.RoleVendor {
		return "/vendor/auth"
	}
	return "/auth"
}
