package google

// DefaultOAuthScopes are the Google OAuth scopes the server expects tokens
// to carry.
//
// The scopes provide access to:
//   - OpenID Connect user info (token validation and account identity)
//   - Google Calendar events (list and create)
var DefaultOAuthScopes = []string{
	// OpenID Connect scopes (required for user info)
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",

	// Google Calendar events scope
	"https://www.googleapis.com/auth/calendar.events",
}
