package oauth

import "time"

const (
	// DefaultCleanupInterval is how often the memory store drops expired tokens.
	DefaultCleanupInterval = 1 * time.Minute

	// DefaultHTTPTimeout bounds calls to Google's userinfo and revocation endpoints.
	DefaultHTTPTimeout = 30 * time.Second

	// TokenTTLGrace extends the storage TTL past the access token expiry so a
	// client presenting a freshly refreshed token still finds its old record.
	TokenTTLGrace = 5 * time.Minute

	// DefaultTokenTTL is assigned to validated Bearer tokens. The userinfo
	// endpoint confirms a token is currently valid but does not report when it
	// expires, so stored tokens get this lifetime and are re-validated on the
	// next request after it passes. Google access tokens live about an hour.
	DefaultTokenTTL = 1 * time.Hour

	// DefaultValkeyKeyPrefix namespaces token keys in a shared Valkey instance.
	DefaultValkeyKeyPrefix = "calbridge:"
)

// Token store backend names, used as metric labels.
const (
	BackendMemory = "memory"
	BackendValkey = "valkey"
)

// Google endpoints. Overridable in Config for tests.
const (
	// GoogleAccountsIssuer is the authorization server advertised in the
	// protected resource metadata. Clients run Google's OAuth flow directly.
	GoogleAccountsIssuer = "https://accounts.google.com"

	// GoogleUserInfoEndpoint validates access tokens and yields the user identity.
	GoogleUserInfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

	// GoogleRevokeEndpoint revokes access and refresh tokens.
	GoogleRevokeEndpoint = "https://oauth2.googleapis.com/revoke"
)
