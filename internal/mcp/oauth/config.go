package oauth

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds the OAuth resource-server configuration.
type Config struct {
	// Resource is the MCP server resource identifier (RFC 8707).
	// This should be the public base URL of the MCP server.
	Resource string

	// SupportedScopes are the Google API scopes this resource understands.
	// Defaults to the calendar events scope plus the OpenID Connect scopes.
	SupportedScopes []string

	// Storage selects and configures the token store backend.
	Storage StorageConfig

	// CleanupInterval is how often the memory store cleans up expired tokens.
	// Default: 1 minute.
	CleanupInterval time.Duration

	// TokenTTL is the lifetime assigned to validated Bearer tokens before they
	// are stored; it bounds how long a store entry outlives the validation that
	// produced it. Default: 1 hour.
	TokenTTL time.Duration

	// UserInfoEndpoint is the endpoint used to validate Bearer tokens.
	// Default: Google's userinfo endpoint. Overridable for tests.
	UserInfoEndpoint string

	// RevokeEndpoint is the endpoint used to revoke tokens.
	// Default: Google's revocation endpoint. Overridable for tests.
	RevokeEndpoint string

	// Logger for structured logging (optional, uses default if not provided).
	Logger *slog.Logger

	// HTTPClient is a custom HTTP client for calls to Google.
	// If not provided, a client with a 30s timeout is used.
	HTTPClient *http.Client
}

// StorageType identifies a token store backend.
type StorageType string

const (
	// StorageMemory keeps tokens in process memory (single instance only).
	StorageMemory StorageType = "memory"

	// StorageValkey keeps tokens in a shared Valkey/Redis-protocol store,
	// allowing multiple server instances to share authenticated sessions.
	StorageValkey StorageType = "valkey"
)

// StorageConfig holds token store configuration.
type StorageConfig struct {
	// Type selects the backend. Default: memory.
	Type StorageType

	// Valkey configures the valkey backend; required when Type is StorageValkey.
	Valkey ValkeyConfig

	// EncryptionKey is the AES-256 key for encrypting tokens at rest (32 bytes).
	// If nil or empty, tokens are stored unencrypted.
	// Use oauth.GenerateEncryptionKey() to create a new key and
	// oauth.EncryptionKeyFromBase64() to load one from an env var.
	EncryptionKey []byte
}

// ValkeyConfig holds connection settings for the Valkey token store.
type ValkeyConfig struct {
	// URL is the host:port of the Valkey server (e.g. "localhost:6379").
	URL string

	// Password authenticates to the server; empty means no auth.
	Password string

	// DB is the logical database to select.
	DB int

	// KeyPrefix namespaces all keys written by this application.
	// Default: "calbridge:".
	KeyPrefix string

	// TLSEnabled turns on TLS for the connection.
	TLSEnabled bool

	// TLSCAFile is an optional CA bundle for verifying the server certificate.
	TLSCAFile string
}
