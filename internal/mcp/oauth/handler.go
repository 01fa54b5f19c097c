package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"calbridge/internal/google"
	"calbridge/internal/instrumentation"
)

// Handler implements the OAuth 2.0 resource-server side of the MCP server.
// It validates Google-issued Bearer tokens, publishes protected resource
// metadata (RFC 9728), and manages the shared token store. Issuing tokens is
// entirely Google's job; this server never implements an authorization flow.
type Handler struct {
	config     *Config
	store      TokenStore
	httpClient *http.Client
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
}

// NewHandler creates a new OAuth resource-server handler on top of the given
// token store.
func NewHandler(config *Config, store TokenStore) (*Handler, error) {
	if config.Resource == "" {
		return nil, fmt.Errorf("resource is required")
	}
	if store == nil {
		return nil, fmt.Errorf("token store is required")
	}

	// Validate the resource URL and enforce HTTPS outside of local development
	parsedURL, err := url.Parse(config.Resource)
	if err != nil {
		return nil, fmt.Errorf("invalid resource URL: %w", err)
	}

	if parsedURL.Scheme != "https" {
		hostname := parsedURL.Hostname()
		if hostname != "localhost" &&
			hostname != "127.0.0.1" &&
			hostname != "::1" &&
			hostname != "[::1]" {
			return nil, fmt.Errorf("resource must use HTTPS in production (got %s://)", parsedURL.Scheme)
		}
	}

	if len(config.SupportedScopes) == 0 {
		config.SupportedScopes = google.DefaultOAuthScopes
	}
	if config.UserInfoEndpoint == "" {
		config.UserInfoEndpoint = GoogleUserInfoEndpoint
	}
	if config.RevokeEndpoint == "" {
		config.RevokeEndpoint = GoogleRevokeEndpoint
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = DefaultTokenTTL
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: DefaultHTTPTimeout,
		}
	}

	return &Handler{
		config:     config,
		store:      store,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// SetMetrics attaches a metrics recorder; nil disables metric recording.
func (h *Handler) SetMetrics(metrics *instrumentation.Metrics) {
	h.metrics = metrics
}

// Store returns the underlying token store.
func (h *Handler) Store() TokenStore {
	return h.store
}

// Config returns the OAuth configuration.
func (h *Handler) Config() *Config {
	return h.config
}

// ServeProtectedResourceMetadata serves OAuth 2.0 Protected Resource Metadata
// (RFC 9728).
//
// An MCP client discovering this server will:
//  1. Make an unauthenticated request to the MCP endpoint
//  2. Receive a 401 with a WWW-Authenticate header pointing here
//  3. Fetch this metadata to learn that Google is the authorization server
//  4. Run Google's OAuth flow itself to obtain an access token
//  5. Include the token as a Bearer credential in subsequent requests
func (h *Handler) ServeProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	metadata := ProtectedResourceMetadata{
		Resource: h.config.Resource,
		AuthorizationServers: []string{
			GoogleAccountsIssuer,
		},
		BearerMethodsSupported: []string{
			"header", // Authorization: Bearer <token>
		},
		ScopesSupported: h.config.SupportedScopes,
	}

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(metadata); err != nil {
		h.logger.Error("failed to encode metadata", "error", err)
		http.Error(w, "Failed to encode metadata", http.StatusInternalServerError)
	}
}

// setSecurityHeaders sets security headers on HTTP responses.
func (h *Handler) setSecurityHeaders(w http.ResponseWriter) {
	// Prevent clickjacking attacks
	w.Header().Set("X-Frame-Options", "DENY")

	// Prevent MIME type sniffing
	w.Header().Set("X-Content-Type-Options", "nosniff")

	// Content Security Policy - restrict resource loading
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

	// Referrer policy - don't leak referrer information
	w.Header().Set("Referrer-Policy", "no-referrer")

	// Token material may transit these endpoints; never cache
	w.Header().Set("Cache-Control", "no-store")

	// For HTTPS resources, enforce HTTPS for 1 year
	if h.config.Resource != "" {
		parsedURL, err := url.Parse(h.config.Resource)
		if err == nil && parsedURL.Scheme == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
	}
}

// writeError is a helper to write OAuth error responses.
func (h *Handler) writeError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	h.logger.Debug("oauth error", "code", errorCode, "description", description, "status", statusCode)
	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}

// RevokeToken revokes a Google OAuth token for a specific account.
// The token is revoked at Google and removed from the store, forcing
// re-authentication.
func (h *Handler) RevokeToken(ctx context.Context, account string) error {
	h.logger.Info("revoking token", "account_hash", hashAccount(account))

	// Get the Google token first so we can revoke it at Google
	token, err := h.store.GetToken(ctx, account)
	if err == nil && token != nil && token.AccessToken != "" {
		h.revokeAtGoogle(account, token.AccessToken)
	}

	return h.deleteStoredToken(ctx, account)
}

// revokeAtGoogle posts the token to the revocation endpoint. Failures are
// logged, not returned; local deletion proceeds regardless.
func (h *Handler) revokeAtGoogle(account, accessToken string) {
	data := url.Values{}
	data.Set("token", accessToken)

	resp, err := h.httpClient.PostForm(h.config.RevokeEndpoint, data)
	if err != nil {
		h.logger.Warn("failed to revoke token at Google",
			"account_hash", hashAccount(account),
			"error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		h.logger.Warn("token revocation returned non-OK status",
			"account_hash", hashAccount(account),
			"status", resp.StatusCode)
	}
}

// deleteStoredToken removes an account's token from the store, recording the
// store operation when metrics are attached.
func (h *Handler) deleteStoredToken(ctx context.Context, account string) error {
	err := h.store.DeleteToken(ctx, account)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	h.recordStoreOperation(ctx, instrumentation.StoreOpDelete, status)
	return err
}

// recordStoreOperation records a token store operation when metrics are attached.
func (h *Handler) recordStoreOperation(ctx context.Context, operation, status string) {
	if h.metrics != nil {
		h.metrics.RecordTokenStoreOperation(ctx, h.store.Backend(), operation, status)
	}
}

// ServeRevoke handles token revocation requests in the style of RFC 7009:
// POST /oauth/revoke with the caller's own Bearer token in the Authorization
// header. The presented token identifies the account, so a caller can only
// ever revoke their own session. The token is revoked at Google and the
// caller's store entry is removed.
func (h *Handler) ServeRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		w.Header().Set("WWW-Authenticate", fmt.Sprintf(
			`Bearer realm="%s", resource_metadata="/.well-known/oauth-protected-resource"`,
			h.config.Resource,
		))
		h.writeError(w, "invalid_token", "Revocation requires the Bearer token being revoked", http.StatusUnauthorized)
		return
	}

	token := &oauth2.Token{AccessToken: parts[1], TokenType: "Bearer"}
	userInfo, err := h.getUserInfoFromGoogle(r.Context(), token)
	if err != nil {
		w.Header().Set("WWW-Authenticate", fmt.Sprintf(
			`Bearer realm="%s", resource_metadata="/.well-known/oauth-protected-resource", error="invalid_token"`,
			h.config.Resource,
		))
		h.writeError(w, "invalid_token", getActionableErrorMessage(err), http.StatusUnauthorized)
		return
	}

	h.logger.Info("revoking token", "account_hash", hashAccount(userInfo.Email))
	h.revokeAtGoogle(userInfo.Email, token.AccessToken)

	if err := h.deleteStoredToken(r.Context(), userInfo.Email); err != nil {
		h.writeError(w, "server_error", fmt.Sprintf("Failed to revoke token: %v", err), http.StatusInternalServerError)
		return
	}

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "success",
		"message": "Token revoked",
	})
}
