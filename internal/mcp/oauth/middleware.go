package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"calbridge/internal/instrumentation"
)

// contextKey is the type for context keys
type contextKey string

const (
	// userContextKey is the key for storing the user info in the request context
	userContextKey contextKey = "oauth_user"

	// tokenContextKey is the key for storing the Google token in the request context
	tokenContextKey contextKey = "google_token"
)

// ValidateGoogleToken is middleware that validates Google OAuth Bearer tokens.
// The token is validated against Google's userinfo endpoint; on success the
// user identity and token are placed in the request context and the token is
// saved to the shared store keyed by the user's email, so any server instance
// can serve this user's later calls.
func (h *Handler) ValidateGoogleToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			// Return 401 with WWW-Authenticate header pointing to resource metadata
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(
				`Bearer realm="%s", resource_metadata="/.well-known/oauth-protected-resource"`,
				h.config.Resource,
			))
			h.recordValidation(r.Context(), instrumentation.OAuthResultFailure)
			h.writeUnauthorizedError(w, "missing_token", "Missing Authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(
				`Bearer realm="%s", resource_metadata="/.well-known/oauth-protected-resource", error="invalid_token", error_description="Invalid Authorization header format"`,
				h.config.Resource,
			))
			h.recordValidation(r.Context(), instrumentation.OAuthResultFailure)
			h.writeUnauthorizedError(w, "invalid_token", "Invalid Authorization header format")
			return
		}

		// The userinfo endpoint below confirms validity but not lifetime, so
		// the token gets the configured TTL; without an expiry the store would
		// keep it forever.
		token := &oauth2.Token{
			AccessToken: parts[1],
			TokenType:   "Bearer",
			Expiry:      time.Now().Add(h.config.TokenTTL),
		}

		// Validate the token by calling Google's userinfo endpoint
		userInfo, err := h.getUserInfoFromGoogle(r.Context(), token)
		if err != nil {
			errorDesc := getActionableErrorMessage(err)

			w.Header().Set("WWW-Authenticate", fmt.Sprintf(
				`Bearer realm="%s", resource_metadata="/.well-known/oauth-protected-resource", error="invalid_token", error_description="%s"`,
				h.config.Resource,
				errorDesc,
			))
			h.recordValidation(r.Context(), instrumentation.OAuthResultFailure)
			h.writeUnauthorizedError(w, "invalid_token", errorDesc)
			return
		}

		h.recordValidation(r.Context(), instrumentation.OAuthResultSuccess)

		// Store user info and token in context
		ctx := context.WithValue(r.Context(), userContextKey, userInfo)
		ctx = context.WithValue(ctx, tokenContextKey, token)

		// Save the token keyed by email so the calendar client can use it
		// to access Google APIs on this user's behalf
		if err := h.store.SaveToken(ctx, userInfo.Email, token); err != nil {
			// Log but don't fail - the context still carries the token
			h.logger.Warn("failed to save token",
				"account_hash", hashAccount(userInfo.Email),
				"error", err)
			h.recordStoreOperation(ctx, instrumentation.StoreOpSave, instrumentation.StatusError)
		} else {
			h.recordStoreOperation(ctx, instrumentation.StoreOpSave, instrumentation.StatusSuccess)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ValidateGoogleTokenFunc is a function-based variant of ValidateGoogleToken.
func (h *Handler) ValidateGoogleTokenFunc(next http.HandlerFunc) http.HandlerFunc {
	return h.ValidateGoogleToken(next).ServeHTTP
}

// getUserInfoFromGoogle validates a token by calling Google's userinfo endpoint.
func (h *Handler) getUserInfoFromGoogle(ctx context.Context, token *oauth2.Token) (*GoogleUserInfo, error) {
	// The configured HTTP client carries timeouts; layer the token source on it
	ctx = context.WithValue(ctx, oauth2.HTTPClient, h.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get(h.config.UserInfoEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed with status %d", resp.StatusCode)
	}

	var userInfo GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	if userInfo.Email == "" {
		return nil, fmt.Errorf("userinfo response carries no email; token may lack the userinfo.email scope")
	}

	return &userInfo, nil
}

// recordValidation records a token validation attempt when metrics are attached.
func (h *Handler) recordValidation(ctx context.Context, result string) {
	if h.metrics != nil {
		h.metrics.RecordTokenValidation(ctx, result)
	}
}

// GetUserFromContext retrieves the Google user info from the request context.
func GetUserFromContext(ctx context.Context) (*GoogleUserInfo, bool) {
	userInfo, ok := ctx.Value(userContextKey).(*GoogleUserInfo)
	return userInfo, ok
}

// GetGoogleTokenFromContext retrieves the Google token from the request context.
func GetGoogleTokenFromContext(ctx context.Context) (*oauth2.Token, bool) {
	token, ok := ctx.Value(tokenContextKey).(*oauth2.Token)
	return token, ok
}

// ContextWithUser returns a context carrying the given user info and token.
// Used by tests and the stdio transport, which has no HTTP middleware.
func ContextWithUser(ctx context.Context, userInfo *GoogleUserInfo, token *oauth2.Token) context.Context {
	ctx = context.WithValue(ctx, userContextKey, userInfo)
	if token != nil {
		ctx = context.WithValue(ctx, tokenContextKey, token)
	}
	return ctx
}

// writeUnauthorizedError writes an OAuth error response with 401 status.
func (h *Handler) writeUnauthorizedError(w http.ResponseWriter, errorCode, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}

// getActionableErrorMessage converts technical errors into user-friendly, actionable messages.
func getActionableErrorMessage(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "401") || strings.Contains(errStr, "Unauthorized") {
		return "Google token is invalid or expired. Please re-authenticate through your MCP client to continue."
	}

	if strings.Contains(errStr, "403") || strings.Contains(errStr, "Forbidden") {
		return "Access denied by Google. Please ensure your token has the required scopes and re-authenticate through your MCP client."
	}

	if strings.Contains(errStr, "network") || strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "timeout") || strings.Contains(errStr, "dial") {
		return "Unable to verify token with Google due to network issues. Please try again in a moment."
	}

	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return "Google API rate limit exceeded. Please wait a moment and try again."
	}

	if strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504") {
		return "Google authentication service is temporarily unavailable. Please try again in a few minutes."
	}

	return fmt.Sprintf("Token validation failed: %v. Please re-authenticate through your MCP client.", err)
}
