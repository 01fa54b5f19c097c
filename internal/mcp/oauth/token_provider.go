package oauth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"calbridge/internal/instrumentation"
)

// TokenProvider implements google.TokenProvider using the OAuth token store.
// This is how the calendar client obtains the credentials of the user behind
// an authenticated MCP request.
type TokenProvider struct {
	store   TokenStore
	metrics *instrumentation.Metrics
}

// NewTokenProvider creates a store-backed token provider.
func NewTokenProvider(store TokenStore) *TokenProvider {
	return &TokenProvider{
		store: store,
	}
}

// SetMetrics attaches a metrics recorder; nil disables metric recording.
func (p *TokenProvider) SetMetrics(metrics *instrumentation.Metrics) {
	p.metrics = metrics
}

// GetTokenForAccount retrieves a Google OAuth token.
// The token of the authenticated caller in the request context (set by the
// OAuth middleware) takes precedence; the account argument is a fallback for
// the stdio transport, where there is no HTTP middleware.
func (p *TokenProvider) GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error) {
	if userInfo, ok := GetUserFromContext(ctx); ok && userInfo != nil && userInfo.Email != "" {
		// The middleware validated this exact token moments ago; it is the
		// freshest credential for the caller
		if token, ok := GetGoogleTokenFromContext(ctx); ok {
			return token, nil
		}
		if token, err := p.getStoredToken(ctx, userInfo.Email); err == nil {
			return token, nil
		}
	}

	token, err := p.getStoredToken(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("no Google OAuth token found for account %s. Please authenticate with Google through your MCP client", account)
	}
	return token, nil
}

// getStoredToken reads from the store, recording the operation when metrics
// are attached.
func (p *TokenProvider) getStoredToken(ctx context.Context, account string) (*oauth2.Token, error) {
	token, err := p.store.GetToken(ctx, account)
	if p.metrics != nil {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
		}
		p.metrics.RecordTokenStoreOperation(ctx, p.store.Backend(), instrumentation.StoreOpGet, status)
	}
	return token, err
}

// HasTokenForAccount checks if a token exists in the store for the account.
// Only used during startup checks, so there is no context-based lookup.
func (p *TokenProvider) HasTokenForAccount(account string) bool {
	return p.store.HasToken(context.Background(), account)
}
