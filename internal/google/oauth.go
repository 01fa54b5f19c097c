package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Environment variables holding the Google OAuth client credentials.
const (
	EnvClientID     = "GOOGLE_CLIENT_ID"
	EnvClientSecret = "GOOGLE_CLIENT_SECRET"
	EnvRefreshToken = "GOOGLE_REFRESH_TOKEN"
)

// OAuthConfigFromEnv builds the OAuth2 configuration from
// GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET. Both are required; the
// server validates tokens against Google and refreshes stored
// refresh tokens with these credentials.
func OAuthConfigFromEnv() (*oauth2.Config, error) {
	clientID := os.Getenv(EnvClientID)
	clientSecret := os.Getenv(EnvClientSecret)

	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%s and %s must be set", EnvClientID, EnvClientSecret)
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       DefaultOAuthScopes,
	}, nil
}

// TokenSourceFromEnv builds a refreshing token source from a
// GOOGLE_REFRESH_TOKEN. Used by headless deployments where no prior token
// file exists and no browser flow is possible.
func TokenSourceFromEnv(ctx context.Context) (oauth2.TokenSource, error) {
	refreshToken := os.Getenv(EnvRefreshToken)
	if refreshToken == "" {
		return nil, fmt.Errorf("%s is not set", EnvRefreshToken)
	}

	conf, err := OAuthConfigFromEnv()
	if err != nil {
		return nil, err
	}

	return conf.TokenSource(ctx, &oauth2.Token{
		TokenType:    "Bearer",
		RefreshToken: refreshToken,
	}), nil
}

// HTTPClientForTokenSource returns an HTTP client that authenticates with
// the token source. The client uses HTTP/1.1; Google's APIs occasionally
// reset HTTP/2 streams mid-response.
func HTTPClientForTokenSource(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	client := oauth2.NewClient(ctx, ts)

	transport := client.Transport.(*oauth2.Transport)
	transport.Base = &http.Transport{
		ForceAttemptHTTP2: false,
	}

	return client
}

// tokenFileForAccount returns the path of the cached token file for an account.
func tokenFileForAccount(account string) string {
	return filepath.Join(userCacheDir(), "calbridge", account+".token.json")
}

// SaveTokenForAccount writes a token to the per-account cache file.
// Used by the stdio transport, which has no OAuth middleware and no
// shared store.
func SaveTokenForAccount(account string, token *oauth2.Token) error {
	if account == "" {
		return fmt.Errorf("account cannot be empty")
	}
	if token == nil {
		return fmt.Errorf("token cannot be nil")
	}

	tokenFile := tokenFileForAccount(account)
	if err := os.MkdirAll(filepath.Dir(tokenFile), 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if err := os.WriteFile(tokenFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// GetTokenSourceForAccount returns a refreshing token source backed by the
// per-account cache file. Refreshed tokens are not written back; the cached
// refresh token stays valid across refreshes.
func GetTokenSourceForAccount(ctx context.Context, account string) (oauth2.TokenSource, error) {
	conf, err := OAuthConfigFromEnv()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(tokenFileForAccount(account))
	if err != nil {
		return nil, fmt.Errorf("no cached Google OAuth token for account %s", account)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("invalid token file for account %s: %w", account, err)
	}

	return conf.TokenSource(ctx, &token), nil
}

// HasTokenForAccount reports whether a cached token file exists for an account.
func HasTokenForAccount(account string) bool {
	_, err := os.Stat(tokenFileForAccount(account))
	return err == nil
}

func userCacheDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches")
	case "windows":
		for _, ev := range []string{"TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return v
			}
		}
		panic("No Windows TEMP or TMP environment variables found")
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}
