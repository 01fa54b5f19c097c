package google

import (
	"context"
	"runtime"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestOAuthConfigFromEnv(t *testing.T) {
	t.Setenv(EnvClientID, "client-id-123")
	t.Setenv(EnvClientSecret, "client-secret-456")

	conf, err := OAuthConfigFromEnv()
	if err != nil {
		t.Fatalf("OAuthConfigFromEnv() error = %v", err)
	}

	if conf.ClientID != "client-id-123" {
		t.Errorf("ClientID = %q, want client-id-123", conf.ClientID)
	}
	if conf.ClientSecret != "client-secret-456" {
		t.Errorf("ClientSecret = %q, want client-secret-456", conf.ClientSecret)
	}
	if len(conf.Scopes) != len(DefaultOAuthScopes) {
		t.Errorf("Scopes = %v, want %v", conf.Scopes, DefaultOAuthScopes)
	}
}

func TestOAuthConfigFromEnv_MissingCredentials(t *testing.T) {
	tests := []struct {
		name         string
		clientID     string
		clientSecret string
	}{
		{"both missing", "", ""},
		{"missing secret", "client-id", ""},
		{"missing id", "", "client-secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvClientID, tt.clientID)
			t.Setenv(EnvClientSecret, tt.clientSecret)

			if _, err := OAuthConfigFromEnv(); err == nil {
				t.Error("OAuthConfigFromEnv() should return error without credentials")
			}
		})
	}
}

func TestTokenSourceFromEnv_MissingRefreshToken(t *testing.T) {
	t.Setenv(EnvClientID, "client-id")
	t.Setenv(EnvClientSecret, "client-secret")
	t.Setenv(EnvRefreshToken, "")

	if _, err := TokenSourceFromEnv(context.Background()); err == nil {
		t.Error("TokenSourceFromEnv() should return error without refresh token")
	}
}

func TestSaveAndLoadTokenForAccount(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("cache dir redirect uses XDG_CACHE_HOME")
	}
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv(EnvClientID, "client-id")
	t.Setenv(EnvClientSecret, "client-secret")

	account := "user@example.com"
	if HasTokenForAccount(account) {
		t.Fatal("HasTokenForAccount() = true before SaveTokenForAccount()")
	}

	token := &oauth2.Token{
		AccessToken:  "access_token",
		RefreshToken: "refresh_token",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).Round(time.Second),
	}
	if err := SaveTokenForAccount(account, token); err != nil {
		t.Fatalf("SaveTokenForAccount() error = %v", err)
	}

	if !HasTokenForAccount(account) {
		t.Error("HasTokenForAccount() = false after SaveTokenForAccount()")
	}

	ts, err := GetTokenSourceForAccount(context.Background(), account)
	if err != nil {
		t.Fatalf("GetTokenSourceForAccount() error = %v", err)
	}

	// The cached token is still valid, so the source returns it without
	// hitting Google's token endpoint
	got, err := ts.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got.AccessToken != token.AccessToken {
		t.Errorf("AccessToken = %q, want %q", got.AccessToken, token.AccessToken)
	}
	if got.RefreshToken != token.RefreshToken {
		t.Errorf("RefreshToken = %q, want %q", got.RefreshToken, token.RefreshToken)
	}
}

func TestSaveTokenForAccount_Validation(t *testing.T) {
	if err := SaveTokenForAccount("", &oauth2.Token{}); err == nil {
		t.Error("SaveTokenForAccount() with empty account should return error")
	}
	if err := SaveTokenForAccount("user@example.com", nil); err == nil {
		t.Error("SaveTokenForAccount() with nil token should return error")
	}
}

func TestGetTokenSourceForAccount_Missing(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("cache dir redirect uses XDG_CACHE_HOME")
	}
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv(EnvClientID, "client-id")
	t.Setenv(EnvClientSecret, "client-secret")

	if _, err := GetTokenSourceForAccount(context.Background(), "nobody@example.com"); err == nil {
		t.Error("GetTokenSourceForAccount() for missing account should return error")
	}
}

func TestFileTokenProvider(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("cache dir redirect uses XDG_CACHE_HOME")
	}
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv(EnvClientID, "client-id")
	t.Setenv(EnvClientSecret, "client-secret")

	provider := NewFileTokenProvider()
	account := "user@example.com"

	if provider.HasTokenForAccount(account) {
		t.Error("HasTokenForAccount() = true before SaveTokenForAccount()")
	}

	token := &oauth2.Token{
		AccessToken: "access_token",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}
	if err := SaveTokenForAccount(account, token); err != nil {
		t.Fatalf("SaveTokenForAccount() error = %v", err)
	}

	got, err := provider.GetTokenForAccount(context.Background(), account)
	if err != nil {
		t.Fatalf("GetTokenForAccount() error = %v", err)
	}
	if got.AccessToken != "access_token" {
		t.Errorf("AccessToken = %q, want access_token", got.AccessToken)
	}
}
