package oauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestMemoryStore_SaveAndGetToken(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	token := &oauth2.Token{
		AccessToken:  "access_token_123",
		RefreshToken: "refresh_token_456",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}

	if err := store.SaveToken(ctx, "user@example.com", token); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}

	got, err := store.GetToken(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}

	if got.AccessToken != token.AccessToken {
		t.Errorf("GetToken() AccessToken = %q, want %q", got.AccessToken, token.AccessToken)
	}
	if got.RefreshToken != token.RefreshToken {
		t.Errorf("GetToken() RefreshToken = %q, want %q", got.RefreshToken, token.RefreshToken)
	}
}

func TestMemoryStore_SaveToken_Validation(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	if err := store.SaveToken(ctx, "", &oauth2.Token{AccessToken: "x"}); err == nil {
		t.Error("SaveToken() with empty account should return error")
	}

	if err := store.SaveToken(ctx, "user@example.com", nil); err == nil {
		t.Error("SaveToken() with nil token should return error")
	}
}

func TestMemoryStore_GetToken_NotFound(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	_, err := store.GetToken(context.Background(), "missing@example.com")
	if err == nil {
		t.Fatal("GetToken() for missing account should return error")
	}
	if !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("GetToken() error = %v, want ErrTokenNotFound", err)
	}
}

func TestMemoryStore_GetToken_Expired(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	expired := &oauth2.Token{
		AccessToken: "stale_token",
		Expiry:      time.Now().Add(-time.Hour),
	}
	if err := store.SaveToken(ctx, "user@example.com", expired); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}

	_, err := store.GetToken(ctx, "user@example.com")
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("GetToken() error = %v, want ErrTokenExpired", err)
	}
}

func TestMemoryStore_GetToken_ZeroExpiry(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	// Tokens without expiry (e.g. long-lived service tokens) never expire
	token := &oauth2.Token{AccessToken: "no_expiry_token"}
	if err := store.SaveToken(ctx, "user@example.com", token); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}

	if _, err := store.GetToken(ctx, "user@example.com"); err != nil {
		t.Errorf("GetToken() for zero-expiry token error = %v", err)
	}
}

func TestMemoryStore_DeleteToken(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	token := &oauth2.Token{
		AccessToken: "access_token",
		Expiry:      time.Now().Add(time.Hour),
	}
	if err := store.SaveToken(ctx, "user@example.com", token); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}

	if err := store.DeleteToken(ctx, "user@example.com"); err != nil {
		t.Fatalf("DeleteToken() error = %v", err)
	}

	if _, err := store.GetToken(ctx, "user@example.com"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("GetToken() after delete error = %v, want ErrTokenNotFound", err)
	}

	// Deleting a missing token is not an error
	if err := store.DeleteToken(ctx, "never-existed@example.com"); err != nil {
		t.Errorf("DeleteToken() for missing account error = %v", err)
	}
}

func TestMemoryStore_HasToken(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	if store.HasToken(ctx, "user@example.com") {
		t.Error("HasToken() = true for missing account")
	}

	token := &oauth2.Token{
		AccessToken: "access_token",
		Expiry:      time.Now().Add(time.Hour),
	}
	if err := store.SaveToken(ctx, "user@example.com", token); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}

	if !store.HasToken(ctx, "user@example.com") {
		t.Error("HasToken() = false after SaveToken()")
	}

	// Expired tokens don't count as usable
	expired := &oauth2.Token{
		AccessToken: "stale",
		Expiry:      time.Now().Add(-time.Minute),
	}
	if err := store.SaveToken(ctx, "expired@example.com", expired); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}
	if store.HasToken(ctx, "expired@example.com") {
		t.Error("HasToken() = true for expired token")
	}
}

func TestMemoryStore_UserInfo(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	userInfo := &GoogleUserInfo{
		Sub:           "google-sub-123",
		Email:         "user@example.com",
		EmailVerified: true,
		Name:          "Test User",
	}

	if err := store.SaveUserInfo("user@example.com", userInfo); err != nil {
		t.Fatalf("SaveUserInfo() error = %v", err)
	}

	got, err := store.GetUserInfo("user@example.com")
	if err != nil {
		t.Fatalf("GetUserInfo() error = %v", err)
	}
	if got.Sub != userInfo.Sub || got.Email != userInfo.Email {
		t.Errorf("GetUserInfo() = %+v, want %+v", got, userInfo)
	}

	if _, err := store.GetUserInfo("missing@example.com"); err == nil {
		t.Error("GetUserInfo() for missing account should return error")
	}
}

func TestMemoryStore_Stats(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	token := &oauth2.Token{AccessToken: "t", Expiry: time.Now().Add(time.Hour)}
	_ = store.SaveToken(ctx, "a@example.com", token)
	_ = store.SaveToken(ctx, "b@example.com", token)
	_ = store.SaveUserInfo("a@example.com", &GoogleUserInfo{Email: "a@example.com"})

	stats := store.Stats()
	if stats["tokens"] != 2 {
		t.Errorf("Stats() tokens = %d, want 2", stats["tokens"])
	}
	if stats["user_info"] != 1 {
		t.Errorf("Stats() user_info = %d, want 1", stats["user_info"])
	}
}

func TestMemoryStore_CleanupExpiredTokens(t *testing.T) {
	store := NewMemoryStoreWithInterval(20 * time.Millisecond)
	defer store.Close()
	ctx := context.Background()

	expired := &oauth2.Token{
		AccessToken: "stale",
		Expiry:      time.Now().Add(-time.Minute),
	}
	live := &oauth2.Token{
		AccessToken: "fresh",
		Expiry:      time.Now().Add(time.Hour),
	}
	_ = store.SaveToken(ctx, "expired@example.com", expired)
	_ = store.SaveToken(ctx, "live@example.com", live)

	// Wait for at least one cleanup cycle
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if store.Stats()["tokens"] == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	stats := store.Stats()
	if stats["tokens"] != 1 {
		t.Errorf("after cleanup tokens = %d, want 1", stats["tokens"])
	}
	if !store.HasToken(ctx, "live@example.com") {
		t.Error("cleanup removed a live token")
	}
}

func TestMemoryStore_Backend(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	if store.Backend() != BackendMemory {
		t.Errorf("Backend() = %q, want %q", store.Backend(), BackendMemory)
	}
}

func TestMemoryStore_CloseIdempotent(t *testing.T) {
	store := NewMemoryStore()

	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// Second Close must not panic on the closed channel
	if err := store.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			token := &oauth2.Token{
				AccessToken: "concurrent_token",
				Expiry:      time.Now().Add(time.Hour),
			}
			for j := 0; j < 50; j++ {
				_ = store.SaveToken(ctx, "user@example.com", token)
				_, _ = store.GetToken(ctx, "user@example.com")
				_ = store.HasToken(ctx, "user@example.com")
			}
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
