package chat

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"calbridge/internal/google"
)

func newTestProfileStore(t *testing.T) *ProfileStore {
	t.Helper()
	store, err := NewProfileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestProfileStore_SaveLoadToken(t *testing.T) {
	store := newTestProfileStore(t)

	token := &oauth2.Token{
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		Expiry:       time.Now().Add(time.Hour).Round(time.Second),
	}
	require.NoError(t, store.SaveToken("work", token))

	loaded, err := store.LoadToken("work")
	require.NoError(t, err)
	assert.Equal(t, token.AccessToken, loaded.AccessToken)
	assert.Equal(t, token.RefreshToken, loaded.RefreshToken)
}

func TestProfileStore_LoadMissingToken(t *testing.T) {
	store := newTestProfileStore(t)

	_, err := store.LoadToken("nobody")
	assert.Error(t, err)
}

func TestProfileStore_HasToken(t *testing.T) {
	store := newTestProfileStore(t)

	assert.False(t, store.HasToken("work"))
	require.NoError(t, store.SaveToken("work", &oauth2.Token{AccessToken: "a"}))
	assert.True(t, store.HasToken("work"))
}

func TestProfileStore_ClearToken(t *testing.T) {
	store := newTestProfileStore(t)

	require.NoError(t, store.SaveToken("work", &oauth2.Token{AccessToken: "a"}))
	require.NoError(t, store.ClearToken("work"))
	assert.False(t, store.HasToken("work"))

	// Clearing an already-clear profile must not fail
	assert.NoError(t, store.ClearToken("work"))
}

func TestProfileStore_SaveNilToken(t *testing.T) {
	store := newTestProfileStore(t)

	assert.Error(t, store.SaveToken("work", nil))
}

func TestProfileStore_EmptyProfileUsesDefault(t *testing.T) {
	store := newTestProfileStore(t)

	require.NoError(t, store.SaveToken("", &oauth2.Token{AccessToken: "a"}))
	assert.True(t, store.HasToken(DefaultProfile))

	want := filepath.Join(store.Dir(), DefaultProfile, "token.json")
	assert.Equal(t, want, store.tokenPath(""))
}

func TestProfileStore_TokenSourceNoCredentials(t *testing.T) {
	t.Setenv(google.EnvClientID, "")
	t.Setenv(google.EnvClientSecret, "")
	t.Setenv(google.EnvRefreshToken, "")

	store := newTestProfileStore(t)

	_, err := store.TokenSource(context.Background(), "work")
	assert.Error(t, err)
}

func TestProfileStore_TokenSourceRequiresClientConfig(t *testing.T) {
	t.Setenv(google.EnvClientID, "")
	t.Setenv(google.EnvClientSecret, "")
	t.Setenv(google.EnvRefreshToken, "")

	store := newTestProfileStore(t)
	require.NoError(t, store.SaveToken("work", &oauth2.Token{AccessToken: "a", RefreshToken: "r"}))

	_, err := store.TokenSource(context.Background(), "work")
	assert.Error(t, err)
}

func TestPersistingTokenSource_WritesBack(t *testing.T) {
	store := newTestProfileStore(t)

	fresh := &oauth2.Token{AccessToken: "fresh", Expiry: time.Now().Add(time.Hour)}
	src := &persistingTokenSource{
		store:   store,
		profile: "work",
		src:     oauth2.StaticTokenSource(fresh),
		last:    &oauth2.Token{AccessToken: "stale"},
	}

	token, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh", token.AccessToken)

	saved, err := store.LoadToken("work")
	require.NoError(t, err)
	assert.Equal(t, "fresh", saved.AccessToken)
}

func TestPersistingTokenSource_NoWriteWhenUnchanged(t *testing.T) {
	store := newTestProfileStore(t)

	same := &oauth2.Token{AccessToken: "same"}
	src := &persistingTokenSource{
		store:   store,
		profile: "work",
		src:     oauth2.StaticTokenSource(same),
		last:    same,
	}

	_, err := src.Token()
	require.NoError(t, err)
	assert.False(t, store.HasToken("work"), "unchanged token was written back")
}
