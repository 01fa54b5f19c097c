package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"

	"calbridge/internal/google"
)

// DefaultProfile is the profile used when the user names none.
const DefaultProfile = "default"

// ProfileStore persists per-profile Google credentials under a storage
// directory (default ~/.calbridge). Profiles let one machine hold tokens for
// several Google accounts.
type ProfileStore struct {
	dir string
}

// NewProfileStore creates a profile store rooted at dir. An empty dir means
// ~/.calbridge.
func NewProfileStore(dir string) (*ProfileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir = filepath.Join(home, ".calbridge")
	}
	return &ProfileStore{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *ProfileStore) Dir() string {
	return s.dir
}

func (s *ProfileStore) tokenPath(profile string) string {
	if profile == "" {
		profile = DefaultProfile
	}
	return filepath.Join(s.dir, profile, "token.json")
}

// LoadToken reads the stored token for a profile.
func (s *ProfileStore) LoadToken(profile string) (*oauth2.Token, error) {
	data, err := os.ReadFile(s.tokenPath(profile))
	if err != nil {
		return nil, fmt.Errorf("no stored token for profile %s", profile)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("invalid token file for profile %s: %w", profile, err)
	}
	return &token, nil
}

// SaveToken writes the token for a profile.
func (s *ProfileStore) SaveToken(profile string, token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("token cannot be nil")
	}

	path := s.tokenPath(profile)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// ClearToken removes the stored token for a profile. Clearing a profile
// without a token is not an error.
func (s *ProfileStore) ClearToken(profile string) error {
	err := os.Remove(s.tokenPath(profile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// HasToken reports whether a token is stored for a profile.
func (s *ProfileStore) HasToken(profile string) bool {
	_, err := os.Stat(s.tokenPath(profile))
	return err == nil
}

// TokenSource builds a refreshing token source for a profile. Stored tokens
// are preferred; without one, GOOGLE_REFRESH_TOKEN covers headless use.
// Refreshed tokens are written back so the next run starts from the newest
// credential.
func (s *ProfileStore) TokenSource(ctx context.Context, profile string) (oauth2.TokenSource, error) {
	token, err := s.LoadToken(profile)
	if err != nil {
		// Headless fallback
		ts, envErr := google.TokenSourceFromEnv(ctx)
		if envErr != nil {
			return nil, fmt.Errorf("no credentials for profile %s: %w (and %v)", profile, err, envErr)
		}
		return &persistingTokenSource{store: s, profile: profile, src: ts}, nil
	}

	conf, err := google.OAuthConfigFromEnv()
	if err != nil {
		return nil, err
	}

	return &persistingTokenSource{
		store:   s,
		profile: profile,
		src:     conf.TokenSource(ctx, token),
		last:    token,
	}, nil
}

// persistingTokenSource writes refreshed tokens back to the profile store,
// so a refresh in one run benefits the next.
type persistingTokenSource struct {
	store   *ProfileStore
	profile string
	src     oauth2.TokenSource

	mu   sync.Mutex
	last *oauth2.Token
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := p.src.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.last == nil || token.AccessToken != p.last.AccessToken {
		if saveErr := p.store.SaveToken(p.profile, token); saveErr == nil {
			p.last = token
		}
	}
	return token, nil
}
