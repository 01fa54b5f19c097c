package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// TokenStore persists validated Google OAuth tokens keyed by account (the
// user's email address). Implementations must be safe for concurrent use;
// with multiple server instances behind a load balancer, a shared backend
// (Valkey) lets any instance serve any authenticated user.
type TokenStore interface {
	// SaveToken stores the token for an account, replacing any existing one.
	SaveToken(ctx context.Context, account string, token *oauth2.Token) error

	// GetToken returns the stored token for an account.
	// Returns ErrTokenNotFound when no token exists and ErrTokenExpired
	// when the stored token is past its expiry.
	GetToken(ctx context.Context, account string) (*oauth2.Token, error)

	// DeleteToken removes the token for an account. Deleting a missing
	// token is not an error.
	DeleteToken(ctx context.Context, account string) error

	// HasToken reports whether a usable token exists for an account.
	HasToken(ctx context.Context, account string) bool

	// Backend returns the backend name ("memory" or "valkey") for metrics.
	Backend() string

	// Close releases backend resources and stops background work.
	Close() error
}

// MemoryStore is an in-memory TokenStore for single-instance deployments
// and the stdio transport. Tokens are lost on restart.
type MemoryStore struct {
	mu              sync.RWMutex
	tokens          map[string]*oauth2.Token
	userInfo        map[string]*GoogleUserInfo
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
	logger          *slog.Logger
}

// NewMemoryStore creates an in-memory token store with the default cleanup interval.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithInterval(DefaultCleanupInterval)
}

// NewMemoryStoreWithInterval creates an in-memory token store with a custom
// cleanup interval. A background goroutine removes expired tokens; Close
// stops it.
func NewMemoryStoreWithInterval(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		tokens:          make(map[string]*oauth2.Token),
		userInfo:        make(map[string]*GoogleUserInfo),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default(),
	}

	go s.cleanupExpiredTokens()

	return s
}

// SetLogger sets a custom logger for the store.
func (s *MemoryStore) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SaveToken stores a Google OAuth token for an account.
func (s *MemoryStore) SaveToken(_ context.Context, account string, token *oauth2.Token) error {
	if account == "" {
		return fmt.Errorf("account cannot be empty")
	}
	if token == nil {
		return fmt.Errorf("token cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[account] = token
	s.logger.Debug("saved token", "account_hash", hashAccount(account), "expiry", token.Expiry)
	return nil
}

// GetToken retrieves the Google OAuth token for an account.
func (s *MemoryStore) GetToken(_ context.Context, account string) (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[account]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", account, ErrTokenNotFound)
	}

	if !token.Expiry.IsZero() && token.Expiry.Before(time.Now()) {
		return nil, fmt.Errorf("account %s: %w", account, ErrTokenExpired)
	}

	return token, nil
}

// DeleteToken removes the token and any cached user info for an account.
func (s *MemoryStore) DeleteToken(_ context.Context, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, account)
	delete(s.userInfo, account)

	s.logger.Info("deleted token", "account_hash", hashAccount(account))
	return nil
}

// HasToken reports whether a non-expired token exists for an account.
func (s *MemoryStore) HasToken(ctx context.Context, account string) bool {
	_, err := s.GetToken(ctx, account)
	return err == nil
}

// Backend returns "memory".
func (s *MemoryStore) Backend() string {
	return BackendMemory
}

// Close stops the background cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCleanup)
	})
	return nil
}

// SaveUserInfo caches Google user info for an account.
func (s *MemoryStore) SaveUserInfo(account string, userInfo *GoogleUserInfo) error {
	if account == "" {
		return fmt.Errorf("account cannot be empty")
	}
	if userInfo == nil {
		return fmt.Errorf("userInfo cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.userInfo[account] = userInfo
	return nil
}

// GetUserInfo retrieves cached Google user info for an account.
func (s *MemoryStore) GetUserInfo(account string) (*GoogleUserInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userInfo, ok := s.userInfo[account]
	if !ok {
		return nil, fmt.Errorf("user info not found for account: %s", account)
	}

	return userInfo, nil
}

// Stats returns entry counts, used by the detailed health endpoint.
func (s *MemoryStore) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]int{
		"tokens":    len(s.tokens),
		"user_info": len(s.userInfo),
	}
}

// cleanupExpiredTokens periodically removes expired tokens.
// Expiration is collected under the read lock and re-validated under the
// write lock, so a token refreshed in between is not dropped.
func (s *MemoryStore) cleanupExpiredTokens() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
		}

		s.mu.RLock()
		var expired []string
		now := time.Now()
		for account, token := range s.tokens {
			if !token.Expiry.IsZero() && token.Expiry.Before(now) {
				expired = append(expired, account)
			}
		}
		s.mu.RUnlock()

		if len(expired) == 0 {
			continue
		}

		s.mu.Lock()
		now = time.Now()
		for _, account := range expired {
			if token, ok := s.tokens[account]; ok {
				if !token.Expiry.IsZero() && token.Expiry.Before(now) {
					delete(s.tokens, account)
					delete(s.userInfo, account)
					s.logger.Debug("cleaned up expired token", "account_hash", hashAccount(account))
				}
			}
		}
		s.mu.Unlock()
	}
}
