package oauth

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/valkey-io/valkey-go"
	"golang.org/x/oauth2"
)

// ValkeyStore is a TokenStore backed by a Valkey (Redis-protocol) server.
// It is the backend to use when several server instances sit behind a load
// balancer: a user who authenticated against one instance can be served by
// any other, because all of them read the same keys.
//
// Tokens are stored as JSON-marshaled oauth2.Token values under
// "<prefix>token:<account>", optionally encrypted at rest with AES-256-GCM.
// Keys expire a grace period after the access token itself does, so stale
// entries vanish without any cleanup loop.
type ValkeyStore struct {
	client     valkey.Client
	keyPrefix  string
	encryption *TokenEncryption
	logger     *slog.Logger
}

// NewValkeyStore connects to the configured Valkey server and returns a
// ready-to-use store. The connection is verified before returning.
func NewValkeyStore(ctx context.Context, cfg ValkeyConfig, encryptionKey []byte, logger *slog.Logger) (*ValkeyStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("valkey URL is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = DefaultValkeyKeyPrefix
	}

	encryption, err := NewTokenEncryption(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token encryption: %w", err)
	}

	option := valkey.ClientOption{
		InitAddress: []string{cfg.URL},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	}

	if cfg.TLSEnabled {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if cfg.TLSCAFile != "" {
			caCert, err := os.ReadFile(cfg.TLSCAFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read TLS CA file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caCert) {
				return nil, fmt.Errorf("no certificates found in TLS CA file %s", cfg.TLSCAFile)
			}
			tlsConfig.RootCAs = pool
		}
		option.TLSConfig = tlsConfig
	}

	client, err := valkey.NewClient(option)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	// Verify connectivity before handing the store out
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping valkey at %s: %w", cfg.URL, err)
	}

	logger.Info("connected to valkey token store",
		"url", cfg.URL,
		"db", cfg.DB,
		"key_prefix", keyPrefix,
		"tls", cfg.TLSEnabled,
		"encryption", encryption.Enabled())

	return &ValkeyStore{
		client:     client,
		keyPrefix:  keyPrefix,
		encryption: encryption,
		logger:     logger,
	}, nil
}

// tokenKey builds the storage key for an account.
func (s *ValkeyStore) tokenKey(account string) string {
	return s.keyPrefix + "token:" + account
}

// SaveToken stores a token under the account key with a TTL derived from the
// token expiry.
func (s *ValkeyStore) SaveToken(ctx context.Context, account string, token *oauth2.Token) error {
	if account == "" {
		return fmt.Errorf("account cannot be empty")
	}
	if token == nil {
		return fmt.Errorf("token cannot be nil")
	}

	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	value, err := s.encryption.Encrypt(string(payload))
	if err != nil {
		return fmt.Errorf("failed to encrypt token: %w", err)
	}

	key := s.tokenKey(account)
	cmd := s.client.B().Set().Key(key).Value(value)

	var built valkey.Completed
	if ttl := tokenTTL(token); ttl > 0 {
		built = cmd.Ex(ttl).Build()
	} else {
		built = cmd.Build()
	}

	if err := s.client.Do(ctx, built).Error(); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	s.logger.Debug("saved token",
		"account_hash", hashAccount(account),
		"expiry", token.Expiry)
	return nil
}

// GetToken retrieves and decodes the token for an account.
func (s *ValkeyStore) GetToken(ctx context.Context, account string) (*oauth2.Token, error) {
	value, err := s.client.Do(ctx, s.client.B().Get().Key(s.tokenKey(account)).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, fmt.Errorf("account %s: %w", account, ErrTokenNotFound)
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	payload, err := s.encryption.Decrypt(value)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(payload), &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	if !token.Expiry.IsZero() && token.Expiry.Before(time.Now()) {
		return nil, fmt.Errorf("account %s: %w", account, ErrTokenExpired)
	}

	return &token, nil
}

// DeleteToken removes the token for an account.
func (s *ValkeyStore) DeleteToken(ctx context.Context, account string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.tokenKey(account)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	s.logger.Info("deleted token", "account_hash", hashAccount(account))
	return nil
}

// HasToken reports whether a non-expired token exists for an account.
func (s *ValkeyStore) HasToken(ctx context.Context, account string) bool {
	_, err := s.GetToken(ctx, account)
	return err == nil
}

// Backend returns "valkey".
func (s *ValkeyStore) Backend() string {
	return BackendValkey
}

// Close closes the underlying valkey client.
func (s *ValkeyStore) Close() error {
	s.client.Close()
	return nil
}

// tokenTTL returns how long a stored token should live. Zero means no TTL
// (token without a known expiry, e.g. one carrying a refresh token).
func tokenTTL(token *oauth2.Token) time.Duration {
	if token.Expiry.IsZero() {
		return 0
	}
	ttl := time.Until(token.Expiry) + TokenTTLGrace
	if ttl <= 0 {
		// Already expired; keep it around briefly so lookups report
		// expiry instead of absence.
		return time.Minute
	}
	return ttl
}
