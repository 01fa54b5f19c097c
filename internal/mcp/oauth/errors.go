package oauth

import (
	"errors"

	"calbridge/internal/logging"
)

// Sentinel errors for token store lookups.
var (
	// ErrTokenNotFound indicates no token is stored for the account.
	ErrTokenNotFound = errors.New("token not found")

	// ErrTokenExpired indicates the stored token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// hashAccount anonymizes an account identifier for log output.
func hashAccount(account string) string {
	return logging.AnonymizeEmail(account)
}
