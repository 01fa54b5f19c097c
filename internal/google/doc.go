// Package google provides OAuth2 configuration and token management for
// Google APIs.
//
// Client credentials come from GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET.
// Tokens come from either the OAuth store (HTTP transports, where the
// middleware validated a Bearer token) or per-account cache files (stdio
// transport). The TokenProvider interface lets the calendar client stay
// agnostic about which source is in play.
package google
