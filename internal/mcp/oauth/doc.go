// Package oauth implements the OAuth 2.0 resource-server side of the
// calbridge MCP server.
//
// The server never issues tokens. Google is the authorization server;
// MCP clients run Google's OAuth flow themselves and present the resulting
// access token as a Bearer credential. This package:
//
//   - validates Bearer tokens against Google's userinfo endpoint and puts
//     the user identity into the request context (ValidateGoogleToken)
//   - publishes OAuth 2.0 Protected Resource Metadata (RFC 9728) so clients
//     can discover Google as the authorization server
//   - persists validated tokens in a TokenStore keyed by user email, so any
//     server instance can serve any authenticated user
//   - forwards revocation requests to Google and clears local state
//
// # Token stores
//
// Two TokenStore backends exist: MemoryStore for single-instance and stdio
// deployments, and ValkeyStore for multi-instance deployments sharing a
// Valkey (Redis-protocol) server. ValkeyStore optionally encrypts tokens at
// rest with AES-256-GCM (TokenEncryption).
//
// # Request flow
//
//	client request
//	  └─ ValidateGoogleToken: Bearer token → userinfo → context + store
//	       └─ MCP handler → TokenProvider.GetTokenForAccount → calendar API
package oauth
