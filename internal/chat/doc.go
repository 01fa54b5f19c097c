// Package chat implements the client side of the calendar bridge: it
// connects to the MCP server with the user's Google credential, hands the
// server's tool catalog to a chat completion model, executes the tool calls
// the model makes, and feeds results back until the model answers.
//
// Credentials are stored per profile under a storage directory (default
// ~/.calbridge). When the server rejects a credential mid-conversation, the
// session re-authenticates exactly once and retries the failed call.
package chat
