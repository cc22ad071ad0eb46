// Package google wraps the Google OAuth 2.0 client used by the gateway.
//
// It builds the consent URL, exchanges authorization codes, refreshes access
// tokens on demand and produces HTTP clients that authenticate calls to the
// Calendar API with a session's token.
package google
