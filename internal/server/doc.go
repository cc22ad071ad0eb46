// Package server implements the caltodo HTTP gateway.
//
// The gateway runs the Google OAuth 2.0 authorization code flow, binds the
// resulting credential to an opaque session cookie and serves the task API
// on top of Google Calendar. Browser code never sees a Google token.
//
// # Routes
//
//	GET    /auth/google           redirect to the Google consent screen
//	GET    /auth/google/callback  exchange the code, start the session
//	GET    /api/auth/status       {"isAuthorized": bool}
//	POST   /auth/logout           end the session
//	GET    /api/todos             upcoming tasks
//	POST   /api/todos             create a task
//	DELETE /api/todos/{id}        delete a task
//	GET    /healthz, /readyz      probes
//
// Task routes require a session credential. When Google rejects the
// access token mid-request the gateway refreshes it once, stores the new
// credential and retries the call. A failed refresh ends the session.
//
// # Security Features
//
//   - HTTPS required for non-loopback base URLs
//   - State parameter bound to a short-lived cookie for CSRF protection
//   - HttpOnly, SameSite=Lax session cookies, Secure over HTTPS
//   - Per-IP rate limiting
//   - Security headers on all responses
//
// Prometheus metrics are served on a separate listener by MetricsServer.
package server
