// Package session binds Google OAuth credentials to browser sessions.
//
// A browser is identified by an opaque random id carried in an HttpOnly
// cookie. The credential bundle for that id lives server side in a Store:
// MemoryStore for single-instance deployments and RedisStore when sessions
// must survive restarts or be shared between replicas. Credentials never
// leave the server.
package session
