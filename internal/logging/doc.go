// Package logging provides structured logging utilities for caltodo.
//
// All packages log through log/slog. This package keeps attribute names
// consistent and makes sure session identifiers and OAuth tokens never reach
// the log output in clear text.
//
// # Usage Patterns
//
// Build the process logger once from configuration:
//
//	logger, err := logging.New("info", "json", os.Stderr)
//
// Then attach standard attributes:
//
//	logger := logging.WithOperation(logger, "todo.create")
//	logger.Info("task created",
//	    logging.SessionHash(sessionID),
//	    logging.Status(logging.StatusSuccess))
//
// # Security Considerations
//
//   - Session ids are hashed before logging so entries can be correlated
//     without leaking a usable cookie value
//   - Tokens are only ever logged through SanitizeToken
package logging
