// Package cmd implements the command-line interface for caltodo.
//
// This package provides the following commands:
//   - serve: Start the HTTP gateway (OAuth, sessions, task API, web app)
//   - todos: List, add and remove tasks through a running gateway
//   - version: Display version information
//
// serve is configured from the environment; flags override single values.
package cmd
