// Package instrumentation provides OpenTelemetry metrics and tracing for the
// caltodo gateway.
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, route, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Google API Metrics:
//   - google_api_operations_total: Counter of Calendar calls by operation and status
//   - google_api_operation_duration_seconds: Histogram of Calendar call durations
//
// OAuth and Session Metrics:
//   - oauth_auth_total: Counter of authorization callbacks by result
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//   - sessions_created_total / sessions_ended_total: Session lifecycle counters
//   - session_store_errors_total: Failed session store calls by store and operation
//
// Task Metrics:
//   - todo_operations_total: Counter of list/create/delete by status
//
// # Tracing
//
// Calendar calls produce client spans named google.calendar.<operation>.
// Inbound requests are traced by the otelhttp handler in the server package.
//
// # Configuration
//
// config.Load reads the following environment variables into Config:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: caltodo)
package instrumentation
