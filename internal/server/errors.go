package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/teemow/caltodo/internal/instrumentation"
	"github.com/teemow/caltodo/internal/todo"
)

// APIError is an error returned to gateway clients. Message is a stable,
// user-facing string; upstream causes are logged, never sent.
type APIError struct {
	Code    string // machine-readable code, e.g. "unauthenticated"
	Message string // localized message written as {"error": Message}
	Status  int    // HTTP status code
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError creates a new API error
func NewAPIError(code, message string, status int) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

// Errors returned by the gateway.
var (
	ErrUnauthenticated = NewAPIError("unauthenticated",
		"인증되지 않았습니다. 먼저 로그인해주세요.", http.StatusUnauthorized)

	ErrMissingAuthorizationCode = NewAPIError("missing_authorization_code",
		"인증 코드가 없습니다.", http.StatusBadRequest)

	ErrInvalidState = NewAPIError("invalid_state",
		"잘못된 인증 요청입니다. 다시 로그인해주세요.", http.StatusBadRequest)

	ErrTokenExchange = NewAPIError("token_exchange_failed",
		"인증에 실패했습니다.", http.StatusInternalServerError)

	ErrAuthorizationStart = NewAPIError("authorization_failed",
		"인증을 시작하지 못했습니다.", http.StatusInternalServerError)

	ErrSessionStore = NewAPIError("session_store_error",
		"세션을 처리하지 못했습니다.", http.StatusInternalServerError)

	ErrInvalidInput = NewAPIError("invalid_input",
		"제목과 날짜/시간이 필요합니다.", http.StatusBadRequest)

	ErrListFailed = NewAPIError("upstream_failure",
		"캘린더에서 이벤트를 가져오지 못했습니다.", http.StatusInternalServerError)

	ErrCreateFailed = NewAPIError("upstream_failure",
		"캘린더에 이벤트를 생성하지 못했습니다.", http.StatusInternalServerError)

	ErrIncompleteEvent = NewAPIError("upstream_failure",
		"이벤트 생성 후 데이터 처리 중 오류가 발생했습니다.", http.StatusInternalServerError)

	ErrDeleteFailed = NewAPIError("upstream_failure",
		"캘린더 이벤트를 삭제하지 못했습니다.", http.StatusInternalServerError)

	ErrCalendarTimeout = NewAPIError("transient_failure",
		"캘린더 응답 시간이 초과되었습니다. 잠시 후 다시 시도해주세요.", http.StatusGatewayTimeout)

	ErrRateLimited = NewAPIError("rate_limit_exceeded",
		"요청이 너무 많습니다. 잠시 후 다시 시도해주세요.", http.StatusTooManyRequests)

	ErrInternal = NewAPIError("server_error",
		"서버 오류가 발생했습니다.", http.StatusInternalServerError)
)

// todoError maps a task operation error onto the response for operation.
func todoError(operation string, err error) *APIError {
	switch {
	case errors.Is(err, todo.ErrInvalidInput):
		return ErrInvalidInput
	case errors.Is(err, todo.ErrUnauthenticated):
		return ErrUnauthenticated
	case errors.Is(err, todo.ErrTransient):
		return ErrCalendarTimeout
	case errors.Is(err, todo.ErrIncompleteEvent):
		return ErrIncompleteEvent
	}

	switch operation {
	case instrumentation.OperationCreate:
		return ErrCreateFailed
	case instrumentation.OperationDelete:
		return ErrDeleteFailed
	default:
		return ErrListFailed
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON writes payload as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes e as {"error": message, "code": code}.
func writeError(w http.ResponseWriter, e *APIError) {
	writeJSON(w, e.Status, errorResponse{Error: e.Message, Code: e.Code})
}
