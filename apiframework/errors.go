// Package apiframework carries the shared HTTP plumbing: request decoding,
// response encoding, and the mapping from sentinel errors to OpenAI-style
// JSON error payloads.
package apiframework

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/contenox/chatlog/adminservice"
	"github.com/contenox/chatlog/chatservice"
	"github.com/contenox/chatlog/internal/modelrepo"
	"github.com/contenox/chatlog/libauth"
	libdb "github.com/contenox/chatlog/libdbexec"
)

// Standard error constants
var (
	ErrBadPathValue     = errors.New("serverops: bad path value")
	ErrBadQueryValue    = errors.New("serverops: bad query value")
	ErrMissingParameter = errors.New("serverops: missing parameter")
	ErrEmptyRequestBody = errors.New("serverops: empty request body")

	// The generic error types for common HTTP status codes
	ErrBadRequest          = errors.New("serverops: bad request")
	ErrUnprocessableEntity = errors.New("serverops: unprocessable entity")
	ErrNotFound            = errors.New("serverops: not found")
	ErrConflict            = errors.New("serverops: conflict")
	ErrForbidden           = errors.New("serverops: forbidden")
	ErrInternalServerError = errors.New("serverops: internal server error")
	ErrUnauthorized        = errors.New("serverops: unauthorized")
)

// Operation defines API operation types for error mapping
type Operation uint16

const (
	CreateOperation Operation = iota
	GetOperation
	UpdateOperation
	DeleteOperation
	ListOperation
	AuthorizeOperation
	ServerOperation
	ExecuteOperation
)

// mapErrorToStatus maps errors to appropriate HTTP status codes
func mapErrorToStatus(op Operation, err error) int {
	switch {
	case errors.Is(err, libauth.ErrNotAuthorized),
		errors.Is(err, libauth.ErrTokenExpired),
		errors.Is(err, libauth.ErrTokenMissing),
		errors.Is(err, libauth.ErrTokenParsingFailed),
		errors.Is(err, libauth.ErrInvalidTokenClaims),
		errors.Is(err, libauth.ErrUnexpectedSigningMethod),
		errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound),
		errors.Is(err, libdb.ErrNotFound),
		errors.Is(err, chatservice.ErrSessionNotFound),
		errors.Is(err, adminservice.ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict),
		errors.Is(err, libdb.ErrUniqueViolation),
		errors.Is(err, chatservice.ErrReplyInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrBadPathValue),
		errors.Is(err, ErrBadQueryValue),
		errors.Is(err, ErrMissingParameter),
		errors.Is(err, ErrEmptyRequestBody),
		errors.Is(err, chatservice.ErrEmptyMessage),
		errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnprocessableEntity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, modelrepo.ErrCompletionService):
		return http.StatusBadGateway
	case errors.Is(err, libdb.ErrQueryCanceled):
		return http.StatusRequestTimeout
	}
	if op == AuthorizeOperation {
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// errorTypeAndCode maps HTTP status codes to OpenAI-style error types and codes.
func errorTypeAndCode(status int) (string, string) {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request_error", "bad_request"
	case http.StatusUnauthorized:
		return "authentication_error", "unauthorized"
	case http.StatusForbidden:
		return "authorization_error", "forbidden"
	case http.StatusNotFound:
		return "invalid_request_error", "not_found"
	case http.StatusConflict:
		return "invalid_request_error", "conflict"
	case http.StatusUnprocessableEntity:
		return "invalid_request_error", "unprocessable_entity"
	case http.StatusRequestTimeout:
		return "api_error", "request_timeout"
	case http.StatusBadGateway:
		return "api_error", "upstream_error"
	default:
		return "api_error", "internal_error"
	}
}

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// Error writes err as an OpenAI-style JSON error payload with the status
// derived from the sentinel error chain.
func Error(w http.ResponseWriter, r *http.Request, err error, op Operation) error {
	status := mapErrorToStatus(op, err)
	errType, errCode := errorTypeAndCode(status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(errorResponse{Error: errorBody{
		Message: err.Error(),
		Type:    errType,
		Code:    errCode,
	}})
}
