package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"sakinah/internal/aggregate"
	"sakinah/internal/auth"
	"sakinah/internal/core"
	"sakinah/internal/log"
	"sakinah/internal/services"
)

// JSONResponseBuilder provides a fluent API for writing JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value to encode. A nil body writes only the status line.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a JSON error response {"error": message}.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message).Header("WWW-Authenticate", "Bearer")
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidDate,
	core.ErrInvalidType,
	core.ErrInvalidAccount,
	core.ErrEmptyCategory,
	core.ErrEmptyName,
	core.ErrDescriptionSize,
	aggregate.ErrRangeTooLarge,
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeError maps domain errors to status codes. Anything unrecognised is
// logged and reported as 500 without details.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case isValidationError(err):
		UnprocessableEntityError(err.Error()).Write(w)
	case errors.Is(err, errBadBody):
		BadRequestError(err.Error()).Write(w)
	case errors.Is(err, services.ErrNotAuthenticated):
		UnauthorizedError(err.Error()).Write(w)
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrNoSecret):
		UnauthorizedError(auth.ErrInvalidToken.Error()).Write(w)
	case errors.Is(err, services.ErrLoading):
		ErrorResponse(http.StatusServiceUnavailable, err.Error()).Header("Retry-After", "1").Write(w)
	case errors.Is(err, services.ErrNotFound):
		NotFoundError(err.Error()).Write(w)
	default:
		log.FromContext(r.Context()).LogError(r.Context(), "Request failed", err, op, nil)
		InternalServerError("internal error").Write(w)
	}
}
