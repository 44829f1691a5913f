package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/cloo-solutions/newsrag/internal/domain"
)

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DomainErrorToHTTP maps domain errors, wrapped or not, to HTTP status codes
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge
	}

	domainErr, ok := domain.AsDomainError(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch domainErr.Code {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrCodeInvalidOperation:
		return http.StatusConflict
	case domain.ErrCodeUpstream:
		return http.StatusBadGateway
	case domain.ErrCodeMissingCredential:
		return http.StatusServiceUnavailable
	case domain.ErrCodeCorruptIndex, domain.ErrCodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes an appropriate error response based on the error type.
// Errors that are not domain errors are logged and reported as a generic failure.
func HandleError(w http.ResponseWriter, err error) {
	status := DomainErrorToHTTP(err)
	if _, ok := domain.AsDomainError(err); !ok && status == http.StatusInternalServerError {
		log.Printf("api: internal error: %v", err)
		Error(w, status, "internal server error")
		return
	}
	Error(w, status, err.Error())
}
