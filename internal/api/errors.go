package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/boost-engine/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondServiceError maps an error from the service layer onto an
// HTTP response.
func respondServiceError(w http.ResponseWriter, err error) {
	status, code, message, details := mapServiceError(err)
	respondError(w, status, code, message, details)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// mapServiceError maps service errors to HTTP status codes.
func mapServiceError(err error) (int, string, string, map[string]interface{}) {
	var serviceErr *types.ServiceError
	if errors.As(err, &serviceErr) {
		switch serviceErr.Code {
		case types.CodeInvalidRequest:
			return http.StatusBadRequest, serviceErr.Code, serviceErr.Message, serviceErr.Details
		case types.CodeInvalidSignature, types.CodeSignatureExpired, types.CodeUnauthorized:
			return http.StatusUnauthorized, serviceErr.Code, serviceErr.Message, serviceErr.Details
		case types.CodeSignatureAlreadyUsed:
			return http.StatusConflict, serviceErr.Code, serviceErr.Message, serviceErr.Details
		case types.CodeNotEnoughTokens:
			return http.StatusForbidden, serviceErr.Code, serviceErr.Message, serviceErr.Details
		case types.CodeNotEnoughTimePassed:
			return http.StatusTooManyRequests, serviceErr.Code, serviceErr.Message, serviceErr.Details
		case types.CodeInsufficientPayment:
			return http.StatusPaymentRequired, serviceErr.Code, serviceErr.Message, serviceErr.Details
		case types.CodeMilestoneNotAchieved:
			return http.StatusConflict, serviceErr.Code, serviceErr.Message, serviceErr.Details
		case types.CodeTotemNotRegistered:
			return http.StatusBadRequest, serviceErr.Code, serviceErr.Message, serviceErr.Details
		case types.CodeRequestNotFound:
			return http.StatusNotFound, serviceErr.Code, serviceErr.Message, serviceErr.Details
		case types.CodeSystemPaused:
			return http.StatusServiceUnavailable, serviceErr.Code, serviceErr.Message, serviceErr.Details
		default:
			return http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil
		}
	}

	return http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil
}
