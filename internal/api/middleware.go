package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	apperrors "github.com/openbuilders/ft-multisender/internal/errors"
)

// WithMethod is a middleware that checks if the endpoint was called using a
// specific HTTP method and rejects it otherwise.
func WithMethod(next http.HandlerFunc, method string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, fmt.Sprintf("Only %s method is allowed", method), http.StatusMethodNotAllowed)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// WithJSONResponse wraps an APIHandler and handles JSON response formatting
func WithJSONResponse(handler APIHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Call the handler to get data or error
		data, err := handler(w, r)

		// Set the Content-Type header
		w.Header().Set("Content-Type", "application/json")

		if err != nil {
			errorResponse := errorResponseFor(err)

			slog.Debug("API error", "path", r.URL.Path, "error", err)

			w.WriteHeader(statusCode(err))

			// Encode and send the error response
			if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
				http.Error(w, `{"ok": false, "errorCode": "internal_error", "errorDescription": "Failed to encode error response"}`, http.StatusInternalServerError)
			}
			return
		}

		// Create the success response
		successResponse := SuccessResponse{
			Ok:   true,
			Data: data,
		}

		// Encode and send the success response
		if err := json.NewEncoder(w).Encode(successResponse); err != nil {
			http.Error(w, `{"ok": false, "errorCode": "internal_error", "errorDescription": "Failed to encode success response"}`, http.StatusInternalServerError)
			return
		}
	}
}

func errorResponseFor(err error) ErrorResponse {
	var (
		se     apperrors.ServiceError
		apiErr *APIError
	)

	switch {
	case errors.As(err, &se):
		slog.Debug("ServiceError", "error", se, "stack", se.Err)
		return ErrorResponse{
			Ok:               false,
			ErrorCode:        string(se.Code),
			ErrorDescription: se.Message,
		}
	case errors.As(err, &apiErr):
		return ErrorResponse{
			Ok:        false,
			ErrorCode: string(apiErr.Code),
		}
	default:
		slog.Error("unexpected API error", "error", err)
		return ErrorResponse{
			Ok:        false,
			ErrorCode: string(ErrInternal),
		}
	}
}
