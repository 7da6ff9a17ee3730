package api

import (
	"errors"
	"net/http"

	apperrors "github.com/openbuilders/ft-multisender/internal/errors"
)

type APIErrorCode string

const (
	ErrInvalidBody   APIErrorCode = "invalid_body"
	ErrInvalidMode   APIErrorCode = "invalid_mode"
	ErrInvalidAmount APIErrorCode = "invalid_amount"
	ErrNotReady      APIErrorCode = "not_ready"
	ErrInternal      APIErrorCode = "internal_error"
)

// APIError represents a custom error with a code and description
type APIError struct {
	Code APIErrorCode
}

// Implement the error interface for APIError
func (e *APIError) Error() string {
	return string(e.Code)
}

// statusCode maps an error returned by a handler to the HTTP status.
func statusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == ErrNotReady {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadRequest
	}

	switch apperrors.CodeOf(err) {
	case apperrors.InvalidRequest, apperrors.EmptyList:
		return http.StatusBadRequest
	case apperrors.NotSignedIn:
		return http.StatusUnauthorized
	case apperrors.Busy:
		return http.StatusConflict
	case apperrors.InsufficientDeposit:
		return http.StatusUnprocessableEntity
	case apperrors.ContractCallFailure, apperrors.PartialReconciliationFailure:
		return http.StatusBadGateway
	case apperrors.StoreFailure:
		return http.StatusServiceUnavailable
	}

	return http.StatusInternalServerError
}
