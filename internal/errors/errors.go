package errors

import (
	"errors"
)

type ErrorCode string

const (
	// ContractCallFailure is any rejected contract call: revert, gas
	// exhaustion or a transport error.
	ContractCallFailure ErrorCode = "contract_call_failure"
	// PartialReconciliationFailure means the tokens reached the multisender
	// but the deposit was not recorded. Needs a manual decision.
	PartialReconciliationFailure ErrorCode = "partial_reconciliation_failure"
	NotSignedIn                  ErrorCode = "not_signed_in"
	EmptyList                    ErrorCode = "empty_list"
	InsufficientDeposit          ErrorCode = "insufficient_deposit"
	Busy                         ErrorCode = "busy"
	InvalidRequest               ErrorCode = "invalid_request"
	StoreFailure                 ErrorCode = "store_failure"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (se ServiceError) Error() string {
	if se.Err != nil {
		return se.Message + ": " + se.Err.Error()
	}
	return se.Message
}

func (se ServiceError) Unwrap() error {
	return se.Err
}

func New(code ErrorCode, message string, err error) ServiceError {
	return ServiceError{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first ServiceError in the chain, or an empty
// code.
func CodeOf(err error) ErrorCode {
	var se ServiceError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// Is reports whether err carries a ServiceError with the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
