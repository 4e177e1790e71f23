// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes follow the <DOMAIN>_<NNN> convention shared with the clients.
const (
	CodeSubtotalInvalid    = "VAL_001"
	CodeTotalAmountMissing = "VAL_002"
	CodeFinalAmountMissing = "VAL_003"
	CodeValidation         = "VAL_004"
	CodeInvalidTransition  = "VAL_005"
	CodeMalformedBody      = "VAL_006"

	CodeInvalidCredentials = "AUTH_001"
	CodeUnauthenticated    = "AUTH_002"
	CodeForbidden          = "AUTH_003"
	CodeSessionExpired     = "AUTH_004"
	CodeResetTokenInvalid  = "AUTH_005"

	CodeNotFound          = "RES_000"
	CodeCustomerNotFound  = "RES_001"
	CodeQuotationNotFound = "RES_002"
	CodeVisitNotFound     = "RES_003"
	CodeAccountNotFound   = "RES_004"
	CodeDuplicate         = "RES_005"

	CodeInternal    = "SYS_001"
	CodeRateLimited = "SYS_002"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error is a domain error carrying the client-facing code.
type Error struct {
	Code    string
	Message string
	Status  int
	Details any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return e.Code + ": " + e.Message
}

// Unwrap exposes the wrapped sentinel, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// NewError builds an Error with an HTTP status derived from the code domain.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: statusForCode(code), cause: sentinelForCode(code)}
}

// WithDetails attaches diagnostic details.
func (e *Error) WithDetails(details any) *Error {
	clone := *e
	clone.Details = details
	return &clone
}

// Validation builds a VAL_004 error with field messages.
func Validation(message string, fields map[string]string) *Error {
	err := NewError(CodeValidation, message)
	if len(fields) > 0 {
		err.Details = fields
	}
	return err
}

func statusForCode(code string) int {
	switch code {
	case CodeSubtotalInvalid, CodeTotalAmountMissing, CodeFinalAmountMissing, CodeValidation, CodeMalformedBody:
		return http.StatusBadRequest
	case CodeInvalidTransition, CodeDuplicate:
		return http.StatusConflict
	case CodeInvalidCredentials, CodeUnauthenticated, CodeSessionExpired, CodeResetTokenInvalid:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeCustomerNotFound, CodeQuotationNotFound, CodeVisitNotFound, CodeAccountNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func sentinelForCode(code string) error {
	switch statusForCode(code) {
	case http.StatusBadRequest:
		return ErrValidation
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		if code == CodeDuplicate {
			return ErrDuplicate
		}
	}
	return nil
}

// AsError maps any error onto an *Error, falling back to SYS_001.
func AsError(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return &Error{Code: CodeNotFound, Message: err.Error(), Status: http.StatusNotFound}
	case errors.Is(err, ErrDuplicate):
		return &Error{Code: CodeDuplicate, Message: err.Error(), Status: http.StatusConflict}
	case errors.Is(err, ErrValidation):
		return &Error{Code: CodeValidation, Message: err.Error(), Status: http.StatusBadRequest}
	case errors.Is(err, ErrForbidden):
		return &Error{Code: CodeForbidden, Message: err.Error(), Status: http.StatusForbidden}
	case errors.Is(err, ErrUnauthorized):
		return &Error{Code: CodeUnauthenticated, Message: err.Error(), Status: http.StatusUnauthorized}
	default:
		return &Error{Code: CodeInternal, Message: "internal server error", Status: http.StatusInternalServerError}
	}
}

// RespondError maps domain errors to the failure envelope.
func RespondError(w http.ResponseWriter, err error) {
	appErr := AsError(err)
	JSON(w, appErr.Status, Envelope{
		Success: false,
		Error: &ErrorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}
