package apperrors

import (
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrAlreadyInitialized ErrorType = "ALREADY_INITIALIZED"
	ErrNotAuthorized      ErrorType = "NOT_AUTHORIZED"
	ErrSupply             ErrorType = "SUPPLY_ERROR"
	ErrFlashloanFailed    ErrorType = "FLASHLOAN_FAILED"
	ErrInvalidRequest     ErrorType = "INVALID_REQUEST"
	ErrNotFound           ErrorType = "NOT_FOUND"
	ErrUpstream           ErrorType = "UPSTREAM_ERROR"
	ErrInternal           ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewNotAuthorized(msg string) *AppError {
	return New(ErrNotAuthorized, msg, nil)
}

func NewSupplyError(msg string) *AppError {
	return New(ErrSupply, msg, nil)
}

func NewFlashloanFailed(msg string) *AppError {
	return New(ErrFlashloanFailed, msg, nil)
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// Is reports whether err carries the given type anywhere in its chain.
func Is(err error, t ErrorType) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Type == t {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrAlreadyInitialized:
		return http.StatusConflict
	case ErrNotAuthorized:
		return http.StatusUnauthorized
	case ErrSupply, ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrFlashloanFailed:
		return http.StatusUnprocessableEntity
	case ErrNotFound:
		return http.StatusNotFound
	case ErrUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrAlreadyInitialized:
		return "The treasury is already initialized; use the admin setters instead."
	case ErrNotAuthorized:
		return "Check the identity proof signature and the configured role address."
	case ErrSupply:
		return "Check the tracked supply and the pool-reported position."
	case ErrFlashloanFailed:
		return "Repay at least principal plus fee to the treasury before returning."
	case ErrUpstream:
		return "Check pool and issuer endpoints."
	default:
		return ""
	}
}
