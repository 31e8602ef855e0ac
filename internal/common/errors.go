package common

import (
	"errors"
	"net/http"
)

// AppError carries the machine-readable code and HTTP status for an error
// crossing the API boundary. Core packages return plain sentinel errors;
// handlers translate them into AppErrors before rendering.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Render writes the error in the canonical envelope.
func (e *AppError) Render(w http.ResponseWriter) {
	status := e.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	JSONError(w, status, e.Code, e.Message, e.Details)
}

// NewAppError constructs an AppError wrapping err.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError reports whether err is (or wraps) an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}
