// Package apperr defines the error taxonomy surfaced to API clients.
// Every precondition failure carries an HTTP-style status code and a
// human-readable message; handlers map anything else to a 500.
package apperr

import (
	"errors"
	"net/http"
)

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e *Error) Error() string { return e.Message }

func Validation(msg string) *Error { return &Error{Code: http.StatusBadRequest, Message: msg} }
func NotFound(msg string) *Error   { return &Error{Code: http.StatusNotFound, Message: msg} }
func Forbidden(msg string) *Error  { return &Error{Code: http.StatusForbidden, Message: msg} }
func Conflict(msg string) *Error   { return &Error{Code: http.StatusConflict, Message: msg} }

// StatusOf returns the HTTP status for err, or 500 if it is not an
// apperr.Error.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return http.StatusInternalServerError
}
