package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
)

// Error is an error that carries the HTTP status it should be rendered with.
type Error struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error with the same status and message, so wrapped copies of
// the sentinels below still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Status == e.Status && t.Message == e.Message
}

func New(message string, status int) *Error {
	return &Error{
		Message: message,
		Status:  status,
	}
}

var (
	ErrNotFound            = New("not found", http.StatusNotFound)
	ErrBadRequest          = New("bad request", http.StatusBadRequest)
	ErrUnauthorized        = New("unauthorized", http.StatusUnauthorized)
	ErrForbidden           = New("forbidden", http.StatusForbidden)
	ErrConflict            = New("conflict", http.StatusConflict)
	ErrInternalServerError = New("internal server error", http.StatusInternalServerError)
)

// StatusOf returns the status of the first *Error in err's chain, or 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}

// From converts any error into an *Error. Errors that are not already an
// *Error are reported as internal server errors.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternalServerError
}

// ErrorHandler is the gin-rate-limit callback for requests over the limit.
func ErrorHandler(c *gin.Context, info ratelimit.Info) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"message": fmt.Sprintf("too many requests, try again in %s", time.Until(info.ResetTime).Round(time.Second)),
		"status":  http.StatusTooManyRequests,
	})
}
