// Package www holds the HTTP plumbing of the annotation server: protected routes,
// error panics, request parsing and response helpers.
package www

import (
	"fmt"
	"net/http"
)

// HTTPError can be panicked from inside a handler run by RunProtected,
// which then replies with Code and Message.
type HTTPError struct {
	Code    int
	Message string
}

func (e HTTPError) Error() string {
	return fmt.Sprintf("%v %v", e.Code, e.Message)
}

func Panic(code int, message string) {
	panic(HTTPError{code, message})
}

func panicf(code int, format string, args ...any) {
	panic(HTTPError{code, fmt.Sprintf(format, args...)})
}

// PanicBadRequestf replies 400
func PanicBadRequestf(format string, args ...any) {
	panicf(http.StatusBadRequest, format, args...)
}

// PanicNotFoundf replies 404
func PanicNotFoundf(format string, args ...any) {
	panicf(http.StatusNotFound, format, args...)
}

// PanicConflictf replies 409, for requests that are invalid in the current session state
func PanicConflictf(format string, args ...any) {
	panicf(http.StatusConflict, format, args...)
}

// Check panics with err (a 500) if err is not nil
func Check(err error) {
	if err != nil {
		panic(err)
	}
}

// CheckClient panics with a 400 if err is not nil
func CheckClient(err error) {
	if err != nil {
		PanicBadRequestf("%v", err)
	}
}
