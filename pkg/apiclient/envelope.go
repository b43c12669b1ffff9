package apiclient

import (
	"fmt"
	"net/http"
)

// Response is the envelope every client operation returns. Exactly one shape
// is produced: Success with the decoded payload and HTTP status, or failure
// with the zero payload and the HTTP status, 0 when no response arrived.
type Response[T any] struct {
	Success    bool  `json:"success"`
	Data       T     `json:"data"`
	StatusCode int   `json:"statusCode"`
	Err        error `json:"-"`
}

func ok[T any](data T, status int) Response[T] {
	return Response[T]{Success: true, Data: data, StatusCode: status}
}

func fail[T any](status int, err error) Response[T] {
	var zero T
	return Response[T]{Success: false, Data: zero, StatusCode: status, Err: err}
}

// StatusError reports a response with a non-2xx status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// Disposition tells how the backend handled a delete.
type Disposition string

const (
	DispositionRemoved     Disposition = "removed"
	DispositionSoftDeleted Disposition = "soft-deleted"
)
