package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrNotAcked     = errors.New("backend did not acknowledge the operation")
)

// Error is a non-2xx answer from the backend.
type Error struct {
	StatusCode int
	Code       int
	Name       string
	// Message is the server-supplied message; empty when the body had none.
	Message string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("ezshop api: %d %s", e.StatusCode, msg)
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

type errorBody struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Name    string          `json:"name"`
	Error   string          `json:"error"`
	Detail  json.RawMessage `json:"detail"`
}

func decodeError(status int, raw []byte) *Error {
	apiErr := &Error{StatusCode: status, Code: status}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return apiErr
	}
	if body.Code != 0 {
		apiErr.Code = body.Code
	}
	apiErr.Name = body.Name
	apiErr.Message = strings.TrimSpace(body.Message)
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(body.Error)
	}
	if apiErr.Message == "" && len(body.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(body.Detail, &detail); err == nil {
			apiErr.Message = strings.TrimSpace(detail)
		}
	}
	return apiErr
}

// MessageOf returns the backend's message for err, or fallback when err did
// not come with one (network failures, empty bodies, local errors).
func MessageOf(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
