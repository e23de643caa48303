package errx

import (
	"errors"
	"fmt"
)

// Error is the error type shared by every package in the service.
// It carries a stable code, a category and the HTTP status the API layer should use.
type Error struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Type       Type                   `json:"type"`
	HTTPStatus int                    `json:"http_status"`
	Details    map[string]interface{} `json:"details,omitempty"`

	// Err is the underlying cause. Never serialized.
	Err error `json:"-"`
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetail sets one detail and returns e for chaining.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = value
	return e
}

// WithDetails merges details into e.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// New builds an unregistered error whose code is the type name.
func New(message string, errType Type) *Error {
	return &Error{
		Code:       errType.String(),
		Message:    message,
		Type:       errType,
		HTTPStatus: errType.Status(),
		Details:    map[string]interface{}{},
	}
}

// Wrap attaches message to err. When err already is an *Error its code,
// status and details carry over.
func Wrap(err error, message string, errType Type) *Error {
	if err == nil {
		return nil
	}
	wrapped := New(message, errType)
	wrapped.Err = err
	if inner, ok := As(err); ok {
		wrapped.Code = inner.Code
		wrapped.HTTPStatus = inner.HTTPStatus
		wrapped.Details = inner.Details
	}
	return wrapped
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code *ErrorCode) bool {
	for err != nil {
		e, ok := As(err)
		if !ok {
			return false
		}
		if e.Code == code.Code {
			return true
		}
		err = e.Err
	}
	return false
}
