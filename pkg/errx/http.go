package errx

import (
	"net/http"
	"strings"
)

// WireCode strips the registry prefix and lower-cases the rest:
// "OTP_RATE_LIMIT_EXCEEDED" with prefix "OTP" becomes "rate_limit_exceeded".
func (e *Error) WireCode(prefix string) string {
	return strings.ToLower(strings.TrimPrefix(e.Code, prefix+"_"))
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	if e, ok := As(err); ok && e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}
