package otp

import (
	"net/http"

	"github.com/Abraxas-365/otpguard/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("OTP")

var (
	CodeValidation   = ErrRegistry.Register("VALIDATION_ERROR", errx.TypeValidation, http.StatusBadRequest, "Invalid request data")
	CodeRateLimited  = ErrRegistry.Register("RATE_LIMIT_EXCEEDED", errx.TypeRateLimit, http.StatusTooManyRequests, "Rate limit exceeded")
	CodeInvalidOTP   = ErrRegistry.Register("INVALID_OTP", errx.TypeValidation, http.StatusBadRequest, "Invalid OTP code or OTP has expired")
	CodeNoActiveOTP  = ErrRegistry.Register("NO_ACTIVE_OTP", errx.TypeValidation, http.StatusBadRequest, "No active OTP request found. Please generate a new OTP.")
	CodeSMSFailed    = ErrRegistry.Register("SMS_SEND_FAILED", errx.TypeExternal, http.StatusInternalServerError, "Failed to send OTP. Please try again.")
	CodeInternal     = ErrRegistry.Register("INTERNAL_ERROR", errx.TypeInternal, http.StatusInternalServerError, "An error occurred while processing your request")
	CodeNotFound     = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "OTP not found")
	CodeStoreFailure = ErrRegistry.Register("STORE_FAILURE", errx.TypeInternal, http.StatusInternalServerError, "Storage operation failed")
	CodeUnauthorized = ErrRegistry.Register("UNAUTHORIZED", errx.TypeAuthorization, http.StatusUnauthorized, "Unauthorized")
)

func ErrNotFound() *errx.Error     { return ErrRegistry.New(CodeNotFound) }
func ErrInvalidOTP() *errx.Error   { return ErrRegistry.New(CodeInvalidOTP) }
func ErrNoActiveOTP() *errx.Error  { return ErrRegistry.New(CodeNoActiveOTP) }
func ErrUnauthorized() *errx.Error { return ErrRegistry.New(CodeUnauthorized) }

func ErrStore(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeStoreFailure, cause)
}

func ErrInternal(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeInternal, cause)
}

func ErrSMSFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeSMSFailed, cause)
}

// WireCode is the lower-cased code without prefix, e.g. "rate_limit_exceeded".
func WireCode(e *errx.Error) string {
	return e.WireCode(ErrRegistry.Prefix())
}
