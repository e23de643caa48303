package otpsrv

import (
	"github.com/Abraxas-365/otpguard/pkg/errx"
	"github.com/Abraxas-365/otpguard/pkg/otp"
	"github.com/Abraxas-365/otpguard/pkg/otp/ratelimit"
)

const (
	msgGenerateFailed = "An error occurred while generating OTP. Please try again."
	msgVerifyFailed   = "An error occurred while verifying OTP. Please try again."
	msgResendFailed   = "An error occurred while resending OTP. Please try again."
)

// denialError turns a rate-limit denial into the 429 error the API renders.
func denialError(d *ratelimit.Denial) *errx.Error {
	return otp.ErrRegistry.NewWithMessage(otp.CodeRateLimited, d.Message).WithDetails(map[string]interface{}{
		"retry_after":           d.RetryAfter,
		"retry_after_formatted": ratelimit.FormatRetryAfter(d.RetryAfter),
		"limit":                 d.Limit,
		"window":                d.Window,
	})
}

func internalError(msg string, cause error) *errx.Error {
	return otp.ErrRegistry.NewWithMessage(otp.CodeInternal, msg).WithCause(cause)
}

func invalidOTPError(res otp.VerifyResult, remaining int) *errx.Error {
	return otp.ErrRegistry.NewWithMessage(otp.CodeInvalidOTP, res.Message()).
		WithDetail("remaining_attempts", remaining)
}
