package otp

import (
	"strings"

	"github.com/Abraxas-365/otpguard/pkg/errx"
)

// FieldErrors maps request fields to their validation messages.
type FieldErrors map[string][]string

func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

// Err returns nil when there are no field errors.
func (f FieldErrors) Err() *errx.Error {
	if len(f) == 0 {
		return nil
	}
	return ErrRegistry.New(CodeValidation).WithDetail("errors", map[string][]string(f))
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// NormalizeMobile trims the number and checks it is exactly 10 digits.
func NormalizeMobile(raw string, errs FieldErrors) string {
	v := strings.TrimSpace(raw)
	switch {
	case raw == "":
		errs.Add("mobile_number", "This field is required.")
	case len(v) != 10 || !allDigits(v):
		errs.Add("mobile_number", "Mobile number must be exactly 10 digits")
	}
	return v
}

// NormalizeResendMobile additionally requires a leading 6, 7, 8 or 9.
func NormalizeResendMobile(raw string, errs FieldErrors) string {
	v := NormalizeMobile(raw, errs)
	if _, bad := errs["mobile_number"]; bad {
		return v
	}
	if v[0] < '6' {
		errs.Add("mobile_number", "Mobile number must start with 6, 7, 8, or 9")
	}
	return v
}

// NormalizeCode trims the code and checks it is exactly 6 digits.
func NormalizeCode(raw string, errs FieldErrors) string {
	v := strings.TrimSpace(raw)
	switch {
	case raw == "":
		errs.Add("otp_code", "This field is required.")
	case len(v) != CodeLength || !allDigits(v):
		errs.Add("otp_code", "OTP code must be exactly 6 digits")
	}
	return v
}
