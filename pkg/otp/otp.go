package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/kernel"
)

const (
	CodeLength    = 6
	DefaultExpiry = 5 * time.Minute
)

// Reasons returned by Verify. Callers log them and record them on the audit row.
const (
	ReasonAlreadyUsed = "OTP already used"
	ReasonExpired     = "OTP expired"
	ReasonInvalidCode = "Invalid code"
)

// OTP is one issued code for a mobile number.
type OTP struct {
	ID           kernel.OTPID `db:"id" json:"id"`
	MobileNumber string       `db:"mobile_number" json:"mobile_number"`
	Code         string       `db:"code" json:"-"`
	ExpiresAt    time.Time    `db:"expires_at" json:"expires_at"`
	IsUsed       bool         `db:"is_used" json:"is_used"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// New issues a fresh code for mobileNumber valid for ttl from now.
func New(mobileNumber string, now time.Time, ttl time.Duration) (*OTP, error) {
	if ttl <= 0 {
		ttl = DefaultExpiry
	}
	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}
	return &OTP{
		ID:           kernel.NewOTPID(),
		MobileNumber: mobileNumber,
		Code:         code,
		ExpiresAt:    now.Add(ttl),
		CreatedAt:    now,
	}, nil
}

// IsValid reports whether the code can still be verified.
func (o *OTP) IsValid(now time.Time) bool {
	return !o.IsUsed && now.Before(o.ExpiresAt)
}

func (o *OTP) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// ExpiresIn is the remaining lifetime, zero once expired.
func (o *OTP) ExpiresIn(now time.Time) time.Duration {
	if d := o.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// MarkUsed flips IsUsed and reports whether it changed. Used never reverts.
func (o *OTP) MarkUsed() bool {
	if o.IsUsed {
		return false
	}
	o.IsUsed = true
	return true
}

// VerifyResult is the outcome of checking a submitted code.
type VerifyResult struct {
	Valid  bool
	Reason string
}

// Message is the user-facing text for the result.
func (r VerifyResult) Message() string {
	switch r.Reason {
	case ReasonAlreadyUsed:
		return "This OTP has already been used"
	case ReasonExpired:
		return "OTP has expired. Please request a new one"
	case ReasonInvalidCode:
		return "Invalid OTP code"
	default:
		return "OTP verified successfully"
	}
}

// Verify checks code against the OTP. Precedence is used, then expired, then mismatch.
func (o *OTP) Verify(code string, now time.Time) VerifyResult {
	switch {
	case o.IsUsed:
		return VerifyResult{Reason: ReasonAlreadyUsed}
	case o.IsExpired(now):
		return VerifyResult{Reason: ReasonExpired}
	case o.Code != code:
		return VerifyResult{Reason: ReasonInvalidCode}
	default:
		return VerifyResult{Valid: true}
	}
}

// GenerateCode returns a uniformly random 6-digit code, leading zeros preserved.
func GenerateCode() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", ErrRegistry.NewWithCause(CodeInternal, err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}
