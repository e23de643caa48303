package otp

import (
	"context"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/kernel"
)

// Repository is the OTP Record Store. Lookups that miss return ErrNotFound.
type Repository interface {
	Create(ctx context.Context, o *OTP) error
	GetByID(ctx context.Context, id kernel.OTPID) (*OTP, error)
	// GetByMobile returns the most recent OTP for the number.
	GetByMobile(ctx context.Context, mobileNumber string) (*OTP, error)
	MarkUsed(ctx context.Context, id kernel.OTPID) error
	// MarkAllUsed marks every unused OTP of the number as used.
	MarkAllUsed(ctx context.Context, mobileNumber string) (int64, error)
	Delete(ctx context.Context, id kernel.OTPID) error
	DeleteByMobile(ctx context.Context, mobileNumber string) (int64, error)

	// Stale rows were created before cutoff and are expired or used.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*OTP, error)
	CountStale(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// AttemptLog is the append-only Attempt Audit Log.
type AttemptLog interface {
	Append(ctx context.Context, a *Attempt) error

	CountRecent(ctx context.Context, identifier string, t AttemptType, window time.Duration) (int, error)
	CountIPRecent(ctx context.Context, ip string, window time.Duration) (int, error)
	CountFailedVerifications(ctx context.Context, otpID kernel.OTPID) (int, error)
	Analyze(ctx context.Context, identifier string, window time.Duration) (SuspiciousActivity, error)
	List(ctx context.Context, identifier string, opts kernel.PaginationOptions) (kernel.Paginated[Attempt], error)

	CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Breakdown(ctx context.Context, cutoff time.Time) ([]AttemptBreakdown, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SMSSender delivers a code to a mobile number.
type SMSSender interface {
	Send(ctx context.Context, mobileNumber, code string) error
}
