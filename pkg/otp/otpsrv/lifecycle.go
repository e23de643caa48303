package otpsrv

import (
	"context"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/errx"
	"github.com/Abraxas-365/otpguard/pkg/logx"
	"github.com/Abraxas-365/otpguard/pkg/otp"
)

// Lifecycle is the only writer of OTP rows. It creates, invalidates and
// verifies codes; rate limiting is the caller's job.
type Lifecycle struct {
	repo otp.Repository
	ttl  time.Duration
	now  func() time.Time
}

func NewLifecycle(repo otp.Repository, ttl time.Duration, now func() time.Time) *Lifecycle {
	if ttl <= 0 {
		ttl = otp.DefaultExpiry
	}
	if now == nil {
		now = time.Now
	}
	return &Lifecycle{repo: repo, ttl: ttl, now: now}
}

func (l *Lifecycle) TTL() time.Duration { return l.ttl }

// Find returns the OTP of the number, or nil when there is none.
func (l *Lifecycle) Find(ctx context.Context, mobileNumber string) (*otp.OTP, error) {
	o, err := l.repo.GetByMobile(ctx, mobileNumber)
	if err != nil {
		if errx.HasCode(err, otp.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

// Generate replaces any row of the number with a fresh code.
func (l *Lifecycle) Generate(ctx context.Context, mobileNumber string) (*otp.OTP, error) {
	if _, err := l.repo.DeleteByMobile(ctx, mobileNumber); err != nil {
		return nil, err
	}

	o, err := otp.New(mobileNumber, l.now().UTC(), l.ttl)
	if err != nil {
		return nil, err
	}
	if err := l.repo.Create(ctx, o); err != nil {
		return nil, err
	}

	logx.WithFields(logx.Fields{
		"otp_id":        o.ID,
		"mobile_number": mobileNumber,
	}).Info("generated otp")
	return o, nil
}

// InvalidateExisting marks the number's OTP used if it is still valid.
// A missing or already invalid OTP is a no-op.
func (l *Lifecycle) InvalidateExisting(ctx context.Context, mobileNumber string) error {
	o, err := l.Find(ctx, mobileNumber)
	if err != nil || o == nil {
		return err
	}
	if !o.IsValid(l.now()) {
		return nil
	}
	return l.Invalidate(ctx, o)
}

// Invalidate marks o used unless it already is.
func (l *Lifecycle) Invalidate(ctx context.Context, o *otp.OTP) error {
	if o.IsUsed {
		return nil
	}
	if err := l.repo.MarkUsed(ctx, o.ID); err != nil {
		return err
	}
	o.MarkUsed()
	logx.WithField("otp_id", o.ID).Info("invalidated otp")
	return nil
}

// Verify checks code against o without touching storage.
func (l *Lifecycle) Verify(o *otp.OTP, code string) otp.VerifyResult {
	return o.Verify(code, l.now())
}

// MarkUsed consumes o and then every other unused OTP of the same number.
// Failing to sweep the others is logged, not returned.
func (l *Lifecycle) MarkUsed(ctx context.Context, o *otp.OTP) error {
	if err := l.repo.MarkUsed(ctx, o.ID); err != nil {
		return err
	}
	o.MarkUsed()

	n, err := l.repo.MarkAllUsed(ctx, o.MobileNumber)
	if err != nil {
		logx.WithError(err).WithField("mobile_number", o.MobileNumber).Error("failed to mark remaining otps used")
		return nil
	}
	if n > 0 {
		logx.WithFields(logx.Fields{
			"mobile_number": o.MobileNumber,
			"count":         n,
		}).Info("marked additional otps used")
	}
	return nil
}

// Discard deletes o, used to roll back a code that could not be delivered.
func (l *Lifecycle) Discard(ctx context.Context, o *otp.OTP) {
	if err := l.repo.Delete(ctx, o.ID); err != nil && !errx.HasCode(err, otp.CodeNotFound) {
		logx.WithError(err).WithField("otp_id", o.ID).Error("failed to roll back undelivered otp")
	}
}
