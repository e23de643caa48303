package otpsrv

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/Abraxas-365/otpguard/pkg/logx"
	"github.com/Abraxas-365/otpguard/pkg/otp"
	"github.com/Abraxas-365/otpguard/pkg/otp/ratelimit"
)

// Actions reported by Resend.
const (
	ActionGeneratedNew   = "generated_new"
	ActionResentExisting = "resent_existing"
)

// TokenIssuer signs proof that a number was verified.
type TokenIssuer interface {
	Issue(mobileNumber string, verifiedAt time.Time) (token string, expiresAt time.Time, err error)
}

// RequestMeta describes the caller of a flow.
type RequestMeta struct {
	IP        string
	UserAgent string
}

type GenerateResult struct {
	MobileNumber     string
	ExpiresInSeconds int
	OTP              *otp.OTP
}

type VerifyResult struct {
	MobileNumber   string
	VerifiedAt     time.Time
	Token          string
	TokenExpiresAt time.Time
}

type ResendResult struct {
	MobileNumber          string
	ExpiresInSeconds      int
	Action                string
	ResendsRemaining      int
	ResendsUsed           int
	NextResendAvailableIn int
	OTP                   *otp.OTP
}

// Service runs the generate, verify and resend flows: rate checks first,
// then the lifecycle operation, then recording.
type Service struct {
	lifecycle *Lifecycle
	limiter   *ratelimit.Limiter
	sms       otp.SMSSender
	tokens    TokenIssuer
	now       func() time.Time
}

type ServiceOption func(*Service)

func WithTokenIssuer(t TokenIssuer) ServiceOption {
	return func(s *Service) { s.tokens = t }
}

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(lifecycle *Lifecycle, limiter *ratelimit.Limiter, sms otp.SMSSender, opts ...ServiceOption) *Service {
	s := &Service{
		lifecycle: lifecycle,
		limiter:   limiter,
		sms:       sms,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Limiter() *ratelimit.Limiter { return s.limiter }

func (s *Service) expiresIn(o *otp.OTP) int {
	return int(o.ExpiresIn(s.now()) / time.Second)
}

// Generate issues and delivers a fresh code.
func (s *Service) Generate(ctx context.Context, mobileNumber string, meta RequestMeta) (*GenerateResult, error) {
	ua := ratelimit.WithUserAgent(meta.UserAgent)

	d, err := s.limiter.CheckGeneration(ctx, mobileNumber, meta.IP)
	if err != nil {
		return nil, s.failGeneration(ctx, mobileNumber, meta, err)
	}
	if !d.Allowed() {
		s.limiter.RecordGeneration(ctx, mobileNumber, meta.IP, false, ua, ratelimit.WithErrorMessage("Rate limit exceeded"))
		return nil, denialError(d.Denied)
	}

	if err := s.lifecycle.InvalidateExisting(ctx, mobileNumber); err != nil {
		return nil, s.failGeneration(ctx, mobileNumber, meta, err)
	}
	o, err := s.lifecycle.Generate(ctx, mobileNumber)
	if err != nil {
		return nil, s.failGeneration(ctx, mobileNumber, meta, err)
	}

	sendErr := s.sms.Send(ctx, mobileNumber, o.Code)

	opts := []ratelimit.RecordOption{ua, ratelimit.WithOTP(o.ID)}
	if sendErr != nil {
		opts = append(opts, ratelimit.WithErrorMessage("SMS send failed"))
	}
	s.limiter.RecordGeneration(ctx, mobileNumber, meta.IP, sendErr == nil, opts...)
	s.limiter.RecordIPActivity(ctx, meta.IP)

	if sendErr != nil {
		s.lifecycle.Discard(ctx, o)
		logx.WithError(sendErr).WithField("mobile_number", mobileNumber).Error("failed to send otp")
		return nil, otp.ErrSMSFailed(sendErr)
	}

	logx.WithField("mobile_number", mobileNumber).Info("otp generated and sent")
	return &GenerateResult{
		MobileNumber:     mobileNumber,
		ExpiresInSeconds: s.expiresIn(o),
		OTP:              o,
	}, nil
}

func (s *Service) failGeneration(ctx context.Context, mobileNumber string, meta RequestMeta, err error) error {
	logx.WithError(err).WithField("mobile_number", mobileNumber).Error("unexpected error during otp generation")
	s.limiter.RecordGeneration(ctx, mobileNumber, meta.IP, false,
		ratelimit.WithUserAgent(meta.UserAgent), ratelimit.WithErrorMessage(truncate(err.Error())))
	return internalError(msgGenerateFailed, err)
}

// Verify checks a submitted code and consumes the OTP on success.
func (s *Service) Verify(ctx context.Context, mobileNumber, code string, meta RequestMeta) (*VerifyResult, error) {
	ua := ratelimit.WithUserAgent(meta.UserAgent)

	o, err := s.lifecycle.Find(ctx, mobileNumber)
	if err != nil {
		return nil, s.failVerification(ctx, mobileNumber, meta, err)
	}
	if o == nil {
		logx.WithField("mobile_number", mobileNumber).Warn("no otp found for verification")
		s.audit(ctx, mobileNumber, otp.AttemptVerification, meta, "OTP not found")
		return nil, otp.ErrInvalidOTP()
	}

	d, err := s.limiter.CheckVerification(ctx, o, meta.IP)
	if err != nil {
		return nil, s.failVerification(ctx, mobileNumber, meta, err)
	}
	if !d.Allowed() {
		if err := s.limiter.RecordVerification(ctx, o, meta.IP, false, "Rate limit exceeded", ua); err != nil {
			return nil, err
		}
		return nil, denialError(d.Denied)
	}

	res := s.lifecycle.Verify(o, code)
	if !res.Valid {
		if err := s.limiter.RecordVerification(ctx, o, meta.IP, false, res.Reason, ua); err != nil {
			return nil, err
		}
		s.limiter.RecordIPActivity(ctx, meta.IP)

		left, err := s.limiter.RemainingAttempts(ctx, o.ID)
		if err != nil {
			logx.WithError(err).WithField("otp_id", o.ID).Error("failed to read remaining attempts")
		}
		logx.WithFields(logx.Fields{
			"mobile_number":      mobileNumber,
			"otp_id":             o.ID,
			"ip":                 meta.IP,
			"reason":             res.Reason,
			"remaining_attempts": left,
		}).Warn("failed otp verification")
		return nil, invalidOTPError(res, left)
	}

	if err := s.lifecycle.MarkUsed(ctx, o); err != nil {
		return nil, s.failVerification(ctx, mobileNumber, meta, err)
	}

	if err := s.limiter.RecordVerification(ctx, o, meta.IP, true, "", ua); err != nil {
		return nil, err
	}
	s.limiter.RecordIPActivity(ctx, meta.IP)
	if err := s.limiter.ClearVerificationAttempts(ctx, o.ID); err != nil {
		logx.WithError(err).WithField("otp_id", o.ID).Error("failed to clear verification attempts")
	}

	result := &VerifyResult{MobileNumber: mobileNumber, VerifiedAt: s.now().UTC()}
	if s.tokens != nil {
		token, exp, err := s.tokens.Issue(mobileNumber, result.VerifiedAt)
		if err != nil {
			logx.WithError(err).WithField("mobile_number", mobileNumber).Error("failed to issue verification token")
		} else {
			result.Token, result.TokenExpiresAt = token, exp
		}
	}

	logx.WithField("mobile_number", mobileNumber).Info("otp verified")
	return result, nil
}

func (s *Service) failVerification(ctx context.Context, mobileNumber string, meta RequestMeta, err error) error {
	logx.WithError(err).WithField("mobile_number", mobileNumber).Error("unexpected error during otp verification")
	s.audit(ctx, mobileNumber, otp.AttemptVerification, meta, truncate(err.Error()))
	return internalError(msgVerifyFailed, err)
}

// Resend redelivers the current code, or a new one when it is expired or used.
func (s *Service) Resend(ctx context.Context, mobileNumber string, meta RequestMeta) (*ResendResult, error) {
	ua := ratelimit.WithUserAgent(meta.UserAgent)

	existing, err := s.lifecycle.Find(ctx, mobileNumber)
	if err != nil {
		return nil, s.failResend(ctx, mobileNumber, meta, err)
	}
	if existing == nil {
		logx.WithField("mobile_number", mobileNumber).Warn("no otp found for resend")
		s.audit(ctx, mobileNumber, otp.AttemptResend, meta, "No OTP found")
		return nil, otp.ErrNoActiveOTP()
	}

	d, err := s.limiter.CheckResend(ctx, mobileNumber, meta.IP)
	if err != nil {
		return nil, s.failResend(ctx, mobileNumber, meta, err)
	}
	if !d.Allowed() {
		s.limiter.RecordResend(ctx, mobileNumber, meta.IP, false, ua, ratelimit.WithErrorMessage("Rate limit exceeded"))
		return nil, denialError(d.Denied)
	}

	toSend, action := existing, ActionResentExisting
	if existing.IsUsed || existing.IsExpired(s.now()) {
		if err := s.lifecycle.Invalidate(ctx, existing); err != nil {
			return nil, s.failResend(ctx, mobileNumber, meta, err)
		}
		if toSend, err = s.lifecycle.Generate(ctx, mobileNumber); err != nil {
			return nil, s.failResend(ctx, mobileNumber, meta, err)
		}
		action = ActionGeneratedNew
	}

	sendErr := s.sms.Send(ctx, mobileNumber, toSend.Code)

	opts := []ratelimit.RecordOption{ua, ratelimit.WithOTP(toSend.ID), ratelimit.WithMetadata("action", action)}
	if sendErr != nil {
		opts = append(opts, ratelimit.WithErrorMessage("SMS send failed"))
	}
	s.limiter.RecordResend(ctx, mobileNumber, meta.IP, sendErr == nil, opts...)
	s.limiter.RecordIPActivity(ctx, meta.IP)

	if sendErr != nil {
		if action == ActionGeneratedNew {
			s.lifecycle.Discard(ctx, toSend)
		}
		logx.WithError(sendErr).WithField("mobile_number", mobileNumber).Error("failed to resend otp")
		return nil, otp.ErrSMSFailed(sendErr)
	}

	info, err := s.limiter.ResendInfo(ctx, mobileNumber)
	if err != nil {
		logx.WithError(err).WithField("mobile_number", mobileNumber).Error("failed to read resend info")
	}

	logx.WithFields(logx.Fields{
		"mobile_number": mobileNumber,
		"action":        action,
	}).Info("otp resent")
	return &ResendResult{
		MobileNumber:          mobileNumber,
		ExpiresInSeconds:      s.expiresIn(toSend),
		Action:                action,
		ResendsRemaining:      info.Remaining,
		ResendsUsed:           info.Used,
		NextResendAvailableIn: info.CooldownRemaining,
		OTP:                   toSend,
	}, nil
}

func (s *Service) failResend(ctx context.Context, mobileNumber string, meta RequestMeta, err error) error {
	logx.WithError(err).WithField("mobile_number", mobileNumber).Error("unexpected error during otp resend")
	s.limiter.RecordResend(ctx, mobileNumber, meta.IP, false,
		ratelimit.WithUserAgent(meta.UserAgent), ratelimit.WithErrorMessage(truncate(err.Error())))
	return internalError(msgResendFailed, err)
}

// audit writes a failed row that no counter tracks.
func (s *Service) audit(ctx context.Context, identifier string, t otp.AttemptType, meta RequestMeta, errMsg string) {
	a := &otp.Attempt{Identifier: identifier, Type: t, IPAddress: meta.IP}
	ratelimit.WithUserAgent(meta.UserAgent)(a)
	ratelimit.WithErrorMessage(errMsg)(a)
	s.limiter.Audit(ctx, a)
}

// error_message is varchar(255).
// truncate cuts s to at most 255 bytes without splitting a rune.
func truncate(s string) string {
	const limit = 255
	if len(s) <= limit {
		return s
	}
	i := limit
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i]
}
