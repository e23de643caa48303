package ratelimit

import (
	"context"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/asyncx"
	"github.com/Abraxas-365/otpguard/pkg/kernel"
	"github.com/Abraxas-365/otpguard/pkg/logx"
	"github.com/Abraxas-365/otpguard/pkg/otp"
	"github.com/Abraxas-365/otpguard/pkg/ptrx"
)

const (
	msgGeneration = "Too many OTP generation attempts. Please try again later."
	msgVerify     = "Too many verification attempts. This OTP has been locked."
	msgCooldown   = "Please wait before requesting another OTP."
	msgResend     = "Too many resend attempts. Please try again later."
	msgIP         = "Too many requests from your IP address. Please try again later."
	msgLocked     = "Your account has been temporarily locked due to suspicious activity."
)

// LockHook is called when a failed verification locks an identifier that
// was not already locked.
type LockHook func(ctx context.Context, identifier string)

// Limiter is the Rate Limiter Engine. Checks never mutate state; Record*
// methods never fail the caller and log store or audit errors instead.
type Limiter struct {
	store    Store
	attempts otp.AttemptLog
	cfg      Config
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
	onLock   LockHook
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithSleeper replaces the progressive-delay wait.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(l *Limiter) { l.sleep = sleep }
}

func WithLockHook(h LockHook) Option {
	return func(l *Limiter) { l.onLock = h }
}

func New(store Store, attempts otp.AttemptLog, cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		store:    store,
		attempts: attempts,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		sleep:    asyncx.Sleep,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Limiter) Config() Config { return l.cfg }

// ─── Checks ──────────────────────────────────────────────────────────────────

// CheckGeneration runs account lock, IP global, then the generation window.
func (l *Limiter) CheckGeneration(ctx context.Context, identifier, ip string) (Decision, error) {
	if d, err := l.checkAccountLock(ctx, identifier); err != nil || !d.Allowed() {
		return l.logDenial(d, "generation", identifier, ip), err
	}
	if d, err := l.checkIPGlobal(ctx, ip); err != nil || !d.Allowed() {
		return l.logDenial(d, "generation", identifier, ip), err
	}
	d, err := l.checkWindow(ctx, GenerationKey(identifier), GenerationTimestampKey(identifier, 0),
		l.cfg.GenerationLimit, l.cfg.GenerationWindow, msgGeneration)
	return l.logDenial(d, "generation", identifier, ip), err
}

// CheckVerification runs IP global, then the per-OTP attempt cap.
func (l *Limiter) CheckVerification(ctx context.Context, o *otp.OTP, ip string) (Decision, error) {
	if d, err := l.checkIPGlobal(ctx, ip); err != nil || !d.Allowed() {
		return l.logDenial(d, "verification", o.MobileNumber, ip), err
	}

	count, err := getInt(ctx, l.store, VerificationKey(o.ID.String()))
	if err != nil {
		return allow, otp.ErrStore(err)
	}
	if count >= int64(l.cfg.VerificationLimit) {
		d := deny(msgVerify, nil, intPtr(l.cfg.VerificationLimit), "per OTP")
		return l.logDenial(d, "verification", o.MobileNumber, ip), nil
	}
	return allow, nil
}

// CheckResend runs account lock, IP global, cooldown, then the resend window.
func (l *Limiter) CheckResend(ctx context.Context, identifier, ip string) (Decision, error) {
	if d, err := l.checkAccountLock(ctx, identifier); err != nil || !d.Allowed() {
		return l.logDenial(d, "resend", identifier, ip), err
	}
	if d, err := l.checkIPGlobal(ctx, ip); err != nil || !d.Allowed() {
		return l.logDenial(d, "resend", identifier, ip), err
	}

	last, ok, err := getTime(ctx, l.store, ResendLastKey(identifier))
	if err != nil {
		return allow, otp.ErrStore(err)
	}
	if ok {
		if elapsed := l.now().Sub(last); elapsed < l.cfg.ResendCooldown {
			d := deny(msgCooldown,
				intPtr(ceilSeconds((l.cfg.ResendCooldown - elapsed).Seconds())),
				intPtr(1),
				seconds(l.cfg.ResendCooldown))
			return l.logDenial(d, "resend", identifier, ip), nil
		}
	}

	d, err := l.checkWindow(ctx, ResendKey(identifier), ResendTimestampKey(identifier, 0),
		l.cfg.ResendLimit, l.cfg.ResendWindow, msgResend)
	return l.logDenial(d, "resend", identifier, ip), err
}

func (l *Limiter) checkAccountLock(ctx context.Context, identifier string) (Decision, error) {
	_, locked, err := l.store.Get(ctx, LockKey(identifier))
	if err != nil {
		return allow, otp.ErrStore(err)
	}
	if !locked {
		return allow, nil
	}

	retry := int(l.cfg.AccountLockDuration / time.Second)
	if ttl, ok, err := l.store.TTL(ctx, LockKey(identifier)); err == nil && ok && ttl > 0 {
		retry = ceilSeconds(ttl.Seconds())
	}
	return deny(msgLocked, intPtr(retry), nil, minutes(l.cfg.AccountLockDuration)), nil
}

func (l *Limiter) checkIPGlobal(ctx context.Context, ip string) (Decision, error) {
	count, err := getInt(ctx, l.store, IPKey(ip))
	if err != nil {
		return allow, otp.ErrStore(err)
	}
	if count >= int64(l.cfg.IPGlobalLimit) {
		return deny(msgIP,
			intPtr(int(l.cfg.IPGlobalWindow/time.Second)),
			intPtr(l.cfg.IPGlobalLimit),
			minutes(l.cfg.IPGlobalWindow)), nil
	}
	return allow, nil
}

// checkWindow denies once count reaches limit while the oldest recorded
// attempt is still inside the window. A missing oldest timestamp allows.
func (l *Limiter) checkWindow(ctx context.Context, counter, oldest Key, limit int, window time.Duration, msg string) (Decision, error) {
	count, err := getInt(ctx, l.store, counter)
	if err != nil {
		return allow, otp.ErrStore(err)
	}
	if count < int64(limit) {
		return allow, nil
	}

	first, ok, err := getTime(ctx, l.store, oldest)
	if err != nil {
		return allow, otp.ErrStore(err)
	}
	if !ok {
		return allow, nil
	}
	remaining := window - l.now().Sub(first)
	if remaining <= 0 {
		return allow, nil
	}
	return deny(msg, intPtr(ceilSeconds(remaining.Seconds())), intPtr(limit), minutes(window)), nil
}

func (l *Limiter) logDenial(d Decision, op, identifier, ip string) Decision {
	if d.Denied != nil {
		logx.WithFields(logx.Fields{
			"operation":   op,
			"identifier":  identifier,
			"ip":          ip,
			"reason":      d.Denied.Message,
			"retry_after": d.Denied.RetryAfter,
		}).Warn("rate limit exceeded")
	}
	return d
}

// ─── Recording ───────────────────────────────────────────────────────────────

// RecordOption decorates the audit row of a recorded attempt.
type RecordOption func(*otp.Attempt)

func WithUserAgent(ua string) RecordOption {
	return func(a *otp.Attempt) { a.UserAgent = ptrx.StringOrNil(ua) }
}

func WithErrorMessage(msg string) RecordOption {
	return func(a *otp.Attempt) { a.ErrorMessage = ptrx.StringOrNil(msg) }
}

func WithOTP(id kernel.OTPID) RecordOption {
	return func(a *otp.Attempt) { a.OTPID = &id }
}

func WithMetadata(key string, value interface{}) RecordOption {
	return func(a *otp.Attempt) {
		if a.Metadata == nil {
			a.Metadata = map[string]interface{}{}
		}
		a.Metadata[key] = value
	}
}

// RecordGeneration counts the attempt in the generation window and audits it.
func (l *Limiter) RecordGeneration(ctx context.Context, identifier, ip string, success bool, opts ...RecordOption) {
	l.countInWindow(ctx, GenerationKey(identifier), func(n int64) Key {
		return GenerationTimestampKey(identifier, n)
	}, l.cfg.GenerationWindow)

	l.Audit(ctx, l.newAttempt(identifier, otp.AttemptGeneration, ip, success, opts))
}

// RecordVerification counts the attempt against the OTP, locks the account
// when a failure reaches the cap, applies the progressive delay and audits the
// attempt under the OTP's mobile number. The only error is ctx's, returned
// when the delay is cut short; the attempt is then counted but not audited.
func (l *Limiter) RecordVerification(ctx context.Context, o *otp.OTP, ip string, success bool, errMsg string, opts ...RecordOption) error {
	count, err := l.store.Incr(ctx, VerificationKey(o.ID.String()), 0)
	if err != nil {
		logx.WithError(err).WithField("otp_id", o.ID).Error("ratelimit: verification counter increment failed")
	}

	if !success && count >= int64(l.cfg.VerificationLimit) {
		l.lockAccount(ctx, o.MobileNumber)
	}

	if !success && l.cfg.EnableProgressiveDelay {
		if d := ProgressiveDelay(count); d > 0 {
			if err := l.sleep(ctx, d); err != nil {
				logx.WithFields(logx.Fields{
					"otp_id": o.ID,
					"delay":  d.String(),
				}).Warn("verification delay interrupted")
				return err
			}
		}
	}

	opts = append([]RecordOption{WithOTP(o.ID), WithErrorMessage(errMsg)}, opts...)
	l.Audit(ctx, l.newAttempt(o.MobileNumber, otp.AttemptVerification, ip, success, opts))
	return nil
}

// RecordResend counts the attempt in the resend window, starts the cooldown and audits it.
func (l *Limiter) RecordResend(ctx context.Context, identifier, ip string, success bool, opts ...RecordOption) {
	now := l.countInWindow(ctx, ResendKey(identifier), func(n int64) Key {
		return ResendTimestampKey(identifier, n)
	}, l.cfg.ResendWindow)

	if err := l.store.Set(ctx, ResendLastKey(identifier), formatTime(now), l.cfg.ResendCooldown); err != nil {
		logx.WithError(err).WithField("identifier", identifier).Error("ratelimit: resend cooldown write failed")
	}

	l.Audit(ctx, l.newAttempt(identifier, otp.AttemptResend, ip, success, opts))
}

// RecordIPActivity counts one processed request against the IP.
func (l *Limiter) RecordIPActivity(ctx context.Context, ip string) {
	if _, err := l.store.Incr(ctx, IPKey(ip), l.cfg.IPGlobalWindow); err != nil {
		logx.WithError(err).WithField("ip", ip).Error("ratelimit: ip counter increment failed")
	}
}

// countInWindow increments counter and stamps the slot it occupied.
func (l *Limiter) countInWindow(ctx context.Context, counter Key, slot func(int64) Key, window time.Duration) time.Time {
	now := l.now()
	n, err := l.store.Incr(ctx, counter, window)
	if err != nil {
		logx.WithError(err).WithField("key", counter.String()).Error("ratelimit: counter increment failed")
		return now
	}
	if err := l.store.Set(ctx, slot(n-1), formatTime(now), window); err != nil {
		logx.WithError(err).WithField("key", counter.String()).Error("ratelimit: timestamp write failed")
	}
	return now
}

func (l *Limiter) newAttempt(identifier string, t otp.AttemptType, ip string, success bool, opts []RecordOption) *otp.Attempt {
	a := &otp.Attempt{
		Identifier: identifier,
		Type:       t,
		IPAddress:  ip,
		Success:    success,
		Metadata:   map[string]interface{}{},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Audit appends a row to the attempt log. Failures are logged, never returned.
func (l *Limiter) Audit(ctx context.Context, a *otp.Attempt) {
	if a.ID.IsEmpty() {
		a.ID = kernel.NewAttemptID()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = l.now().UTC()
	}
	if a.Metadata == nil {
		a.Metadata = map[string]interface{}{}
	}
	if l.attempts == nil {
		return
	}
	if err := l.attempts.Append(ctx, a); err != nil {
		logx.WithError(err).WithFields(logx.Fields{
			"identifier":   a.Identifier,
			"attempt_type": a.Type,
		}).Error("ratelimit: audit write failed")
	}
}

// ─── Locks and helpers ───────────────────────────────────────────────────────

// lockAccount (re)starts the lock. The hook fires only when no lock was
// already in place, so repeated failures during a lock raise one alert.
func (l *Limiter) lockAccount(ctx context.Context, identifier string) {
	wasLocked, err := l.IsAccountLocked(ctx, identifier)
	if err != nil {
		logx.WithError(err).WithField("identifier", identifier).Error("ratelimit: account lock read failed")
	}
	if err := l.store.Set(ctx, LockKey(identifier), "1", l.cfg.AccountLockDuration); err != nil {
		logx.WithError(err).WithField("identifier", identifier).Error("ratelimit: account lock write failed")
		return
	}
	if wasLocked {
		return
	}
	logx.WithFields(logx.Fields{
		"identifier": identifier,
		"duration":   l.cfg.AccountLockDuration.String(),
	}).Warn("account locked after repeated verification failures")

	if l.onLock != nil {
		l.onLock(ctx, identifier)
	}
}

func (l *Limiter) UnlockAccount(ctx context.Context, identifier string) error {
	if err := l.store.Delete(ctx, LockKey(identifier)); err != nil {
		return otp.ErrStore(err)
	}
	logx.WithField("identifier", identifier).Info("account unlocked")
	return nil
}

func (l *Limiter) IsAccountLocked(ctx context.Context, identifier string) (bool, error) {
	_, locked, err := l.store.Get(ctx, LockKey(identifier))
	if err != nil {
		return false, otp.ErrStore(err)
	}
	return locked, nil
}

// ClearVerificationAttempts resets the per-OTP counter after a successful verification.
func (l *Limiter) ClearVerificationAttempts(ctx context.Context, id kernel.OTPID) error {
	if err := l.store.Delete(ctx, VerificationKey(id.String())); err != nil {
		return otp.ErrStore(err)
	}
	return nil
}

// RemainingAttempts is max(0, limit - attempts so far) for the OTP.
func (l *Limiter) RemainingAttempts(ctx context.Context, id kernel.OTPID) (int, error) {
	count, err := getInt(ctx, l.store, VerificationKey(id.String()))
	if err != nil {
		return 0, otp.ErrStore(err)
	}
	return remaining(l.cfg.VerificationLimit, count), nil
}

// ResendInfo summarizes the resend quota for an identifier.
type ResendInfo struct {
	Used              int `json:"used"`
	Remaining         int `json:"remaining"`
	Limit             int `json:"limit"`
	CooldownRemaining int `json:"cooldown_remaining"`
}

func (l *Limiter) ResendInfo(ctx context.Context, identifier string) (ResendInfo, error) {
	used, err := getInt(ctx, l.store, ResendKey(identifier))
	if err != nil {
		return ResendInfo{}, otp.ErrStore(err)
	}
	info := ResendInfo{
		Used:      int(used),
		Remaining: remaining(l.cfg.ResendLimit, used),
		Limit:     l.cfg.ResendLimit,
	}

	last, ok, err := getTime(ctx, l.store, ResendLastKey(identifier))
	if err != nil {
		return info, otp.ErrStore(err)
	}
	if ok {
		if left := l.cfg.ResendCooldown - l.now().Sub(last); left > 0 {
			info.CooldownRemaining = int(left / time.Second)
		}
	}
	return info, nil
}

func remaining(limit int, used int64) int {
	if r := int64(limit) - used; r > 0 {
		return int(r)
	}
	return 0
}
