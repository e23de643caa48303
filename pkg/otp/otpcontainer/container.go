package otpcontainer

import (
	"context"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/config"
	"github.com/Abraxas-365/otpguard/pkg/jobx"
	"github.com/Abraxas-365/otpguard/pkg/logx"
	"github.com/Abraxas-365/otpguard/pkg/notifx"
	"github.com/Abraxas-365/otpguard/pkg/otp"
	"github.com/Abraxas-365/otpguard/pkg/otp/otpapi"
	"github.com/Abraxas-365/otpguard/pkg/otp/otpinfra"
	"github.com/Abraxas-365/otpguard/pkg/otp/otpsrv"
	"github.com/Abraxas-365/otpguard/pkg/otp/otptoken"
	"github.com/Abraxas-365/otpguard/pkg/otp/ratelimit"
	"github.com/Abraxas-365/otpguard/pkg/otp/ratelimit/ratelimitredis"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// ---------------------------------------------------------------------------
// Deps: everything the OTP context needs from the outside.
// ---------------------------------------------------------------------------

type Deps struct {
	// DB may be nil when Cfg.Database.Storage is "memory".
	DB *sqlx.DB
	// Redis may be nil when Cfg.Redis.Store is "memory".
	Redis redis.UniversalClient
	Cfg   *config.Config

	// Notifier delivers codes by SMS and alerts by email.
	Notifier *notifx.Client
	// Jobs runs security alerts and the scheduled cleanup.
	Jobs *jobx.Client

	// Now overrides the clock (tests).
	Now func() time.Time
	// Sleeper overrides the progressive-delay wait (tests).
	Sleeper func(context.Context, time.Duration) error
}

// ---------------------------------------------------------------------------
// Container: the public surface of the OTP context.
// ---------------------------------------------------------------------------

type Container struct {
	Repository otp.Repository
	Attempts   otp.AttemptLog
	Limiter    *ratelimit.Limiter
	Tokens     *otptoken.Service // nil when OTP_TOKEN_SECRET is unset

	Service        *otpsrv.Service
	AlertService   *otpsrv.AlertService
	CleanupService *otpsrv.CleanupService

	Handlers      *otpapi.Handlers
	AdminHandlers *otpapi.AdminHandlers

	jobs           *jobx.Client
	cleanupDefault otpsrv.CleanupOptions
	cleanupCfg     config.CleanupConfig
}

// ---------------------------------------------------------------------------
// New: repos -> limiter -> services -> handlers.
// ---------------------------------------------------------------------------

func New(deps Deps) (*Container, error) {
	logx.Info("🔧 Initializing OTP container...")

	cfg := deps.Cfg
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	c := &Container{
		jobs:       deps.Jobs,
		cleanupCfg: cfg.Cleanup,
		cleanupDefault: otpsrv.CleanupOptions{
			OTPDays:     cfg.Cleanup.OTPDays,
			AttemptDays: cfg.Cleanup.AttemptDays,
		},
	}

	// ── Repositories ─────────────────────────────────────────────────────

	if cfg.Database.Storage == "memory" || deps.DB == nil {
		c.Repository = otpinfra.NewMemoryOTPRepository(now)
		c.Attempts = otpinfra.NewMemoryAttemptLog(now)
		logx.Warn("  ⚠️  Using in-memory OTP storage (not recommended for production)")
	} else {
		c.Repository = otpinfra.NewPostgresOTPRepository(deps.DB)
		c.Attempts = otpinfra.NewPostgresAttemptLog(deps.DB)
		logx.Info("  ✅ Using PostgreSQL OTP storage")
	}

	var store ratelimit.Store
	if cfg.Redis.Store == "memory" || deps.Redis == nil {
		store = ratelimit.NewMemoryStore(now)
		logx.Warn("  ⚠️  Using in-memory rate limit store (not shared across replicas)")
	} else {
		store = ratelimitredis.New(deps.Redis)
		logx.Info("  ✅ Using Redis rate limit store")
	}

	// ── Rate limiter ─────────────────────────────────────────────────────

	limiterOpts := []ratelimit.Option{ratelimit.WithClock(now)}
	if deps.Sleeper != nil {
		limiterOpts = append(limiterOpts, ratelimit.WithSleeper(deps.Sleeper))
	}
	if deps.Jobs != nil {
		limiterOpts = append(limiterOpts, ratelimit.WithLockHook(
			otpsrv.LockAlerter(deps.Jobs, cfg.RateLimit.AccountLockDuration, now),
		))
	}
	c.Limiter = ratelimit.New(store, c.Attempts, LimiterConfig(cfg.RateLimit), limiterOpts...)

	// ── Delivery ─────────────────────────────────────────────────────────

	sms, err := otpinfra.NewNotifxSMSSender(deps.Notifier, cfg.OTP.Expiry,
		otpinfra.WithSenderID(cfg.Notifx.SMSSenderID),
	)
	if err != nil {
		return nil, err
	}

	// ── Services ─────────────────────────────────────────────────────────

	serviceOpts := []otpsrv.ServiceOption{otpsrv.WithServiceClock(now)}
	handlerOpts := []otpapi.Option{otpapi.WithDebug(cfg.Server.Debug)}
	if cfg.Token.Enabled() {
		c.Tokens = otptoken.New(cfg.Token.Secret, cfg.Token.TTL, cfg.Token.Issuer).WithClock(now)
		serviceOpts = append(serviceOpts, otpsrv.WithTokenIssuer(c.Tokens))
		handlerOpts = append(handlerOpts, otpapi.WithTokenParser(c.Tokens))
	} else {
		logx.Warn("  ⚠️  OTP_TOKEN_SECRET not set, verification tokens disabled")
	}

	c.Service = otpsrv.NewService(
		otpsrv.NewLifecycle(c.Repository, cfg.OTP.Expiry, now),
		c.Limiter,
		sms,
		serviceOpts...,
	)

	c.AlertService, err = otpsrv.NewAlertService(c.Attempts, deps.Notifier, cfg.Notifx.FromAddress, cfg.Notifx.AlertRecipients)
	if err != nil {
		return nil, err
	}

	c.CleanupService = otpsrv.NewCleanupService(c.Repository, c.Attempts, now)

	// ── Handlers ─────────────────────────────────────────────────────────

	c.Handlers = otpapi.NewHandlers(c.Service, handlerOpts...)
	c.AdminHandlers = otpapi.NewAdminHandlers(c.Limiter, c.Attempts, c.AlertService, cfg.Admin.Token)

	logx.Info("✅ OTP container initialized")
	return c, nil
}

// LimiterConfig converts the env-level settings into limiter quotas.
func LimiterConfig(rc config.RateLimitConfig) ratelimit.Config {
	return ratelimit.Config{
		GenerationLimit:        rc.GenerationLimit,
		GenerationWindow:       rc.GenerationWindow,
		VerificationLimit:      rc.VerificationLimit,
		ResendLimit:            rc.ResendLimit,
		ResendWindow:           rc.ResendWindow,
		ResendCooldown:         rc.ResendCooldown,
		IPGlobalLimit:          rc.IPGlobalLimit,
		IPGlobalWindow:         rc.IPGlobalWindow,
		AccountLockDuration:    rc.AccountLockDuration,
		EnableProgressiveDelay: rc.EnableProgressiveDelay,
	}
}

// RegisterRoutes mounts public and admin routes under router.
func (c *Container) RegisterRoutes(router fiber.Router) {
	c.Handlers.RegisterRoutes(router)
	c.AdminHandlers.RegisterRoutes(router)
}

// RegisterJobs wires the job handlers and, when enabled, the recurring cleanup.
func (c *Container) RegisterJobs() error {
	if c.jobs == nil {
		return nil
	}

	c.jobs.Register(otpsrv.JobSecurityAlert, c.AlertService.HandleSecurityAlert)
	c.jobs.Register(otpsrv.JobCleanup, otpsrv.CleanupHandler(c.CleanupService, c.cleanupDefault))
	logx.Info("  ✅ OTP job handlers registered")

	if !c.cleanupCfg.Enabled {
		logx.Warn("  ⚠️  Scheduled OTP cleanup disabled")
		return nil
	}
	schedule, err := otpsrv.CleanupSchedule(c.cleanupCfg.Interval, c.cleanupDefault)
	if err != nil {
		return err
	}
	if err := c.jobs.Every(schedule); err != nil {
		return err
	}
	logx.Infof("  ✅ OTP cleanup scheduled every %s", c.cleanupCfg.Interval)
	return nil
}
