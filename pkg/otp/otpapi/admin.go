package otpapi

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/kernel"
	"github.com/Abraxas-365/otpguard/pkg/logx"
	"github.com/Abraxas-365/otpguard/pkg/otp"
	"github.com/Abraxas-365/otpguard/pkg/otp/ratelimit"
	"github.com/gofiber/fiber/v2"
)

// AdminTokenHeader carries the operator token on admin routes.
const AdminTokenHeader = "X-Admin-Token"

// Analyzer runs the suspicious-activity heuristic for an identifier.
type Analyzer interface {
	Analyze(ctx context.Context, identifier string, window time.Duration) (otp.SuspiciousActivity, error)
}

// AdminHandlers expose rate-limit state and the audit log to operators.
type AdminHandlers struct {
	limiter  *ratelimit.Limiter
	attempts otp.AttemptLog
	analyzer Analyzer
	token    string
}

func NewAdminHandlers(limiter *ratelimit.Limiter, attempts otp.AttemptLog, analyzer Analyzer, token string) *AdminHandlers {
	if analyzer == nil {
		analyzer = attempts
	}
	return &AdminHandlers{limiter: limiter, attempts: attempts, analyzer: analyzer, token: token}
}

// Enabled reports whether an admin token is configured.
func (a *AdminHandlers) Enabled() bool { return a.token != "" }

// RegisterRoutes mounts /otp/admin. Nothing is mounted without a token.
func (a *AdminHandlers) RegisterRoutes(router fiber.Router) {
	if !a.Enabled() {
		logx.Warn("OTP admin routes disabled: no admin token configured")
		return
	}
	g := router.Group("/otp/admin", a.requireToken)
	g.Get("/status", a.Status)
	g.Post("/unlock", a.Unlock)
	g.Get("/attempts", a.Attempts)
	g.Get("/suspicious", a.Suspicious)
}

func (a *AdminHandlers) requireToken(c *fiber.Ctx) error {
	got := c.Get(AdminTokenHeader)
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(a.token)) != 1 {
		logx.WithFields(logx.Fields{
			"ip":   ClientIP(c),
			"path": c.Path(),
		}).Warn("rejected admin request")
		return writeError(c, otp.ErrUnauthorized(), false)
	}
	return c.Next()
}

// Status handles GET /otp/admin/status?mobile_number=&ip=.
func (a *AdminHandlers) Status(c *fiber.Ctx) error {
	errs := otp.FieldErrors{}
	mobile := otp.NormalizeMobile(c.Query("mobile_number"), errs)
	ip := c.Query("ip")
	if ip == "" {
		errs.Add("ip", "This field is required.")
	}
	if len(errs) > 0 {
		return writeError(c, validationError(msgInvalidRequest, errs), false)
	}

	st, err := a.limiter.Status(c.UserContext(), mobile, ip)
	if err != nil {
		return writeError(c, err, false)
	}
	return success(c, "Rate limit status", fiber.Map{
		"mobile_number": mobile,
		"ip":            ip,
		"status":        st,
	})
}

// Unlock handles POST /otp/admin/unlock.
func (a *AdminHandlers) Unlock(c *fiber.Ctx) error {
	var req mobileRequest
	errs := otp.FieldErrors{}
	parseBody(c, &req, errs)
	mobile := otp.NormalizeMobile(req.MobileNumber, errs)
	if len(errs) > 0 {
		return writeError(c, validationError(msgInvalidMobile, errs), false)
	}

	ctx := c.UserContext()
	wasLocked, err := a.limiter.IsAccountLocked(ctx, mobile)
	if err != nil {
		return writeError(c, err, false)
	}
	if err := a.limiter.UnlockAccount(ctx, mobile); err != nil {
		return writeError(c, err, false)
	}

	logx.WithFields(logx.Fields{
		"identifier": mobile,
		"was_locked": wasLocked,
		"ip":         ClientIP(c),
	}).Info("account unlocked by operator")
	return success(c, "Account unlocked", fiber.Map{
		"mobile_number": mobile,
		"was_locked":    wasLocked,
	})
}

// Attempts handles GET /otp/admin/attempts?identifier=&page=&page_size=.
func (a *AdminHandlers) Attempts(c *fiber.Ctx) error {
	opts := kernel.PaginationOptions{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
	}
	page, err := a.attempts.List(c.UserContext(), c.Query("identifier"), opts)
	if err != nil {
		return writeError(c, err, false)
	}
	return success(c, "Attempts", page)
}

// Suspicious handles GET /otp/admin/suspicious?identifier=&minutes=.
func (a *AdminHandlers) Suspicious(c *fiber.Ctx) error {
	errs := otp.FieldErrors{}
	identifier := c.Query("identifier")
	if identifier == "" {
		errs.Add("identifier", "This field is required.")
	}
	minutes := c.QueryInt("minutes", int(otp.DefaultAnalysisWindow/time.Minute))
	if minutes < 1 {
		errs.Add("minutes", "Must be a positive number of minutes")
	}
	if len(errs) > 0 {
		return writeError(c, validationError(msgInvalidRequest, errs), false)
	}

	activity, err := a.analyzer.Analyze(c.UserContext(), identifier, time.Duration(minutes)*time.Minute)
	if err != nil {
		return writeError(c, err, false)
	}
	return success(c, "Suspicious activity analysis", fiber.Map{
		"identifier":     identifier,
		"window_minutes": minutes,
		"flagged":        activity.Flagged(),
		"activity":       activity,
	})
}
