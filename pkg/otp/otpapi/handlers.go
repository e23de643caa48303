package otpapi

import (
	"strings"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/kernel"
	"github.com/Abraxas-365/otpguard/pkg/otp"
	"github.com/Abraxas-365/otpguard/pkg/otp/otpsrv"
	"github.com/gofiber/fiber/v2"
)

const (
	msgInvalidMobile  = "Invalid mobile number"
	msgInvalidRequest = "Invalid request data"
)

// TokenParser validates verification tokens for the session route.
type TokenParser interface {
	Parse(token string) (*kernel.VerifiedContext, error)
}

// Handlers serves the public OTP endpoints.
type Handlers struct {
	service *otpsrv.Service
	tokens  TokenParser
	debug   bool
}

type Option func(*Handlers)

// WithDebug exposes otp_id, code and error details in responses.
func WithDebug(debug bool) Option {
	return func(h *Handlers) { h.debug = debug }
}

// WithTokenParser enables GET /otp/session.
func WithTokenParser(p TokenParser) Option {
	return func(h *Handlers) { h.tokens = p }
}

func NewHandlers(service *otpsrv.Service, opts ...Option) *Handlers {
	h := &Handlers{service: service}
	for _, o := range opts {
		o(h)
	}
	return h
}

// RegisterRoutes mounts the handlers under router (usually /api).
func (h *Handlers) RegisterRoutes(router fiber.Router) {
	g := router.Group("/otp")
	g.Post("/generate", h.Generate)
	g.Post("/verify", h.Verify)
	g.Post("/resend", h.Resend)
	if h.tokens != nil {
		g.Get("/session", h.RequireVerified(), h.Session)
	}
}

type mobileRequest struct {
	MobileNumber string `json:"mobile_number"`
}

type verifyRequest struct {
	MobileNumber string `json:"mobile_number"`
	OTPCode      string `json:"otp_code"`
}

type generateData struct {
	MobileNumber     string  `json:"mobile_number"`
	ExpiresInSeconds int     `json:"expires_in_seconds"`
	OTPID            *string `json:"otp_id"`
	Code             *string `json:"code"`
}

type verifyData struct {
	MobileNumber      string     `json:"mobile_number"`
	VerifiedAt        time.Time  `json:"verified_at"`
	VerificationToken string     `json:"verification_token,omitempty"`
	TokenExpiresAt    *time.Time `json:"token_expires_at,omitempty"`
}

type resendData struct {
	MobileNumber          string  `json:"mobile_number"`
	ExpiresInSeconds      int     `json:"expires_in_seconds"`
	ActionTaken           string  `json:"action_taken"`
	ResendsRemaining      int     `json:"resends_remaining"`
	ResendsUsed           int     `json:"resends_used"`
	NextResendAvailableIn int     `json:"next_resend_available_in"`
	OTPID                 *string `json:"otp_id"`
	Code                  *string `json:"code"`
}

// parseBody decodes the JSON body; a malformed body is reported as a field error.
func parseBody(c *fiber.Ctx, out interface{}, errs otp.FieldErrors) {
	if len(c.Body()) == 0 {
		return
	}
	if err := c.BodyParser(out); err != nil {
		errs.Add("non_field_errors", "Malformed request body")
	}
}

// debugFields returns the otp id and code only in debug mode.
func (h *Handlers) debugFields(o *otp.OTP) (*string, *string) {
	if !h.debug || o == nil {
		return nil, nil
	}
	id, code := o.ID.String(), o.Code
	return &id, &code
}

// Generate handles POST /otp/generate.
func (h *Handlers) Generate(c *fiber.Ctx) error {
	var req mobileRequest
	errs := otp.FieldErrors{}
	parseBody(c, &req, errs)
	mobile := otp.NormalizeMobile(req.MobileNumber, errs)
	if len(errs) > 0 {
		return writeError(c, validationError(msgInvalidMobile, errs), h.debug)
	}

	res, err := h.service.Generate(c.UserContext(), mobile, requestMeta(c))
	if err != nil {
		return writeError(c, err, h.debug)
	}

	id, code := h.debugFields(res.OTP)
	return success(c, "OTP sent successfully", generateData{
		MobileNumber:     res.MobileNumber,
		ExpiresInSeconds: res.ExpiresInSeconds,
		OTPID:            id,
		Code:             code,
	})
}

// Verify handles POST /otp/verify.
func (h *Handlers) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	errs := otp.FieldErrors{}
	parseBody(c, &req, errs)
	mobile := otp.NormalizeMobile(req.MobileNumber, errs)
	code := otp.NormalizeCode(req.OTPCode, errs)
	if len(errs) > 0 {
		return writeError(c, validationError(msgInvalidRequest, errs), h.debug)
	}

	res, err := h.service.Verify(c.UserContext(), mobile, code, requestMeta(c))
	if err != nil {
		return writeError(c, err, h.debug)
	}

	data := verifyData{MobileNumber: res.MobileNumber, VerifiedAt: res.VerifiedAt}
	if res.Token != "" {
		exp := res.TokenExpiresAt
		data.VerificationToken = res.Token
		data.TokenExpiresAt = &exp
	}
	return success(c, "OTP verified successfully", data)
}

// Resend handles POST /otp/resend.
func (h *Handlers) Resend(c *fiber.Ctx) error {
	var req mobileRequest
	errs := otp.FieldErrors{}
	parseBody(c, &req, errs)
	mobile := otp.NormalizeResendMobile(req.MobileNumber, errs)
	if len(errs) > 0 {
		return writeError(c, validationError(msgInvalidMobile, errs), h.debug)
	}

	res, err := h.service.Resend(c.UserContext(), mobile, requestMeta(c))
	if err != nil {
		return writeError(c, err, h.debug)
	}

	id, code := h.debugFields(res.OTP)
	return success(c, "OTP resent successfully", resendData{
		MobileNumber:          res.MobileNumber,
		ExpiresInSeconds:      res.ExpiresInSeconds,
		ActionTaken:           res.Action,
		ResendsRemaining:      res.ResendsRemaining,
		ResendsUsed:           res.ResendsUsed,
		NextResendAvailableIn: res.NextResendAvailableIn,
		OTPID:                 id,
		Code:                  code,
	})
}

// RequireVerified checks the bearer verification token and stores the
// *kernel.VerifiedContext in Locals.
func (h *Handlers) RequireVerified() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			token = c.Cookies("verification_token")
		}
		if token == "" {
			return writeError(c, otp.ErrUnauthorized(), h.debug)
		}

		vc, err := h.tokens.Parse(token)
		if err != nil {
			return writeError(c, err, h.debug)
		}

		c.Locals(string(kernel.VerifiedContextKey), vc)
		return c.Next()
	}
}

// Session handles GET /otp/session.
func (h *Handlers) Session(c *fiber.Ctx) error {
	vc, ok := VerifiedFrom(c)
	if !ok {
		return writeError(c, otp.ErrUnauthorized(), h.debug)
	}
	return success(c, "Verification token is valid", vc)
}

// VerifiedFrom returns the context stored by RequireVerified.
func VerifiedFrom(c *fiber.Ctx) (*kernel.VerifiedContext, bool) {
	vc, ok := c.Locals(string(kernel.VerifiedContextKey)).(*kernel.VerifiedContext)
	return vc, ok && vc != nil
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
