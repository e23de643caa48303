package otpapi

import (
	"net/http"

	"github.com/Abraxas-365/otpguard/pkg/errx"
	"github.com/Abraxas-365/otpguard/pkg/otp"
	"github.com/gofiber/fiber/v2"
)

func success(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

// writeError renders err in the OTP error envelope. Details are flattened into
// the body; server errors also carry "details", filled only when debug is on.
func writeError(c *fiber.Ctx, err error, debug bool) error {
	e, ok := errx.As(err)
	if !ok {
		e = otp.ErrInternal(err)
	}

	status := e.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	body := fiber.Map{
		"success": false,
		"error":   otp.WireCode(e),
		"message": e.Message,
	}
	for k, v := range e.Details {
		body[k] = v
	}
	if status >= http.StatusInternalServerError {
		var details interface{}
		if debug && e.Err != nil {
			details = e.Err.Error()
		}
		body["details"] = details
	}

	return c.Status(status).JSON(body)
}

// validationError renames the registry's generic message for the endpoint.
func validationError(message string, errs otp.FieldErrors) *errx.Error {
	e := errs.Err()
	e.Message = message
	return e
}
