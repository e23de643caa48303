package otpapi

import (
	"strings"

	"github.com/Abraxas-365/otpguard/pkg/otp/otpsrv"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// ClientIP returns the first X-Forwarded-For hop when the peer is a trusted
// proxy, otherwise the peer address. The result is a copy and outlives c.
func ClientIP(c *fiber.Ctx) string {
	if c.IsProxyTrusted() {
		for _, ip := range c.IPs() {
			if ip = strings.TrimSpace(ip); ip != "" {
				return utils.CopyString(ip)
			}
		}
	}
	return utils.CopyString(c.IP())
}

// requestMeta is kept past the handler (audit rows, stored OTPs), so every
// field is copied out of fiber's pooled buffers.
func requestMeta(c *fiber.Ctx) otpsrv.RequestMeta {
	return otpsrv.RequestMeta{
		IP:        ClientIP(c),
		UserAgent: utils.CopyString(c.Get(fiber.HeaderUserAgent)),
	}
}
