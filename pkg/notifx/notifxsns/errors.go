package notifxsns

import "github.com/Abraxas-365/otpguard/pkg/errx"

var snsErrors = errx.NewRegistry("NOTIFX_SNS")

var (
	ErrPublishFailed = snsErrors.Register("PUBLISH_FAILED", errx.TypeExternal, 502, "SNS publish failed")
)
