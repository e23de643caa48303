package otpinfra

import "github.com/Abraxas-365/otpguard/pkg/errx"

var pgErrors = errx.NewRegistry("OTP_PG")

var (
	ErrDuplicateMobile = pgErrors.Register("DUPLICATE_MOBILE", errx.TypeConflict, 409, "An OTP row already exists for this mobile number")
	ErrQuery           = pgErrors.Register("QUERY_FAILED", errx.TypeInternal, 500, "Database query failed")
	ErrMetadata        = pgErrors.Register("METADATA", errx.TypeInternal, 500, "Attempt metadata could not be encoded or decoded")
)

func queryErr(err error, op string) *errx.Error {
	return pgErrors.NewWithCause(ErrQuery, err).WithDetail("operation", op)
}
