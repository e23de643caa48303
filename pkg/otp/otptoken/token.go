package otptoken

import (
	"errors"
	"net/http"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/errx"
	"github.com/Abraxas-365/otpguard/pkg/kernel"
	"github.com/golang-jwt/jwt/v5"
)

const Audience = "otp-verified"

var tokenErrors = errx.NewRegistry("OTP_TOKEN")

var (
	ErrInvalidToken = tokenErrors.Register("INVALID", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid verification token")
	ErrExpiredToken = tokenErrors.Register("EXPIRED", errx.TypeAuthorization, http.StatusUnauthorized, "Verification token has expired")
	ErrSigning      = tokenErrors.Register("SIGNING_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Failed to sign verification token")
)

// Claims prove a mobile number passed OTP verification.
type Claims struct {
	MobileNumber string `json:"mobile_number"`
	jwt.RegisteredClaims
}

// Service signs and checks HS256 verification tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func New(secret string, ttl time.Duration, issuer string) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if issuer == "" {
		issuer = "otpguard"
	}
	return &Service{secret: []byte(secret), ttl: ttl, issuer: issuer, now: time.Now}
}

// WithClock returns a copy of s reading time from now.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

func (s *Service) Issue(mobileNumber string, verifiedAt time.Time) (string, time.Time, error) {
	expiresAt := verifiedAt.Add(s.ttl)
	claims := Claims{
		MobileNumber: mobileNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   mobileNumber,
			Audience:  []string{Audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(verifiedAt),
			IssuedAt:  jwt.NewNumericDate(verifiedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, tokenErrors.NewWithCause(ErrSigning, err)
	}
	return signed, expiresAt, nil
}

// Parse validates a token and returns what it proves.
func (s *Service) Parse(tokenString string) (*kernel.VerifiedContext, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	},
		jwt.WithAudience(Audience),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, tokenErrors.NewWithCause(ErrExpiredToken, err)
		}
		return nil, tokenErrors.NewWithCause(ErrInvalidToken, err)
	}
	if !token.Valid || claims.MobileNumber == "" {
		return nil, tokenErrors.New(ErrInvalidToken)
	}

	return &kernel.VerifiedContext{
		MobileNumber: claims.MobileNumber,
		VerifiedAt:   claims.IssuedAt.Time,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}
