package kernel

import "time"

// VerifiedContext is what a valid verification token proves about a caller.
type VerifiedContext struct {
	MobileNumber string    `json:"mobile_number"`
	VerifiedAt   time.Time `json:"verified_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type ContextKey string

const (
	// VerifiedContextKey is the fiber Locals key holding *VerifiedContext
	VerifiedContextKey ContextKey = "verified_context"

	// RequestIDKey is the header/Locals key for the request ID
	RequestIDKey ContextKey = "request_id"
)
