package ratelimit

import "fmt"

// KeyKind names one family of counter-store entries.
type KeyKind int

const (
	KindGeneration KeyKind = iota
	KindGenerationTimestamp
	KindVerification
	KindResend
	KindResendTimestamp
	KindResendLast
	KindIP
	KindLock
)

// Key addresses one entry. Index is only meaningful for timestamp kinds.
type Key struct {
	Kind  KeyKind
	ID    string
	Index int64
}

func GenerationKey(identifier string) Key { return Key{Kind: KindGeneration, ID: identifier} }
func GenerationTimestampKey(identifier string, n int64) Key {
	return Key{Kind: KindGenerationTimestamp, ID: identifier, Index: n}
}
func VerificationKey(otpID string) Key  { return Key{Kind: KindVerification, ID: otpID} }
func ResendKey(identifier string) Key   { return Key{Kind: KindResend, ID: identifier} }
func ResendTimestampKey(identifier string, n int64) Key {
	return Key{Kind: KindResendTimestamp, ID: identifier, Index: n}
}
func ResendLastKey(identifier string) Key { return Key{Kind: KindResendLast, ID: identifier} }
func IPKey(ip string) Key                 { return Key{Kind: KindIP, ID: ip} }
func LockKey(identifier string) Key       { return Key{Kind: KindLock, ID: identifier} }

// String renders the storage key, e.g. "otp:gen:ts:9876543210:0".
func (k Key) String() string {
	switch k.Kind {
	case KindGeneration:
		return "otp:gen:" + k.ID
	case KindGenerationTimestamp:
		return fmt.Sprintf("otp:gen:ts:%s:%d", k.ID, k.Index)
	case KindVerification:
		return "otp:verify:" + k.ID
	case KindResend:
		return "otp:resend:" + k.ID
	case KindResendTimestamp:
		return fmt.Sprintf("otp:resend:ts:%s:%d", k.ID, k.Index)
	case KindResendLast:
		return "otp:resend:last:" + k.ID
	case KindIP:
		return "otp:ip:" + k.ID
	case KindLock:
		return "otp:lock:" + k.ID
	default:
		return fmt.Sprintf("otp:unknown:%d:%s", k.Kind, k.ID)
	}
}
