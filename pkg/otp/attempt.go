package otp

import (
	"time"

	"github.com/Abraxas-365/otpguard/pkg/kernel"
)

type AttemptType string

const (
	AttemptGeneration   AttemptType = "generation"
	AttemptVerification AttemptType = "verification"
	AttemptResend       AttemptType = "resend"
)

func (t AttemptType) IsValid() bool {
	switch t {
	case AttemptGeneration, AttemptVerification, AttemptResend:
		return true
	}
	return false
}

// Attempt is one append-only audit row. It is never updated after creation.
type Attempt struct {
	ID           kernel.AttemptID       `db:"id" json:"id"`
	Identifier   string                 `db:"identifier" json:"identifier"`
	Type         AttemptType            `db:"attempt_type" json:"attempt_type"`
	IPAddress    string                 `db:"ip_address" json:"ip_address"`
	UserAgent    *string                `db:"user_agent" json:"user_agent,omitempty"`
	Timestamp    time.Time              `db:"timestamp" json:"timestamp"`
	Success      bool                   `db:"success" json:"success"`
	OTPID        *kernel.OTPID          `db:"otp_id" json:"otp_id,omitempty"`
	ErrorMessage *string                `db:"error_message" json:"error_message,omitempty"`
	Metadata     map[string]interface{} `db:"-" json:"metadata"`
}

// Suspicious activity thresholds over the analysis window.
const (
	SuspiciousUniqueIPs   = 3
	SuspiciousFailures    = 5
	SuspiciousTotal       = 10
	DefaultAnalysisWindow = 60 * time.Minute
)

// SuspiciousActivity is the heuristic summary of an identifier's recent attempts.
type SuspiciousActivity struct {
	MultipleIPs     bool `json:"multiple_ips"`
	HighFailureRate bool `json:"high_failure_rate"`
	RapidAttempts   bool `json:"rapid_attempts"`
	UniqueIPCount   int  `json:"unique_ip_count"`
	FailedCount     int  `json:"failed_count"`
	TotalCount      int  `json:"total_count"`
}

// NewSuspiciousActivity applies the thresholds to raw counts.
func NewSuspiciousActivity(uniqueIPs, failed, total int) SuspiciousActivity {
	return SuspiciousActivity{
		MultipleIPs:     uniqueIPs > SuspiciousUniqueIPs,
		HighFailureRate: failed > SuspiciousFailures,
		RapidAttempts:   total > SuspiciousTotal,
		UniqueIPCount:   uniqueIPs,
		FailedCount:     failed,
		TotalCount:      total,
	}
}

// Flagged reports whether any indicator is set.
func (s SuspiciousActivity) Flagged() bool {
	return s.MultipleIPs || s.HighFailureRate || s.RapidAttempts
}

// AttemptBreakdown counts audit rows by type and outcome.
type AttemptBreakdown struct {
	Type    AttemptType `db:"attempt_type" json:"attempt_type"`
	Success bool        `db:"success" json:"success"`
	Count   int64       `db:"count" json:"count"`
}
