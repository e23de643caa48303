package otpsrv

import (
	"context"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/logx"
	"github.com/Abraxas-365/otpguard/pkg/otp"
)

const (
	DefaultOTPRetentionDays     = 7
	DefaultAttemptRetentionDays = 30
	cleanupSampleSize           = 5
)

type CleanupOptions struct {
	OTPDays      int  `json:"otp_days"`
	AttemptDays  int  `json:"attempt_days"`
	DryRun       bool `json:"dry_run"`
	Verbose      bool `json:"verbose"`
	SkipOTPs     bool `json:"skip_otps"`
	SkipAttempts bool `json:"skip_attempts"`
}

func (o CleanupOptions) withDefaults() CleanupOptions {
	if o.OTPDays <= 0 {
		o.OTPDays = DefaultOTPRetentionDays
	}
	if o.AttemptDays <= 0 {
		o.AttemptDays = DefaultAttemptRetentionDays
	}
	return o
}

// CleanupStats counts what was deleted, or would be in a dry run.
// Samples and Breakdown are only filled in verbose mode.
type CleanupStats struct {
	OTPsDeleted     int64                  `json:"otps_deleted"`
	AttemptsDeleted int64                  `json:"attempts_deleted"`
	Errors          int                    `json:"errors"`
	DryRun          bool                   `json:"dry_run"`
	OTPCutoff       time.Time              `json:"otp_cutoff"`
	AttemptCutoff   time.Time              `json:"attempt_cutoff"`
	Samples         []*otp.OTP             `json:"samples,omitempty"`
	Breakdown       []otp.AttemptBreakdown `json:"breakdown,omitempty"`
}

func (s CleanupStats) Total() int64 { return s.OTPsDeleted + s.AttemptsDeleted }

// CleanupService removes stale OTP rows and old audit rows. Safe to re-run.
type CleanupService struct {
	repo     otp.Repository
	attempts otp.AttemptLog
	now      func() time.Time
}

func NewCleanupService(repo otp.Repository, attempts otp.AttemptLog, now func() time.Time) *CleanupService {
	if now == nil {
		now = time.Now
	}
	return &CleanupService{repo: repo, attempts: attempts, now: now}
}

// Run cleans both categories. A failure in one is counted and does not stop the other.
func (s *CleanupService) Run(ctx context.Context, opts CleanupOptions) CleanupStats {
	opts = opts.withDefaults()
	now := s.now().UTC()
	stats := CleanupStats{
		DryRun:        opts.DryRun,
		OTPCutoff:     now.AddDate(0, 0, -opts.OTPDays),
		AttemptCutoff: now.AddDate(0, 0, -opts.AttemptDays),
	}

	if !opts.SkipOTPs {
		if err := s.cleanOTPs(ctx, opts, &stats); err != nil {
			stats.Errors++
			logx.WithError(err).Error("otp cleanup failed")
		}
	}
	if !opts.SkipAttempts {
		if err := s.cleanAttempts(ctx, opts, &stats); err != nil {
			stats.Errors++
			logx.WithError(err).Error("attempt cleanup failed")
		}
	}

	logx.WithFields(logx.Fields{
		"otps_deleted":     stats.OTPsDeleted,
		"attempts_deleted": stats.AttemptsDeleted,
		"errors":           stats.Errors,
		"dry_run":          stats.DryRun,
	}).Info("otp cleanup completed")
	return stats
}

func (s *CleanupService) cleanOTPs(ctx context.Context, opts CleanupOptions, stats *CleanupStats) error {
	count, err := s.repo.CountStale(ctx, stats.OTPCutoff)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	if opts.Verbose {
		if stats.Samples, err = s.repo.ListStale(ctx, stats.OTPCutoff, cleanupSampleSize); err != nil {
			return err
		}
	}

	if opts.DryRun {
		stats.OTPsDeleted = count
		return nil
	}
	stats.OTPsDeleted, err = s.repo.DeleteStale(ctx, stats.OTPCutoff)
	return err
}

func (s *CleanupService) cleanAttempts(ctx context.Context, opts CleanupOptions, stats *CleanupStats) error {
	count, err := s.attempts.CountOlderThan(ctx, stats.AttemptCutoff)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	if opts.Verbose {
		if stats.Breakdown, err = s.attempts.Breakdown(ctx, stats.AttemptCutoff); err != nil {
			return err
		}
	}

	if opts.DryRun {
		stats.AttemptsDeleted = count
		return nil
	}
	stats.AttemptsDeleted, err = s.attempts.DeleteOlderThan(ctx, stats.AttemptCutoff)
	return err
}
