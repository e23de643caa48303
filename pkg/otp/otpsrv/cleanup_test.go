package otpsrv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/otp"
	"github.com/Abraxas-365/otpguard/pkg/otp/otpinfra"
	"github.com/Abraxas-365/otpguard/pkg/otp/otpsrv"
)

func seedCleanup(t *testing.T, now time.Time) (*otpinfra.MemoryOTPRepository, *otpinfra.MemoryAttemptLog) {
	t.Helper()
	ctx := context.Background()
	clock := func() time.Time { return now }
	repo := otpinfra.NewMemoryOTPRepository(clock)
	log := otpinfra.NewMemoryAttemptLog(clock)

	old := now.AddDate(0, 0, -10)
	for _, m := range []string{"9000000001", "9000000002"} {
		o, _ := otp.New(m, old, 5*time.Minute)
		_ = repo.Create(ctx, o)
	}
	fresh, _ := otp.New("9000000003", now.Add(-time.Hour), 5*time.Minute)
	_ = repo.Create(ctx, fresh)

	for i, age := range []int{40, 35, 1} {
		_ = log.Append(ctx, &otp.Attempt{
			Identifier: "9000000001",
			Type:       otp.AttemptGeneration,
			IPAddress:  "10.0.0.1",
			Success:    i == 0,
			Timestamp:  now.AddDate(0, 0, -age),
		})
	}
	return repo, log
}

func TestCleanup_DeletesStaleRows(t *testing.T) {
	now := time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC)
	repo, log := seedCleanup(t, now)
	svc := otpsrv.NewCleanupService(repo, log, func() time.Time { return now })

	stats := svc.Run(context.Background(), otpsrv.CleanupOptions{})
	if stats.OTPsDeleted != 2 || stats.AttemptsDeleted != 2 || stats.Errors != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	again := svc.Run(context.Background(), otpsrv.CleanupOptions{})
	if again.Total() != 0 {
		t.Fatalf("re-run should delete nothing, got %+v", again)
	}
}

func TestCleanup_DryRunVerbose(t *testing.T) {
	now := time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC)
	repo, log := seedCleanup(t, now)
	svc := otpsrv.NewCleanupService(repo, log, func() time.Time { return now })

	stats := svc.Run(context.Background(), otpsrv.CleanupOptions{DryRun: true, Verbose: true})
	if !stats.DryRun || stats.OTPsDeleted != 2 || stats.AttemptsDeleted != 2 {
		t.Fatalf("unexpected dry-run stats: %+v", stats)
	}
	if len(stats.Samples) != 2 || len(stats.Breakdown) != 2 {
		t.Fatalf("expected samples and breakdown, got %d/%d", len(stats.Samples), len(stats.Breakdown))
	}
	if n, _ := repo.CountStale(context.Background(), stats.OTPCutoff); n != 2 {
		t.Fatalf("dry run must not delete, %d stale rows left", n)
	}
}

func TestCleanup_SkipFlags(t *testing.T) {
	now := time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC)
	repo, log := seedCleanup(t, now)
	svc := otpsrv.NewCleanupService(repo, log, func() time.Time { return now })

	stats := svc.Run(context.Background(), otpsrv.CleanupOptions{SkipOTPs: true})
	if stats.OTPsDeleted != 0 || stats.AttemptsDeleted != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	stats = svc.Run(context.Background(), otpsrv.CleanupOptions{SkipAttempts: true, OTPDays: 30})
	if stats.OTPsDeleted != 0 {
		t.Fatalf("30-day retention should keep 10-day-old rows, got %+v", stats)
	}
}

type brokenRepo struct{ otp.Repository }

func (brokenRepo) CountStale(context.Context, time.Time) (int64, error) {
	return 0, errors.New("db down")
}

func TestCleanup_FailureInOneCategoryContinues(t *testing.T) {
	now := time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC)
	_, log := seedCleanup(t, now)
	svc := otpsrv.NewCleanupService(brokenRepo{}, log, func() time.Time { return now })

	stats := svc.Run(context.Background(), otpsrv.CleanupOptions{})
	if stats.Errors != 1 || stats.AttemptsDeleted != 2 {
		t.Fatalf("expected one error and attempts still cleaned, got %+v", stats)
	}
}
