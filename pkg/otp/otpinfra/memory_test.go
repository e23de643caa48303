package otpinfra_test

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/errx"
	"github.com/Abraxas-365/otpguard/pkg/kernel"
	"github.com/Abraxas-365/otpguard/pkg/otp"
	"github.com/Abraxas-365/otpguard/pkg/otp/otpinfra"
)

func TestMemoryOTPRepository_OneRowPerMobile(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	repo := otpinfra.NewMemoryOTPRepository(func() time.Time { return now })

	first, _ := otp.New("9876543210", now, 5*time.Minute)
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	second, _ := otp.New("9876543210", now, 5*time.Minute)
	if err := repo.Create(ctx, second); !errx.HasCode(err, otpinfra.ErrDuplicateMobile) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	if n, _ := repo.DeleteByMobile(ctx, "9876543210"); n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("create after delete: %v", err)
	}
	got, err := repo.GetByMobile(ctx, "9876543210")
	if err != nil || got.ID != second.ID {
		t.Fatalf("expected second row, got %+v (%v)", got, err)
	}
	if _, err := repo.GetByID(ctx, first.ID); !errx.HasCode(err, otp.CodeNotFound) {
		t.Fatalf("first row should be gone, got %v", err)
	}
}

func TestMemoryOTPRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := otpinfra.NewMemoryOTPRepository(nil)

	o, _ := otp.New("9876543210", now, time.Minute)
	_ = repo.Create(ctx, o)

	got, _ := repo.GetByID(ctx, o.ID)
	got.IsUsed = true

	again, _ := repo.GetByID(ctx, o.ID)
	if again.IsUsed {
		t.Fatal("mutating a returned row must not change the store")
	}
	if err := repo.MarkUsed(ctx, o.ID); err != nil {
		t.Fatalf("mark used: %v", err)
	}
	again, _ = repo.GetByID(ctx, o.ID)
	if !again.IsUsed {
		t.Fatal("expected row to be marked used")
	}
}

func TestMemoryOTPRepository_Stale(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	repo := otpinfra.NewMemoryOTPRepository(func() time.Time { return now })

	old, _ := otp.New("9000000001", now.Add(-10*24*time.Hour), 5*time.Minute)
	recent, _ := otp.New("9000000002", now.Add(-time.Hour), 5*time.Minute)
	oldButValid, _ := otp.New("9000000003", now.Add(-10*24*time.Hour), 30*24*time.Hour)
	for _, o := range []*otp.OTP{old, recent, oldButValid} {
		_ = repo.Create(ctx, o)
	}

	cutoff := now.Add(-7 * 24 * time.Hour)
	if n, _ := repo.CountStale(ctx, cutoff); n != 1 {
		t.Fatalf("expected 1 stale row, got %d", n)
	}
	rows, _ := repo.ListStale(ctx, cutoff, 5)
	if len(rows) != 1 || rows[0].ID != old.ID {
		t.Fatalf("unexpected stale rows: %+v", rows)
	}
	if n, _ := repo.DeleteStale(ctx, cutoff); n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
	if n, _ := repo.DeleteStale(ctx, cutoff); n != 0 {
		t.Fatalf("second cleanup should delete nothing, got %d", n)
	}
}

func TestMemoryAttemptLog_CountsAndAnalysis(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	log := otpinfra.NewMemoryAttemptLog(func() time.Time { return now })
	id := kernel.OTPID("otp-1")

	add := func(ip string, typ otp.AttemptType, ok bool, age time.Duration) {
		_ = log.Append(ctx, &otp.Attempt{
			Identifier: "9876543210", Type: typ, IPAddress: ip,
			Success: ok, OTPID: &id, Timestamp: now.Add(-age),
		})
	}
	add("10.0.0.1", otp.AttemptGeneration, true, time.Minute)
	add("10.0.0.2", otp.AttemptVerification, false, 2*time.Minute)
	add("10.0.0.3", otp.AttemptVerification, false, 3*time.Minute)
	add("10.0.0.4", otp.AttemptVerification, false, 4*time.Minute)
	add("10.0.0.1", otp.AttemptGeneration, true, 2*time.Hour)

	if n, _ := log.CountRecent(ctx, "9876543210", otp.AttemptGeneration, 15*time.Minute); n != 1 {
		t.Fatalf("expected 1 recent generation, got %d", n)
	}
	if n, _ := log.CountIPRecent(ctx, "10.0.0.1", 3*time.Hour); n != 2 {
		t.Fatalf("expected 2 ip attempts, got %d", n)
	}
	if n, _ := log.CountFailedVerifications(ctx, id); n != 3 {
		t.Fatalf("expected 3 failed verifications, got %d", n)
	}

	s, _ := log.Analyze(ctx, "9876543210", otp.DefaultAnalysisWindow)
	if s.UniqueIPCount != 4 || !s.MultipleIPs || s.HighFailureRate || s.TotalCount != 4 {
		t.Fatalf("unexpected analysis: %+v", s)
	}
}

func TestMemoryAttemptLog_ListAndRetention(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	log := otpinfra.NewMemoryAttemptLog(func() time.Time { return now })

	for i := 0; i < 5; i++ {
		_ = log.Append(ctx, &otp.Attempt{
			Identifier: "9876543210", Type: otp.AttemptResend, IPAddress: "10.0.0.1",
			Timestamp: now.Add(-time.Duration(i) * 24 * time.Hour * 10),
		})
	}

	page, _ := log.List(ctx, "9876543210", kernel.PaginationOptions{Page: 1, PageSize: 2})
	if page.Page.Total != 5 || len(page.Items) != 2 || page.Page.Pages != 3 {
		t.Fatalf("unexpected page: %+v", page.Page)
	}
	if !page.Items[0].Timestamp.After(page.Items[1].Timestamp) {
		t.Fatal("expected newest first")
	}

	cutoff := now.Add(-30 * 24 * time.Hour)
	if n, _ := log.CountOlderThan(ctx, cutoff); n != 1 {
		t.Fatalf("expected 1 old row, got %d", n)
	}
	breakdown, _ := log.Breakdown(ctx, cutoff)
	if len(breakdown) != 1 || breakdown[0].Type != otp.AttemptResend || breakdown[0].Count != 1 {
		t.Fatalf("unexpected breakdown: %+v", breakdown)
	}
	if n, _ := log.DeleteOlderThan(ctx, cutoff); n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
	page, _ = log.List(ctx, "", kernel.PaginationOptions{})
	if page.Page.Total != 4 {
		t.Fatalf("expected 4 rows left, got %d", page.Page.Total)
	}
}
