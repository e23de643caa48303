// Command otpcleanup deletes stale OTP rows and old attempt rows.
//
//	otpcleanup --otp-days 7 --attempt-days 30 --dry-run --verbose
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/config"
	"github.com/Abraxas-365/otpguard/pkg/logx"
	"github.com/Abraxas-365/otpguard/pkg/otp/otpinfra"
	"github.com/Abraxas-365/otpguard/pkg/otp/otpsrv"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/pflag"
)

func main() {
	logx.SetDefaultLogger(logx.NewLogger(logx.LoadFromEnv()))

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if err == pflag.ErrHelp {
			return
		}
		os.Exit(2)
	}

	cfg := config.Load()
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logx.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := otpsrv.NewCleanupService(
		otpinfra.NewPostgresOTPRepository(db),
		otpinfra.NewPostgresAttemptLog(db),
		time.Now,
	)
	stats := svc.Run(ctx, opts)
	report(os.Stdout, opts, stats, time.Now().UTC())

	_ = logx.Sync()
	if stats.Errors > 0 {
		stop()
		db.Close()
		os.Exit(1)
	}
}

func parseFlags(args []string, errOut io.Writer) (otpsrv.CleanupOptions, error) {
	var opts otpsrv.CleanupOptions

	fs := pflag.NewFlagSet("otpcleanup", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.IntVar(&opts.OTPDays, "otp-days", otpsrv.DefaultOTPRetentionDays, "delete OTPs older than this many days")
	fs.IntVar(&opts.AttemptDays, "attempt-days", otpsrv.DefaultAttemptRetentionDays, "delete attempt rows older than this many days")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "report what would be deleted without deleting")
	fs.BoolVarP(&opts.Verbose, "verbose", "v", false, "show sample rows and the attempt breakdown")
	fs.BoolVar(&opts.SkipOTPs, "skip-otps", false, "only clean attempt rows")
	fs.BoolVar(&opts.SkipAttempts, "skip-attempts", false, "only clean OTP rows")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.OTPDays < 1 || opts.AttemptDays < 1 {
		fmt.Fprintln(errOut, "--otp-days and --attempt-days must be at least 1")
		return opts, fmt.Errorf("invalid retention")
	}
	return opts, nil
}

func report(w io.Writer, opts otpsrv.CleanupOptions, stats otpsrv.CleanupStats, now time.Time) {
	mode := "LIVE"
	if stats.DryRun {
		mode = "DRY RUN"
	}
	rule := strings.Repeat("=", 60)
	verb := "✓ Deleted"
	if stats.DryRun {
		verb = "[DRY RUN] Would delete"
	}

	fmt.Fprintf(w, "\n%s\nOTP CLEANUP - %s MODE\n%s\n\n", rule, mode, rule)

	if opts.SkipOTPs {
		fmt.Fprintln(w, "Skipping OTP cleanup")
	} else {
		fmt.Fprintf(w, "OTPs older than %d days (cutoff %s)\n", opts.OTPDays, stats.OTPCutoff.Format("2006-01-02 15:04:05"))
		if opts.Verbose {
			for _, o := range stats.Samples {
				fmt.Fprintf(w, "    - OTP %s | Created: %s | Expired: %t | Used: %t\n",
					o.ID, o.CreatedAt.Format("2006-01-02 15:04"), o.IsExpired(now), o.IsUsed)
			}
			if extra := stats.OTPsDeleted - int64(len(stats.Samples)); len(stats.Samples) > 0 && extra > 0 {
				fmt.Fprintf(w, "    ... and %d more\n", extra)
			}
		}
		if stats.OTPsDeleted == 0 {
			fmt.Fprint(w, "  ✓ No OTPs to delete\n\n")
		} else {
			fmt.Fprintf(w, "  %s %d OTPs\n\n", verb, stats.OTPsDeleted)
		}
	}

	if opts.SkipAttempts {
		fmt.Fprintln(w, "Skipping attempt cleanup")
	} else {
		fmt.Fprintf(w, "Attempts older than %d days (cutoff %s)\n", opts.AttemptDays, stats.AttemptCutoff.Format("2006-01-02 15:04:05"))
		if opts.Verbose {
			for _, b := range stats.Breakdown {
				status := "failed"
				if b.Success {
					status = "success"
				}
				fmt.Fprintf(w, "    - %s (%s): %d\n", b.Type, status, b.Count)
			}
		}
		if stats.AttemptsDeleted == 0 {
			fmt.Fprint(w, "  ✓ No attempts to delete\n\n")
		} else {
			fmt.Fprintf(w, "  %s %d attempts\n\n", verb, stats.AttemptsDeleted)
		}
	}

	fmt.Fprintf(w, "%s\nSUMMARY\n%s\n", rule, rule)
	fmt.Fprintf(w, "OTPs:     %d\n", stats.OTPsDeleted)
	fmt.Fprintf(w, "Attempts: %d\n", stats.AttemptsDeleted)
	fmt.Fprintf(w, "Total:    %d\n", stats.Total())
	if stats.Errors > 0 {
		fmt.Fprintf(w, "Errors:   %d\n", stats.Errors)
	}
	if stats.DryRun {
		fmt.Fprintln(w, "\nThis was a dry run. Re-run without --dry-run to delete.")
	}
}
