package otpsrv

import (
	"context"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/jobx"
	"github.com/Abraxas-365/otpguard/pkg/logx"
	"github.com/Abraxas-365/otpguard/pkg/notifx"
	"github.com/Abraxas-365/otpguard/pkg/otp"
	"github.com/Abraxas-365/otpguard/pkg/otp/ratelimit"
)

const (
	JobCleanup       = "otp.cleanup"
	JobSecurityAlert = "otp.security_alert"
)

const alertTemplate = "otp_security_alert"

const alertBody = `Suspicious OTP activity for {{.Identifier}} in the last {{.WindowMinutes}} minutes.

Account locked until: {{.LockedUntil}}
Distinct IPs:        {{.Activity.UniqueIPCount}}{{if .Activity.MultipleIPs}} (flagged){{end}}
Failed attempts:     {{.Activity.FailedCount}}{{if .Activity.HighFailureRate}} (flagged){{end}}
Total attempts:      {{.Activity.TotalCount}}{{if .Activity.RapidAttempts}} (flagged){{end}}
`

// SecurityAlertPayload is the body of an otp.security_alert job.
type SecurityAlertPayload struct {
	Identifier string    `json:"identifier"`
	LockedAt   time.Time `json:"locked_at"`
	LockFor    string    `json:"lock_for"`
}

// AlertService emails operators when a locked identifier also looks suspicious.
type AlertService struct {
	attempts   otp.AttemptLog
	notifier   *notifx.Client
	from       string
	recipients []string
	window     time.Duration
}

func NewAlertService(attempts otp.AttemptLog, notifier *notifx.Client, from string, recipients []string) (*AlertService, error) {
	if err := notifier.RegisterTemplate(alertTemplate, alertBody); err != nil {
		return nil, err
	}
	return &AlertService{
		attempts:   attempts,
		notifier:   notifier,
		from:       from,
		recipients: recipients,
		window:     otp.DefaultAnalysisWindow,
	}, nil
}

// Analyze runs the suspicious-activity heuristic for identifier.
func (a *AlertService) Analyze(ctx context.Context, identifier string, window time.Duration) (otp.SuspiciousActivity, error) {
	if window <= 0 {
		window = a.window
	}
	return a.attempts.Analyze(ctx, identifier, window)
}

// HandleSecurityAlert is the otp.security_alert job handler.
func (a *AlertService) HandleSecurityAlert(ctx context.Context, job *jobx.JobInfo) error {
	var p SecurityAlertPayload
	if err := job.Decode(&p); err != nil {
		return err
	}

	activity, err := a.Analyze(ctx, p.Identifier, a.window)
	if err != nil {
		return err
	}

	fields := logx.Fields{
		"identifier": p.Identifier,
		"unique_ips": activity.UniqueIPCount,
		"failed":     activity.FailedCount,
		"total":      activity.TotalCount,
		"flagged":    activity.Flagged(),
		"lock_for":   p.LockFor,
		"recipients": len(a.recipients),
	}
	if !activity.Flagged() || len(a.recipients) == 0 {
		logx.WithFields(fields).Info("security alert: nothing to report")
		return nil
	}

	data := map[string]interface{}{
		"Identifier":    p.Identifier,
		"WindowMinutes": int(a.window / time.Minute),
		"LockedUntil":   lockedUntil(p),
		"Activity":      activity,
	}
	msg := notifx.EmailMessage{
		From:    a.from,
		To:      a.recipients,
		Subject: "OTP security alert: " + p.Identifier,
	}
	if err := a.notifier.SendTemplatedEmail(ctx, alertTemplate, data, msg, notifx.WithTags(map[string]string{"kind": "otp_security_alert"})); err != nil {
		return err
	}

	logx.WithFields(fields).Warn("security alert sent")
	return nil
}

func lockedUntil(p SecurityAlertPayload) string {
	d, err := time.ParseDuration(p.LockFor)
	if err != nil || p.LockedAt.IsZero() {
		return "unknown"
	}
	return p.LockedAt.Add(d).Format(time.RFC3339)
}

// LockAlerter returns a lock hook that enqueues an otp.security_alert job.
func LockAlerter(jobs jobx.JobEnqueuer, lockFor time.Duration, now func() time.Time) ratelimit.LockHook {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, identifier string) {
		job, err := jobx.NewJob(JobSecurityAlert, "", SecurityAlertPayload{
			Identifier: identifier,
			LockedAt:   now().UTC(),
			LockFor:    lockFor.String(),
		})
		if err == nil {
			_, err = jobs.Enqueue(ctx, job)
		}
		if err != nil {
			logx.WithError(err).WithField("identifier", identifier).Error("failed to enqueue security alert")
		}
	}
}

// CleanupHandler runs the cleanup service as an otp.cleanup job. An empty
// payload uses the given defaults.
func CleanupHandler(svc *CleanupService, defaults CleanupOptions) jobx.HandlerFunc {
	return func(ctx context.Context, job *jobx.JobInfo) error {
		opts := defaults
		if len(job.Payload) > 0 && string(job.Payload) != "null" {
			if err := job.Decode(&opts); err != nil {
				return err
			}
		}
		stats := svc.Run(ctx, opts)
		if stats.Errors > 0 {
			return otp.ErrRegistry.NewWithMessage(otp.CodeInternal, "cleanup finished with errors").
				WithDetail("errors", stats.Errors)
		}
		return nil
	}
}

// CleanupSchedule is the recurring otp.cleanup job.
func CleanupSchedule(interval time.Duration, opts CleanupOptions) (jobx.Schedule, error) {
	job, err := jobx.NewJob(JobCleanup, "", opts)
	if err != nil {
		return jobx.Schedule{}, err
	}
	return jobx.Schedule{Name: JobCleanup, Interval: interval, Job: job}, nil
}
