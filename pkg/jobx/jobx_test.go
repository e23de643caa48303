package jobx_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/errx"
	"github.com/Abraxas-365/otpguard/pkg/jobx"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newClient(q jobx.Queue) *jobx.Client {
	return jobx.NewClient(q,
		jobx.WithQueues("otp"),
		jobx.WithConcurrency(1),
		jobx.WithPollInterval(10*time.Millisecond),
		jobx.WithDequeueTimeout(20*time.Millisecond),
		jobx.WithShutdownTimeout(time.Second),
	)
}

func TestClient_ProcessesEnqueuedJob(t *testing.T) {
	q := jobx.NewMemoryQueue()
	c := newClient(q)

	var got atomic.Value
	c.Register("otp.security_alert", func(_ context.Context, job *jobx.JobInfo) error {
		var p struct{ Identifier string }
		if err := job.Decode(&p); err != nil {
			return err
		}
		got.Store(p.Identifier)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Start(ctx) }()

	job, err := jobx.NewJob("otp.security_alert", "", map[string]string{"Identifier": "9876543210"})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	id, err := c.Enqueue(ctx, job)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	waitFor(t, func() bool {
		info, _ := q.GetJob(ctx, id)
		return info != nil && info.Status == jobx.JobStatusCompleted
	})
	if got.Load() != "9876543210" {
		t.Fatalf("handler saw %v", got.Load())
	}
}

func TestClient_FailedJobIsRetriedThenFails(t *testing.T) {
	q := jobx.NewMemoryQueue()
	c := jobx.NewClient(q,
		jobx.WithQueues("otp"),
		jobx.WithConcurrency(1),
		jobx.WithPollInterval(5*time.Millisecond),
		jobx.WithDequeueTimeout(10*time.Millisecond),
		jobx.WithDefaultRetryDelay(0),
	)

	var calls atomic.Int32
	c.Register("flaky", func(context.Context, *jobx.JobInfo) error {
		calls.Add(1)
		return errors.New("nope")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Start(ctx) }()

	id, _ := c.Enqueue(ctx, jobx.Job{Type: "flaky", MaxRetries: 2})

	waitFor(t, func() bool {
		info, _ := q.GetJob(ctx, id)
		return info != nil && info.Status == jobx.JobStatusFailed
	})
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestClient_EveryRejectsBadSchedule(t *testing.T) {
	c := newClient(jobx.NewMemoryQueue())
	err := c.Every(jobx.Schedule{Name: "otp.cleanup", Interval: 0, Job: jobx.Job{Type: "otp.cleanup"}})
	if !errx.HasCode(err, jobx.ErrInvalidSchedule) {
		t.Fatalf("expected invalid schedule, got %v", err)
	}
}

func TestClient_EveryFiresOnStart(t *testing.T) {
	q := jobx.NewMemoryQueue()
	c := newClient(q)

	var runs atomic.Int32
	c.Register("otp.cleanup", func(context.Context, *jobx.JobInfo) error {
		runs.Add(1)
		return nil
	})
	if err := c.Every(jobx.Schedule{Name: "otp.cleanup", Interval: time.Hour, Job: jobx.Job{Type: "otp.cleanup"}}); err != nil {
		t.Fatalf("every: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Start(ctx) }()

	waitFor(t, func() bool { return runs.Load() == 1 })
}

func TestMemoryQueue_ScheduleLockIsExclusive(t *testing.T) {
	q := jobx.NewMemoryQueue()
	ctx := context.Background()

	first, _ := q.AcquireScheduleLock(ctx, "otp.cleanup", time.Hour)
	second, _ := q.AcquireScheduleLock(ctx, "otp.cleanup", time.Hour)
	if !first || second {
		t.Fatalf("expected only the first acquire to win: %v %v", first, second)
	}
}
