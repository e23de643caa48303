package jobx

import "time"

// WorkerOptions configures the job processing client. Zero values passed
// through the With* options keep the defaults.
type WorkerOptions struct {
	Queues            []string
	Concurrency       int
	PollInterval      time.Duration
	ShutdownTimeout   time.Duration
	DequeueTimeout    time.Duration
	DefaultRetryDelay time.Duration
}

func defaultWorkerOptions() WorkerOptions {
	return WorkerOptions{
		Queues:            []string{"default"},
		Concurrency:       4,
		PollInterval:      time.Second,
		ShutdownTimeout:   30 * time.Second,
		DequeueTimeout:    5 * time.Second,
		DefaultRetryDelay: 30 * time.Second,
	}
}

type WorkerOption func(*WorkerOptions)

// WithQueues sets the queues to process. The first one is where Enqueue
// puts jobs that name no queue.
func WithQueues(queues ...string) WorkerOption {
	return func(o *WorkerOptions) {
		if len(queues) > 0 {
			o.Queues = queues
		}
	}
}

func WithConcurrency(n int) WorkerOption {
	return func(o *WorkerOptions) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

// WithPollInterval is the idle wait between empty dequeues.
func WithPollInterval(d time.Duration) WorkerOption {
	return durationOption(d, func(o *WorkerOptions) *time.Duration { return &o.PollInterval })
}

// WithShutdownTimeout bounds how long Stop waits for in-flight jobs.
func WithShutdownTimeout(d time.Duration) WorkerOption {
	return durationOption(d, func(o *WorkerOptions) *time.Duration { return &o.ShutdownTimeout })
}

// WithDequeueTimeout is passed to the queue's blocking pop.
func WithDequeueTimeout(d time.Duration) WorkerOption {
	return durationOption(d, func(o *WorkerOptions) *time.Duration { return &o.DequeueTimeout })
}

// WithDefaultRetryDelay is how long a failed job waits before its next
// attempt. Zero retries immediately.
func WithDefaultRetryDelay(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		if d >= 0 {
			o.DefaultRetryDelay = d
		}
	}
}

func durationOption(d time.Duration, field func(*WorkerOptions) *time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		if d > 0 {
			*field(o) = d
		}
	}
}
