package jobx

import (
	"context"
	"sync"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/asyncx"
	"github.com/google/uuid"
)

// MemoryQueue is a single-process Queue for development and tests.
type MemoryQueue struct {
	mu        sync.Mutex
	jobs      map[string]*JobInfo
	ready     map[string][]string
	scheduled map[string]map[string]time.Time
	locks     map[string]time.Time
	now       func() time.Time
}

// NewMemoryQueue creates an empty in-process queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		jobs:      make(map[string]*JobInfo),
		ready:     make(map[string][]string),
		scheduled: make(map[string]map[string]time.Time),
		locks:     make(map[string]time.Time),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job Job) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := uuid.NewString()
	info := NewJobInfo(id, job, q.now())
	q.jobs[id] = &info
	q.ready[job.Queue] = append(q.ready[job.Queue], id)
	return id, nil
}

func (q *MemoryQueue) EnqueueDelayed(_ context.Context, job Job, delay time.Duration) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := uuid.NewString()
	info := NewJobInfo(id, job, q.now())
	q.jobs[id] = &info
	q.schedule(job.Queue, id, delay)
	return id, nil
}

func (q *MemoryQueue) schedule(queue, id string, delay time.Duration) {
	if q.scheduled[queue] == nil {
		q.scheduled[queue] = make(map[string]time.Time)
	}
	q.scheduled[queue][id] = q.now().Add(delay)
}

func (q *MemoryQueue) GetJob(_ context.Context, jobID string) (*JobInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	info, ok := q.jobs[jobID]
	if !ok {
		return nil, jobxErrors.New(ErrJobNotFound).WithDetail("job_id", jobID)
	}
	cp := *info
	return &cp, nil
}

// Dequeue polls the ready lists until timeout. It returns nil, nil when nothing arrives.
func (q *MemoryQueue) Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*JobInfo, error) {
	deadline := q.now().Add(timeout)
	for {
		if info := q.pop(queues); info != nil {
			return info, nil
		}
		if !q.now().Before(deadline) {
			return nil, nil
		}
		if asyncx.Sleep(ctx, 10*time.Millisecond) != nil {
			return nil, nil
		}
	}
}

func (q *MemoryQueue) pop(queues []string) *JobInfo {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, name := range queues {
		ids := q.ready[name]
		if len(ids) == 0 {
			continue
		}
		id := ids[0]
		q.ready[name] = ids[1:]

		info, ok := q.jobs[id]
		if !ok {
			continue
		}
		info.Status = JobStatusActive
		info.Attempts++
		info.UpdatedAt = q.now()
		cp := *info
		return &cp
	}
	return nil
}

func (q *MemoryQueue) Complete(_ context.Context, jobID string, result []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	info, ok := q.jobs[jobID]
	if !ok {
		return jobxErrors.New(ErrJobNotFound).WithDetail("job_id", jobID)
	}
	info.Status = JobStatusCompleted
	info.Result = result
	info.UpdatedAt = q.now()
	return nil
}

func (q *MemoryQueue) Fail(_ context.Context, jobID string, errMsg string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	info, ok := q.jobs[jobID]
	if !ok {
		return false, jobxErrors.New(ErrJobNotFound).WithDetail("job_id", jobID)
	}
	retry := info.Attempts < info.MaxRetries
	if retry {
		info.Status = JobStatusRetrying
	} else {
		info.Status = JobStatusFailed
	}
	info.Error = errMsg
	info.UpdatedAt = q.now()
	return retry, nil
}

func (q *MemoryQueue) Retry(_ context.Context, jobID string, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	info, ok := q.jobs[jobID]
	if !ok {
		return jobxErrors.New(ErrJobNotFound).WithDetail("job_id", jobID)
	}
	q.schedule(info.Queue, jobID, delay)
	return nil
}

func (q *MemoryQueue) PromoteScheduled(_ context.Context, queues []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for _, name := range queues {
		for id, at := range q.scheduled[name] {
			if !at.After(now) {
				q.ready[name] = append(q.ready[name], id)
				delete(q.scheduled[name], id)
			}
		}
	}
	return nil
}

func (q *MemoryQueue) AcquireScheduleLock(_ context.Context, name string, ttl time.Duration) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	if until, held := q.locks[name]; held && now.Before(until) {
		return false, nil
	}
	q.locks[name] = now.Add(ttl)
	return true, nil
}
