package otpinfra

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/kernel"
	"github.com/Abraxas-365/otpguard/pkg/otp"
)

// MemoryOTPRepository keeps OTP rows in process. Like the otps table it holds
// at most one row per mobile number.
type MemoryOTPRepository struct {
	mu       sync.RWMutex
	byID     map[kernel.OTPID]*otp.OTP
	byMobile map[string]kernel.OTPID
	now      func() time.Time
}

func NewMemoryOTPRepository(now func() time.Time) *MemoryOTPRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryOTPRepository{
		byID:     make(map[kernel.OTPID]*otp.OTP),
		byMobile: make(map[string]kernel.OTPID),
		now:      now,
	}
}

func (r *MemoryOTPRepository) Create(_ context.Context, o *otp.OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byMobile[o.MobileNumber]; ok {
		return pgErrors.New(ErrDuplicateMobile).WithDetail("mobile_number", o.MobileNumber)
	}
	cp := *o
	r.byID[o.ID] = &cp
	r.byMobile[o.MobileNumber] = o.ID
	return nil
}

func (r *MemoryOTPRepository) GetByID(_ context.Context, id kernel.OTPID) (*otp.OTP, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.byID[id]
	if !ok {
		return nil, otp.ErrNotFound().WithDetail("otp_id", id.String())
	}
	cp := *o
	return &cp, nil
}

func (r *MemoryOTPRepository) GetByMobile(_ context.Context, mobileNumber string) (*otp.OTP, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byMobile[mobileNumber]
	if !ok {
		return nil, otp.ErrNotFound().WithDetail("mobile_number", mobileNumber)
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *MemoryOTPRepository) MarkUsed(_ context.Context, id kernel.OTPID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.byID[id]
	if !ok {
		return otp.ErrNotFound().WithDetail("otp_id", id.String())
	}
	o.IsUsed = true
	return nil
}

func (r *MemoryOTPRepository) MarkAllUsed(_ context.Context, mobileNumber string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, o := range r.byID {
		if o.MobileNumber == mobileNumber && !o.IsUsed {
			o.IsUsed = true
			n++
		}
	}
	return n, nil
}

func (r *MemoryOTPRepository) Delete(_ context.Context, id kernel.OTPID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.byID[id]
	if !ok {
		return otp.ErrNotFound().WithDetail("otp_id", id.String())
	}
	r.remove(o)
	return nil
}

func (r *MemoryOTPRepository) DeleteByMobile(_ context.Context, mobileNumber string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byMobile[mobileNumber]
	if !ok {
		return 0, nil
	}
	r.remove(r.byID[id])
	return 1, nil
}

func (r *MemoryOTPRepository) remove(o *otp.OTP) {
	delete(r.byID, o.ID)
	if r.byMobile[o.MobileNumber] == o.ID {
		delete(r.byMobile, o.MobileNumber)
	}
}

func (r *MemoryOTPRepository) stale(cutoff time.Time) []*otp.OTP {
	now := r.now()
	var out []*otp.OTP
	for _, o := range r.byID {
		if o.CreatedAt.Before(cutoff) && (o.ExpiresAt.Before(now) || o.IsUsed) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *MemoryOTPRepository) ListStale(_ context.Context, cutoff time.Time, limit int) ([]*otp.OTP, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.stale(cutoff)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]*otp.OTP, len(rows))
	for i, o := range rows {
		cp := *o
		out[i] = &cp
	}
	return out, nil
}

func (r *MemoryOTPRepository) CountStale(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.stale(cutoff))), nil
}

func (r *MemoryOTPRepository) DeleteStale(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := r.stale(cutoff)
	for _, o := range rows {
		r.remove(o)
	}
	return int64(len(rows)), nil
}

// MemoryAttemptLog is an in-process audit log.
type MemoryAttemptLog struct {
	mu   sync.RWMutex
	rows []otp.Attempt
	now  func() time.Time
}

func NewMemoryAttemptLog(now func() time.Time) *MemoryAttemptLog {
	if now == nil {
		now = time.Now
	}
	return &MemoryAttemptLog{now: now}
}

func (l *MemoryAttemptLog) Append(_ context.Context, a *otp.Attempt) error {
	if a.ID.IsEmpty() {
		a.ID = kernel.NewAttemptID()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = l.now()
	}
	if a.Metadata == nil {
		a.Metadata = map[string]interface{}{}
	}

	l.mu.Lock()
	l.rows = append(l.rows, *a)
	l.mu.Unlock()
	return nil
}

func (l *MemoryAttemptLog) countWhere(match func(otp.Attempt) bool) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, a := range l.rows {
		if match(a) {
			n++
		}
	}
	return n
}

func (l *MemoryAttemptLog) CountRecent(_ context.Context, identifier string, t otp.AttemptType, window time.Duration) (int, error) {
	since := l.now().Add(-window)
	return l.countWhere(func(a otp.Attempt) bool {
		return a.Identifier == identifier && a.Type == t && !a.Timestamp.Before(since)
	}), nil
}

func (l *MemoryAttemptLog) CountIPRecent(_ context.Context, ip string, window time.Duration) (int, error) {
	since := l.now().Add(-window)
	return l.countWhere(func(a otp.Attempt) bool {
		return a.IPAddress == ip && !a.Timestamp.Before(since)
	}), nil
}

func (l *MemoryAttemptLog) CountFailedVerifications(_ context.Context, otpID kernel.OTPID) (int, error) {
	return l.countWhere(func(a otp.Attempt) bool {
		return a.OTPID != nil && *a.OTPID == otpID && a.Type == otp.AttemptVerification && !a.Success
	}), nil
}

func (l *MemoryAttemptLog) Analyze(_ context.Context, identifier string, window time.Duration) (otp.SuspiciousActivity, error) {
	since := l.now().Add(-window)

	l.mu.RLock()
	defer l.mu.RUnlock()

	ips := make(map[string]struct{})
	failed, total := 0, 0
	for _, a := range l.rows {
		if a.Identifier != identifier || a.Timestamp.Before(since) {
			continue
		}
		total++
		ips[a.IPAddress] = struct{}{}
		if !a.Success {
			failed++
		}
	}
	return otp.NewSuspiciousActivity(len(ips), failed, total), nil
}

func (l *MemoryAttemptLog) List(_ context.Context, identifier string, opts kernel.PaginationOptions) (kernel.Paginated[otp.Attempt], error) {
	opts = opts.Normalize(20, 100)

	l.mu.RLock()
	var matched []otp.Attempt
	for _, a := range l.rows {
		if identifier == "" || a.Identifier == identifier {
			matched = append(matched, a)
		}
	}
	l.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Timestamp.After(matched[j].Timestamp) })

	total := len(matched)
	start := opts.Offset()
	if start > total {
		start = total
	}
	end := start + opts.PageSize
	if end > total {
		end = total
	}
	return kernel.NewPaginated(matched[start:end], opts.Page, opts.PageSize, total), nil
}

func (l *MemoryAttemptLog) CountOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	return int64(l.countWhere(func(a otp.Attempt) bool { return a.Timestamp.Before(cutoff) })), nil
}

func (l *MemoryAttemptLog) Breakdown(_ context.Context, cutoff time.Time) ([]otp.AttemptBreakdown, error) {
	type key struct {
		t otp.AttemptType
		s bool
	}

	l.mu.RLock()
	counts := make(map[key]int64)
	for _, a := range l.rows {
		if a.Timestamp.Before(cutoff) {
			counts[key{a.Type, a.Success}]++
		}
	}
	l.mu.RUnlock()

	out := make([]otp.AttemptBreakdown, 0, len(counts))
	for k, n := range counts {
		out = append(out, otp.AttemptBreakdown{Type: k.t, Success: k.s, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return !out[i].Success && out[j].Success
	})
	return out, nil
}

func (l *MemoryAttemptLog) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.rows[:0]
	var n int64
	for _, a := range l.rows {
		if a.Timestamp.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, a)
	}
	l.rows = kept
	return n, nil
}
