package otpinfra

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/kernel"
	"github.com/Abraxas-365/otpguard/pkg/otp"
	"github.com/jmoiron/sqlx"
)

const attemptColumns = `id, identifier, attempt_type, ip_address, user_agent, timestamp, success, otp_id, error_message, metadata`

// attemptRow carries metadata as raw JSONB.
type attemptRow struct {
	otp.Attempt
	MetadataRaw []byte `db:"metadata"`
}

func (r attemptRow) toAttempt() (otp.Attempt, error) {
	a := r.Attempt
	a.Metadata = map[string]interface{}{}
	if len(r.MetadataRaw) > 0 {
		if err := json.Unmarshal(r.MetadataRaw, &a.Metadata); err != nil {
			return a, pgErrors.NewWithCause(ErrMetadata, err).WithDetail("attempt_id", a.ID.String())
		}
	}
	return a, nil
}

// PostgresAttemptLog stores audit rows in otp_attempts.
type PostgresAttemptLog struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewPostgresAttemptLog(db *sqlx.DB) *PostgresAttemptLog {
	return &PostgresAttemptLog{db: db, now: time.Now}
}

func (l *PostgresAttemptLog) since(window time.Duration) time.Time {
	return l.now().Add(-window).UTC()
}

func (l *PostgresAttemptLog) Append(ctx context.Context, a *otp.Attempt) error {
	if a.ID.IsEmpty() {
		a.ID = kernel.NewAttemptID()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = l.now().UTC()
	}
	meta := a.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return pgErrors.NewWithCause(ErrMetadata, err).WithDetail("attempt_id", a.ID.String())
	}

	query := `
		INSERT INTO otp_attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = l.db.ExecContext(ctx, query,
		a.ID, a.Identifier, a.Type, a.IPAddress, a.UserAgent,
		a.Timestamp, a.Success, a.OTPID, a.ErrorMessage, raw)
	if err != nil {
		return queryErr(err, "append_attempt").WithDetail("identifier", a.Identifier)
	}
	return nil
}

func (l *PostgresAttemptLog) count(ctx context.Context, op, query string, args ...interface{}) (int, error) {
	var n int
	if err := l.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, queryErr(err, op)
	}
	return n, nil
}

func (l *PostgresAttemptLog) CountRecent(ctx context.Context, identifier string, t otp.AttemptType, window time.Duration) (int, error) {
	return l.count(ctx, "count_recent",
		`SELECT COUNT(*) FROM otp_attempts WHERE identifier = $1 AND attempt_type = $2 AND timestamp >= $3`,
		identifier, t, l.since(window))
}

func (l *PostgresAttemptLog) CountIPRecent(ctx context.Context, ip string, window time.Duration) (int, error) {
	return l.count(ctx, "count_ip_recent",
		`SELECT COUNT(*) FROM otp_attempts WHERE ip_address = $1 AND timestamp >= $2`,
		ip, l.since(window))
}

func (l *PostgresAttemptLog) CountFailedVerifications(ctx context.Context, otpID kernel.OTPID) (int, error) {
	return l.count(ctx, "count_failed_verifications",
		`SELECT COUNT(*) FROM otp_attempts WHERE otp_id = $1 AND attempt_type = $2 AND success = FALSE`,
		otpID, otp.AttemptVerification)
}

func (l *PostgresAttemptLog) Analyze(ctx context.Context, identifier string, window time.Duration) (otp.SuspiciousActivity, error) {
	query := `
		SELECT
			COUNT(DISTINCT ip_address) AS unique_ips,
			COUNT(*) FILTER (WHERE success = FALSE) AS failed,
			COUNT(*) AS total
		FROM otp_attempts
		WHERE identifier = $1 AND timestamp >= $2`

	var row struct {
		UniqueIPs int `db:"unique_ips"`
		Failed    int `db:"failed"`
		Total     int `db:"total"`
	}
	if err := l.db.GetContext(ctx, &row, query, identifier, l.since(window)); err != nil {
		return otp.SuspiciousActivity{}, queryErr(err, "analyze").WithDetail("identifier", identifier)
	}
	return otp.NewSuspiciousActivity(row.UniqueIPs, row.Failed, row.Total), nil
}

// List pages through audit rows, newest first. An empty identifier lists all rows.
func (l *PostgresAttemptLog) List(ctx context.Context, identifier string, opts kernel.PaginationOptions) (kernel.Paginated[otp.Attempt], error) {
	opts = opts.Normalize(20, 100)

	where := `WHERE ($1 = '' OR identifier = $1)`

	var total int
	if err := l.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM otp_attempts `+where, identifier); err != nil {
		return kernel.Paginated[otp.Attempt]{}, queryErr(err, "list_attempts_count")
	}

	query := `
		SELECT ` + attemptColumns + `
		FROM otp_attempts ` + where + `
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3`

	var rows []attemptRow
	if err := l.db.SelectContext(ctx, &rows, query, identifier, opts.PageSize, opts.Offset()); err != nil {
		return kernel.Paginated[otp.Attempt]{}, queryErr(err, "list_attempts")
	}

	items := make([]otp.Attempt, len(rows))
	for i := range rows {
		a, err := rows[i].toAttempt()
		if err != nil {
			return kernel.Paginated[otp.Attempt]{}, err
		}
		items[i] = a
	}
	return kernel.NewPaginated(items, opts.Page, opts.PageSize, total), nil
}

func (l *PostgresAttemptLog) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	if err := l.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM otp_attempts WHERE timestamp < $1`, cutoff); err != nil {
		return 0, queryErr(err, "count_old_attempts")
	}
	return n, nil
}

func (l *PostgresAttemptLog) Breakdown(ctx context.Context, cutoff time.Time) ([]otp.AttemptBreakdown, error) {
	query := `
		SELECT attempt_type, success, COUNT(*) AS count
		FROM otp_attempts
		WHERE timestamp < $1
		GROUP BY attempt_type, success
		ORDER BY attempt_type, success`

	var rows []otp.AttemptBreakdown
	if err := l.db.SelectContext(ctx, &rows, query, cutoff); err != nil {
		return nil, queryErr(err, "attempt_breakdown")
	}
	return rows, nil
}

func (l *PostgresAttemptLog) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx, `DELETE FROM otp_attempts WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, queryErr(err, "delete_old_attempts")
	}
	return result.RowsAffected()
}
