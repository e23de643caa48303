package otpinfra

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/kernel"
	"github.com/Abraxas-365/otpguard/pkg/otp"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const otpColumns = `id, mobile_number, code, expires_at, is_used, created_at`

// staleOTP selects rows created before $1 that can no longer be verified.
const staleOTP = `created_at < $1 AND (expires_at < NOW() OR is_used = TRUE)`

// PostgresOTPRepository stores OTP rows in the otps table.
type PostgresOTPRepository struct {
	db *sqlx.DB
}

func NewPostgresOTPRepository(db *sqlx.DB) *PostgresOTPRepository {
	return &PostgresOTPRepository{db: db}
}

func (r *PostgresOTPRepository) Create(ctx context.Context, o *otp.OTP) error {
	query := `
		INSERT INTO otps (` + otpColumns + `)
		VALUES (:id, :mobile_number, :code, :expires_at, :is_used, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, query, o); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return pgErrors.NewWithCause(ErrDuplicateMobile, err).WithDetail("mobile_number", o.MobileNumber)
		}
		return queryErr(err, "create_otp").WithDetail("otp_id", o.ID.String())
	}
	return nil
}

func (r *PostgresOTPRepository) GetByID(ctx context.Context, id kernel.OTPID) (*otp.OTP, error) {
	var o otp.OTP
	err := r.db.GetContext(ctx, &o, `SELECT `+otpColumns+` FROM otps WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, otp.ErrNotFound().WithDetail("otp_id", id.String())
		}
		return nil, queryErr(err, "get_otp").WithDetail("otp_id", id.String())
	}
	return &o, nil
}

func (r *PostgresOTPRepository) GetByMobile(ctx context.Context, mobileNumber string) (*otp.OTP, error) {
	query := `
		SELECT ` + otpColumns + `
		FROM otps
		WHERE mobile_number = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var o otp.OTP
	if err := r.db.GetContext(ctx, &o, query, mobileNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, otp.ErrNotFound().WithDetail("mobile_number", mobileNumber)
		}
		return nil, queryErr(err, "get_otp_by_mobile")
	}
	return &o, nil
}

func (r *PostgresOTPRepository) MarkUsed(ctx context.Context, id kernel.OTPID) error {
	result, err := r.db.ExecContext(ctx, `UPDATE otps SET is_used = TRUE WHERE id = $1`, id)
	if err != nil {
		return queryErr(err, "mark_used").WithDetail("otp_id", id.String())
	}
	n, err := result.RowsAffected()
	if err != nil {
		return queryErr(err, "mark_used")
	}
	if n == 0 {
		return otp.ErrNotFound().WithDetail("otp_id", id.String())
	}
	return nil
}

func (r *PostgresOTPRepository) MarkAllUsed(ctx context.Context, mobileNumber string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE otps SET is_used = TRUE WHERE mobile_number = $1 AND is_used = FALSE`, mobileNumber)
	if err != nil {
		return 0, queryErr(err, "mark_all_used")
	}
	return result.RowsAffected()
}

func (r *PostgresOTPRepository) Delete(ctx context.Context, id kernel.OTPID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM otps WHERE id = $1`, id)
	if err != nil {
		return queryErr(err, "delete_otp").WithDetail("otp_id", id.String())
	}
	n, err := result.RowsAffected()
	if err != nil {
		return queryErr(err, "delete_otp")
	}
	if n == 0 {
		return otp.ErrNotFound().WithDetail("otp_id", id.String())
	}
	return nil
}

func (r *PostgresOTPRepository) DeleteByMobile(ctx context.Context, mobileNumber string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM otps WHERE mobile_number = $1`, mobileNumber)
	if err != nil {
		return 0, queryErr(err, "delete_by_mobile")
	}
	return result.RowsAffected()
}

func (r *PostgresOTPRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*otp.OTP, error) {
	query := `
		SELECT ` + otpColumns + `
		FROM otps
		WHERE ` + staleOTP + `
		ORDER BY created_at
		LIMIT $2`

	var rows []otp.OTP
	if err := r.db.SelectContext(ctx, &rows, query, cutoff, limit); err != nil {
		return nil, queryErr(err, "list_stale")
	}

	result := make([]*otp.OTP, len(rows))
	for i := range rows {
		result[i] = &rows[i]
	}
	return result, nil
}

func (r *PostgresOTPRepository) CountStale(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM otps WHERE `+staleOTP, cutoff); err != nil {
		return 0, queryErr(err, "count_stale")
	}
	return n, nil
}

func (r *PostgresOTPRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM otps WHERE `+staleOTP, cutoff)
	if err != nil {
		return 0, queryErr(err, "delete_stale")
	}
	return result.RowsAffected()
}
