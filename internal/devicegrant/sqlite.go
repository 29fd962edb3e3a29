package devicegrant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	sqlite "modernc.org/sqlite"

	"github.com/oauthkit/devicegrant/internal/devicegrant/migrations"
	"github.com/oauthkit/devicegrant/internal/validation"
)

// SQLiteStore implements Store on a single SQLite database. Conditional
// updates are plain UPDATE statements guarded by the current status; the
// RowsAffected count tells us whether we won the transition.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at the given DSN.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// ApplyMigrations brings the schema up to date using the embedded
// migration files.
func (s *SQLiteStore) ApplyMigrations() error {
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	src, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, rec *Record) error {
	var lastPolled sql.NullTime
	if rec.LastPolledAt != nil {
		lastPolled = sql.NullTime{Time: *rec.LastPolledAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_codes (
			device_code, user_code, user_code_norm, client_id, scopes,
			status, created_at, expires_at, interval_seconds,
			last_polled_at, approved_subject
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.DeviceCode,
		rec.UserCode,
		validation.NormalizeCode(rec.UserCode),
		rec.ClientID,
		strings.Join(rec.Scopes, " "),
		string(rec.Status),
		rec.CreatedAt,
		rec.ExpiresAt,
		rec.Interval,
		lastPolled,
		rec.ApprovedSubject,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

func (s *SQLiteStore) GetByDeviceCode(ctx context.Context, deviceCode string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT device_code, user_code, client_id, scopes, status,
		       created_at, expires_at, interval_seconds, last_polled_at,
		       approved_subject
		FROM device_codes WHERE device_code = ?`, deviceCode)
	return scanRecord(row)
}

func (s *SQLiteStore) GetByUserCode(ctx context.Context, userCode string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT device_code, user_code, client_id, scopes, status,
		       created_at, expires_at, interval_seconds, last_polled_at,
		       approved_subject
		FROM device_codes WHERE user_code_norm = ?
		ORDER BY created_at DESC LIMIT 1`,
		validation.NormalizeCode(userCode))
	return scanRecord(row)
}

func (s *SQLiteStore) Approve(ctx context.Context, deviceCode, subject string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE device_codes SET status = ?, approved_subject = ?
		WHERE device_code = ? AND status = ?`,
		string(StatusApproved), subject, deviceCode, string(StatusPending))
	return casResult(res, err)
}

func (s *SQLiteStore) Deny(ctx context.Context, deviceCode, subject string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE device_codes SET status = ?
		WHERE device_code = ? AND status = ?`,
		string(StatusDenied), deviceCode, string(StatusPending))
	return casResult(res, err)
}

func (s *SQLiteStore) Transition(ctx context.Context, deviceCode string, from, to Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE device_codes SET status = ?
		WHERE device_code = ? AND status = ?`,
		string(to), deviceCode, string(from))
	return casResult(res, err)
}

func (s *SQLiteStore) RecordPoll(ctx context.Context, deviceCode string, at time.Time, interval int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE device_codes
		SET last_polled_at = ?, interval_seconds = MAX(interval_seconds, ?)
		WHERE device_code = ? AND status = ?`,
		at, interval, deviceCode, string(StatusPending))
	return casResult(res, err)
}

func (s *SQLiteStore) DeleteExpiredBefore(ctx context.Context, t time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM device_codes WHERE expires_at < ?`, t)
	if err != nil {
		return 0, fmt.Errorf("purging expired records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStore) CheckHealth(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite health check failed: %w", err)
	}
	return nil
}

func scanRecord(row *sql.Row) (*Record, error) {
	var (
		rec        Record
		scopes     string
		status     string
		lastPolled sql.NullTime
	)
	err := row.Scan(
		&rec.DeviceCode, &rec.UserCode, &rec.ClientID, &scopes, &status,
		&rec.CreatedAt, &rec.ExpiresAt, &rec.Interval, &lastPolled,
		&rec.ApprovedSubject,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	rec.Scopes = strings.Fields(scopes)
	rec.Status = Status(status)
	if lastPolled.Valid {
		t := lastPolled.Time
		rec.LastPolledAt = &t
	}
	return &rec, nil
}

func casResult(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// SQLite extended result codes for unique violations.
const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

func mapUniqueViolation(err error) error {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqliteConstraintPrimaryKey:
			return ErrDeviceCodeExists
		case sqliteConstraintUnique:
			if strings.Contains(serr.Error(), "user_code_norm") {
				return ErrUserCodeExists
			}
			return ErrDeviceCodeExists
		}
	}
	return fmt.Errorf("inserting record: %w", err)
}
