package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/LeventeLantos/account-provisioner/internal/model"
)

// Connect opens a pgx-backed pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

type PostgresAuditRepo struct {
	db *sqlx.DB
}

func NewPostgresAuditRepo(db *sqlx.DB) *PostgresAuditRepo {
	return &PostgresAuditRepo{db: db}
}

func (r *PostgresAuditRepo) InsertStatus(ctx context.Context, e model.StatusEvent) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO auth_status (action, phone, device_id, user_id, status, detail, log_id, created_at)
		VALUES (:action, :phone, :device_id, :user_id, :status, :detail, :log_id, now())
	`, e)
	return err
}

func (r *PostgresAuditRepo) InsertAction(ctx context.Context, e model.ActionEvent) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO user_actions (user_id, action_name, detail, log_id, created_at)
		VALUES (:user_id, :action_name, :detail, :log_id, now())
	`, e)
	return err
}

type PostgresUserRepo struct {
	db *sqlx.DB
}

func NewPostgresUserRepo(db *sqlx.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func (r *PostgresUserRepo) FindIDByPhone(ctx context.Context, phone string) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `
		SELECT id FROM users WHERE phone = $1 ORDER BY id DESC LIMIT 1
	`, phone)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

// LoginCandidates returns users that never logged in successfully or whose
// last successful login is older than cooldownMinutes, newest users first.
func (r *PostgresUserRepo) LoginCandidates(ctx context.Context, cooldownMinutes, limit int) ([]model.LoginCandidate, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	if cooldownMinutes < 0 {
		cooldownMinutes = 0
	}

	var out []model.LoginCandidate
	err := r.db.SelectContext(ctx, &out, `
		SELECT u.id,
		       COALESCE(u.phone, '')     AS phone,
		       COALESCE(u.password, '')  AS password,
		       COALESCE(u.device_id, '') AS device_id
		FROM users u
		LEFT JOIN (
			SELECT phone, MAX(created_at) AS last_login
			FROM auth_status
			WHERE action = 'LOGIN' AND status = 1
			GROUP BY phone
		) t ON t.phone = u.phone
		WHERE t.last_login IS NULL
		   OR t.last_login < now() - ($1::int * INTERVAL '1 minute')
		ORDER BY u.id DESC
		LIMIT $2
	`, cooldownMinutes, limit)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type PostgresLogRepo struct {
	db *sqlx.DB
}

func NewPostgresLogRepo(db *sqlx.DB) *PostgresLogRepo {
	return &PostgresLogRepo{db: db}
}

// Ensure returns the id of the log_files row for fileName, creating it on first use.
func (r *PostgresLogRepo) Ensure(ctx context.Context, fileName, filePath string) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `
		INSERT INTO log_files (file_name, file_path, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (file_name) DO UPDATE SET file_path = EXCLUDED.file_path
		RETURNING id
	`, fileName, filePath)
	if err != nil {
		return 0, fmt.Errorf("ensure log row %s: %w", fileName, err)
	}
	return id, nil
}
