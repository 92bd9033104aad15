package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"akita-notify-go/internal/models"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

type PostgresStore struct {
	db *sql.DB
}

type PostgresOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func NewPostgresStore(ctx context.Context, databaseURL string, opts PostgresOptions) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *PostgresStore) Close() error { return s.db.Close() }

// RunMigrations applies the embedded goose migrations.
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Push subscriptions

func (s *PostgresStore) SavePushSubscription(ctx context.Context, sub models.PushSubscription) (models.PushSubscription, error) {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (user_id, endpoint) DO UPDATE SET p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth
		 RETURNING id, created_at`,
		sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth,
	).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return models.PushSubscription{}, fmt.Errorf("upsert push subscription: %w", err)
	}
	return sub, nil
}

func (s *PostgresStore) GetPushSubscriptions(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, endpoint, p256dh, auth, created_at
		 FROM push_subscriptions WHERE user_id = $1 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.PushSubscription
	for rows.Next() {
		var sub models.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// DeletePushSubscription is idempotent; deleting a missing row is not an error.
func (s *PostgresStore) DeletePushSubscription(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) DeletePushSubscriptionByEndpoint(ctx context.Context, userID, endpoint string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`,
		userID, endpoint,
	)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Preferences

func (s *PostgresStore) GetNotificationPreference(ctx context.Context, userID string) (models.NotificationPreference, bool, error) {
	p := models.NotificationPreference{UserID: userID}
	err := s.db.QueryRowContext(ctx,
		`SELECT email_announcements, email_replies, email_mentions, email_direct_messages, updated_at
		 FROM notification_preferences WHERE user_id = $1`,
		userID,
	).Scan(&p.EmailAnnouncements, &p.EmailReplies, &p.EmailMentions, &p.EmailDirectMessages, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultNotificationPreference(userID), false, nil
	}
	if err != nil {
		return models.NotificationPreference{}, false, fmt.Errorf("query preferences: %w", err)
	}
	return p, true, nil
}

func (s *PostgresStore) SaveNotificationPreference(ctx context.Context, p models.NotificationPreference) (models.NotificationPreference, error) {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO notification_preferences
		   (user_id, email_announcements, email_replies, email_mentions, email_direct_messages, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
		   email_announcements = EXCLUDED.email_announcements,
		   email_replies = EXCLUDED.email_replies,
		   email_mentions = EXCLUDED.email_mentions,
		   email_direct_messages = EXCLUDED.email_direct_messages,
		   updated_at = NOW()
		 RETURNING updated_at`,
		p.UserID, p.EmailAnnouncements, p.EmailReplies, p.EmailMentions, p.EmailDirectMessages,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return models.NotificationPreference{}, fmt.Errorf("upsert preferences: %w", err)
	}
	return p, nil
}

// Members

func (s *PostgresStore) GetMember(ctx context.Context, id string) (models.Member, error) {
	var m models.Member
	var email sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, created_at FROM members WHERE id = $1`,
		id,
	).Scan(&m.ID, &email, &m.DisplayName, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, ErrNotFound
	}
	if err != nil {
		return models.Member{}, err
	}
	m.Email = email.String
	return m, nil
}

func (s *PostgresStore) UpsertMember(ctx context.Context, m models.Member) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO members (id, email, display_name) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, display_name = EXCLUDED.display_name`,
		m.ID, m.Email, m.DisplayName,
	)
	return err
}

// DeleteMember is idempotent.
func (s *PostgresStore) DeleteMember(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
	return err
}

// Operators

func (s *PostgresStore) CreateOperator(ctx context.Context, username, password, role string) (models.Operator, error) {
	passwordHash, err := models.HashPassword(password)
	if err != nil {
		return models.Operator{}, err
	}

	var op models.Operator
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO operators (username, password_hash, role, created_at)
		 VALUES ($1, $2, $3, NOW())
		 RETURNING id, username, password_hash, role, created_at`,
		username, passwordHash, role,
	).Scan(&op.ID, &op.Username, &op.PasswordHash, &op.Role, &op.CreatedAt)
	if err != nil {
		return models.Operator{}, err
	}
	return op, nil
}

const operatorColumns = `id, username, password_hash, role, totp_secret, totp_enabled, created_at`

func scanOperator(row *sql.Row) (models.Operator, error) {
	var op models.Operator
	var totpSecret sql.NullString
	err := row.Scan(&op.ID, &op.Username, &op.PasswordHash, &op.Role, &totpSecret, &op.TOTPEnabled, &op.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Operator{}, ErrNotFound
	}
	if err != nil {
		return models.Operator{}, err
	}
	op.TOTPSecret = totpSecret.String
	return op, nil
}

func (s *PostgresStore) GetOperator(ctx context.Context, id int) (models.Operator, error) {
	return scanOperator(s.db.QueryRowContext(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE id = $1`, id))
}

func (s *PostgresStore) GetOperatorByUsername(ctx context.Context, username string) (models.Operator, error) {
	return scanOperator(s.db.QueryRowContext(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE username = $1`, username))
}

func (s *PostgresStore) CountOperators(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM operators`).Scan(&n)
	return n, err
}

func (s *PostgresStore) UpdateOperatorTOTP(ctx context.Context, id int, secret string, enabled bool) error {
	var secretArg any
	if secret != "" {
		secretArg = secret
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE operators SET totp_secret = $1, totp_enabled = $2 WHERE id = $3`,
		secretArg, enabled, id,
	)
	return err
}
