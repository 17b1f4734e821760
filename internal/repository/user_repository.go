package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/stroybirzha/backend/internal/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrSessionNotFound = errors.New("session not found")
)

// UserRepository отвечает за пользователей, профили и сессии.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт новый экземпляр.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateWithProfile сохраняет пользователя и пустой профиль одной транзакцией.
func (r *UserRepository) CreateWithProfile(ctx context.Context, user *models.User, displayName string) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("user repository: begin tx %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO users (email, username, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at, updated_at
	`
	if err = tx.QueryRowxContext(
		ctx,
		query,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.Role,
	).Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			err = ErrUserExists
			return err
		}
		return fmt.Errorf("user repository: insert user %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO profiles (user_id, display_name) VALUES ($1, $2)
	`, user.ID, displayName); err != nil {
		return fmt.Errorf("user repository: insert profile %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("user repository: commit %w", err)
	}

	return nil
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by id %w", err)
	}
	return &user, nil
}

// GetByEmail возвращает пользователя по email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE email = $1`, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by email %w", err)
	}
	return &user, nil
}

// GetProfile возвращает публичный профиль пользователя.
func (r *UserRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, `SELECT * FROM profiles WHERE user_id = $1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get profile %w", err)
	}
	return &profile, nil
}

// UpdateProfile изменяет публичный профиль.
func (r *UserRepository) UpdateProfile(ctx context.Context, profile *models.Profile) error {
	query := `
		UPDATE profiles
		SET display_name = $1,
		    bio = $2,
		    phone = $3,
		    location = $4,
		    company_name = $5,
		    photo_id = $6,
		    updated_at = NOW()
		WHERE user_id = $7
		RETURNING updated_at
	`
	err := r.db.QueryRowxContext(
		ctx,
		query,
		profile.DisplayName,
		profile.Bio,
		profile.Phone,
		profile.Location,
		profile.CompanyName,
		profile.PhotoID,
		profile.UserID,
	).Scan(&profile.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("user repository: update profile %w", err)
	}
	return nil
}

// UpdateLastLogin фиксирует время входа.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, at, userID)
	if err != nil {
		return fmt.Errorf("user repository: update last login %w", err)
	}
	return nil
}

// CreateSession сохраняет сессию refresh токена.
func (r *UserRepository) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (user_id, refresh_token, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(
		ctx,
		query,
		session.UserID,
		session.RefreshToken,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt,
	).Scan(&session.ID, &session.CreatedAt); err != nil {
		return fmt.Errorf("user repository: create session %w", err)
	}
	return nil
}

// GetSessionByToken возвращает сессию по refresh токену.
func (r *UserRepository) GetSessionByToken(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	if err := r.db.GetContext(ctx, &session, `SELECT * FROM sessions WHERE refresh_token = $1`, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("user repository: get session %w", err)
	}
	return &session, nil
}

// DeleteSession удаляет сессию.
func (r *UserRepository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, token)
	if err != nil {
		return fmt.Errorf("user repository: delete session %w", err)
	}
	return nil
}

// DeleteExpiredSessions чистит протухшие сессии.
func (r *UserRepository) DeleteExpiredSessions(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("user repository: delete expired sessions %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
