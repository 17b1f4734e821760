package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/stroybirzha/backend/internal/models"
	"github.com/stroybirzha/backend/internal/pkg/apperror"
	"github.com/stroybirzha/backend/internal/repository"
	"github.com/stroybirzha/backend/internal/validation"
)

// AuthRepository описывает зависимости AuthService от слоя хранилища.
type AuthRepository interface {
	CreateWithProfile(ctx context.Context, user *models.User, displayName string) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	CreateSession(ctx context.Context, session *models.Session) error
	GetSessionByToken(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error
	UpdateLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
}

// AuthService инкапсулирует бизнес-логику регистрации и аутентификации.
type AuthService struct {
	repo         AuthRepository
	tokenManager *TokenManager
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(repo AuthRepository, tokenManager *TokenManager) *AuthService {
	return &AuthService{
		repo:         repo,
		tokenManager: tokenManager,
	}
}

// RegisterInput содержит данные пользователя при регистрации.
type RegisterInput struct {
	Email       string
	Password    string
	Username    string
	Role        string
	DisplayName string
	UserAgent   *string
	IPAddress   *string
}

// LoginInput содержит данные для входа.
type LoginInput struct {
	Email     string
	Password  string
	UserAgent *string
	IPAddress *string
}

// AuthResult возвращает итог регистрации или авторизации.
type AuthResult struct {
	User      *models.User
	Profile   *models.Profile
	TokenPair *TokenPair
}

// Register создаёт нового пользователя и профиль.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	role := in.Role
	if role == "" {
		role = models.RoleContractor
	}
	if role != models.RoleClient && role != models.RoleContractor {
		return nil, apperror.New(apperror.ErrCodeValidation, "недопустимая роль при регистрации")
	}

	username := in.Username
	if username == "" {
		username = deriveUsername(in.Email)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось захешировать пароль")
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Username:     username,
		PasswordHash: string(passHash),
		Role:         role,
	}

	displayName := in.DisplayName
	if displayName == "" {
		displayName = username
	}

	if err := s.repo.CreateWithProfile(ctx, user, displayName); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, apperror.New(apperror.ErrCodeConflict, "email или имя пользователя уже заняты")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать пользователя")
	}

	return s.issueTokens(ctx, user, in.UserAgent, in.IPAddress)
}

// Login проверяет учётные данные и выдаёт пару токенов.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить пользователя")
	}

	if !user.IsActive {
		return nil, apperror.New(apperror.ErrCodeForbidden, "учётная запись деактивирована")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		// Не фатально: вход продолжается.
		_ = err
	}

	return s.issueTokens(ctx, user, in.UserAgent, in.IPAddress)
}

// Refresh обменивает refresh токен на новую пару.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.tokenManager.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "refresh токен невалиден")
	}

	session, err := s.repo.GetSessionByToken(ctx, refreshToken)
	if err != nil {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "сессия не найдена")
	}
	if session.ExpiresAt.Before(time.Now()) {
		_ = s.repo.DeleteSession(ctx, refreshToken)
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "сессия истекла")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID != session.UserID {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "refresh токен невалиден")
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.ErrUserNotFound
	}

	// Сессия одноразовая: старый refresh токен гасится.
	if err := s.repo.DeleteSession(ctx, refreshToken); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось заменить сессию")
	}

	return s.issueTokens(ctx, user, session.UserAgent, session.IPAddress)
}

// Logout завершает сессию по refresh токену.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.repo.DeleteSession(ctx, refreshToken)
}

// issueTokens выпускает пару токенов и сохраняет сессию.
func (s *AuthService) issueTokens(ctx context.Context, user *models.User, userAgent, ipAddress *string) (*AuthResult, error) {
	tokenPair, _, refreshExp, err := s.tokenManager.GeneratePair(user)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выпустить токены")
	}

	session := &models.Session{
		UserID:       user.ID,
		RefreshToken: tokenPair.RefreshToken,
		UserAgent:    userAgent,
		IPAddress:    ipAddress,
		ExpiresAt:    refreshExp,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить сессию")
	}

	profile, err := s.repo.GetProfile(ctx, user.ID)
	if err != nil {
		profile = nil
	}

	return &AuthResult{User: user, Profile: profile, TokenPair: tokenPair}, nil
}

// deriveUsername собирает имя пользователя из локальной части email.
func deriveUsername(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return email
	}
	return email[:at]
}
