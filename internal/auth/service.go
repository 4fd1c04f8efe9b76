package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/internal/users"
	pkgauth "github.com/stockroomhq/stockroom-backend/pkg/auth"
	"github.com/stockroomhq/stockroom-backend/pkg/auth/session"
	"github.com/stockroomhq/stockroom-backend/pkg/config"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
	"github.com/stockroomhq/stockroom-backend/pkg/security"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	invalidCodeMessage        = "invalid or expired code"
	loginCodeDigits           = 6
)

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*ChallengeResponse, error)
	VerifyCode(ctx context.Context, req VerifyRequest) (*LoginResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*RefreshResponse, error)
	Logout(ctx context.Context, accessToken string) error
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// codeStore is the Redis surface the 2FA flow needs.
type codeStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	TwoFactorKey(email string) string
	TwoFactorAttemptsKey(email string) string
}

type service struct {
	users        userRepository
	session      sessionManager
	codes        codeStore
	sender       CodeSender
	jwtCfg       config.JWTConfig
	twoFactorCfg config.TwoFactorConfig
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo        userRepository
	SessionManager  sessionManager
	CodeStore       codeStore
	CodeSender      CodeSender
	JWTConfig       config.JWTConfig
	TwoFactorConfig config.TwoFactorConfig
}

// NewService constructs the login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.CodeStore == nil {
		return nil, fmt.Errorf("code store is required")
	}
	if params.CodeSender == nil {
		return nil, fmt.Errorf("code sender is required")
	}
	if params.TwoFactorConfig.CodeTTL <= 0 {
		return nil, fmt.Errorf("two factor code ttl must be positive")
	}
	if params.TwoFactorConfig.MaxAttempts <= 0 {
		return nil, fmt.Errorf("two factor max attempts must be positive")
	}
	return &service{
		users:        params.UserRepo,
		session:      params.SessionManager,
		codes:        params.CodeStore,
		sender:       params.CodeSender,
		jwtCfg:       params.JWTConfig,
		twoFactorCfg: params.TwoFactorConfig,
	}, nil
}

// Login checks the password and emails a one-time code. Tokens are only
// issued after VerifyCode.
func (s *service) Login(ctx context.Context, req LoginRequest) (*ChallengeResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	code, err := security.GenerateLoginCode(loginCodeDigits)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate login code")
	}

	if err := s.codes.Set(ctx, s.codes.TwoFactorKey(user.Email), code, s.twoFactorCfg.CodeTTL); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store login code")
	}
	// A fresh code resets the attempt budget.
	if err := s.codes.Del(ctx, s.codes.TwoFactorAttemptsKey(user.Email)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset code attempts")
	}

	if err := s.sender.SendLoginCode(ctx, user.Email, code); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send login code")
	}

	return &ChallengeResponse{
		Message:   "login code sent",
		ExpiresIn: int(s.twoFactorCfg.CodeTTL.Seconds()),
	}, nil
}

// VerifyCode trades a valid emailed code for a token pair. Codes are single
// use and expire after a bounded number of attempts.
func (s *service) VerifyCode(ctx context.Context, req VerifyRequest) (*LoginResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || strings.TrimSpace(req.Code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCodeMessage)
	}

	stored, err := s.codes.Get(ctx, s.codes.TwoFactorKey(email))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCodeMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load login code")
	}

	attempts, err := s.codes.IncrWithTTL(ctx, s.codes.TwoFactorAttemptsKey(email), s.twoFactorCfg.CodeTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count code attempts")
	}
	if attempts > int64(s.twoFactorCfg.MaxAttempts) {
		s.discardCode(ctx, email)
		return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "too many code attempts")
	}

	if !security.ConstantTimeEquals(stored, strings.TrimSpace(req.Code)) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCodeMessage)
	}
	s.discardCode(ctx, email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	now, err := s.recordLogin(ctx, user)
	if err != nil {
		return nil, err
	}

	accessToken, refreshToken, err := s.issueTokens(ctx, user, now)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         users.FromModel(user),
	}, nil
}

// Refresh rotates the refresh token and mints a fresh access token carrying
// the account's current role.
func (s *service) Refresh(ctx context.Context, req RefreshRequest) (*RefreshResponse, error) {
	claims, err := pkgauth.ParseAccessTokenAllowExpired(s.jwtCfg, req.AccessToken)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}

	newAccessID, newRefreshToken, err := s.session.Rotate(ctx, claims.ID, req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	user, err := s.users.FindByEmail(ctx, claims.Email)
	if err != nil || !user.IsActive {
		// The rotated session is unusable for a dead account.
		_ = s.session.Revoke(ctx, newAccessID)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	accessToken, err := pkgauth.MintAccessToken(s.jwtCfg, time.Now().UTC(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	return &RefreshResponse{AccessToken: accessToken, RefreshToken: newRefreshToken}, nil
}

// Logout revokes the session tied to the token's jti. Expired tokens are
// accepted so a stale client can still log out.
func (s *service) Logout(ctx context.Context, accessToken string) error {
	claims, err := pkgauth.ParseAccessTokenAllowExpired(s.jwtCfg, accessToken)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}
	if err := s.session.Revoke(ctx, claims.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	normalized := normalizeEmail(email)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

func (s *service) issueTokens(ctx context.Context, user *models.User, now time.Time) (string, string, error) {
	accessID := session.NewAccessID()
	accessToken, err := pkgauth.MintAccessToken(s.jwtCfg, now, pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    accessID,
	})
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refreshToken, err := s.session.Generate(ctx, accessID)
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return accessToken, refreshToken, nil
}

func (s *service) recordLogin(ctx context.Context, user *models.User) (time.Time, error) {
	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now
	return now, nil
}

func (s *service) discardCode(ctx context.Context, email string) {
	_ = s.codes.Del(ctx, s.codes.TwoFactorKey(email), s.codes.TwoFactorAttemptsKey(email))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
