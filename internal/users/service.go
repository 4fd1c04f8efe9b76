package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/pkg/config"
	"github.com/stockroomhq/stockroom-backend/pkg/db"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
	"github.com/stockroomhq/stockroom-backend/pkg/pagination"
	"github.com/stockroomhq/stockroom-backend/pkg/security"
)

const minPasswordLength = 10

// Service exposes account administration. All calls are admin-gated at the
// API layer.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*UserDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*UserDTO, error)
	List(ctx context.Context, filter Filter, params pagination.Params) (*ListDTO, error)
	SetActive(ctx context.Context, actorID, id uuid.UUID, active bool) (*UserDTO, error)
	ChangeRole(ctx context.Context, actorID, id uuid.UUID, role enums.UserRole) (*UserDTO, error)
}

// CreateInput holds the payload for a new account.
type CreateInput struct {
	Email    string
	Password string
	FullName string
	Role     enums.UserRole
}

type service struct {
	repo        Repository
	passwordCfg config.PasswordConfig
}

// NewService constructs the account admin service.
func NewService(repo Repository, passwordCfg config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{repo: repo, passwordCfg: passwordCfg}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*UserDTO, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "hash password")
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: hash,
		FullName:     strings.TrimSpace(input.FullName),
		Role:         input.Role,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "idx_users_email") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert user")
	}

	return FromModel(user), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromModel(user), nil
}

func (s *service) List(ctx context.Context, filter Filter, params pagination.Params) (*ListDTO, error) {
	if filter.Role != nil && !filter.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid role %q", *filter.Role))
	}

	result, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}

	items := make([]UserDTO, 0, len(result.Users))
	for i := range result.Users {
		items = append(items, *FromModel(&result.Users[i]))
	}
	return &ListDTO{Users: items, NextCursor: result.NextCursor}, nil
}

// SetActive flips the account flag. Deactivated accounts fail auth on the
// next token check; actors cannot deactivate themselves.
func (s *service) SetActive(ctx context.Context, actorID, id uuid.UUID, active bool) (*UserDTO, error) {
	if !active && actorID == id {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot deactivate own account")
	}

	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsActive == active {
		return FromModel(user), nil
	}

	user.IsActive = active
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update user")
	}
	return FromModel(user), nil
}

func (s *service) ChangeRole(ctx context.Context, actorID, id uuid.UUID, role enums.UserRole) (*UserDTO, error) {
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid role %q", role))
	}
	if actorID == id && role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot drop own admin role")
	}

	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return FromModel(user), nil
	}

	user.Role = role
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update user")
	}
	return FromModel(user), nil
}

func (s *service) loadUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func validateCreateInput(input CreateInput) error {
	email := strings.TrimSpace(input.Email)
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid email address")
	}
	if len(input.Password) < minPasswordLength {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if strings.TrimSpace(input.FullName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "full name is required")
	}
	if !input.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid role %q", input.Role))
	}
	return nil
}
