package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crm-backend/internal/audit"
	"crm-backend/internal/auth"
	"crm-backend/internal/rbac"
	"crm-backend/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("user not found")
	ErrEmailTaken      = errors.New("a user with this email already exists")
	ErrInvalidArgument = errors.New("invalid argument")
)

const maxNameLen = 255

// AuditLogger is satisfied by *audit.Service.
type AuditLogger interface {
	LogUserAction(ctx context.Context, typ audit.EventType, actorUserID, actorRole, targetUserID, message string) error
}

type Service struct {
	repo     Repository
	audit    AuditLogger
	validate *validator.Validate
	clock    func() time.Time
}

func NewService(repo Repository, auditLog AuditLogger) *Service {
	return &Service{repo: repo, audit: auditLog, validate: validator.New(), clock: time.Now}
}

func (s *Service) now() time.Time { return s.clock().UTC().Truncate(time.Microsecond) }

// Authenticate checks an email and password pair.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return User{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, offset, limit int) ([]User, error) {
	if offset < 0 || limit < 0 {
		return nil, fmt.Errorf("%w: skip and limit must not be negative", ErrInvalidArgument)
	}
	if limit == 0 || limit > 1000 {
		limit = 100
	}
	return s.repo.List(ctx, offset, limit)
}

// DisplayName resolves a user id for lead assignment.
func (s *Service) DisplayName(ctx context.Context, id string) (string, bool, error) {
	u, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return u.Name, true, nil
}

func (s *Service) Create(ctx context.Context, actorID, actorRole string, in CreateInput) (User, error) {
	u, err := s.newUser(in)
	if err != nil {
		return User{}, err
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return User{}, err
	}
	s.record(ctx, audit.EventUserCreated, actorID, actorRole, u.ID, "user created: "+u.Email)
	return u, nil
}

func (s *Service) Update(ctx context.Context, actorID, actorRole, id string, in UpdateInput) (User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}

	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if err := s.validate.Var(email, "required,email"); err != nil {
			return User{}, fmt.Errorf("%w: email is invalid", ErrInvalidArgument)
		}
		u.Email = email
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" || len(name) > maxNameLen {
			return User{}, fmt.Errorf("%w: name is required", ErrInvalidArgument)
		}
		u.Name = name
	}
	if in.Role != nil {
		if !rbac.IsValidRole(*in.Role) {
			return User{}, fmt.Errorf("%w: role must be ADMIN or EMPLOYEE", ErrInvalidArgument)
		}
		u.Role = *in.Role
	}
	if in.Password != nil {
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return User{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		u.PasswordHash = hash
	}
	u.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, u); err != nil {
		return User{}, err
	}
	s.record(ctx, audit.EventUserUpdated, actorID, actorRole, u.ID, "user updated")
	return u, nil
}

// EnsureUser returns the user with in.Email, creating it when absent.
// Used by the seed command and the development login.
func (s *Service) EnsureUser(ctx context.Context, in CreateInput) (User, bool, error) {
	existing, err := s.repo.GetByEmail(ctx, normalizeEmail(in.Email))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, false, err
	}

	u, err := s.newUser(in)
	if err != nil {
		return User{}, false, err
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			// lost a race with a concurrent seed
			existing, gerr := s.repo.GetByEmail(ctx, u.Email)
			return existing, false, gerr
		}
		return User{}, false, err
	}
	return u, true, nil
}

func (s *Service) newUser(in CreateInput) (User, error) {
	email := normalizeEmail(in.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return User{}, fmt.Errorf("%w: email is invalid", ErrInvalidArgument)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > maxNameLen {
		return User{}, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	role := in.Role
	if role == "" {
		role = rbac.RoleEmployee
	}
	if !rbac.IsValidRole(role) {
		return User{}, fmt.Errorf("%w: role must be ADMIN or EMPLOYEE", ErrInvalidArgument)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	now := s.now()
	return User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *Service) record(ctx context.Context, typ audit.EventType, actorID, actorRole, targetID, msg string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogUserAction(ctx, typ, actorID, actorRole, targetID, msg); err != nil {
		logger.From(ctx).Warn("audit append failed", "type", typ, "user_id", targetID, "err", err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
