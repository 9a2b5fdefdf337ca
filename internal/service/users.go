package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/reputation-engine/internal/domain"
)

// UserService registers users and maintains their activity stats
type UserService struct {
	store    UserStore
	audit    Auditor
	validate *validator.Validate
	logger   *slog.Logger
}

// NewUserService creates a new user service
func NewUserService(store UserStore, audit Auditor, logger *slog.Logger) *UserService {
	return &UserService{
		store:    store,
		audit:    audit,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateUser registers a user with an empty score and stats. Role defaults
// to STUDENT.
func (s *UserService) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	role := req.Role
	if role == "" {
		role = domain.RoleStudent
	}
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:        uuid.NewString(),
		Email:     req.Email,
		Name:      req.Name,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user created", "user_id", user.ID, "role", user.Role)
	return &user, nil
}

// CreateAdmin registers a user with the ADMIN role
func (s *UserService) CreateAdmin(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	req.Role = domain.RoleAdmin
	user, err := s.CreateUser(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		s.audit.Record(ctx, domain.AuditRecord{
			Action:       domain.AuditAdminCreated,
			ResourceType: "user",
			ResourceID:   user.ID,
			Metadata:     map[string]interface{}{"email": user.Email},
		})
	}
	return user, nil
}

// GetUser returns a user by ID
func (s *UserService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}

// ListUsers returns users with the given role, or all users if role is empty
func (s *UserService) ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error) {
	if role != "" && !role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	users, err := s.store.ListUsers(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// GetStats returns the user's activity aggregate
func (s *UserService) GetStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	stats, err := s.store.GetStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting stats: %w", err)
	}
	return stats, nil
}

// IncrementStats adds to the user's activity counters
func (s *UserService) IncrementStats(ctx context.Context, userID string, inc domain.StatsIncrement) (*domain.UserStats, error) {
	if err := s.validate.Struct(inc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidStats, err)
	}
	stats, err := s.store.IncrementStats(ctx, userID, inc, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("incrementing stats: %w", err)
	}
	return stats, nil
}
