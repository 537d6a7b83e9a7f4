package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"recharge_desk/internal/model"
	"recharge_desk/internal/repository"
	"recharge_desk/internal/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrDuplicateIdentity  = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AdminUsername is the single seeded back-office account
const AdminUsername = "ADM"

// dummyHash is compared against when the account does not exist so that
// unknown accounts cost the same bcrypt work as wrong passwords.
var dummyHash = sync.OnceValue(func() string {
	h, _ := utils.HashPassword("not-a-real-password")
	return h
})

// AuthService provides authentication related services
type AuthService interface {
	Register(ctx context.Context, req model.RegisterRequest) (*model.User, string, error)
	Login(ctx context.Context, email, password string) (*model.User, string, error)
	AdminLogin(ctx context.Context, username, password string) (*model.Admin, string, error)
	// BootstrapAdmin creates the admin account with password unless it already exists
	BootstrapAdmin(ctx context.Context, password string) error
}

type authService struct {
	store   repository.Store
	jwtUtil *utils.JWTUtil
}

// NewAuthService creates a new AuthService
func NewAuthService(store repository.Store, jwtUtil *utils.JWTUtil) AuthService {
	return &authService{
		store:   store,
		jwtUtil: jwtUtil,
	}
}

// Register creates a new user account
func (s *authService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, string, error) {
	email := normalizeEmail(req.Email)

	_, err := s.store.Users().FindByEmail(ctx, email)
	if err == nil {
		return nil, "", ErrDuplicateIdentity
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, "", fmt.Errorf("failed to check existing user: %w", err)
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(req.Name),
		Email:         email,
		Phone:         strings.TrimSpace(req.Phone),
		AccountNumber: strings.TrimSpace(req.AccountNumber),
		PasswordHash:  hashedPassword,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.store.Users().Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, "", ErrDuplicateIdentity
		}
		return nil, "", fmt.Errorf("failed to create user in repository: %w", err)
	}

	token, err := s.jwtUtil.GenerateToken(user.ID, model.RoleUser)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("user_id", user.ID).Msg("user created, but failed to generate token")
		return user, "", fmt.Errorf("user created, but failed to generate token: %w", err)
	}

	log.Ctx(ctx).Info().Str("user_id", user.ID).Msg("user registered")
	return user, token, nil
}

// Login authenticates a user and returns a JWT token
func (s *authService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	user, err := s.store.Users().FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.CheckPasswordHash(password, dummyHash())
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("error finding user by email: %w", err)
	}

	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.jwtUtil.GenerateToken(user.ID, model.RoleUser)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}
	return user, token, nil
}

func (s *authService) AdminLogin(ctx context.Context, username, password string) (*model.Admin, string, error) {
	admin, err := s.store.Admins().FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.CheckPasswordHash(password, dummyHash())
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("error finding admin: %w", err)
	}

	if !utils.CheckPasswordHash(password, admin.PasswordHash) {
		log.Ctx(ctx).Warn().Str("username", username).Msg("failed admin login")
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.jwtUtil.GenerateToken(admin.ID, model.RoleAdmin)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}
	return admin, token, nil
}

func (s *authService) BootstrapAdmin(ctx context.Context, password string) error {
	if password == "" {
		return errors.New("admin seed password is empty")
	}
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &model.Admin{
		ID:           uuid.NewString(),
		Username:     AdminUsername,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC(),
	}
	created, err := s.store.Admins().CreateIfAbsent(ctx, admin)
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	if created {
		log.Ctx(ctx).Info().Str("username", AdminUsername).Msg("admin account created")
	} else {
		log.Ctx(ctx).Debug().Str("username", AdminUsername).Msg("admin account already exists")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
