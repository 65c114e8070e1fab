package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/smschat/server/internal/model"
	"github.com/smschat/server/internal/repo"
)

// minPasswordLength is the minimum accepted password length.
const minPasswordLength = 6

// ErrInvalidCredentials is returned when the username is unknown or the
// password does not match.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ValidationError carries field-level registration errors.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Errors, "; ")
}

// Service orchestrates registration and login.
type Service struct {
	jwtService *JWTService
	userRepo   repo.UserRepo
}

// NewService creates a new auth service
func NewService(jwtService *JWTService, userRepo repo.UserRepo) *Service {
	return &Service{
		jwtService: jwtService,
		userRepo:   userRepo,
	}
}

// Register creates a user with a bcrypt password digest and issues a token.
// Returns *ValidationError for invalid or taken usernames and short passwords.
func (s *Service) Register(ctx context.Context, userName, password string) (model.User, string, error) {
	userName = strings.TrimSpace(userName)

	var fieldErrs []string
	if userName == "" {
		fieldErrs = append(fieldErrs, "user_name is required")
	}
	if len(password) < minPasswordLength {
		fieldErrs = append(fieldErrs, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(fieldErrs) > 0 {
		return model.User{}, "", &ValidationError{Errors: fieldErrs}
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, userName, string(digest))
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return model.User{}, "", &ValidationError{Errors: []string{"user_name has already been taken"}}
		}
		return model.User{}, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.jwtService.SignToken(user.UserName)
	if err != nil {
		return model.User{}, "", fmt.Errorf("failed to generate token: %w", err)
	}

	return user, token, nil
}

// Login verifies the password against the stored digest and issues a token.
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, userName, password string) (model.User, string, error) {
	user, err := s.userRepo.GetByUserName(ctx, strings.TrimSpace(userName))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, "", ErrInvalidCredentials
		}
		return model.User{}, "", fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordDigest), []byte(password)); err != nil {
		return model.User{}, "", ErrInvalidCredentials
	}

	token, err := s.jwtService.SignToken(user.UserName)
	if err != nil {
		return model.User{}, "", fmt.Errorf("failed to generate token: %w", err)
	}

	return user, token, nil
}

// SeedDefaultUsers creates the admin and guest accounts when they do not
// already exist. Used behind the SEED_USERS flag for local setups.
func (s *Service) SeedDefaultUsers(ctx context.Context) error {
	seeds := []struct {
		userName string
		password string
	}{
		{"admin", "password123"},
		{"guest", "password456"},
	}

	for _, seed := range seeds {
		digest, err := bcrypt.GenerateFromPassword([]byte(seed.password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash seed password: %w", err)
		}
		if _, err := s.userRepo.Create(ctx, seed.userName, string(digest)); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			return fmt.Errorf("failed to seed user %q: %w", seed.userName, err)
		}
	}
	return nil
}
