package user

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veloshop/veloshop_auth/internal/apperr"
	"github.com/veloshop/veloshop_auth/internal/password"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Service owns credential storage rules: input validation, email
// normalization and password hashing. Callers never see stored hashes.
type Service struct {
	repo Repository
}

// NewService creates a new user service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput captures data required to register a user.
type CreateInput struct {
	Name        string
	Email       string
	PhoneNumber string
	Password    string
	StoreID     string
}

// Create validates input, hashes the password and persists a new unverified
// user. Duplicate emails surface as a Conflict.
func (s *Service) Create(ctx context.Context, input CreateInput) (User, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return User{}, apperr.E(apperr.KindValidation, "name is required")
	}
	email, err := NormalizeEmail(input.Email)
	if err != nil {
		return User{}, err
	}
	if strings.TrimSpace(input.StoreID) == "" {
		return User{}, apperr.E(apperr.KindValidation, "store_id is required")
	}
	if err := password.ValidatePolicy(input.Password); err != nil {
		return User{}, apperr.E(apperr.KindValidation, err.Error())
	}

	hash, err := password.Hash(input.Password)
	if err != nil {
		return User{}, apperr.Wrap(apperr.KindTransient, "hash password", err)
	}

	u := User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PhoneNumber:  strings.TrimSpace(input.PhoneNumber),
		PasswordHash: hash,
		StoreID:      input.StoreID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// FindByEmail looks up a user by case-insensitive email.
func (s *Service) FindByEmail(ctx context.Context, email string) (User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	return s.repo.FindByEmail(ctx, normalized)
}

// FindByID looks up a user by identifier.
func (s *Service) FindByID(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// VerifyPassword checks a candidate password against the stored hash.
func (s *Service) VerifyPassword(u User, candidate string) (bool, error) {
	ok, err := password.Verify(candidate, u.PasswordHash)
	if err != nil {
		// A malformed stored hash means corrupted state, not a bad login.
		return false, apperr.Wrap(apperr.KindTransient, "verify password", err)
	}
	return ok, nil
}

// UpdatePassword validates and stores a new password for the user.
func (s *Service) UpdatePassword(ctx context.Context, id, newPassword string) error {
	if err := password.ValidatePolicy(newPassword); err != nil {
		return apperr.E(apperr.KindValidation, err.Error())
	}
	hash, err := password.Hash(newPassword)
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "hash password", err)
	}
	return s.repo.UpdatePasswordHash(ctx, id, hash)
}

// MarkVerified records that the user proved control of their email.
func (s *Service) MarkVerified(ctx context.Context, id string) error {
	return s.repo.MarkVerified(ctx, id)
}

// NormalizeEmail lowercases and validates an email address.
func NormalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(normalized) {
		return "", apperr.E(apperr.KindValidation, "invalid email address")
	}
	return normalized, nil
}
