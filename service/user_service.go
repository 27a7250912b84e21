package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cmdf/pdfnote-be/repository"
	"github.com/cmdf/pdfnote-be/types"
	"github.com/cmdf/pdfnote-be/utils"
	"golang.org/x/crypto/bcrypt"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

const minPasswordLength = 8

type UserService interface {
	Signup(ctx context.Context, req *types.SignupRequest) (*types.User, error)
	Login(ctx context.Context, req *types.LoginRequest) (*types.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*types.AccessTokenResponse, error)
	Verify(ctx context.Context, token string) error
	Logout(ctx context.Context, userID int64, refreshToken string) error
	Me(ctx context.Context, userID int64) (*types.User, error)
	UpdateProfile(ctx context.Context, userID int64, req *types.UpdateProfileRequest) (*types.User, error)
	ChangePassword(ctx context.Context, userID int64, req *types.ChangePasswordRequest) error
}

type userService struct {
	repo   repository.UserRepo
	tokens repository.TokenRepo
	jwt    *utils.TokenManager
}

func NewUserService(repo repository.UserRepo, tokens repository.TokenRepo, jwt *utils.TokenManager) UserService {
	return &userService{
		repo:   repo,
		tokens: tokens,
		jwt:    jwt,
	}
}

func (s *userService) Signup(ctx context.Context, req *types.SignupRequest) (*types.User, error) {
	username := strings.TrimSpace(req.Username)
	if !usernamePattern.MatchString(username) {
		return nil, validationError("username must be 3-30 letters, digits or underscores")
	}
	if len(req.Password) < minPasswordLength {
		return nil, validationError("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &types.User{
		Username:     username,
		Email:        trimmedOrNil(req.Email),
		Field:        trimmedOrNil(req.Field),
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: username or email already taken", ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *userService) Login(ctx context.Context, req *types.LoginRequest) (*types.TokenPair, error) {
	user, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	access, err := s.jwt.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	refresh, _, err := s.jwt.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return &types.TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *userService) Refresh(ctx context.Context, refreshToken string) (*types.AccessTokenResponse, error) {
	claims, err := s.jwt.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: token has been revoked", ErrInvalidCredentials)
	}

	access, err := s.jwt.GenerateAccessToken(claims.UserID, claims.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	return &types.AccessTokenResponse{Access: access}, nil
}

// Verify accepts either kind of token.
func (s *userService) Verify(ctx context.Context, token string) error {
	if _, err := s.jwt.ParseAccessToken(token); err == nil {
		return nil
	}
	claims, err := s.jwt.ParseRefreshToken(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return fmt.Errorf("failed to check token: %w", err)
	}
	if revoked {
		return fmt.Errorf("%w: token has been revoked", ErrInvalidCredentials)
	}
	return nil
}

func (s *userService) Logout(ctx context.Context, userID int64, refreshToken string) error {
	claims, err := s.jwt.ParseRefreshToken(refreshToken)
	if err != nil {
		return validationError("invalid refresh token")
	}
	if claims.UserID != userID {
		return validationError("refresh token belongs to another user")
	}
	if err := s.tokens.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (s *userService) Me(ctx context.Context, userID int64) (*types.User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID int64, req *types.UpdateProfileRequest) (*types.User, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if !usernamePattern.MatchString(username) {
			return nil, validationError("username must be 3-30 letters, digits or underscores")
		}
		if !strings.EqualFold(username, user.Username) {
			existing, err := s.repo.GetUserByUsername(ctx, username)
			switch {
			case err == nil && existing.ID != user.ID:
				return nil, fmt.Errorf("%w: username already taken", ErrConflict)
			case err != nil && !errors.Is(err, repository.ErrNotFound):
				return nil, fmt.Errorf("failed to check username: %w", err)
			}
		}
		user.Username = username
	}
	if req.Field != nil {
		user.Field = trimmedOrNil(req.Field)
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: username already taken", ErrConflict)
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

func (s *userService) ChangePassword(ctx context.Context, userID int64, req *types.ChangePasswordRequest) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return validationError("old password is incorrect")
	}
	if len(req.NewPassword) < minPasswordLength {
		return validationError("password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// PurgeRevokedTokens drops blacklist entries whose tokens have expired anyway.
func PurgeRevokedTokens(ctx context.Context, tokens repository.TokenRepo) (int64, error) {
	return tokens.PurgeExpired(ctx, time.Now().UTC())
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
