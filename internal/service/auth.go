package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/support_desk/internal/hash"
	"github.com/Skotchmaster/support_desk/internal/logging"
	"github.com/Skotchmaster/support_desk/internal/models"
	"github.com/Skotchmaster/support_desk/internal/repo"
	"github.com/Skotchmaster/support_desk/internal/tokens"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("user already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrMalformedToken     = errors.New("malformed token: missing jti")
	ErrRevokedToken       = errors.New("token has been revoked")
	ErrUnknownSubject     = errors.New("user not found")
)

type AuthService struct {
	Repo       *repo.GormRepo
	Tokens     *tokens.Engine
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func (s *AuthService) issuePair(subject string) (*TokenPair, error) {
	access, err := s.Tokens.Issue(subject, models.TokenTypeAccess, s.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.Tokens.Issue(subject, models.TokenTypeRefresh, s.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

func (s *AuthService) Signup(ctx context.Context, email, password, fullName string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.signup")

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("signup_failed", "reason", "cannot hash password", "error", err)
		return nil, err
	}

	user := models.User{
		Email:        email,
		FullName:     fullName,
		PasswordHash: pwHash,
		Role:         models.RoleUser,
		IsActive:     true,
	}
	if err := s.Repo.CreateUserIfNotExists(ctx, &user); err != nil {
		if errors.Is(err, repo.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		l.Error("signup_failed", "error", err)
		return nil, err
	}
	return &user, nil
}

// Login issues a fresh pair and never revokes prior sessions; multiple
// concurrent sessions per user are allowed.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	user, err := s.Repo.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		l.Error("login_failed", "error", err)
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return s.issuePair(user.ID.String())
}

// Refresh rotates a refresh token: the old jti is recorded as revoked BEFORE
// the new pair is issued. A crash between the two burns the old token, which
// is the accepted failure mode; the inverse order would leave a reusable
// refresh token behind.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := s.Tokens.Parse(rawRefresh)
	if err != nil || claims.TokenType != models.TokenTypeRefresh {
		return nil, ErrInvalidToken
	}
	if claims.ID == "" {
		return nil, ErrMalformedToken
	}

	revoked, err := s.Repo.IsRevoked(ctx, claims.ID)
	if err != nil {
		l.Error("refresh_failed", "error", err)
		return nil, err
	}
	if revoked {
		return nil, ErrRevokedToken
	}

	if err := s.Repo.Revoke(ctx, claims.ID, models.TokenTypeRefresh); err != nil {
		l.Error("refresh_failed", "reason", "cannot revoke old jti", "error", err)
		return nil, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrUnknownSubject
	}
	user, err := s.Repo.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownSubject
		}
		l.Error("refresh_failed", "error", err)
		return nil, err
	}

	return s.issuePair(user.ID.String())
}

// Logout revokes the refresh token's jti. Revoking an already-revoked jti is
// a no-op success.
func (s *AuthService) Logout(ctx context.Context, rawRefresh string) error {
	claims, err := s.Tokens.Parse(rawRefresh)
	if err != nil || claims.TokenType != models.TokenTypeRefresh {
		return ErrInvalidToken
	}
	if claims.ID == "" {
		return ErrMalformedToken
	}

	return s.Repo.Revoke(ctx, claims.ID, models.TokenTypeRefresh)
}

// Authenticate resolves an access token to its user. A valid-signature,
// unexpired, non-revoked access token whose subject still exists is both
// necessary and sufficient.
func (s *AuthService) Authenticate(ctx context.Context, rawAccess string) (*models.User, error) {
	claims, err := s.Tokens.Parse(rawAccess)
	if err != nil || claims.TokenType != models.TokenTypeAccess {
		return nil, ErrInvalidToken
	}

	revoked, err := s.Repo.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrRevokedToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrUnknownSubject
	}
	user, err := s.Repo.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownSubject
		}
		return nil, err
	}
	return user, nil
}
