// Package services contains server-side business logic. This file implements
// UserService: signup, signin, token verification and refresh token rotation.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/cryptox"
	"github.com/dmitrijs2005/taskkeeper/internal/dbx"
	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/dmitrijs2005/taskkeeper/internal/server/auth"
	"github.com/dmitrijs2005/taskkeeper/internal/server/config"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Session is what signup and signin hand back to the caller.
type Session struct {
	User *models.User
	TokenPair
}

type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	log                          logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	now                          func() time.Time
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		log:                          log.With("module", "users"),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		now:                          time.Now,
	}
}

// Signup registers a new account and signs it in. A registered email is
// reported as ErrorAlreadyExists whatever the password.
func (s *UserService) Signup(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)

	_, err := repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, common.ErrorAlreadyExists
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		if cryptox.IsPasswordTooLong(err) {
			return nil, fmt.Errorf("%w: password is too long", common.ErrorValidation)
		}
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user, err := repo.Create(ctx, &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	pair, err := s.generateTokenPair(ctx, user.ID, s.db)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user signed up", "user_id", user.ID)
	return &Session{User: user, TokenPair: *pair}, nil
}

// Signin checks credentials. An unknown email and a wrong password are
// indistinguishable to the caller.
func (s *UserService) Signin(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)

	user, err := s.repomanager.Users(s.db).GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			cryptox.BurnPasswordCheck(password)
			return nil, common.ErrorInvalidCredentials
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	if !cryptox.CheckPassword(user.PasswordHash, password) {
		return nil, common.ErrorInvalidCredentials
	}

	pair, err := s.generateTokenPair(ctx, user.ID, s.db)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, TokenPair: *pair}, nil
}

// Verify returns the user id carried by an access token.
func (s *UserService) Verify(token string) (string, error) {
	return auth.GetUserIDFromToken(token, s.jwtSecret)
}

// Refresh consumes refreshToken and issues a new pair. The old token is
// deleted in the same transaction that stores its replacement, so a token
// can be used once.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, common.ErrorUnauthorized
	}

	token, err := s.repomanager.RefreshTokens(s.db).Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if token.Expires.Before(s.now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		deleted, err := s.repomanager.RefreshTokens(tx).Delete(ctx, refreshToken)
		if err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		if !deleted {
			// consumed by a concurrent refresh
			return common.ErrorUnauthorized
		}
		pair, err = s.generateTokenPair(ctx, token.UserID, tx)
		return err
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// Signout revokes refreshToken. Revoking an unknown token succeeds.
func (s *UserService) Signout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("%w: refresh_token is required", common.ErrorValidation)
	}
	if _, err := s.repomanager.RefreshTokens(s.db).Delete(ctx, refreshToken); err != nil {
		return fmt.Errorf("error deleting refresh token: %w", err)
	}
	return nil
}

func (s *UserService) generateTokenPair(ctx context.Context, userID string, db dbx.DBTX) (*TokenPair, error) {
	access, expiresAt, err := auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("error signing token: %w", err)
	}
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, fmt.Errorf("error generating refresh token: %w", err)
	}

	rt := &models.RefreshToken{
		UserID:  userID,
		Token:   refresh,
		Expires: s.now().Add(s.refreshTokenValidityDuration),
	}
	if err := s.repomanager.RefreshTokens(db).Create(ctx, rt); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return fmt.Errorf("%w: invalid email address", common.ErrorValidation)
	}
	return nil
}

func validatePassword(password string) error {
	switch {
	case len(password) < common.MinPasswordLength:
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, common.MinPasswordLength)
	case len(password) > common.MaxPasswordLength:
		return fmt.Errorf("%w: password must be at most %d bytes", common.ErrorValidation, common.MaxPasswordLength)
	}
	return nil
}
