package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"workhub/api/internal/auth"
	"workhub/api/internal/rbac"
	"workhub/api/internal/store"
	"workhub/api/internal/util"
)

const oauthStateTTL = 10 * time.Minute

// LoginRedirect returns the provider URL to send the browser to and the
// signed state value that must come back on the callback.
func (s *Service) LoginRedirect() (redirectURL, state string, err error) {
	if s.login == nil {
		return "", "", domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Login provider is not configured", nil)
	}
	state, err = auth.IssueState([]byte(s.cfg.SessionSecret), s.now(), oauthStateTTL)
	if err != nil {
		return "", "", err
	}
	return s.login.AuthCodeURL(state), state, nil
}

// CompleteLogin validates the callback, creates the user on first login and
// issues a session token.
func (s *Service) CompleteLogin(ctx context.Context, cookieState, returnedState, code string) (Session, error) {
	if s.login == nil {
		return Session{}, domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Login provider is not configured", nil)
	}
	if err := auth.VerifyState([]byte(s.cfg.SessionSecret), cookieState, returnedState, s.now()); err != nil {
		return Session{}, domainError(http.StatusBadRequest, "INVALID_STATE", "Login state is invalid or expired", nil)
	}
	if strings.TrimSpace(code) == "" {
		return Session{}, validation("code is required")
	}

	identity, err := s.login.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("oauth exchange failed", zap.Error(err))
		return Session{}, domainError(http.StatusUnauthorized, "LOGIN_FAILED", "Login failed", nil)
	}

	role := string(rbac.RoleUser)
	if s.cfg.IsAdminEmail(identity.Email) {
		role = string(rbac.RoleAdmin)
	}
	displayName := strings.TrimSpace(identity.Name)
	if displayName == "" {
		displayName, _, _ = strings.Cut(identity.Email, "@")
	}

	user, err := s.store.UpsertUserByExternalID(ctx, store.User{
		ID:          util.NewID("usr"),
		ExternalID:  identity.Subject,
		Email:       identity.Email,
		DisplayName: displayName,
		Role:        role,
		UserType:    "user",
	})
	if err != nil {
		return Session{}, fmt.Errorf("upsert login user: %w", err)
	}
	return s.issueSession(user)
}

func (s *Service) issueSession(user store.User) (Session, error) {
	expiresAt := s.now().Add(s.cfg.SessionTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.SessionSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.DisplayName,
		Email: user.Email,
		Role:  user.Role,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Role:      user.Role,
		JTI:       jti,
		ExpiresAt: expiresAt,
	}, nil
}

// SessionFromToken resolves a token to the current user. Role comes from the
// database, not the token, so admin changes apply immediately.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.SessionSecret), token, s.now())
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.revoked.IsSessionRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUser(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: claims.ExpiresAt(),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session) error {
	if session.JTI == "" {
		return nil
	}
	if err := s.revoked.RevokeSession(ctx, session.JTI, session.ExpiresAt); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
