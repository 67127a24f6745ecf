// Package auth implements the login/signup page controller. All credential
// validation is delegated to the backend; the controller only moves tokens
// between the API and the session store.
package auth

import (
	"context"

	"go.uber.org/zap"

	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/api"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/session"
)

// Service orchestrates authentication flows for the login page.
type Service struct {
	client   *api.Client
	sessions *session.Manager
	control  *session.Controller
	logger   *zap.Logger
}

// NewService creates the auth page controller.
func NewService(client *api.Client, sessions *session.Manager, control *session.Controller, logger *zap.Logger) *Service {
	return &Service{client: client, sessions: sessions, control: control, logger: logger}
}

// Login authenticates and stores both tokens. The token write emits the
// storage change event so other open views pick up the new session.
func (s *Service) Login(ctx context.Context, sess *session.Session, username, password string) error {
	pair, err := s.client.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if err := s.sessions.SetTokens(ctx, sess, pair.AccessToken, pair.RefreshToken); err != nil {
		return err
	}

	// Resolve the display identity; a failure here does not undo the login.
	info, err := s.client.UserInfo(ctx, s.control.Credentials(sess))
	if err != nil {
		s.logger.Warn("Identity lookup after login failed", zap.Error(err))
		return nil
	}
	return s.sessions.SetUsername(ctx, sess, info.Username)
}

// Signup registers then logs in. A registration failure is terminal and
// never falls through to a login attempt.
func (s *Service) Signup(ctx context.Context, sess *session.Session, username, password string) error {
	if err := s.client.Register(ctx, username, password); err != nil {
		return err
	}
	return s.Login(ctx, sess, username, password)
}

// Logout tells the backend best-effort, then clears tokens unconditionally.
func (s *Service) Logout(ctx context.Context, sess *session.Session) {
	if sess.Authenticated() {
		if err := s.client.Logout(ctx, s.control.Credentials(sess)); err != nil {
			s.logger.Debug("Backend logout failed", zap.Error(err))
		}
	}
	if err := s.sessions.Clear(ctx, sess); err != nil {
		s.logger.Error("Failed to clear session on logout", zap.Error(err))
	}
}

// Preferences fetches the user's profile including dietary restrictions.
func (s *Service) Preferences(ctx context.Context, sess *session.Session) (*api.UserInfo, error) {
	return s.client.UserInfo(ctx, s.control.Credentials(sess))
}

// UpdatePreferences persists the dietary restriction set.
func (s *Service) UpdatePreferences(ctx context.Context, sess *session.Session, dietary []string) error {
	return s.client.UpdateUserInfo(ctx, s.control.Credentials(sess), dietary)
}
