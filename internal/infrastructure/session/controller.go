package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/api"
	apperrors "github.com/Sachin-dot-py/Grocify/pkg/errors"
)

// State is the session controller state for one browser session.
type State int

const (
	Unauthenticated State = iota
	Authenticated
	Refreshing
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	default:
		return "unauthenticated"
	}
}

// Controller decides, on each page load and on 401 responses, whether to
// use the stored access token, attempt a refresh, or force logout. It is
// the Credentials implementation handed to the gateway client, which
// delegates each unauthorized response here exactly once.
type Controller struct {
	manager *Manager
	client  *api.Client
	logger  *zap.Logger

	mu     sync.Mutex
	states map[string]State
	locks  map[string]*sync.Mutex
}

// NewController creates the session controller.
func NewController(manager *Manager, client *api.Client, logger *zap.Logger) *Controller {
	return &Controller{
		manager: manager,
		client:  client,
		logger:  logger,
		states:  make(map[string]State),
		locks:   make(map[string]*sync.Mutex),
	}
}

// State returns the current state for a session.
func (c *Controller) State(sess *Session) State {
	if !sess.Authenticated() {
		return Unauthenticated
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.states[sess.ID]; ok {
		return s
	}
	return Authenticated
}

func (c *Controller) setState(id string, s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == Unauthenticated {
		delete(c.states, id)
		delete(c.locks, id)
		return
	}
	c.states[id] = s
}

func (c *Controller) sessionLock(id string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.locks[id]; ok {
		return l
	}
	l := &sync.Mutex{}
	c.locks[id] = l
	return l
}

// Credentials binds a session to the controller for use with the gateway
// client.
func (c *Controller) Credentials(sess *Session) api.Credentials {
	return credential{controller: c, session: sess}
}

// Resolve runs the page-load decision: no stored token means an immediate
// Unauthenticated without any backend call; otherwise the identity lookup
// promotes the token, going through the usual single-refresh path on 401.
func (c *Controller) Resolve(ctx context.Context, sess *Session) (State, error) {
	if !sess.Authenticated() {
		return Unauthenticated, nil
	}

	info, err := c.client.UserInfo(ctx, c.Credentials(sess))
	if err != nil {
		if apperrors.Is(err, apperrors.CodeUnauthorized) {
			// Refresh already failed inside the call; tokens are cleared.
			return Unauthenticated, nil
		}
		// Backend unreachable: keep the token, surface the failure.
		return c.State(sess), err
	}

	if err := c.manager.SetUsername(ctx, sess, info.Username); err != nil {
		return Authenticated, err
	}
	c.setState(sess.ID, Authenticated)
	return Authenticated, nil
}

// refreshFor performs the single refresh attempt for a session. The new
// access token is persisted before it is returned, so the caller's retry
// uses the stored token. Any failure clears the session.
func (c *Controller) refreshFor(ctx context.Context, sess *Session) (string, error) {
	lock := c.sessionLock(sess.ID)
	lock.Lock()
	defer lock.Unlock()

	// A concurrent call may have refreshed while this one waited.
	if current, err := c.manager.store.Get(ctx, sess.ID); err == nil {
		if current.AccessToken != "" && current.AccessToken != sess.AccessToken {
			sess.AccessToken = current.AccessToken
			return current.AccessToken, nil
		}
	}

	if sess.RefreshToken == "" {
		c.forceLogout(ctx, sess)
		return "", apperrors.NewUnauthorizedError("no refresh token")
	}

	c.setState(sess.ID, Refreshing)
	c.logger.Debug("Refreshing access token", zap.String("session_id", sess.ID))

	access, err := c.client.RefreshAccessToken(ctx, sess.RefreshToken)
	if err != nil {
		c.logger.Info("Token refresh failed, forcing logout",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		c.forceLogout(ctx, sess)
		return "", apperrors.NewUnauthorizedError("refresh failed").WithCause(err)
	}

	if err := c.manager.SetTokens(ctx, sess, access, ""); err != nil {
		c.forceLogout(ctx, sess)
		return "", apperrors.Wrap(err, "failed to persist refreshed token")
	}
	c.setState(sess.ID, Authenticated)
	return access, nil
}

// forceLogout clears tokens and drops the controller state. The redirect to
// the login page is the caller's (handler's) responsibility.
func (c *Controller) forceLogout(ctx context.Context, sess *Session) {
	if err := c.manager.Clear(ctx, sess); err != nil {
		c.logger.Error("Failed to clear session", zap.String("session_id", sess.ID), zap.Error(err))
	}
	c.setState(sess.ID, Unauthenticated)
}

// credential adapts one session to the gateway client's Credentials.
type credential struct {
	controller *Controller
	session    *Session
}

func (cr credential) Token() string {
	return cr.session.AccessToken
}

func (cr credential) Refresh(ctx context.Context) (string, error) {
	return cr.controller.refreshFor(ctx, cr.session)
}
