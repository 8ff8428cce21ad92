package terminal

import (
	"context"
	"errors"
	"sync"

	"pos-terminal/internal/session"

	"go.uber.org/zap"
)

var (
	ErrNotLoggedIn    = errors.New("no operator logged in")
	ErrRoleNotAllowed = errors.New("role may not operate the POS")
)

// Authenticator exchanges credentials for a session
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*session.Session, error)
}

// Manager holds the single open terminal of this process
type Manager struct {
	auth   Authenticator
	deps   Deps
	logger *zap.Logger

	mu      sync.RWMutex
	current *Terminal
}

// NewManager creates a manager with no open terminal
func NewManager(auth Authenticator, deps Deps) *Manager {
	return &Manager{
		auth:   auth,
		deps:   deps,
		logger: deps.Logger.Named("terminal-manager"),
	}
}

// Login authenticates and opens a fresh terminal, closing any previous one
func (m *Manager) Login(ctx context.Context, username, password string) (*Terminal, error) {
	sess, err := m.auth.Login(ctx, username, password)
	if err != nil {
		m.logger.Info("Login failed", zap.String("username", username), zap.Error(err))
		return nil, err
	}
	if !sess.CanOperatePOS() {
		m.logger.Warn("Login rejected for role", zap.String("username", username), zap.String("role", sess.Role))
		return nil, ErrRoleNotAllowed
	}

	return m.Open(ctx, sess), nil
}

// Open mounts a terminal for an existing session, closing any previous one
func (m *Manager) Open(ctx context.Context, sess *session.Session) *Terminal {
	t := Open(ctx, m.deps, sess)

	m.mu.Lock()
	previous := m.current
	m.current = t
	m.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	return t
}

// Current returns the open terminal
func (m *Manager) Current() (*Terminal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil, ErrNotLoggedIn
	}
	return m.current, nil
}

// Session returns the session of the open terminal
func (m *Manager) Session() (*session.Session, bool) {
	t, err := m.Current()
	if err != nil {
		return nil, false
	}
	return t.Session(), true
}

// Logout closes the open terminal, if any
func (m *Manager) Logout() {
	m.mu.Lock()
	t := m.current
	m.current = nil
	m.mu.Unlock()

	if t != nil {
		t.Close()
		m.logger.Info("Operator logged out", zap.String("username", t.Session().Username))
	}
}
