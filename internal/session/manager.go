package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/lockerhq/lockerctl/internal/api"
	"github.com/lockerhq/lockerctl/internal/credentials"
)

// bootstrapMaxTries bounds startup retries against an unreachable service.
const bootstrapMaxTries = 3

// State is the readiness of the session. Protected operations must wait
// for the transition out of StateUnknown before acting on it.
type State int

const (
	// StateUnknown means Bootstrap has not yet settled the session.
	StateUnknown State = iota

	// StateAnonymous means there is no authenticated user.
	StateAnonymous

	// StateAuthenticated means an identity has been resolved.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Manager owns the authenticated-user identity. It drives the token store
// on login/logout and resolves who the user is through the gateway.
type Manager struct {
	client *api.Client
	store  credentials.TokenStore

	mu    sync.RWMutex
	state State
	user  *api.User
}

// NewManager creates a session manager. The session starts in
// StateUnknown until Bootstrap or Login settles it.
func NewManager(client *api.Client, store credentials.TokenStore) *Manager {
	return &Manager{
		client: client,
		store:  store,
		state:  StateUnknown,
	}
}

// Login exchanges the credential pair for tokens, stores them, and
// resolves the user's identity. Any existing session is replaced; the
// store is cleared first so the login call carries no stale credential.
// A rejected login therefore leaves the session anonymous rather than
// restoring the previous tokens.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	if err := m.store.Clear(); err != nil {
		return fmt.Errorf("failed to reset token store: %w", err)
	}
	m.setState(StateAnonymous, nil)

	pair, err := m.client.Login(ctx, username, password)
	if err != nil {
		return err
	}

	if err := m.store.Set(pair.Access, pair.Refresh); err != nil {
		return fmt.Errorf("failed to store tokens: %w", err)
	}

	log.Debug().Str("username", username).Msg("login succeeded, resolving identity")

	return m.ResolveIdentity(ctx)
}

// Logout clears the token store and the in-memory identity. It always
// succeeds and has no remote effect.
func (m *Manager) Logout() {
	if err := m.store.Clear(); err != nil {
		log.Error().Err(err).Msg("failed to clear token store on logout")
	}

	m.setState(StateAnonymous, nil)

	log.Debug().Msg("logged out")
}

// Register creates a new account. Service-reported validation errors are
// propagated unchanged; session state is never modified.
func (m *Manager) Register(ctx context.Context, reg api.Registration) (*api.User, error) {
	return m.client.Register(ctx, reg)
}

// ResolveIdentity establishes who the current user is. With no stored
// access token the session settles anonymous. Any failure of the who-am-I
// call, including a session expiry surfaced by the gateway, logs the user
// out before the error is returned.
func (m *Manager) ResolveIdentity(ctx context.Context) error {
	if err := m.resolve(ctx); err != nil {
		m.Logout()
		return err
	}
	return nil
}

// Bootstrap settles the session state at startup, retrying transient
// transport failures with exponential backoff before giving up. The
// returned state is StateAuthenticated or StateAnonymous, never
// StateUnknown.
func (m *Manager) Bootstrap(ctx context.Context) State {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := m.resolve(ctx); err != nil {
			if isAuthoritative(err) {
				return struct{}{}, backoff.Permanent(err)
			}
			log.Warn().Err(err).Msg("bootstrap identity check failed, will retry")
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(bootstrapMaxTries),
	)
	if err != nil {
		log.Debug().Err(err).Msg("bootstrap could not resolve identity")
		m.Logout()
	}

	return m.State()
}

// SessionEnded is the gateway's session-end hook. The gateway has already
// cleared the token store; the manager drops the identity so the caller
// is forced back to the anonymous entry point.
func (m *Manager) SessionEnded() {
	m.setState(StateAnonymous, nil)

	log.Info().Msg("session ended, identity dropped")
}

// State returns the current session readiness.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// CurrentUser returns the resolved identity, if any.
func (m *Manager) CurrentUser() (*api.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user, m.user != nil
}

// resolve runs the who-am-I check without the logout-on-failure policy;
// ResolveIdentity and Bootstrap layer that on top.
func (m *Manager) resolve(ctx context.Context) error {
	tokens, err := m.store.Get()
	if err != nil {
		return fmt.Errorf("failed to read tokens: %w", err)
	}

	if tokens.Access == "" {
		m.setState(StateAnonymous, nil)
		return nil
	}

	user, err := m.client.Me(ctx)
	if err != nil {
		return err
	}

	m.setState(StateAuthenticated, user)

	if info, err := credentials.InspectToken(tokens.Access); err == nil {
		log.Debug().
			Str("username", user.Username).
			Time("tokenExpiry", info.ExpiresAt).
			Msg("identity resolved")
	}

	return nil
}

func (m *Manager) setState(state State, user *api.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.user = user
}

// isAuthoritative reports whether the service itself answered; only
// transport-level failures are worth retrying at startup.
func isAuthoritative(err error) bool {
	var statusErr *api.StatusError
	var validationErr *api.ValidationError

	return errors.Is(err, api.ErrSessionExpired) ||
		errors.Is(err, api.ErrInvalidCredentials) ||
		errors.As(err, &statusErr) ||
		errors.As(err, &validationErr)
}
