// Package session owns the authentication lifecycle: bootstrap from the
// persisted token, login, signup, refresh and logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/cloudvault/cloudvault-cli/internal/api"
	"github.com/cloudvault/cloudvault-cli/internal/constants"
	"github.com/cloudvault/cloudvault-cli/internal/events"
	"github.com/cloudvault/cloudvault-cli/internal/logging"
	"github.com/cloudvault/cloudvault-cli/internal/models"
	"github.com/cloudvault/cloudvault-cli/internal/store"
)

var (
	ErrPasswordTooShort = fmt.Errorf("Password must be at least %d characters", constants.MinPasswordLength)
	ErrNotAuthenticated = errors.New("not logged in")
	ErrNoRefreshToken   = errors.New("no refresh token stored; log in again")
)

// AuthAPI is the subset of the vault API the session needs.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*models.AuthResponse, error)
	Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResponse, error)
	Me(ctx context.Context) (*models.MeResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*models.RefreshResponse, error)
}

// Manager holds the current session. Safe for concurrent use.
type Manager struct {
	api    AuthAPI
	store  store.Store
	bus    *events.EventBus
	logger *logging.Logger

	mu           sync.RWMutex
	state        State
	token        string
	refreshToken string
	user         *models.User
	quota        *models.StorageQuota
	generation   uint64
	ctx          context.Context
	cancel       context.CancelFunc

	endHooks map[int]func(reason string)
	nextHook int
}

// NewManager creates a Manager in StateUnknown. bus and logger may be nil.
func NewManager(authAPI AuthAPI, st store.Store, bus *events.EventBus, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		api:    authAPI,
		store:  st,
		bus:    bus,
		logger: logger.Component("session"),
		state:  StateUnknown,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Token returns the bearer token, which may still be unvalidated.
// Implements api.TokenSource.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsAuthenticated is true iff a validated user is held in memory.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateAuthenticated && m.user != nil
}

// Snapshot returns a copy of the session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		State:      m.state,
		User:       copyUser(m.user),
		Quota:      copyQuota(m.quota),
		Generation: m.generation,
	}
}

// Context is cancelled when the session ends. Operations on behalf of the
// user derive from it so that logout aborts them.
func (m *Manager) Context() context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctx
}

// Bootstrap resumes a persisted session.
//
// Without stored credentials it settles on Unauthenticated and makes no
// request. Otherwise it validates the token once with /auth/me. Any
// failure clears the store. The returned error explains a failed
// validation; the session is already Unauthenticated when it is non-nil.
func (m *Manager) Bootstrap(ctx context.Context) (Snapshot, error) {
	creds, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warnf("Discarding unreadable stored session: %v", err)
		m.clearStore()
		return m.settle(StateUnauthenticated, ReasonValidationFailed), nil
	}
	if creds == nil {
		return m.settle(StateUnauthenticated, ReasonNoCredentials), nil
	}

	m.mu.Lock()
	old := m.state
	m.token = creds.Token
	m.refreshToken = creds.RefreshToken
	gen := m.transitionLocked(StateValidating)
	ev := m.changedEventLocked(old, ReasonBootstrap)
	m.mu.Unlock()
	m.publish(ev)

	resp, err := m.api.Me(ctx)
	if err == nil && resp.ResolvedUser() == nil {
		err = api.ErrInvalidAuthResponse
	}
	if err != nil {
		if !m.stillValidating(gen) {
			return m.Snapshot(), nil
		}
		m.logger.Warnf("Stored session is no longer valid: %v", err)
		m.endSession(ReasonValidationFailed)
		return m.Snapshot(), fmt.Errorf("session validation failed: %w", err)
	}

	user := copyUser(resp.ResolvedUser())
	creds.User = user
	snap, err := m.commit(ctx, *creds, resp.ResolvedStorage(), ReasonBootstrap, gen)
	if err != nil {
		// Validation succeeded; the token keeps working for this process
		m.logger.Warnf("Failed to persist refreshed user: %v", err)
	}
	return snap, nil
}

func (m *Manager) stillValidating(gen uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation == gen && m.state == StateValidating
}

// Login authenticates with email and password. Errors are returned verbatim
// and leave the session untouched.
func (m *Manager) Login(ctx context.Context, email, password string) (Snapshot, error) {
	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		return m.Snapshot(), err
	}
	return m.establish(ctx, email, resp, ReasonLogin)
}

// Signup creates an account and logs into it.
func (m *Manager) Signup(ctx context.Context, email, password, fullName string) (Snapshot, error) {
	if utf8.RuneCountInString(password) < constants.MinPasswordLength {
		return m.Snapshot(), ErrPasswordTooShort
	}

	resp, err := m.api.Signup(ctx, models.SignupRequest{
		Email:    email,
		Password: password,
		FullName: fullName,
	})
	if err != nil {
		return m.Snapshot(), err
	}
	return m.establish(ctx, email, resp, ReasonSignup)
}

// establish validates an auth response, persists it and authenticates.
func (m *Manager) establish(ctx context.Context, email string, resp *models.AuthResponse, reason string) (Snapshot, error) {
	if resp == nil || resp.Token == "" || resp.User == nil {
		return m.Snapshot(), api.ErrInvalidAuthResponse
	}

	user := copyUser(resp.User)
	if user.Email == "" {
		user.Email = strings.TrimSpace(email)
	}

	quota := resp.Storage
	if quota == nil {
		quota = user.Storage
	}

	creds := store.Credentials{Token: resp.Token, RefreshToken: resp.RefreshToken, User: user}
	snap, err := m.commit(ctx, creds, quota, reason, 0)
	if err != nil {
		return snap, fmt.Errorf("failed to persist session: %w", err)
	}
	return snap, nil
}

// Refresh exchanges the stored refresh token for a new bearer token.
// An auth error ends the session.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.RLock()
	authenticated := m.state == StateAuthenticated
	refreshToken := m.refreshToken
	user := copyUser(m.user)
	gen := m.generation
	m.mu.RUnlock()

	if !authenticated {
		return ErrNotAuthenticated
	}
	if refreshToken == "" {
		return ErrNoRefreshToken
	}

	resp, err := m.api.RefreshToken(ctx, refreshToken)
	if err != nil {
		if api.IsAuthError(err) {
			m.Expire()
		}
		return err
	}

	token := firstNonEmpty(resp.Token, resp.IDToken, resp.AccessToken)
	if token == "" {
		return api.ErrInvalidAuthResponse
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return ErrNotAuthenticated
	}
	if err := m.store.Save(ctx, store.Credentials{Token: token, RefreshToken: refreshToken, User: user}); err != nil {
		return fmt.Errorf("failed to persist refreshed token: %w", err)
	}
	m.token = token

	m.logger.Debugf("Token refreshed")
	return nil
}

// OnEnd registers fn to run every time the session ends (logout, expiry,
// failed validation). fn runs synchronously with the session locked, before
// the change is published, and must not call back into the Manager.
// The returned func removes the hook.
func (m *Manager) OnEnd(fn func(reason string)) (remove func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.endHooks == nil {
		m.endHooks = make(map[int]func(reason string))
	}
	id := m.nextHook
	m.nextHook++
	m.endHooks[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.endHooks, id)
		m.mu.Unlock()
	}
}

// Logout ends the session locally. The server is not contacted.
func (m *Manager) Logout() {
	m.endSession(ReasonLogout)
}

// Expire ends the session after the server rejected the token.
func (m *Manager) Expire() {
	m.endSession(ReasonAuthError)
}

// UpdateQuota records the latest quota reported by the server.
func (m *Manager) UpdateQuota(q *models.StorageQuota) {
	if q == nil {
		return
	}
	m.mu.Lock()
	if m.state != StateAuthenticated {
		m.mu.Unlock()
		return
	}
	m.quota = copyQuota(q)
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(&events.QuotaChangedEvent{
			BaseEvent: events.NewBase(events.EventQuotaChanged),
			Used:      q.Used,
			Limit:     q.Limit,
		})
	}
}

// commit persists creds and moves to Authenticated. When validating is
// non-zero the commit only happens if that validation is still current.
// A failed save during login leaves the session untouched; during
// validation the session is authenticated anyway.
func (m *Manager) commit(ctx context.Context, creds store.Credentials, quota *models.StorageQuota, reason string, validating uint64) (Snapshot, error) {
	m.mu.Lock()
	if validating != 0 && (m.generation != validating || m.state != StateValidating) {
		// Logged out or logged in while validating; that outcome wins
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, nil
	}

	saveErr := m.store.Save(ctx, creds)
	if saveErr != nil && validating == 0 {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, saveErr
	}

	old := m.state
	m.token = creds.Token
	m.refreshToken = creds.RefreshToken
	m.user = creds.User
	m.quota = copyQuota(quota)

	// Fresh context for the new session
	m.cancel()
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.transitionLocked(StateAuthenticated)
	ev := m.changedEventLocked(old, reason)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.publish(ev)
	m.logger.Info().Str("email", creds.User.Email).Str("reason", reason).Msg("Session authenticated")
	return snap, saveErr
}

// endSession clears persisted and in-memory credentials and cancels the
// session context.
func (m *Manager) endSession(reason string) {
	m.mu.Lock()
	m.clearStore()
	old := m.state
	m.token = ""
	m.refreshToken = ""
	m.user = nil
	m.quota = nil
	m.cancel()
	m.transitionLocked(StateUnauthenticated)
	for _, fn := range m.endHooks {
		fn(reason)
	}
	ev := m.changedEventLocked(old, reason)
	m.mu.Unlock()

	m.publish(ev)
	if old == StateAuthenticated {
		m.logger.Info().Str("reason", reason).Msg("Session ended")
	}
}

func (m *Manager) settle(state State, reason string) Snapshot {
	m.mu.Lock()
	old := m.state
	m.transitionLocked(state)
	ev := m.changedEventLocked(old, reason)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.publish(ev)
	return snap
}

func (m *Manager) clearStore() {
	if err := m.store.Clear(context.Background()); err != nil {
		m.logger.Errorf("Failed to clear stored session: %v", err)
	}
}

// transitionLocked moves to state and bumps the generation. Caller holds mu.
func (m *Manager) transitionLocked(state State) uint64 {
	m.state = state
	m.generation++
	return m.generation
}

func (m *Manager) changedEventLocked(old State, reason string) *events.SessionChangedEvent {
	email := ""
	if m.user != nil {
		email = m.user.Email
	}
	return &events.SessionChangedEvent{
		BaseEvent:     events.NewBase(events.EventSessionChanged),
		OldState:      old.String(),
		NewState:      m.state.String(),
		Authenticated: m.state == StateAuthenticated,
		Email:         email,
		Reason:        reason,
		Generation:    m.generation,
	}
}

func (m *Manager) publish(ev events.Event) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
