// Package session owns the client's credential state: a reducer-driven
// state machine over login/register/logout/refresh/profile operations, and
// the background token-refresh scheduler.
//
// Control flow for every mutating operation: commit a start transition,
// call the API gateway, then commit exactly one success or failure
// transition once the call settles. On success the new credentials are
// written through the durable store and the refresh alarm is re-armed; an
// auth failure tears the session down and clears the store. Consumers
// observe state through Snapshot and Subscribe only.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/api"
	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/repositories/credentials"
	"github.com/sst2020/ai-teaching-assistant-sub000/internal/common"
	"github.com/sst2020/ai-teaching-assistant-sub000/internal/logging"
)

// DefaultRefreshMargin is how long before access-token expiry the scheduled
// refresh fires.
const DefaultRefreshMargin = 5 * time.Minute

// scheduledRefreshTimeout bounds the network call made by the timer-driven
// refresh, which has no caller-supplied context.
const scheduledRefreshTimeout = 30 * time.Second

// Listener is invoked after every committed transition with a copy of the
// new state. Listeners must not call back into the Manager synchronously.
type Listener func(State)

// Manager is the session state machine. All state mutation funnels through
// its internal dispatch; the credential store and the gateway's auth-header
// slot are written exclusively by its transition handlers.
type Manager struct {
	client api.Client
	store  *credentials.Store
	log    logging.Logger
	sched  *refreshScheduler
	margin time.Duration

	mu        sync.Mutex
	state     State
	listeners []Listener
}

// NewManager wires the state machine to its collaborators. A margin of zero
// selects DefaultRefreshMargin.
func NewManager(client api.Client, store *credentials.Store, log logging.Logger, margin time.Duration) *Manager {
	if margin <= 0 {
		margin = DefaultRefreshMargin
	}
	m := &Manager{
		client: client,
		store:  store,
		log:    log,
		margin: margin,
	}
	m.sched = newRefreshScheduler(m.scheduledRefresh)
	return m
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers a listener for committed transitions.
func (m *Manager) Subscribe(fn Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// dispatch is the single mutation entry point: apply the reducer under the
// lock, then notify listeners outside it.
func (m *Manager) dispatch(a action) {
	m.mu.Lock()
	m.state = reduce(m.state, a)
	next := m.state
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}

// Login authenticates with the given credentials.
func (m *Manager) Login(ctx context.Context, req api.LoginRequest) error {
	m.dispatch(action{kind: actionStart})

	resp, err := m.client.Login(ctx, req)
	if err != nil {
		m.failAuth(ctx, err)
		return err
	}
	m.commitAuth(ctx, &resp.User, ptr(resp.Tokens()))
	return nil
}

// Register creates an account and signs it in.
func (m *Manager) Register(ctx context.Context, req api.RegisterRequest) error {
	m.dispatch(action{kind: actionStart})

	resp, err := m.client.Register(ctx, req)
	if err != nil {
		m.failAuth(ctx, err)
		return err
	}
	m.commitAuth(ctx, &resp.User, ptr(resp.Tokens()))
	return nil
}

// Refresh exchanges the stored refresh token for a new token pair. With no
// refresh token present it fails fast without touching the timer or the
// state.
func (m *Manager) Refresh(ctx context.Context) error {
	refreshToken := m.currentRefreshToken()
	if refreshToken == "" {
		return common.ErrNoRefreshToken
	}

	m.dispatch(action{kind: actionStart})

	resp, err := m.client.Refresh(ctx, refreshToken)
	if err != nil {
		// no retry is scheduled; a failed refresh forces logout
		m.failAuth(ctx, err)
		return err
	}
	m.commitAuth(ctx, &resp.User, ptr(resp.Tokens()))
	return nil
}

// Logout invalidates the server-side refresh token on a best-effort basis
// and always clears local state; teardown never depends on network
// availability.
func (m *Manager) Logout(ctx context.Context) error {
	refreshToken := m.currentRefreshToken()

	m.dispatch(action{kind: actionStart})

	if refreshToken != "" {
		if err := m.client.Logout(ctx, refreshToken); err != nil {
			m.log.Warn(ctx, "server-side logout failed, clearing local session anyway",
				"error", api.Normalize(err))
		}
	}
	m.teardown(ctx)
	return nil
}

// ChangePassword rotates the account password. The server invalidates all
// outstanding tokens on success, so the terminal step is a logout.
func (m *Manager) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if !m.Snapshot().Authenticated {
		return common.ErrorUnauthorized
	}
	m.dispatch(action{kind: actionStart})

	if err := m.client.ChangePassword(ctx, oldPassword, newPassword); err != nil {
		m.dispatch(action{kind: actionFailure, msg: api.Normalize(err), keepSession: true})
		return err
	}
	return m.Logout(ctx)
}

// RevokeAllTokens revokes every outstanding token for the account and then
// logs out locally.
func (m *Manager) RevokeAllTokens(ctx context.Context) error {
	if !m.Snapshot().Authenticated {
		return common.ErrorUnauthorized
	}
	m.dispatch(action{kind: actionStart})

	if err := m.client.RevokeAll(ctx); err != nil {
		m.dispatch(action{kind: actionFailure, msg: api.Normalize(err), keepSession: true})
		return err
	}
	return m.Logout(ctx)
}

// UpdateProfile changes the mutable identity fields. A failure leaves the
// prior session intact.
func (m *Manager) UpdateProfile(ctx context.Context, upd api.ProfileUpdate) error {
	snap := m.Snapshot()
	if !snap.Authenticated {
		return common.ErrorUnauthorized
	}
	m.dispatch(action{kind: actionStart})

	user, err := m.client.UpdateProfile(ctx, upd)
	if err != nil {
		m.dispatch(action{kind: actionFailure, msg: api.Normalize(err), keepSession: true})
		return err
	}

	if err := m.store.Save(ctx, user, snap.Tokens); err != nil {
		m.log.Warn(ctx, "failed to persist updated profile", "error", err)
	}
	// tokens are unchanged, so the refresh alarm is left alone
	m.dispatch(action{kind: actionSuccess, user: user, tokens: snap.Tokens})
	return nil
}

// ClearError drops the last error message.
func (m *Manager) ClearError() {
	m.dispatch(action{kind: actionClearError})
}

// Restore is the page-reload path: load persisted credentials, validate
// them against the server, and re-arm the refresh alarm. A store with no
// usable session, or credentials the server no longer accepts, leaves the
// machine Unauthenticated without surfacing an error.
func (m *Manager) Restore(ctx context.Context) error {
	_, tokens, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	if tokens == nil {
		return nil
	}

	m.client.SetAccessToken(tokens.AccessToken)

	// the server copy of the identity supersedes the persisted one
	if fresh, err := m.client.Me(ctx); err == nil {
		m.commitAuth(ctx, fresh, tokens)
		return nil
	}

	// access token no longer valid; one refresh attempt, then give up
	resp, err := m.client.Refresh(ctx, tokens.RefreshToken)
	if err != nil {
		m.log.Info(ctx, "persisted session is no longer valid, discarding",
			"error", api.Normalize(err))
		m.teardown(ctx)
		return nil
	}
	m.commitAuth(ctx, &resp.User, ptr(resp.Tokens()))
	return nil
}

// RefreshPending reports whether a scheduled refresh alarm is armed.
func (m *Manager) RefreshPending() bool {
	return m.sched.Pending()
}

// Close cancels the refresh alarm; the manager must not be used afterwards.
func (m *Manager) Close() {
	m.sched.Cancel()
}

func (m *Manager) currentRefreshToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Tokens == nil {
		return ""
	}
	return m.state.Tokens.RefreshToken
}

// commitAuth is the shared success path: install the access token, write
// through the store, commit the transition, and re-arm the refresh alarm.
func (m *Manager) commitAuth(ctx context.Context, user *api.Identity, tokens *api.TokenPair) {
	m.client.SetAccessToken(tokens.AccessToken)
	if err := m.store.Save(ctx, user, tokens); err != nil {
		m.log.Warn(ctx, "failed to persist credentials", "error", err)
	}
	m.dispatch(action{kind: actionSuccess, user: user, tokens: tokens})
	m.sched.Arm(m.refreshIn(tokens))
}

// failAuth is the shared auth-failure path: cancel the alarm, wipe local
// credentials, and commit the failure transition.
func (m *Manager) failAuth(ctx context.Context, err error) {
	m.sched.Cancel()
	if cerr := m.store.Clear(ctx); cerr != nil {
		m.log.Warn(ctx, "failed to clear credential store", "error", cerr)
	}
	m.client.ClearAccessToken()
	m.dispatch(action{kind: actionFailure, msg: api.Normalize(err)})
}

// teardown resets to the unauthenticated state without recording an error.
func (m *Manager) teardown(ctx context.Context) {
	m.sched.Cancel()
	if err := m.store.Clear(ctx); err != nil {
		m.log.Warn(ctx, "failed to clear credential store", "error", err)
	}
	m.client.ClearAccessToken()
	m.dispatch(action{kind: actionReset})
}

// scheduledRefresh runs when the alarm fires. Failure needs no handling
// here: Refresh's failure path already forces logout, and no retry is
// scheduled.
func (m *Manager) scheduledRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), scheduledRefreshTimeout)
	defer cancel()
	if err := m.Refresh(ctx); err != nil {
		m.log.Warn(ctx, "scheduled token refresh failed", "error", api.Normalize(err))
	}
}

// refreshIn computes the alarm delay: expires_in minus the margin. When the
// server omits expires_in, the exp claim of the access token (parsed
// without signature verification) is used instead.
func (m *Manager) refreshIn(tokens *api.TokenPair) time.Duration {
	ttl := time.Duration(tokens.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = unverifiedTokenTTL(tokens.AccessToken)
	}
	return ttl - m.margin
}

// unverifiedTokenTTL extracts the remaining lifetime from a JWT's exp
// claim. The token came over an authenticated channel; the client has no
// key to verify it and only needs the timestamp.
func unverifiedTokenTTL(accessToken string) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return 0
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	return time.Until(exp.Time)
}

func ptr[T any](v T) *T {
	return &v
}
