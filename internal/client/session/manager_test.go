package session

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/api"
	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/repositories/credentials"
	"github.com/sst2020/ai-teaching-assistant-sub000/internal/common"
	"github.com/sst2020/ai-teaching-assistant-sub000/internal/logging"

	_ "modernc.org/sqlite"
)

// ---- helpers ----

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE credentials (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);`)
	require.NoError(t, err)
	return db
}

func storedEntries(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM credentials`).Scan(&n))
	return n
}

func authResp(access, refresh string, expiresIn int64) *api.AuthResponse {
	return &api.AuthResponse{
		TokenPair: api.TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			TokenType:    "bearer",
			ExpiresIn:    expiresIn,
		},
		User: api.Identity{ID: 7, StudentID: "2021000001", Name: "Han Mei", Role: api.RoleStudent, IsActive: true},
	}
}

// ---- fake client ----

// fakeAPI implements api.Client for Manager unit tests.
type fakeAPI struct {
	mu    sync.Mutex
	token string

	LoginResp *api.AuthResponse
	LoginErr  error

	RegisterResp *api.AuthResponse
	RegisterErr  error

	// consumed in order; the last one repeats
	RefreshResps []*api.AuthResponse
	RefreshErr   error
	RefreshCalls int

	LogoutErr   error
	LogoutCalls int

	ChangePasswordErr error
	RevokeErr         error

	MeResp *api.Identity
	MeErr  error

	UpdateResp *api.Identity
	UpdateErr  error

	LastRefreshToken string
}

func (f *fakeAPI) Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error) {
	return f.LoginResp, f.LoginErr
}

func (f *fakeAPI) Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error) {
	return f.RegisterResp, f.RegisterErr
}

func (f *fakeAPI) Refresh(ctx context.Context, refreshToken string) (*api.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastRefreshToken = refreshToken
	f.RefreshCalls++
	if f.RefreshErr != nil {
		return nil, f.RefreshErr
	}
	i := f.RefreshCalls - 1
	if i >= len(f.RefreshResps) {
		i = len(f.RefreshResps) - 1
	}
	return f.RefreshResps[i], nil
}

func (f *fakeAPI) Logout(ctx context.Context, refreshToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LogoutCalls++
	return f.LogoutErr
}

func (f *fakeAPI) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	return f.ChangePasswordErr
}

func (f *fakeAPI) RevokeAll(ctx context.Context) error { return f.RevokeErr }

func (f *fakeAPI) Me(ctx context.Context) (*api.Identity, error) { return f.MeResp, f.MeErr }

func (f *fakeAPI) UpdateProfile(ctx context.Context, upd api.ProfileUpdate) (*api.Identity, error) {
	return f.UpdateResp, f.UpdateErr
}

func (f *fakeAPI) ListAssignments(ctx context.Context) ([]api.Assignment, error) { return nil, nil }

func (f *fakeAPI) GetAssignment(ctx context.Context, id string) (*api.Assignment, error) {
	return nil, nil
}

func (f *fakeAPI) SubmitAssignment(ctx context.Context, id string, sub api.Submission) error {
	return nil
}

func (f *fakeAPI) SetAccessToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

func (f *fakeAPI) ClearAccessToken() { f.SetAccessToken("") }

func (f *fakeAPI) currentToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func newTestManager(t *testing.T, fc *fakeAPI) (*Manager, *sql.DB) {
	t.Helper()
	db := setupDB(t)
	store := credentials.NewStore(db, fc)
	log := logging.NewSlogLogger(slog.New(slog.DiscardHandler))
	m := NewManager(fc, store, log, 5*time.Minute)
	t.Cleanup(m.Close)
	return m, db
}

// ---- TESTS ----

func TestLogin_Success(t *testing.T) {
	fc := &fakeAPI{LoginResp: authResp("at1", "rt1", 3600)}
	m, db := newTestManager(t, fc)
	ctx := context.Background()

	require.NoError(t, m.Login(ctx, api.LoginRequest{StudentID: "2021000001", Password: "Abc12345"}))

	snap := m.Snapshot()
	assert.True(t, snap.Authenticated)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Err)
	require.NotNil(t, snap.User)
	assert.Equal(t, "2021000001", snap.User.StudentID)
	require.NotNil(t, snap.Tokens)
	assert.Equal(t, "at1", snap.Tokens.AccessToken)

	assert.Equal(t, "at1", fc.currentToken())
	assert.Equal(t, 2, storedEntries(t, db))
	assert.True(t, m.RefreshPending())
}

func TestLogin_FailureClearsEverything(t *testing.T) {
	fc := &fakeAPI{LoginErr: &api.Error{Status: http.StatusUnauthorized, Detail: "invalid credentials"}}
	m, db := newTestManager(t, fc)

	err := m.Login(context.Background(), api.LoginRequest{StudentID: "x", Password: "y"})
	require.Error(t, err)

	snap := m.Snapshot()
	assert.False(t, snap.Authenticated)
	assert.False(t, snap.Loading)
	assert.Equal(t, "invalid credentials", snap.Err)
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Tokens)

	assert.Empty(t, fc.currentToken())
	assert.Equal(t, 0, storedEntries(t, db))
	assert.False(t, m.RefreshPending())
}

func TestLogin_StartTransitionObservedBeforeOutcome(t *testing.T) {
	fc := &fakeAPI{LoginResp: authResp("at1", "rt1", 3600)}
	m, _ := newTestManager(t, fc)

	var transitions []State
	m.Subscribe(func(s State) { transitions = append(transitions, s) })

	require.NoError(t, m.Login(context.Background(), api.LoginRequest{}))

	require.GreaterOrEqual(t, len(transitions), 2)
	assert.True(t, transitions[0].Loading)
	assert.False(t, transitions[0].Authenticated)
	last := transitions[len(transitions)-1]
	assert.True(t, last.Authenticated)
	assert.False(t, last.Loading)
}

func TestLogin_StartClearsPreviousError(t *testing.T) {
	fc := &fakeAPI{LoginErr: errors.New("boom")}
	m, _ := newTestManager(t, fc)
	ctx := context.Background()

	_ = m.Login(ctx, api.LoginRequest{})
	require.NotEmpty(t, m.Snapshot().Err)

	var sawStart State
	m.Subscribe(func(s State) {
		if s.Loading {
			sawStart = s
		}
	})
	fc.LoginResp = authResp("at1", "rt1", 3600)
	fc.LoginErr = nil
	require.NoError(t, m.Login(ctx, api.LoginRequest{}))
	assert.Empty(t, sawStart.Err)
}

func TestRefresh_RotatesTokenPairEachTime(t *testing.T) {
	fc := &fakeAPI{
		LoginResp: authResp("at1", "rt1", 3600),
		RefreshResps: []*api.AuthResponse{
			authResp("at2", "rt2", 3600),
			authResp("at3", "rt3", 3600),
		},
	}
	m, _ := newTestManager(t, fc)
	ctx := context.Background()

	require.NoError(t, m.Login(ctx, api.LoginRequest{}))
	first := m.Snapshot().Tokens

	require.NoError(t, m.Refresh(ctx))
	second := m.Snapshot().Tokens
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, "rt1", fc.LastRefreshToken)
	assert.True(t, m.RefreshPending())

	require.NoError(t, m.Refresh(ctx))
	third := m.Snapshot().Tokens
	assert.NotEqual(t, second.RefreshToken, third.RefreshToken)
	assert.Equal(t, "rt2", fc.LastRefreshToken)
	assert.True(t, m.RefreshPending())
}

func TestRefresh_WithoutTokenFailsFast(t *testing.T) {
	fc := &fakeAPI{}
	m, _ := newTestManager(t, fc)

	var transitions int
	m.Subscribe(func(State) { transitions++ })

	err := m.Refresh(context.Background())
	require.ErrorIs(t, err, common.ErrNoRefreshToken)

	assert.Equal(t, 0, fc.RefreshCalls)
	assert.Equal(t, 0, transitions)
	assert.False(t, m.RefreshPending())
}

func TestRefresh_FailureForcesLogout(t *testing.T) {
	fc := &fakeAPI{LoginResp: authResp("at1", "rt1", 3600)}
	m, db := newTestManager(t, fc)
	ctx := context.Background()

	require.NoError(t, m.Login(ctx, api.LoginRequest{}))

	fc.RefreshErr = &api.Error{Status: http.StatusUnauthorized, Detail: "refresh token expired"}
	err := m.Refresh(ctx)
	require.Error(t, err)

	snap := m.Snapshot()
	assert.False(t, snap.Authenticated)
	assert.Equal(t, "refresh token expired", snap.Err)
	assert.Empty(t, fc.currentToken())
	assert.Equal(t, 0, storedEntries(t, db))
	assert.False(t, m.RefreshPending())
}

func TestLogout_ClearsStateEvenWhenNetworkFails(t *testing.T) {
	fc := &fakeAPI{
		LoginResp: authResp("at1", "rt1", 3600),
		LogoutErr: errors.New("connection refused"),
	}
	m, db := newTestManager(t, fc)
	ctx := context.Background()

	require.NoError(t, m.Login(ctx, api.LoginRequest{}))
	require.NoError(t, m.Logout(ctx))

	snap := m.Snapshot()
	assert.Equal(t, State{}, snap)
	assert.Empty(t, fc.currentToken())
	assert.Equal(t, 0, storedEntries(t, db))
	assert.False(t, m.RefreshPending())
	assert.Equal(t, 1, fc.LogoutCalls)
}

func TestChangePassword_SuccessEndsInLogout(t *testing.T) {
	fc := &fakeAPI{LoginResp: authResp("at1", "rt1", 3600)}
	m, db := newTestManager(t, fc)
	ctx := context.Background()

	require.NoError(t, m.Login(ctx, api.LoginRequest{}))
	require.NoError(t, m.ChangePassword(ctx, "Abc12345", "Def67890"))

	assert.False(t, m.Snapshot().Authenticated)
	assert.Equal(t, 0, storedEntries(t, db))
	assert.Equal(t, 1, fc.LogoutCalls)
}

func TestChangePassword_FailureKeepsSession(t *testing.T) {
	fc := &fakeAPI{
		LoginResp:         authResp("at1", "rt1", 3600),
		ChangePasswordErr: &api.Error{Status: http.StatusBadRequest, Detail: "old password incorrect"},
	}
	m, db := newTestManager(t, fc)
	ctx := context.Background()

	require.NoError(t, m.Login(ctx, api.LoginRequest{}))
	require.Error(t, m.ChangePassword(ctx, "wrong", "Def67890"))

	snap := m.Snapshot()
	assert.True(t, snap.Authenticated)
	assert.Equal(t, "old password incorrect", snap.Err)
	assert.Equal(t, 2, storedEntries(t, db))
	assert.Equal(t, 0, fc.LogoutCalls)
}

func TestChangePassword_RequiresSession(t *testing.T) {
	m, _ := newTestManager(t, &fakeAPI{})
	err := m.ChangePassword(context.Background(), "a", "b")
	require.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestRevokeAllTokens_SuccessEndsInLogout(t *testing.T) {
	fc := &fakeAPI{LoginResp: authResp("at1", "rt1", 3600)}
	m, _ := newTestManager(t, fc)
	ctx := context.Background()

	require.NoError(t, m.Login(ctx, api.LoginRequest{}))
	require.NoError(t, m.RevokeAllTokens(ctx))

	assert.False(t, m.Snapshot().Authenticated)
	assert.False(t, m.RefreshPending())
}

func TestUpdateProfile_FailureDoesNotLogOut(t *testing.T) {
	fc := &fakeAPI{
		LoginResp: authResp("at1", "rt1", 3600),
		UpdateErr: &api.Error{Status: http.StatusUnprocessableEntity, Detail: "name too long"},
	}
	m, db := newTestManager(t, fc)
	ctx := context.Background()

	require.NoError(t, m.Login(ctx, api.LoginRequest{}))
	require.Error(t, m.UpdateProfile(ctx, api.ProfileUpdate{}))

	snap := m.Snapshot()
	assert.True(t, snap.Authenticated)
	assert.Equal(t, "name too long", snap.Err)
	assert.Equal(t, "at1", fc.currentToken())
	assert.Equal(t, 2, storedEntries(t, db))
}

func TestUpdateProfile_SuccessReplacesIdentityKeepsTokens(t *testing.T) {
	fc := &fakeAPI{
		LoginResp:  authResp("at1", "rt1", 3600),
		UpdateResp: &api.Identity{ID: 7, Name: "Han Meimei", Role: api.RoleStudent, IsActive: true},
	}
	m, _ := newTestManager(t, fc)
	ctx := context.Background()

	require.NoError(t, m.Login(ctx, api.LoginRequest{}))
	require.NoError(t, m.UpdateProfile(ctx, api.ProfileUpdate{Name: ptr("Han Meimei")}))

	snap := m.Snapshot()
	assert.True(t, snap.Authenticated)
	assert.Equal(t, "Han Meimei", snap.User.Name)
	assert.Equal(t, "at1", snap.Tokens.AccessToken)
}

func TestClearError(t *testing.T) {
	fc := &fakeAPI{LoginErr: errors.New("boom")}
	m, _ := newTestManager(t, fc)

	_ = m.Login(context.Background(), api.LoginRequest{})
	require.NotEmpty(t, m.Snapshot().Err)

	m.ClearError()
	assert.Empty(t, m.Snapshot().Err)
}

func TestRestore_ValidStoredSession(t *testing.T) {
	fc := &fakeAPI{MeResp: &api.Identity{ID: 7, Name: "Han Mei", Role: api.RoleStudent, IsActive: true}}
	m, db := newTestManager(t, fc)
	ctx := context.Background()

	store := credentials.NewStore(db, fc)
	require.NoError(t, store.Save(ctx,
		&api.Identity{ID: 7, Name: "Han Mei", Role: api.RoleStudent},
		&api.TokenPair{AccessToken: "at1", RefreshToken: "rt1", TokenType: "bearer", ExpiresIn: 3600}))

	require.NoError(t, m.Restore(ctx))

	snap := m.Snapshot()
	assert.True(t, snap.Authenticated)
	assert.Equal(t, "at1", fc.currentToken())
	assert.True(t, m.RefreshPending())
}

func TestRestore_EmptyStoreStaysUnauthenticated(t *testing.T) {
	fc := &fakeAPI{}
	m, _ := newTestManager(t, fc)

	require.NoError(t, m.Restore(context.Background()))

	assert.Equal(t, State{}, m.Snapshot())
	assert.False(t, m.RefreshPending())
}

func TestRestore_InvalidTokensDiscardedSilently(t *testing.T) {
	fc := &fakeAPI{
		MeErr:      &api.Error{Status: http.StatusUnauthorized, Detail: "token expired"},
		RefreshErr: &api.Error{Status: http.StatusUnauthorized, Detail: "refresh token expired"},
	}
	m, db := newTestManager(t, fc)
	ctx := context.Background()

	store := credentials.NewStore(db, fc)
	require.NoError(t, store.Save(ctx,
		&api.Identity{ID: 7, Name: "Han Mei", Role: api.RoleStudent},
		&api.TokenPair{AccessToken: "stale", RefreshToken: "stale-rt", TokenType: "bearer", ExpiresIn: 60}))

	require.NoError(t, m.Restore(ctx))

	snap := m.Snapshot()
	assert.False(t, snap.Authenticated)
	// a dead persisted session is not a user-facing error
	assert.Empty(t, snap.Err)
	assert.Equal(t, 0, storedEntries(t, db))
}

func TestRestore_ExpiredAccessTokenRefreshes(t *testing.T) {
	fc := &fakeAPI{
		MeErr:        &api.Error{Status: http.StatusUnauthorized, Detail: "token expired"},
		RefreshResps: []*api.AuthResponse{authResp("at2", "rt2", 3600)},
	}
	m, _ := newTestManager(t, fc)
	ctx := context.Background()

	seed := &api.TokenPair{AccessToken: "at1", RefreshToken: "rt1", TokenType: "bearer", ExpiresIn: 3600}
	require.NoError(t, m.store.Save(ctx, &api.Identity{ID: 7, Role: api.RoleStudent}, seed))

	require.NoError(t, m.Restore(ctx))

	snap := m.Snapshot()
	assert.True(t, snap.Authenticated)
	assert.Equal(t, "at2", snap.Tokens.AccessToken)
	assert.Equal(t, "rt1", fc.LastRefreshToken)
	assert.True(t, m.RefreshPending())
}

func TestRefreshIn_AppliesMargin(t *testing.T) {
	m := NewManager(&fakeAPI{}, nil, logging.NewSlogLogger(slog.New(slog.DiscardHandler)), 5*time.Minute)
	t.Cleanup(m.Close)

	d := m.refreshIn(&api.TokenPair{ExpiresIn: 3600})
	assert.Equal(t, 3300*time.Second, d)
}

func TestRefreshIn_FallsBackToJWTExpClaim(t *testing.T) {
	m := NewManager(&fakeAPI{}, nil, logging.NewSlogLogger(slog.New(slog.DiscardHandler)), 5*time.Minute)
	t.Cleanup(m.Close)

	claims := jwt.MapClaims{"exp": time.Now().Add(30 * time.Minute).Unix()}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)

	d := m.refreshIn(&api.TokenPair{AccessToken: signed, ExpiresIn: 0})
	assert.InDelta(t, float64(25*time.Minute), float64(d), float64(5*time.Second))
}

func TestScheduledRefresh_FiresAndRotatesTokens(t *testing.T) {
	// expires_in 0 with an opaque access token arms the alarm immediately
	fc := &fakeAPI{
		LoginResp:    authResp("at1", "rt1", 0),
		RefreshResps: []*api.AuthResponse{authResp("at2", "rt2", 3600)},
	}
	m, _ := newTestManager(t, fc)

	require.NoError(t, m.Login(context.Background(), api.LoginRequest{}))

	require.Eventually(t, func() bool {
		snap := m.Snapshot()
		return snap.Tokens != nil && snap.Tokens.AccessToken == "at2"
	}, 3*time.Second, 10*time.Millisecond)

	assert.True(t, m.RefreshPending())
}
