package auth_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/neexbeast/geoplaces/internal/apperr"
	"github.com/neexbeast/geoplaces/internal/auth"
)

// ---- in-memory UserStore ----

type memStore struct {
	mu     sync.Mutex
	nextID int64
	byName map[string]*auth.User
	err    error
}

func newMemStore() *memStore {
	return &memStore{byName: map[string]*auth.User{}}
}

func (m *memStore) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.byName[username], nil
}

func (m *memStore) FindByID(_ context.Context, id int64) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byName {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memStore) Create(_ context.Context, username, hash, role string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[username]; ok {
		return nil, apperr.Conflict("username already registered")
	}
	m.nextID++
	u := &auth.User{ID: m.nextID, Username: username, PasswordHash: hash, Role: role, CreatedAt: time.Now()}
	m.byName[username] = u
	return u, nil
}

// ---- fake limiter ----

type fakeLimiter struct {
	locked   bool
	err      error
	failures []string
	resets   []string
}

func (f *fakeLimiter) Locked(_ context.Context, _ string) (bool, error) { return f.locked, f.err }
func (f *fakeLimiter) RecordFailure(_ context.Context, u string) error {
	f.failures = append(f.failures, u)
	return f.err
}
func (f *fakeLimiter) Reset(_ context.Context, u string) error {
	f.resets = append(f.resets, u)
	return f.err
}

// ---- helpers ----

func newIssuer(t *testing.T, alg string) *auth.TokenIssuer {
	t.Helper()
	ti, err := auth.NewTokenIssuer("test-secret", alg, time.Hour)
	require.NoError(t, err)
	return ti
}

func newService(t *testing.T, store auth.UserStore, limiter auth.LoginLimiter) *auth.Service {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return auth.NewService(store, newIssuer(t, "HS256"), auth.Options{
		AdminUsers: []string{" Alice ", "root"},
		BcryptCost: bcrypt.MinCost,
		Limiter:    limiter,
	}, log)
}

// ---- password ----

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := auth.HashPassword("hunter22", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, auth.VerifyPassword("hunter22", hash))
	assert.False(t, auth.VerifyPassword("hunter23", hash))
}

func TestHashPassword_TooLong(t *testing.T) {
	_, err := auth.HashPassword(strings.Repeat("p", 100), bcrypt.MinCost)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestVerifyPassword_GarbageHash(t *testing.T) {
	assert.False(t, auth.VerifyPassword("x", "not-a-hash"))
}

// ---- tokens ----

func TestToken_RoundTrip(t *testing.T) {
	ti := newIssuer(t, "HS256")
	tok, err := ti.Issue(42)
	require.NoError(t, err)

	id, err := ti.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestToken_Expired(t *testing.T) {
	ti := newIssuer(t, "HS256")
	tok, err := ti.IssueWithTTL(1, -time.Minute)
	require.NoError(t, err)

	_, err = ti.Validate(tok)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

func TestToken_WrongSecret(t *testing.T) {
	other, err := auth.NewTokenIssuer("other-secret", "HS256", time.Hour)
	require.NoError(t, err)
	tok, err := other.Issue(1)
	require.NoError(t, err)

	_, err = newIssuer(t, "HS256").Validate(tok)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

func TestToken_AlgorithmMismatch(t *testing.T) {
	tok, err := newIssuer(t, "HS512").Issue(1)
	require.NoError(t, err)

	_, err = newIssuer(t, "HS256").Validate(tok)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

func TestToken_Garbage(t *testing.T) {
	_, err := newIssuer(t, "HS256").Validate("a.b.c")
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

func TestNewTokenIssuer_Rejects(t *testing.T) {
	_, err := auth.NewTokenIssuer("", "HS256", time.Hour)
	require.Error(t, err)
	_, err = auth.NewTokenIssuer("s", "RS256", time.Hour)
	require.Error(t, err)
	_, err = auth.NewTokenIssuer("s", "none", time.Hour)
	require.Error(t, err)
	_, err = auth.NewTokenIssuer("s", "HS256", 0)
	require.Error(t, err)
}

// ---- signup ----

func TestSignup_AssignsRoles(t *testing.T) {
	svc := newService(t, newMemStore(), nil)
	ctx := context.Background()

	admin, err := svc.Signup(ctx, "ALICE", "secret1")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, admin.Role)

	user, err := svc.Signup(ctx, "bob", "secret1")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleUser, user.Role)
	assert.NotEqual(t, "secret1", user.PasswordHash)
}

func TestSignup_Duplicate(t *testing.T) {
	svc := newService(t, newMemStore(), nil)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "bob", "secret1")
	require.NoError(t, err)
	_, err = svc.Signup(ctx, "bob", "secret2")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestSignup_StoreError(t *testing.T) {
	store := newMemStore()
	store.err = fmt.Errorf("db down")
	svc := newService(t, store, nil)

	_, err := svc.Signup(context.Background(), "bob", "secret1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

// ---- login ----

func TestLogin_Success(t *testing.T) {
	lim := &fakeLimiter{}
	svc := newService(t, newMemStore(), lim)
	ctx := context.Background()
	_, err := svc.Signup(ctx, "bob", "secret1")
	require.NoError(t, err)

	u, err := svc.Login(ctx, "bob", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "bob", u.Username)
	assert.Equal(t, []string{"bob"}, lim.resets)
}

func TestLogin_WrongPasswordAndUnknownUserMatch(t *testing.T) {
	lim := &fakeLimiter{}
	svc := newService(t, newMemStore(), lim)
	ctx := context.Background()
	_, err := svc.Signup(ctx, "bob", "secret1")
	require.NoError(t, err)

	_, errWrong := svc.Login(ctx, "bob", "nope-nope")
	_, errUnknown := svc.Login(ctx, "ghost", "nope-nope")

	require.Error(t, errWrong)
	require.Error(t, errUnknown)
	assert.Equal(t, apperr.KindOf(errWrong), apperr.KindOf(errUnknown))
	assert.Equal(t, apperr.MessageOf(errWrong), apperr.MessageOf(errUnknown))
	assert.True(t, apperr.Is(errWrong, apperr.KindUnauthenticated))
	assert.Equal(t, []string{"bob", "ghost"}, lim.failures)
}

func TestLogin_Locked(t *testing.T) {
	svc := newService(t, newMemStore(), &fakeLimiter{locked: true})
	_, err := svc.Login(context.Background(), "bob", "secret1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindRateLimited))
}

func TestLogin_LimiterDownFailsOpen(t *testing.T) {
	lim := &fakeLimiter{err: fmt.Errorf("redis down")}
	svc := newService(t, newMemStore(), lim)
	ctx := context.Background()
	_, err := svc.Signup(ctx, "bob", "secret1")
	require.NoError(t, err)

	u, err := svc.Login(ctx, "bob", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "bob", u.Username)
}

// ---- authenticate ----

func TestAuthenticate(t *testing.T) {
	svc := newService(t, newMemStore(), nil)
	ctx := context.Background()
	u, err := svc.Signup(ctx, "bob", "secret1")
	require.NoError(t, err)

	tok, err := svc.Token(u)
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestAuthenticate_UnknownSubject(t *testing.T) {
	svc := newService(t, newMemStore(), nil)
	tok, err := newIssuer(t, "HS256").Issue(999)
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), tok)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

func TestUser_HasRole(t *testing.T) {
	admin := &auth.User{Username: "alice", Role: auth.RoleAdmin}
	assert.True(t, admin.HasRole(auth.RoleAdmin))
	assert.False(t, admin.HasRole(auth.RoleUser))

	var nobody *auth.User
	assert.False(t, nobody.HasRole(auth.RoleUser))
}
