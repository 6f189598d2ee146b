package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/neexbeast/geoplaces/internal/apperr"
)

const msgBadCredentials = "incorrect username or password"

// Options tunes a Service.
type Options struct {
	AdminUsers []string
	BcryptCost int
	// Limiter is optional. Limiter errors never fail a login.
	Limiter LoginLimiter
}

// Service handles signup, login and token-to-user resolution.
type Service struct {
	users   UserStore
	tokens  *TokenIssuer
	limiter LoginLimiter
	admins  map[string]struct{}
	cost    int
	log     *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewService constructs a Service.
func NewService(users UserStore, tokens *TokenIssuer, opts Options, log *slog.Logger) *Service {
	admins := make(map[string]struct{}, len(opts.AdminUsers))
	for _, name := range opts.AdminUsers {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			admins[name] = struct{}{}
		}
	}
	return &Service{
		users:   users,
		tokens:  tokens,
		limiter: opts.Limiter,
		admins:  admins,
		cost:    opts.BcryptCost,
		log:     log,
	}
}

// RoleFor returns the role a new account with this username receives.
func (s *Service) RoleFor(username string) string {
	if _, ok := s.admins[strings.ToLower(strings.TrimSpace(username))]; ok {
		return RoleAdmin
	}
	return RoleUser
}

// Signup creates an account. It fails with Conflict when the username is taken.
func (s *Service) Signup(ctx context.Context, username, password string) (*User, error) {
	existing, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("looking up user %s: %w", username, err)
	}
	if existing != nil {
		return nil, apperr.Conflict("username already registered")
	}

	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return nil, err
	}

	// Create still reports Conflict if a concurrent signup won the race.
	u, err := s.users.Create(ctx, username, hash, s.RoleFor(username))
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Login verifies credentials. Unknown users and wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, username, password string) (*User, error) {
	if s.limiter != nil {
		locked, err := s.limiter.Locked(ctx, username)
		if err != nil {
			s.log.Warn("login limiter unavailable", "err", err)
		} else if locked {
			return nil, apperr.RateLimited("too many failed login attempts, try again later")
		}
	}

	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("looking up user %s: %w", username, err)
	}

	if u == nil {
		// Spend the same bcrypt time as a real comparison.
		VerifyPassword(password, s.dummy())
		return nil, s.fail(ctx, username)
	}
	if !VerifyPassword(password, u.PasswordHash) {
		return nil, s.fail(ctx, username)
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, username); err != nil {
			s.log.Warn("login limiter reset failed", "err", err)
		}
	}
	return u, nil
}

// Token issues a bearer token for u.
func (s *Service) Token(u *User) (string, error) {
	return s.tokens.Issue(u.ID)
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	id, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("looking up user %d: %w", id, err)
	}
	if u == nil {
		return nil, apperr.Unauthenticated("could not validate credentials")
	}
	return u, nil
}

func (s *Service) fail(ctx context.Context, username string) error {
	if s.limiter != nil {
		if err := s.limiter.RecordFailure(ctx, username); err != nil {
			s.log.Warn("login limiter record failed", "err", err)
		}
	}
	return apperr.Unauthenticated(msgBadCredentials)
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := HashPassword("not-a-real-password", s.cost)
		if err != nil {
			s.log.Error("hashing dummy password", "err", err)
		}
		s.dummyHash = h
	})
	return s.dummyHash
}
