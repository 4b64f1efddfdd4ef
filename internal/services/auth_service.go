package services

import (
	"context"
	"errors"
	"sync"

	"kinara/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

var ErrBadCreds = errors.New("invalid email or password")

// UserStore holds back-office users and binds them to browser sessions.
type UserStore interface {
	ByEmail(email string) (*domain.User, error)
	BindSession(sid, userID string) error
	SessionUser(sid string) (*domain.User, error)
	UnbindSession(sid string) error
	UpsertExternalUser(id, email, name, role string) (*domain.User, error)
}

// TokenVerifier checks an ID token issued by an external identity provider.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (domain.Identity, error)
}

// SessionListener is told when a session signs in (u non-nil) or out (u nil).
type SessionListener func(sid string, u *domain.User)

type AuthService struct {
	Users    UserStore
	Verifier TokenVerifier

	mu        sync.RWMutex
	listeners []SessionListener
}

func NewAuthService(users UserStore, verifier TokenVerifier) *AuthService {
	return &AuthService{Users: users, Verifier: verifier}
}

func (s *AuthService) Login(sid, email, password string) (*domain.User, error) {
	u, err := s.Users.ByEmail(email)
	if err != nil {
		return nil, ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, ErrBadCreds
	}
	if err := s.Users.BindSession(sid, u.ID); err != nil {
		return nil, err
	}
	s.notify(sid, u)
	return u, nil
}

// LoginWithToken signs a session in with a Firebase ID token. Only tokens
// carrying the admin claim are accepted.
func (s *AuthService) LoginWithToken(ctx context.Context, sid, idToken string) (*domain.User, error) {
	if s.Verifier == nil {
		return nil, errors.New("token sign-in is not configured")
	}
	id, err := s.Verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, ErrBadCreds
	}
	if !id.Admin {
		return nil, ErrBadCreds
	}
	name := id.Name
	if name == "" {
		name = id.Email
	}
	u, err := s.Users.UpsertExternalUser("fb-"+id.UID, id.Email, name, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if err := s.Users.BindSession(sid, u.ID); err != nil {
		return nil, err
	}
	s.notify(sid, u)
	return u, nil
}

func (s *AuthService) Logout(sid string) error {
	if err := s.Users.UnbindSession(sid); err != nil {
		return err
	}
	s.notify(sid, nil)
	return nil
}

// SignOut is Logout.
func (s *AuthService) SignOut(sid string) error { return s.Logout(sid) }

func (s *AuthService) CurrentUser(sid string) (*domain.User, error) {
	return s.Users.SessionUser(sid)
}

// OnSessionChange registers fn for every later sign-in and sign-out.
func (s *AuthService) OnSessionChange(fn SessionListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *AuthService) notify(sid string, u *domain.User) {
	s.mu.RLock()
	ls := append([]SessionListener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, fn := range ls {
		fn(sid, u)
	}
}
