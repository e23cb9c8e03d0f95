package service

import (
	"context"
	"errors"
	"log/slog"

	pkgerrors "github.com/pkg/errors"

	"github.com/geocoder89/ems/internal/access"
	"github.com/geocoder89/ems/internal/domain/employee"
)

type GuestAccount struct {
	Email    string
	Password string
}

type AuthService struct {
	store    EmployeeStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	throttle LoginThrottle
	metrics  LoginMetrics
	guest    GuestAccount
	dir      *Directory
	log      *slog.Logger
}

type AuthDeps struct {
	Store    EmployeeStore
	Hasher   PasswordHasher
	Tokens   TokenIssuer
	Throttle LoginThrottle
	Metrics  LoginMetrics
	Guest    GuestAccount
	Dir      *Directory
	Log      *slog.Logger
}

func NewAuthService(d AuthDeps) *AuthService {
	return &AuthService{
		store:    d.Store,
		hasher:   d.Hasher,
		tokens:   d.Tokens,
		throttle: d.Throttle,
		metrics:  d.Metrics,
		guest:    d.Guest,
		dir:      d.Dir,
		log:      loggerOrDefault(d.Log),
	}
}

func (s *AuthService) observe(result string) {
	if s.metrics != nil {
		s.metrics.ObserveLogin(result)
	}
}

// Login checks the throttle, verifies the password and returns an access
// token. Wrong passwords, unknown emails and inactive accounts all count as
// failed attempts.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	blocked, err := s.throttle.IsBlocked(ctx, email)
	if err != nil {
		return "", pkgerrors.Wrap(err, "check login throttle")
	}
	if blocked {
		s.observe("blocked")
		s.log.WarnContext(ctx, "login blocked", "email", employee.NormalizeEmail(email))
		return "", ErrThrottled
	}

	e, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, employee.ErrNotFound) {
			return "", s.fail(ctx, email, "failure", ErrInvalidCredentials)
		}
		return "", err
	}

	if err := s.hasher.Compare(e.PasswordHash, password); err != nil {
		return "", s.fail(ctx, email, "failure", ErrInvalidCredentials)
	}

	if !e.Active {
		return "", s.fail(ctx, email, "inactive", ErrAccountInactive)
	}

	if err := s.throttle.LoginSucceeded(ctx, email); err != nil {
		s.log.WarnContext(ctx, "could not reset login attempts", "err", err)
	}
	s.observe("success")

	return s.tokens.GenerateAccessToken(e.ID, e.Email, e.Role)
}

func (s *AuthService) fail(ctx context.Context, email, result string, cause error) error {
	s.observe(result)
	if err := s.throttle.LoginFailed(ctx, email); err != nil {
		return pkgerrors.Wrap(err, "record failed login")
	}
	return cause
}

// ResolveCaller turns verified token claims into the current caller. The
// record is reloaded so role changes, deactivation and deletion apply to
// tokens already issued.
func (s *AuthService) ResolveCaller(ctx context.Context, id int64, email string) (access.Caller, error) {
	e, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, employee.ErrNotFound) {
			return access.Caller{}, ErrUnauthenticated
		}
		return access.Caller{}, err
	}

	if e.ID != id {
		return access.Caller{}, ErrUnauthenticated
	}
	if !e.Active {
		return access.Caller{}, ErrAccountInactive
	}

	return access.CallerFor(e), nil
}

func (s *AuthService) Me(ctx context.Context, caller access.Caller) (employee.Employee, error) {
	return s.store.GetByID(ctx, caller.ID)
}

// GuestAccess returns a token for the shared demo account, creating it on
// first use.
func (s *AuthService) GuestAccess(ctx context.Context) (string, error) {
	g, err := s.store.GetByEmail(ctx, s.guest.Email)
	if errors.Is(err, employee.ErrNotFound) {
		g, err = s.createGuest(ctx)
	}
	if err != nil {
		return "", err
	}

	return s.tokens.GenerateAccessToken(g.ID, g.Email, g.Role)
}

func (s *AuthService) createGuest(ctx context.Context) (employee.Employee, error) {
	hash, err := s.hasher.Hash(s.guest.Password)
	if err != nil {
		return employee.Employee{}, err
	}

	g, err := s.store.Create(ctx, employee.Employee{
		Email:        s.guest.Email,
		PasswordHash: hash,
		FirstName:    "Guest",
		LastName:     "User",
		JobTitle:     "Demo User",
		Active:       true,
		Role:         employee.RoleGuest,
	})
	if errors.Is(err, employee.ErrEmailTaken) {
		// created concurrently
		return s.store.GetByEmail(ctx, s.guest.Email)
	}
	if err != nil {
		return employee.Employee{}, err
	}

	if s.dir != nil {
		s.dir.Invalidate()
	}
	s.log.InfoContext(ctx, "guest account created", "employee_id", g.ID)

	return g, nil
}
