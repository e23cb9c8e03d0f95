// Package service holds the employee management use cases. Handlers call
// into it with the authenticated caller; it applies the access policy and
// the domain rules before touching a store.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/geocoder89/ems/internal/cache"
	"github.com/geocoder89/ems/internal/domain/department"
	"github.com/geocoder89/ems/internal/domain/employee"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrThrottled          = errors.New("too many failed login attempts")
	ErrUnauthenticated    = errors.New("unknown or stale identity")
	ErrAlreadyInitialized = employee.ErrAlreadyInitialized
)

type EmployeeStore interface {
	List(ctx context.Context, roles []employee.Role) ([]employee.Employee, error)
	GetByID(ctx context.Context, id int64) (employee.Employee, error)
	GetByEmail(ctx context.Context, email string) (employee.Employee, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, e employee.Employee) (employee.Employee, error)
	Update(ctx context.Context, e employee.Employee) (employee.Employee, error)
	Delete(ctx context.Context, id int64) error
	employee.ManagerChain
}

type DepartmentStore interface {
	List(ctx context.Context) ([]department.Department, error)
	GetByID(ctx context.Context, id int64) (department.Department, error)
	Create(ctx context.Context, req department.Request) (department.Department, error)
	Update(ctx context.Context, id int64, req department.Request) (department.Department, error)
	Delete(ctx context.Context, id int64) error
}

type SetupStore interface {
	Initialize(ctx context.Context, dept department.Request, admin employee.Employee) (employee.Employee, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}

type TokenIssuer interface {
	GenerateAccessToken(id int64, email string, role employee.Role) (string, error)
}

type LoginThrottle interface {
	IsBlocked(ctx context.Context, email string) (bool, error)
	LoginFailed(ctx context.Context, email string) error
	LoginSucceeded(ctx context.Context, email string) error
}

type LoginMetrics interface {
	ObserveLogin(result string)
}

const directoryKey = "employees:all"

// Directory caches the full employee list for the org chart. Every write
// through the services clears it.
type Directory struct {
	store EmployeeStore
	cache *cache.Cache[[]employee.Employee]
}

func NewDirectory(store EmployeeStore, ttl time.Duration) *Directory {
	return &Directory{
		store: store,
		cache: cache.New[[]employee.Employee](ttl),
	}
}

func (d *Directory) All(ctx context.Context) ([]employee.Employee, error) {
	if all, ok := d.cache.Get(directoryKey); ok {
		return all, nil
	}

	all, err := d.store.List(ctx, nil)
	if err != nil {
		return nil, err
	}

	d.cache.Set(directoryKey, all)
	return all, nil
}

func (d *Directory) Invalidate() {
	d.cache.Clear()
}

func loggerOrDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
