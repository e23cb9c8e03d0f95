// Package app assembles the services and the HTTP router from a config and a
// set of stores.
package app

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/geocoder89/ems/internal/access"
	"github.com/geocoder89/ems/internal/auth"
	"github.com/geocoder89/ems/internal/config"
	apphttp "github.com/geocoder89/ems/internal/http"
	"github.com/geocoder89/ems/internal/http/handlers"
	"github.com/geocoder89/ems/internal/http/middlewares"
	"github.com/geocoder89/ems/internal/notifications"
	"github.com/geocoder89/ems/internal/observability"
	"github.com/geocoder89/ems/internal/security"
	"github.com/geocoder89/ems/internal/service"
	"github.com/geocoder89/ems/internal/throttle"
)

const directoryTTL = 5 * time.Second

type Stores struct {
	Employees   service.EmployeeStore
	Departments service.DepartmentStore
	Setup       service.SetupStore
}

type Options struct {
	Config config.Config
	Log    *slog.Logger
	// may be nil
	Prom   *observability.Prom
	Stores Stores

	// ThrottleStore holds login attempt records. nil uses process memory.
	ThrottleStore throttle.Store
	// Redis backs the rate limiter when RATE_LIMIT_STORE=redis.
	Redis *redis.Client

	BcryptCost int
	Checks     map[string]handlers.PingFunc
}

// New wires the services and returns the HTTP handler.
func New(o Options) (*gin.Engine, error) {
	if o.Log == nil {
		o.Log = slog.Default()
	}

	gate, err := access.NewGate()
	if err != nil {
		return nil, errors.Wrap(err, "build access gate")
	}

	throttleStore := o.ThrottleStore
	if throttleStore == nil {
		throttleStore = throttle.NewMemoryStore()
	}

	loginThrottle := throttle.New(throttleStore, throttle.Options{
		MaxAttempts: o.Config.Throttle.MaxAttempts,
		LockFor:     o.Config.Throttle.LockDuration,
		Exempt:      o.Config.Throttle.ExemptEmails,
		Observer: throttle.Observers{
			o.Prom,
			notifications.NewLockoutObserver(
				notifications.NewProtectedNotifier(notifications.NewLogNotifier(o.Log), notifications.ProtectedNotifierConfig{}),
				o.Log,
			),
		},
	})

	var limiterClient *redis.Client
	if o.Config.RateLimit.Store == config.StoreRedis {
		if o.Redis == nil {
			return nil, errors.New("redis rate limit store selected without a redis client")
		}
		limiterClient = o.Redis
	}

	limiter, err := middlewares.NewRateLimiter(o.Config.RateLimit.Rate, limiterClient)
	if err != nil {
		return nil, errors.Wrap(err, "build rate limiter")
	}

	var writeLimiter *middlewares.RateLimiter
	if o.Config.RateLimit.WriteRate != "" {
		writeLimiter, err = middlewares.NewRateLimiter(o.Config.RateLimit.WriteRate, limiterClient)
		if err != nil {
			return nil, errors.Wrap(err, "build write rate limiter")
		}
	}

	jwt := auth.NewManager(o.Config.JWT.Secret, o.Config.JWT.AccessTTL)
	hasher := security.NewBcryptHasher(o.BcryptCost)
	dir := service.NewDirectory(o.Stores.Employees, directoryTTL)

	authService := service.NewAuthService(service.AuthDeps{
		Store:    o.Stores.Employees,
		Hasher:   hasher,
		Tokens:   jwt,
		Throttle: loginThrottle,
		Metrics:  o.Prom,
		Guest: service.GuestAccount{
			Email:    o.Config.Guest.Email,
			Password: o.Config.Guest.Password,
		},
		Dir: dir,
		Log: o.Log,
	})

	return apphttp.NewRouter(apphttp.Deps{
		Log:          o.Log,
		Config:       o.Config,
		Prom:         o.Prom,
		Limiter:      limiter,
		WriteLimiter: writeLimiter,
		Tokens:       jwt,
		Auth:         authService,
		Employees:    service.NewEmployeeService(o.Stores.Employees, o.Stores.Departments, gate, hasher, dir, o.Log),
		Departments:  service.NewDepartmentService(o.Stores.Departments, gate, dir),
		Reports:      service.NewReportService(dir, gate),
		Setup:        service.NewSetupService(o.Stores.Employees, o.Stores.Setup, hasher, jwt, dir, o.Log),
		Checks:       o.Checks,
	}), nil
}
