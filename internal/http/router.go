package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/geocoder89/ems/internal/config"
	"github.com/geocoder89/ems/internal/domain/employee"
	"github.com/geocoder89/ems/internal/http/handlers"
	"github.com/geocoder89/ems/internal/http/middlewares"
	"github.com/geocoder89/ems/internal/observability"
)

// AuthService is what both the auth handlers and the bearer middleware need.
type AuthService interface {
	handlers.Authenticator
	middlewares.IdentityResolver
}

type Deps struct {
	Log    *slog.Logger
	Config config.Config
	// nil disables /metrics and request metrics
	Prom *observability.Prom
	// nil disables rate limiting on the public auth endpoints
	Limiter *middlewares.RateLimiter
	// nil disables the per-caller limit on employee and department writes
	WriteLimiter *middlewares.RateLimiter

	Tokens      middlewares.TokenVerifier
	Auth        AuthService
	Employees   handlers.EmployeeManager
	Departments handlers.DepartmentManager
	Reports     handlers.OrgChartReporter
	Setup       handlers.SystemInitializer

	// readiness probes keyed by dependency name
	Checks map[string]handlers.PingFunc
}

func NewRouter(d Deps) *gin.Engine {
	if d.Config.Env != "dev" && d.Config.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	if d.Config.Otel.Enabled {
		r.Use(otelgin.Middleware(d.Config.Otel.ServiceName))
	}
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders(d.Config.IsProd()))
	r.Use(middlewares.CORSMiddleware(d.Config.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(d.Config.MaxBodyBytes))
	r.Use(middlewares.RequireJSON())

	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
		if d.Config.MetricsEnabled {
			r.GET("/metrics", gin.WrapH(d.Prom.Handler()))
		}
	}

	// health
	h := handlers.NewHealthHandler(d.Checks)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	// docs
	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	authMW := middlewares.NewAuthMiddleware(d.Tokens, d.Auth)
	requireAuth := authMW.RequireAuth()
	requireAdmin := authMW.RequireRole(employee.RoleAdmin)

	limited := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if d.Limiter == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{d.Limiter.RateLimiterMiddleware(middlewares.KeyByIP), h}
	}

	// the group's requireAuth runs first, so the limit key is the caller id
	writes := func(h gin.HandlerFunc, guards ...gin.HandlerFunc) []gin.HandlerFunc {
		chain := append([]gin.HandlerFunc{}, guards...)
		if d.WriteLimiter != nil {
			chain = append(chain, d.WriteLimiter.RateLimiterMiddleware(middlewares.KeyByCallerOrIP))
		}
		return append(chain, h)
	}

	api := r.Group("/api")

	// auth
	authHandler := handlers.NewAuthHandler(d.Auth)
	api.POST("/auth/login", limited(authHandler.Login)...)
	api.GET("/auth/guest-access", limited(authHandler.GuestAccess)...)
	api.GET("/auth/me", requireAuth, authHandler.Me)

	// first-run setup
	setupHandler := handlers.NewSetupHandler(d.Setup)
	api.GET("/setup/status", setupHandler.Status)
	api.POST("/setup/initialize", limited(setupHandler.Initialize)...)

	// employees
	employeesHandler := handlers.NewEmployeesHandler(d.Employees)
	employees := api.Group("/employees", requireAuth)
	employees.GET("", employeesHandler.ListEmployees)
	employees.GET("/:id", employeesHandler.GetEmployee)
	employees.POST("", writes(employeesHandler.CreateEmployee, requireAdmin)...)
	// self updates are allowed; the service enforces the per-record rules
	employees.PUT("/:id", writes(employeesHandler.UpdateEmployee)...)
	employees.DELETE("/:id", writes(employeesHandler.DeleteEmployee, requireAdmin)...)

	// departments
	departmentsHandler := handlers.NewDepartmentsHandler(d.Departments)
	departments := api.Group("/departments", requireAuth)
	departments.GET("", departmentsHandler.ListDepartments)
	departments.GET("/:id", departmentsHandler.GetDepartment)
	departments.POST("", writes(departmentsHandler.CreateDepartment, requireAdmin)...)
	departments.PUT("/:id", writes(departmentsHandler.UpdateDepartment, requireAdmin)...)
	departments.DELETE("/:id", writes(departmentsHandler.DeleteDepartment, requireAdmin)...)

	// reports
	reportsHandler := handlers.NewReportsHandler(d.Reports)
	api.GET("/reports/orgchart", requireAuth, reportsHandler.OrgChart)

	return r
}
