package http

import (
	"log/slog"

	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/http/handlers"
	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps is everything the router wires into handlers. Logger, Registry, Prom
// and Limiter are optional.
type Deps struct {
	Config   config.Config
	Logger   *slog.Logger
	Users    handlers.UsersService
	Checks   map[string]handlers.Check
	Registry *prometheus.Registry
	Prom     *observability.Prom
	Limiter  middlewares.Limiter
}

func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())

	if cfg.OTelEnabled {
		r.Use(otelgin.Middleware(cfg.AppName))
	}

	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}

	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))
	r.Use(middlewares.RequireJSON())

	r.NoRoute(func(ctx *gin.Context) {
		handlers.RespondNotFound(ctx, "Route not found")
	})

	// liveness and docs
	h := handlers.NewHealthHandler(cfg.AppName, cfg.AppDescription, d.Checks)
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/readyz", h.Readyz)
	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	if d.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{Registry: d.Registry})))
	}

	usersHandler := handlers.NewUsersHandler(d.Users, d.Logger)

	users := r.Group(cfg.APIPrefix + "/users")

	if d.Limiter != nil {
		users.Use(middlewares.RateLimit(d.Limiter, middlewares.KeyByIP))
	}

	// the collection lives at ".../users/"; gin redirects the bare form here
	users.POST("/", usersHandler.CreateUser)
	users.GET("/", usersHandler.ListUsers)
	users.GET("/count", usersHandler.CountUsers)
	users.GET("/:id", usersHandler.GetUserByID)
	users.PUT("/:id", usersHandler.UpdateUser)
	users.DELETE("/:id", usersHandler.DeleteUser)

	return r
}
