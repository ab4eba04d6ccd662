package api

import (
	"context"
	"route-validation-service/internal/api/handlers"
	"route-validation-service/internal/ports"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Deps are the services behind the HTTP surface.
type Deps struct {
	Monitor   handlers.TelemetrySubmitter
	Validator handlers.RouteValidator
	Finalizer handlers.RunFinalizer
	Traces    ports.TraceStore

	// Optional.
	Ping    func(ctx context.Context) error
	Pending func() int
}

type Options struct {
	JWTSecret   string
	CORSOrigins []string
	Log         zerolog.Logger
}

// NewRouter wires HTTP handlers with their dependencies.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(deps Deps, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(requestID(), accessLog(opts.Log), gin.Recovery())

	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  opts.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Authorization", "Content-Type", requestIDHeader},
			ExposeHeaders: []string{requestIDHeader},
			MaxAge:        12 * time.Hour,
		}))
	}

	health := &handlers.HealthHandler{Ping: deps.Ping, Pending: deps.Pending}
	telemetry := &handlers.TelemetryHandler{Monitor: deps.Monitor, Log: opts.Log}
	validations := &handlers.ValidationHandler{
		Validator: deps.Validator,
		Finalizer: deps.Finalizer,
		Traces:    deps.Traces,
		Log:       opts.Log,
	}

	r.GET("/health", health.Health)

	v1 := r.Group("/api/v1", bearerAuth(opts.JWTSecret))
	v1.POST("/telemetry", telemetry.Ingest)
	v1.POST("/validations", validations.Validate)
	v1.GET("/traces/:runID", validations.GetTrace)
	v1.POST("/traces/:runID/close", validations.CloseTrace)

	return r
}
