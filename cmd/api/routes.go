package main

import (
	"log/slog"

	"travel-booking/internal/auth"
	"travel-booking/internal/httpapi"
	"travel-booking/pkg/logger"

	"github.com/gin-gonic/gin"
)

// newRouter builds the engine with the shared middleware stack.
func newRouter(log *slog.Logger, allowedOrigins []string, h httpapi.Handlers, v auth.Verifier) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(httpapi.CORS(allowedOrigins))
	r.Use(httpapi.ClientIP())

	registerRoutes(r, h, v)
	return r
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, v auth.Verifier) {
	// public
	r.GET("/", httpapi.Index)
	r.GET("/healthz", httpapi.Health)

	users := r.Group("/api/tenants/:tenant/user")
	{
		users.POST("/signup", h.Signup)
		users.POST("/login", h.Login)

		users.PUT("/:username/flights", auth.RequireCaller(v, httpapi.MsgBookForbidden), h.BookFlights)
		users.GET("/:username/flights", auth.RequireCaller(v, httpapi.MsgCartForbidden), h.ListFlights)
	}
}
