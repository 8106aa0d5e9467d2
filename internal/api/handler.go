package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"oddsarb.dev/core/internal/engine"
	"oddsarb.dev/core/internal/events"
	"oddsarb.dev/core/pkg/db"
	"oddsarb.dev/core/pkg/metrics"
)

// Server wires the command/observation surface (spec.md §6) around the
// already-running Engine. Grounded on the teacher's own Server/NewServer/
// routes shape (gin.Engine, a fixed middleware stack, a routes() method),
// trimmed from a multi-user dashboard down to a single-operator admin API.
type Server struct {
	Router  *gin.Engine
	Bus     *events.Bus
	DB      *db.Database
	Engine  *engine.Engine
	Metrics *metrics.Registry

	OperatorSecret string
	JWTSecret      string
}

// NewServer builds the gin router and registers every route.
func NewServer(bus *events.Bus, database *db.Database, eng *engine.Engine, reg *metrics.Registry, jwtSecret, operatorSecret string) *Server {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:         r,
		Bus:            bus,
		DB:             database,
		Engine:         eng,
		Metrics:        reg,
		OperatorSecret: operatorSecret,
		JWTSecret:      jwtSecret,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/metrics", s.metrics)
	s.Router.GET("/ws", s.websocket)

	v1 := s.Router.Group("/api/v1")
	{
		v1.POST("/auth/login", s.login)

		protected := v1.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/strategies", s.listStrategies)
			protected.GET("/orders", s.getOrders)
			protected.DELETE("/orders/:id", s.cancelOrder)
			protected.GET("/positions", s.getPositions)
			protected.GET("/risk", s.getRisk)
			protected.GET("/ranking", s.getRanking)
			protected.PUT("/ranking", s.updateRanking)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	snap := s.Engine.Health()
	status := http.StatusOK
	if snap.Status == engine.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, snap)
}

// Start runs the HTTP server (blocking).
func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
