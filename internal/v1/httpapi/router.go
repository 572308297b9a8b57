// Package httpapi wires the gin router: room creation, health, and
// metrics endpoints, plus the ambient middleware stack (spec.md §6.1).
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelgin "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/gala377/Auster/internal/v1/health"
	"github.com/gala377/Auster/internal/v1/logging"
	"github.com/gala377/Auster/internal/v1/middleware"
	"github.com/gala377/Auster/internal/v1/orchestrator"
	"github.com/gala377/Auster/internal/v1/ratelimit"
	"go.uber.org/zap"
)

// Orchestrator is the subset of *orchestrator.Orchestrator the HTTP layer
// needs.
type Orchestrator interface {
	CreateNewRoom(ctx context.Context, req orchestrator.NewRoomRequest) (orchestrator.NewRoomResponse, error)
}

type newRoomBody struct {
	PlayersLimit int `json:"players_limit"`
	RoundsLimit  int `json:"rounds_limit"`
}

type newRoomDTO struct {
	ID       string `json:"id"`
	Password int64  `json:"password"`
}

// NewRouter builds the full gin engine: CORS, correlation id, rate limit,
// room creation, health, and metrics.
func NewRouter(orch Orchestrator, healthHandler *health.Handler, limiter *ratelimit.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("auster"))
	r.Use(middleware.CorrelationID())
	r.Use(cors.Default())

	r.POST("/new_room", limiter.RoomsMiddleware(), newRoomHandler(orch))

	r.GET("/health/live", healthHandler.Liveness)
	r.GET("/health/ready", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func newRoomHandler(orch Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body newRoomBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not decode message"})
			return
		}

		resp, err := orch.CreateNewRoom(c.Request.Context(), orchestrator.NewRoomRequest{
			PlayersLimit: body.PlayersLimit,
			RoundsLimit:  body.RoundsLimit,
		})
		if err != nil {
			logging.Error(c.Request.Context(), "room creation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		c.JSON(http.StatusOK, newRoomDTO{ID: resp.ID, Password: resp.Password})
	}
}
