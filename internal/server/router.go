package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/glyphworks/puzzle-backend/internal/handlers"
	"github.com/glyphworks/puzzle-backend/internal/platform/envutil"
)

type RouterConfig struct {
	ServiceName     string
	PurchaseHandler *handlers.PurchaseHandler
	ScoreHandler    *handlers.ScoreHandler
	WorkflowHandler *handlers.WorkflowHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(otelgin.Middleware(cfg.ServiceName))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/purchases/process", cfg.PurchaseHandler.Process)
		v1.POST("/scores/submit", cfg.ScoreHandler.Submit)
		v1.GET("/workflows/:id", cfg.WorkflowHandler.Get)
		v1.GET("/players/:playerId/workflows", cfg.WorkflowHandler.ListByPlayer)
	}

	return router
}

func corsOrigins() []string {
	raw := envutil.String("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:5174")
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
