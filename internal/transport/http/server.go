package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fuelport/notify-server/internal/config"
	"github.com/fuelport/notify-server/internal/core"
	"github.com/fuelport/notify-server/internal/store"
)

// NewServer builds the HTTP server: health, WebSocket endpoint and the REST
// surface that feeds domain events into the hub.
func NewServer(hub *core.Hub, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/healthz", func(c *gin.Context) {
		clients, rooms := hub.Stats()
		c.JSON(stdhttp.StatusOK, gin.H{
			"status":      "ok",
			"connections": clients,
			"rooms":       rooms,
		})
	})

	router.GET("/ws", gin.WrapH(NewWSHandler(hub, cfg.SendBuffer, logger)))

	api := NewAPIHandlers(hub, st, logger)
	v1 := router.Group("/api/v1")
	{
		v1.GET("/fuel-prices", api.ListFuelPrices)
		v1.PUT("/fuel-prices/:type", api.UpdateFuelPrice)
		v1.POST("/orders", api.CreateOrder)
		v1.GET("/orders/:id", api.GetOrder)
		v1.PUT("/orders/:id/assign", api.AssignOrder)
		v1.PUT("/orders/:id/status", api.UpdateOrderStatus)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
