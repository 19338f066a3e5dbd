package server

import (
	"net/http"

	"bidio/internal/metrics"
	handler "bidio/services/channel/handler"
	"bidio/utils"

	"github.com/gin-gonic/gin"
)

// Options selects the optional route groups
type Options struct {
	Admin   bool
	Metrics *metrics.Metrics
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(channels handler.ChannelRegistry, opts Options) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	channelHandler := handler.NewChannelHandler(channels)

	router.GET("/healthz", func(c *gin.Context) {
		utils.JSONResponse(c, http.StatusOK, gin.H{"channels": len(channels.Channels())}, "ok")
	})
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	chans := router.Group("/channels")
	{
		chans.GET("", channelHandler.ListChannelsHandler)
		chans.GET("/:name/:stream", channelHandler.StreamHandler)
		chans.POST("/:name/:stream", channelHandler.PacketHandler)
	}

	if opts.Admin {
		admin := router.Group("/admin/channels")
		{
			admin.POST("/:name", channelHandler.CreateChannelHandler)
			admin.POST("/:name/stream", channelHandler.AdminPacketHandler)
			admin.PUT("/:name/bids/:id", channelHandler.SetBidHandler)
			admin.DELETE("/:name/bids/:id", channelHandler.DeleteBidHandler)
			admin.DELETE("/:name/bids", channelHandler.ClearBidsHandler)
		}
	}

	return router
}
