package server

import (
	"strings"
	"time"

	"bidio/services/channel/helpers"
	"bidio/utils"

	"github.com/gin-gonic/gin"
)

// RequestLoggerMiddleware logs incoming requests with timing. Scrapes of
// /metrics are logged at debug level.
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	fields := map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	}
	if conn := c.Writer.Header().Get(helpers.HeaderConn); conn != "" {
		fields["conn"] = conn
	}
	if strings.HasPrefix(c.Request.URL.Path, "/metrics") {
		utils.Debug("HTTP Request", fields)
		return
	}
	utils.Info("HTTP Request", fields)
}
