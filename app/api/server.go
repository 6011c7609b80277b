package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer wires the HTTP status surface. It is read-mostly: feed and
// setting management is primarily done through the operator bot, but the
// same operations are exposed here for scripting.
func NewServer(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	r.GET("/feeds", handler.ListFeeds)
	r.POST("/feeds", handler.AddFeed)
	r.DELETE("/feeds", handler.RemoveFeed)

	r.GET("/settings/:key", handler.GetSetting)
	r.PUT("/settings/:key", handler.SetSetting)

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})

	return r
}
