package api

import (
	"github.com/SlpAus/tinyballot-backend/internal/platform/health"
	"github.com/SlpAus/tinyballot-backend/internal/poll"
	"github.com/SlpAus/tinyballot-backend/internal/voter"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine, pollHandler *poll.Handler, db *gorm.DB, gatherer prometheus.Gatherer) {
	api := router.Group("/api")
	{
		api.GET("/health", health.Handler(db))

		// 投票相关的路由组 /api/polls，所有请求都带上voter-id
		polls := api.Group("")
		polls.Use(voter.EnsureVoterCookieMiddleware())
		pollHandler.RegisterRoutes(polls)
	}

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
