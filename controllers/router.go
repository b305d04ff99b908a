package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stellar/go/support/log"
)

// NewRouter registers the wallet routes. When gatherer is non-nil its
// metrics are served on /metrics.
func NewRouter(ctrl *WalletController, gatherer prometheus.Gatherer, logger *log.Entry) *gin.Engine {
	if logger == nil {
		logger = log.DefaultLogger
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "network": ctrl.Service.NetworkName()})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")

	wallet := api.Group("/wallet")
	wallet.POST("/connect", ctrl.Connect)
	wallet.POST("/disconnect", ctrl.Disconnect)
	wallet.GET("/status", ctrl.Status)
	wallet.GET("/account", ctrl.Account)
	wallet.POST("/account/refresh", ctrl.RefreshAccount)

	api.GET("/accounts/:account_id", ctrl.GetAccount)

	api.POST("/transfers/hbar", ctrl.SendHbar)
	api.POST("/transfers/token", ctrl.SendToken)

	api.POST("/tokens", ctrl.CreateToken)
	api.POST("/tokens/:token_id/associate", ctrl.AssociateToken)

	api.POST("/topics", ctrl.CreateTopic)
	api.GET("/topics/listener", ctrl.ListenerState)
	api.POST("/topics/:topic_id/messages", ctrl.SendTopicMessage)
	api.GET("/topics/:topic_id/messages", ctrl.GetTopicMessages)
	api.POST("/topics/:topic_id/listen", ctrl.ToggleListener)
	api.GET("/topics/:topic_id/stream", ctrl.StreamTopic)

	api.GET("/alerts", ctrl.RecentAlerts)

	return router
}

func requestLogger(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := logger.WithFields(log.F{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request")
			return
		}
		entry.Debug("request")
	}
}
