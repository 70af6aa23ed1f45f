package app

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (a *App) wireRouter() {
	if a.Cfg.Env == "production" || a.Cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(requestLogger(a.Log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     a.Cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	h := newHandlers(a)

	r.GET("/healthz", h.health)

	v1 := r.Group("/v1")
	{
		v1.POST("/accounts", h.openAccount)
		v1.GET("/accounts/:number", h.getAccount)
		v1.DELETE("/accounts/:number", h.closeAccount)
		v1.GET("/accounts/:number/transactions", h.listTransactions)
		v1.POST("/accounts/:number/deposits", h.deposit)
		v1.POST("/accounts/:number/withdrawals", h.withdraw)
		v1.POST("/transfers", h.transfer)
		v1.GET("/outbox/backlog", h.outboxBacklog)

		admin := v1.Group("/admin")
		admin.DELETE("/accounts/:number", h.softDeleteAccount)
	}

	a.Router = r
}
