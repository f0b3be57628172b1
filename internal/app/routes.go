package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/middleware"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/modules/newsletter/backup"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/modules/newsletter/subscribe"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/modules/system/core/health"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/response"
)

func (a *App) registerRoutes() {
	r := a.router
	cfg := a.cfg
	authMW := middleware.AdminAuth(cfg.Newsletter.AdminToken)
	limitMW := middleware.RateLimit(a.comps.Limiter, "newsletter", cfg.RateLimit.Max, cfg.RateLimit.Window, a.logger.Named("RateLimit"))

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.Error(c, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": "pong"})
	})

	health.RegisterRoutes(r.Group(""), health.Deps{
		Checks:    a.comps.HealthChecks(),
		Scheduler: a.sched,
		Mailer:    a.comps.Mailer,
		StartedAt: a.startedAt,
	}, authMW)

	api := r.Group("/api/v1")
	subscribe.NewHandler(a.comps.Newsletter, subscribe.HandlerOptions{
		Enable:      cfg.Newsletter.Enable,
		ExposeToken: cfg.Newsletter.ExposeToken,
		RedirectURL: cfg.Newsletter.ConfirmRedirectURL,
	}).RegisterRoutes(api, authMW, limitMW)
	backup.NewHandler(a.comps.Backup).RegisterRoutes(api, authMW)
}
