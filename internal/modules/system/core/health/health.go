package health

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/cron"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/mail"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/response"
)

const checkTimeout = 3 * time.Second

// Check probes one dependency. A nil error means healthy.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Deps are the things the health routes report on.
type Deps struct {
	Checks    []Check
	Scheduler *cron.Scheduler
	Mailer    mail.Mailer
	StartedAt time.Time
}

func RegisterRoutes(rg *gin.RouterGroup, deps Deps, authMW gin.HandlerFunc) {
	rg.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
		defer cancel()

		body := gin.H{}
		healthy := true
		for _, chk := range deps.Checks {
			ok := chk.Fn(ctx) == nil
			body[chk.Name] = ok
			healthy = healthy && ok
		}

		status := "ok"
		code := http.StatusOK
		if !healthy {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		body["status"] = status
		if !deps.StartedAt.IsZero() {
			body["uptime"] = time.Since(deps.StartedAt).Truncate(time.Second).String()
		}
		c.JSON(code, body)
	})

	adminHealth := rg.Group("/health", authMW)
	cronGroup := adminHealth.Group("/cron")
	{
		cronGroup.GET("", func(c *gin.Context) {
			items := deps.Scheduler.List()
			byName := make(map[string]cron.ListItem, len(items))
			for _, item := range items {
				byName[item.Name] = item
			}
			response.OK(c, byName)
		})

		cronGroup.POST("/run/:name", func(c *gin.Context) {
			if err := deps.Scheduler.Run(context.WithoutCancel(c.Request.Context()), c.Param("name")); err != nil {
				response.Error(c, http.StatusNotFound, response.KindNotFound, err.Error())
				return
			}
			response.OK(c, gin.H{"message": "job triggered"})
		})

		cronGroup.GET("/task/:name", func(c *gin.Context) {
			result, err := deps.Scheduler.GetTask(c.Param("name"))
			if err != nil {
				response.Error(c, http.StatusNotFound, response.KindNotFound, err.Error())
				return
			}
			response.OK(c, result)
		})
	}

	adminHealth.POST("/email/test", func(c *gin.Context) {
		to := strings.TrimSpace(c.Query("to"))
		if to == "" {
			response.BadRequest(c, "query parameter to is required")
			return
		}
		if deps.Mailer == nil || !deps.Mailer.Enabled() {
			response.BadRequest(c, "mail delivery is disabled")
			return
		}
		err := deps.Mailer.Send(c.Request.Context(), mail.Message{
			To:      []string{to},
			Subject: "Silksong newsletter test mail",
			HTML:    "<p>The bell rings. Mail delivery works.</p>",
			Text:    "The bell rings. Mail delivery works.",
		})
		if err != nil {
			response.Error(c, http.StatusBadGateway, "EMAIL_SEND_FAILED", "Test mail could not be sent")
			return
		}
		response.OK(c, gin.H{"message": "sent"})
	})
}
