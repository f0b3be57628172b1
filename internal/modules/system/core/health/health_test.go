package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/cron"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/mail"
	"github.com/stretchr/testify/assert"
)

func init() { gin.SetMode(gin.TestMode) }

func ok(context.Context) error { return nil }

func router(deps Deps) *gin.Engine {
	r := gin.New()
	RegisterRoutes(r.Group(""), deps, func(c *gin.Context) { c.Next() })
	return r
}

func get(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealthOK(t *testing.T) {
	r := router(Deps{Checks: []Check{{Name: "pending_store", Fn: ok}, {Name: "subscriber_list", Fn: ok}}, Scheduler: cron.New(nil)})
	w := get(r, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","pending_store":true,"subscriber_list":true}`, w.Body.String())
}

func TestHealthDegraded(t *testing.T) {
	r := router(Deps{Checks: []Check{
		{Name: "pending_store", Fn: ok},
		{Name: "subscriber_list", Fn: func(context.Context) error { return errors.New("disk") }},
	}, Scheduler: cron.New(nil)})
	w := get(r, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"subscriber_list":false`)
	assert.NotContains(t, w.Body.String(), "disk")
}

func TestCronRoutes(t *testing.T) {
	s := cron.New(nil)
	s.Register(cron.Job{Name: "cleanup_expired_tokens", Fn: ok})
	r := router(Deps{Scheduler: s})

	w := get(r, http.MethodGet, "/health/cron")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cleanup_expired_tokens")

	assert.Equal(t, http.StatusNotFound, get(r, http.MethodGet, "/health/cron/task/missing").Code)
	assert.Equal(t, http.StatusOK, get(r, http.MethodGet, "/health/cron/task/cleanup_expired_tokens").Code)
}

func TestEmailTestDisabled(t *testing.T) {
	r := router(Deps{Scheduler: cron.New(nil), Mailer: mail.Disabled{}})
	assert.Equal(t, http.StatusBadRequest, get(r, http.MethodPost, "/health/email/test?to=a@b.com").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, http.MethodPost, "/health/email/test").Code)
}
