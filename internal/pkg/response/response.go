package response

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
)

// Error kinds used outside the newsletter domain.
const (
	KindBadRequest   = "BAD_REQUEST"
	KindUnauthorized = "UNAUTHORIZED"
	KindForbidden    = "FORBIDDEN"
	KindNotFound     = "NOT_FOUND"
	KindRateLimited  = "RATE_LIMITED"
	KindInternal     = "INTERNAL_ERROR"
)

// OK sends a 200 response. Arrays/slices are wrapped in {data: [...]}.
func OK(c *gin.Context, data interface{}) {
	if data != nil {
		v := reflect.ValueOf(data)
		if v.Kind() == reflect.Slice {
			c.JSON(http.StatusOK, gin.H{"data": data})
			return
		}
	}
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error aborts with the error envelope {ok, code, error, message}.
func Error(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{"ok": 0, "code": status, "error": kind, "message": message})
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, KindBadRequest, message)
}

// Unauthorized sends a 401 error response.
func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, KindUnauthorized, "The gate is sealed. Present a valid token.")
}

// Forbidden sends a 403 error response.
func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, KindForbidden, "This path is closed.")
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, KindNotFound, "Lost in the Abyss: nothing lives here.")
}

// TooManyRequests sends a 429 error response.
func TooManyRequests(c *gin.Context) {
	Error(c, http.StatusTooManyRequests, KindRateLimited, "Too many requests. Rest at a bench and try again.")
}

// InternalError sends a 500 error response. err is never echoed to the client.
func InternalError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	Error(c, http.StatusInternalServerError, KindInternal, "Internal server error")
}
