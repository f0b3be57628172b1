package backup

import (
	"errors"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/response"
)

// Handler exposes operator backup endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/newsletter", authMW)
	g.POST("/maintenance/backup", h.create)
	g.GET("/backups", h.list)
	g.GET("/backups/:filename", h.download)
}

// POST /newsletter/maintenance/backup
func (h *Handler) create(c *gin.Context) {
	res, err := h.svc.Run(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, res)
}

// GET /newsletter/backups
func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, items)
}

// GET /newsletter/backups/:filename
func (h *Handler) download(c *gin.Context) {
	path, err := h.svc.Open(c.Param("filename"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, c.Param("filename")))
	c.File(path)
}
