package subscribe

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/modules/newsletter/optin"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/response"
)

// MessageConfirmationSent answers a successful subscribe request.
const MessageConfirmationSent = "Confirmation email sent"

type SubscribeDTO struct {
	Email string `json:"email"`
}

// HandlerOptions tunes the public routes.
type HandlerOptions struct {
	Enable bool
	// ExposeToken echoes the issued token in the subscribe response.
	ExposeToken bool
	// RedirectURL, when set, turns confirm responses into redirects carrying
	// ?status=.
	RedirectURL string
}

type Handler struct {
	svc  *Service
	opts HandlerOptions
}

func NewHandler(svc *Service, opts HandlerOptions) *Handler {
	return &Handler{svc: svc, opts: opts}
}

// RegisterRoutes mounts /newsletter. limitMW guards the public write paths,
// authMW the operator ones; either may be nil.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, limitMW gin.HandlerFunc) {
	g := rg.Group("/newsletter")
	g.GET("/status", h.status)
	g.GET("/count", h.count)
	g.POST("/subscribe", chain(limitMW, h.subscribe)...)
	g.GET("/confirm", chain(limitMW, h.confirm)...)

	admin := g.Group("", chain(authMW)...)
	admin.GET("/subscribers", h.subscribers)
	admin.GET("/pending", h.pending)
	admin.DELETE("/pending/:token", h.removePending)
	admin.POST("/maintenance/cleanup", h.cleanup)
}

func chain(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(handlers))
	for _, fn := range handlers {
		if fn != nil {
			out = append(out, fn)
		}
	}
	return out
}

// GET /newsletter/status
func (h *Handler) status(c *gin.Context) {
	response.OK(c, gin.H{
		"enable":          h.opts.Enable,
		"mail_enabled":    h.svc.MailEnabled(),
		"token_ttl_hours": h.svc.TTL().Hours(),
	})
}

// GET /newsletter/count
func (h *Handler) count(c *gin.Context) {
	n, err := h.svc.SubscriberCount(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"count": n})
}

// POST /newsletter/subscribe
func (h *Handler) subscribe(c *gin.Context) {
	if !h.opts.Enable {
		response.Forbidden(c)
		return
	}
	var dto SubscribeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Request body must be JSON with an email field")
		return
	}
	res, err := h.svc.Subscribe(c.Request.Context(), dto.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	body := gin.H{"message": MessageConfirmationSent}
	if h.opts.ExposeToken {
		body["token"] = res.Token
	}
	response.Created(c, body)
}

// GET /newsletter/confirm?token=
func (h *Handler) confirm(c *gin.Context) {
	res, err := h.svc.Confirm(c.Request.Context(), c.Query("token"))
	if h.opts.RedirectURL != "" {
		c.Redirect(http.StatusSeeOther, redirectTarget(h.opts.RedirectURL, res, err))
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"message": res.Message})
}

// GET /newsletter/subscribers
func (h *Handler) subscribers(c *gin.Context) {
	subs, err := h.svc.Subscribers(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if subs == nil {
		subs = []optin.Subscriber{}
	}
	response.OK(c, subs)
}

// GET /newsletter/pending
func (h *Handler) pending(c *gin.Context) {
	items, err := h.svc.Pending(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, items)
}

// DELETE /newsletter/pending/:token
func (h *Handler) removePending(c *gin.Context) {
	if err := h.svc.RemovePending(c.Request.Context(), c.Param("token")); err != nil {
		writeError(c, err)
		return
	}
	response.NoContent(c)
}

// POST /newsletter/maintenance/cleanup
func (h *Handler) cleanup(c *gin.Context) {
	removed, err := h.svc.Sweep(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"removed": removed})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind optin.Kind) int {
	switch kind {
	case optin.KindEmailRequired, optin.KindEmailTooLong, optin.KindEmailInvalid,
		optin.KindTokenInvalid, optin.KindTokenMismatch:
		return http.StatusBadRequest
	case optin.KindTokenNotFound:
		return http.StatusNotFound
	case optin.KindAlreadyPending:
		return http.StatusConflict
	case optin.KindTokenExpired:
		return http.StatusGone
	case optin.KindEmailSendFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	var oe *optin.Error
	if !errors.As(err, &oe) {
		response.InternalError(c, err)
		return
	}
	// The service logs the cause with addresses redacted; the access log
	// only needs the kind.
	if oe.Unwrap() != nil {
		_ = c.Error(errors.New(string(oe.Kind)))
	}
	response.Error(c, StatusFor(oe.Kind), string(oe.Kind), oe.Message)
}

func redirectTarget(base string, res optin.ConfirmResult, err error) string {
	status := "confirmed"
	switch {
	case err != nil:
		status = strings.ToLower(string(optin.KindOf(err)))
		if status == "" {
			status = strings.ToLower(string(optin.KindConfirmationFailed))
		}
	case res.Message == optin.MessageAlreadySubscribed:
		status = "already_subscribed"
	}
	u, parseErr := url.Parse(base)
	if parseErr != nil {
		return base
	}
	q := u.Query()
	q.Set("status", status)
	u.RawQuery = q.Encode()
	return u.String()
}
