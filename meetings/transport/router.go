package transport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/imtaco/meeting-coordinator/internal/constants"
	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/jwt"
	"github.com/imtaco/meeting-coordinator/internal/log"
	"github.com/imtaco/meeting-coordinator/internal/validation"
	"github.com/imtaco/meeting-coordinator/meetings"
)

type Router struct {
	eventService meetings.EventService
	jwtAuth      jwt.Auth
	engine       *gin.Engine
	logger       *log.Logger
}

func NewRouter(eventService meetings.EventService, jwtAuth jwt.Auth, logger *log.Logger) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.Use(otelgin.Middleware("meetings-service"))

	r := &Router{
		eventService: eventService,
		jwtAuth:      jwtAuth,
		engine:       engine,
		logger:       logger,
	}

	r.engine.Use(func(c *gin.Context) {
		r.logger.Debug("Incoming request",
			log.String("method", c.Request.Method),
			log.String("url", c.Request.URL.String()))
		c.Next()
	})

	r.setupRoutes()
	return r
}

func (r *Router) Handler() http.Handler {
	return r.engine
}

func (r *Router) setupRoutes() {
	r.engine.POST("/api/events", r.createEvent)
	r.engine.POST("/api/events/:eventId/participants", r.issueToken)

	authed := r.engine.Group("/api/events/:eventId", r.requireToken)
	authed.GET("", r.getEvent)
	authed.PUT("/status", r.setStatus)

	// Health check
	r.engine.GET("/health", r.healthCheck)
}

func (r *Router) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "Validation failed",
		"details": validation.FormatValidationError(err),
	})
}

var statusByCode = map[errors.Code]int{
	meetings.ErrEventNotFound:      http.StatusNotFound,
	meetings.ErrUnauthorized:       http.StatusForbidden,
	meetings.ErrInvalidTransition:  http.StatusConflict,
	meetings.ErrInvalidEventStatus: http.StatusBadRequest,
	meetings.ErrConflict:           http.StatusConflict,
}

// writeError maps lifecycle errors onto HTTP status codes. Anything
// unclassified is logged and answered with fallback.
func (r *Router) writeError(c *gin.Context, err error, fallback string) {
	status, msg := http.StatusInternalServerError, fallback
	if code, ok := errors.CodeOf(err); ok {
		if s, known := statusByCode[code]; known {
			status, msg = s, err.Error()
		}
	}
	if status == http.StatusInternalServerError {
		r.logger.Error(fallback, log.Error(err))
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   msg,
	})
}

func (r *Router) createEvent(c *gin.Context) {
	var req CreateEventBody
	if err := c.ShouldBindJSON(&req); err != nil {
		r.badRequest(c, err)
		return
	}

	hostID := uuid.New().String()
	ctx := c.Request.Context()

	ev, err := r.eventService.CreateEvent(ctx, hostID, req.Title, req.ScheduledAt)
	if err != nil {
		r.writeError(c, err, "Failed to create event")
		return
	}

	token, err := r.jwtAuth.Sign(hostID, ev.ID, req.HostName)
	if err != nil {
		r.writeError(c, err, "Failed to sign host token")
		return
	}

	r.logger.Info("Event created",
		log.EventID(ev.ID),
		log.String("hostId", hostID))

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"event":     ev,
		"hostId":    hostID,
		"hostToken": token,
	})
}

func (r *Router) getEvent(c *gin.Context) {
	var uri EventURI
	if err := c.ShouldBindUri(&uri); err != nil {
		r.badRequest(c, err)
		return
	}

	ev, err := r.eventService.GetEvent(c.Request.Context(), uri.EventID)
	if err != nil {
		r.writeError(c, err, "Failed to get event")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"event":   ev,
	})
}

func (r *Router) setStatus(c *gin.Context) {
	var uri EventURI
	var body SetStatusBody

	if err := c.ShouldBindUri(&uri); err != nil {
		r.badRequest(c, err)
		return
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		r.badRequest(c, err)
		return
	}

	actor := payloadFrom(c)
	if actor == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   jwt.ErrNoToken.Error(),
		})
		return
	}

	ev, err := r.eventService.SetEventStatus(c.Request.Context(), uri.EventID, actor.UserID, constants.EventStatus(body.Status))
	if err != nil {
		r.writeError(c, err, "Failed to update event status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"event":   ev,
	})
}

func (r *Router) issueToken(c *gin.Context) {
	var uri EventURI
	var body IssueTokenBody

	if err := c.ShouldBindUri(&uri); err != nil {
		r.badRequest(c, err)
		return
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		r.badRequest(c, err)
		return
	}

	tok, err := r.eventService.IssueToken(c.Request.Context(), uri.EventID, body.DisplayName)
	if err != nil {
		r.writeError(c, err, "Failed to issue token")
		return
	}

	r.logger.Info("Participant token issued",
		log.EventID(uri.EventID),
		log.UserID(tok.UserID))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"userId":  tok.UserID,
		"token":   tok.Token,
	})
}

func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "meetings",
		"timestamp": time.Now().Unix(),
	})
}
