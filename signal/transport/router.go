package transport

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/imtaco/meeting-coordinator/internal/jwt"
	"github.com/imtaco/meeting-coordinator/internal/log"
	"github.com/imtaco/meeting-coordinator/internal/validation"
	"github.com/imtaco/meeting-coordinator/signal"
)

// RosterReader lists the participants currently in a room.
type RosterReader interface {
	List(ctx context.Context, eventID string) (map[string]signal.Participant, error)
	Ended(ctx context.Context, eventID string) (bool, error)
}

type EventURI struct {
	EventID string `uri:"eventId" binding:"required,eventid"`
}

// Router serves the WebSocket upgrade from a plain mux, since gin's response
// writer refuses to be hijacked once middleware has touched it. Everything
// else goes through gin.
type Router struct {
	mux     *http.ServeMux
	roster  RosterReader
	jwtAuth jwt.Auth
	engine  *gin.Engine
	logger  *log.Logger
}

func NewRouter(
	wsHandler http.HandlerFunc,
	roster RosterReader,
	jwtAuth jwt.Auth,
	allowedOrigins []string,
	logger *log.Logger,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.Use(otelgin.Middleware("signal"))
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}))

	r := &Router{
		mux:     http.NewServeMux(),
		roster:  roster,
		jwtAuth: jwtAuth,
		engine:  engine,
		logger:  logger,
	}

	r.mux.HandleFunc("GET /ws", wsHandler)
	r.mux.Handle("/", r.engine)

	r.engine.GET("/api/rooms/:eventId/participants", r.listParticipants)
	r.engine.GET("/health", r.healthCheck)
	return r
}

func (r *Router) Handler() http.Handler {
	return r.mux
}

func (r *Router) listParticipants(c *gin.Context) {
	var uri EventURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Validation failed",
			"details": validation.FormatValidationError(err),
		})
		return
	}

	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	payload, err := r.jwtAuth.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   jwt.ErrInvalidToken.Error(),
		})
		return
	}
	if payload.EventID != uri.EventID {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "token is not valid for this event",
		})
		return
	}

	ctx := c.Request.Context()
	ended, err := r.roster.Ended(ctx, uri.EventID)
	if err != nil {
		r.logger.Error("Failed to check room state", log.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to check room state",
		})
		return
	}

	participants, err := r.roster.List(ctx, uri.EventID)
	if err != nil {
		r.logger.Error("Failed to list participants", log.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to list participants",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"ended":        ended,
		"participants": participants,
	})
}

func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}
