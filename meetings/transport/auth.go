package transport

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imtaco/meeting-coordinator/internal/jwt"
	"github.com/imtaco/meeting-coordinator/internal/log"
)

const payloadKey = "jwtPayload"

// requireToken verifies the bearer token and checks it is scoped to the
// event in the path.
func (r *Router) requireToken(c *gin.Context) {
	token := c.GetHeader("Authorization")
	if !strings.HasPrefix(token, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   jwt.ErrNoToken.Error(),
		})
		return
	}

	payload, err := r.jwtAuth.Verify(strings.TrimPrefix(token, "Bearer "))
	if err != nil {
		r.logger.Debug("Token rejected", log.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   jwt.ErrInvalidToken.Error(),
		})
		return
	}

	if eventID := c.Param("eventId"); eventID != "" && payload.EventID != eventID {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "token is not valid for this event",
		})
		return
	}

	c.Set(payloadKey, payload)
	c.Next()
}

func payloadFrom(c *gin.Context) *jwt.Payload {
	v, ok := c.Get(payloadKey)
	if !ok {
		return nil
	}
	p, _ := v.(*jwt.Payload)
	return p
}
