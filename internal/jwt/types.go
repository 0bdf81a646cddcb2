package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// Auth signs and verifies participant tokens. A token is scoped to one event.
type Auth interface {
	Sign(userID, eventID, name string) (string, error)
	Verify(tokenString string) (*Payload, error)
}

// Payload is the participant token payload. It never carries a role:
// host authority is always derived from the event record.
type Payload struct {
	UserID  string `json:"userId"`
	EventID string `json:"eventId"`
	Name    string `json:"name,omitempty"`
	jwt.RegisteredClaims
}
