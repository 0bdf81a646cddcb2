package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/imtaco/meeting-coordinator/internal/errors"
)

const DefaultTTL = 12 * time.Hour

type Option func(*auth)

// WithTTL sets how long signed tokens stay valid.
func WithTTL(ttl time.Duration) Option {
	return func(a *auth) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithMethod picks the HMAC variant. Verify accepts only this one.
func WithMethod(method *jwt.SigningMethodHMAC) Option {
	return func(a *auth) { a.method = method }
}

func WithClock(clock clockwork.Clock) Option {
	return func(a *auth) { a.clock = clock }
}

// NewAuth signs HS256 tokens valid for DefaultTTL unless options say otherwise.
func NewAuth(secret string, opts ...Option) Auth {
	a := &auth{
		secret: []byte(secret),
		method: jwt.SigningMethodHS256,
		ttl:    DefaultTTL,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{a.method.Alg()}),
		jwt.WithTimeFunc(a.clock.Now),
		jwt.WithExpirationRequired(),
	)
	return a
}

type auth struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
	clock  clockwork.Clock
	parser *jwt.Parser
}

func (a *auth) Sign(userID, eventID, name string) (string, error) {
	if userID == "" || eventID == "" {
		return "", errors.New(ErrInvalidRequest, "userID and eventID are required")
	}

	now := a.clock.Now()
	claims := &Payload{
		UserID:  userID,
		EventID: eventID,
		Name:    name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(a.method, claims).SignedString(a.secret)
}

func (a *auth) Verify(token string) (*Payload, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	var claims Payload
	if _, err := a.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}); err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err, "fail to parse token")
	}
	if claims.UserID == "" || claims.EventID == "" {
		return nil, errors.New(ErrInvalidToken, "token lacks user or event")
	}
	return &claims, nil
}
