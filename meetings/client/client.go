package client

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/imtaco/meeting-coordinator/internal/constants"
	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/jwt"
	"github.com/imtaco/meeting-coordinator/internal/log"
	"github.com/imtaco/meeting-coordinator/meetings"
)

const (
	ErrRequest  errors.Code = "meetings request failed"
	ErrNoAccess errors.Code = "meetings token unavailable"

	defaultTimeout = 10 * time.Second
)

// TokenSource returns the bearer token used for requests about eventID.
type TokenSource func(eventID string) (string, error)

// StaticToken always presents the same participant token.
func StaticToken(token string) TokenSource {
	return func(string) (string, error) {
		return token, nil
	}
}

// ServiceToken signs a short-lived token per event for a backend identity.
func ServiceToken(auth jwt.Auth, serviceID string) TokenSource {
	return func(eventID string) (string, error) {
		return auth.Sign(serviceID, eventID, serviceID)
	}
}

// CreatedEvent is what the meetings service returns to the creator of an event.
type CreatedEvent struct {
	Event     *meetings.EventRecord `json:"event"`
	HostID    string                `json:"hostId"`
	HostToken string                `json:"hostToken"`
}

type envelope struct {
	Success bool                  `json:"success"`
	Error   string                `json:"error"`
	Event   *meetings.EventRecord `json:"event"`
	UserID  string                `json:"userId"`
	Token   string                `json:"token"`

	HostID    string `json:"hostId"`
	HostToken string `json:"hostToken"`
}

// Client talks to the meetings HTTP API.
type Client struct {
	http   *resty.Client
	tokens TokenSource
	logger *log.Logger
}

func New(baseURL string, timeout time.Duration, tokens TokenSource, logger *log.Logger) *Client {
	if logger == nil {
		panic("logger is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetHeader("Content-Type", "application/json").
			SetTimeout(timeout),
		tokens: tokens,
		logger: logger,
	}
}

func (c *Client) CreateEvent(ctx context.Context, title, hostName string, scheduledAt time.Time) (*CreatedEvent, error) {
	body := map[string]any{
		"title":    title,
		"hostName": hostName,
	}
	if !scheduledAt.IsZero() {
		body["scheduledAt"] = scheduledAt
	}

	env, err := c.do(ctx, c.http.R().SetBody(body), http.MethodPost, "/api/events")
	if err != nil {
		return nil, err
	}
	return &CreatedEvent{
		Event:     env.Event,
		HostID:    env.HostID,
		HostToken: env.HostToken,
	}, nil
}

func (c *Client) IssueToken(ctx context.Context, eventID, displayName string) (*meetings.ParticipantToken, error) {
	req := c.http.R().
		SetPathParam("eventId", eventID).
		SetBody(map[string]string{"displayName": displayName})

	env, err := c.do(ctx, req, http.MethodPost, "/api/events/{eventId}/participants")
	if err != nil {
		return nil, err
	}
	return &meetings.ParticipantToken{
		UserID:  env.UserID,
		EventID: eventID,
		Token:   env.Token,
	}, nil
}

func (c *Client) GetEvent(ctx context.Context, eventID string) (*meetings.EventRecord, error) {
	req, err := c.authed(eventID)
	if err != nil {
		return nil, err
	}

	env, err := c.do(ctx, req, http.MethodGet, "/api/events/{eventId}")
	if err != nil {
		return nil, err
	}
	return c.event(env)
}

func (c *Client) SetEventStatus(
	ctx context.Context,
	eventID string,
	status constants.EventStatus,
) (*meetings.EventRecord, error) {
	req, err := c.authed(eventID)
	if err != nil {
		return nil, err
	}
	req.SetBody(map[string]string{"status": string(status)})

	env, err := c.do(ctx, req, http.MethodPut, "/api/events/{eventId}/status")
	if err != nil {
		return nil, err
	}
	return c.event(env)
}

func (c *Client) authed(eventID string) (*resty.Request, error) {
	if c.tokens == nil {
		return nil, errors.New(ErrNoAccess, "no token source configured")
	}
	token, err := c.tokens(eventID)
	if err != nil {
		return nil, errors.Wrap(ErrNoAccess, err, "fail to obtain token")
	}
	return c.http.R().
		SetAuthToken(token).
		SetPathParam("eventId", eventID), nil
}

func (c *Client) event(env *envelope) (*meetings.EventRecord, error) {
	if env.Event == nil {
		return nil, errors.New(ErrRequest, "response missing event")
	}
	return env.Event, nil
}

func (c *Client) do(ctx context.Context, req *resty.Request, method, path string) (*envelope, error) {
	var env envelope
	resp, err := req.
		SetContext(ctx).
		SetResult(&env).
		SetError(&env).
		Execute(method, path)
	if err != nil {
		return nil, errors.Wrapf(ErrRequest, err, "%s %s", method, path)
	}

	c.logger.Debug("meetings resp",
		log.String("method", method),
		log.String("path", path),
		log.Int("status", resp.StatusCode()))

	if resp.IsError() || !env.Success {
		return nil, statusError(resp.StatusCode(), env.Error)
	}
	return &env, nil
}

// statusError turns an HTTP failure back into the lifecycle error it encodes.
func statusError(status int, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch status {
	case http.StatusNotFound:
		return errors.New(meetings.ErrEventNotFound, msg)
	case http.StatusForbidden:
		return errors.New(meetings.ErrUnauthorized, msg)
	case http.StatusConflict:
		return errors.New(meetings.ErrInvalidTransition, msg)
	case http.StatusUnauthorized:
		return errors.New(jwt.ErrInvalidToken, msg)
	}
	return errors.Newf(ErrRequest, "status %d: %s", status, msg)
}
