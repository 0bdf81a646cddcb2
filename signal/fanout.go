package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/log"
)

const ErrFanout errors.Code = "fanout error"

// roomMessage is a room notification relayed between signal instances.
type roomMessage struct {
	Origin  string          `json:"origin"`
	EventID string          `json:"eventId"`
	Exclude string          `json:"exclude,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type deliverFunc func(ctx context.Context, msg *roomMessage)

// Fanout relays room notifications to the other signal instances over Redis
// pub/sub. The publishing instance delivers locally itself and ignores its
// own messages on the way back.
type Fanout struct {
	client   *redis.Client
	channel  string
	serverID string
	deliver  deliverFunc
	ready    chan struct{}
	logger   *log.Logger
}

func NewFanout(client *redis.Client, channel, serverID string, logger *log.Logger) *Fanout {
	return &Fanout{
		client:   client,
		channel:  channel,
		serverID: serverID,
		ready:    make(chan struct{}),
		logger:   logger,
	}
}

func (f *Fanout) setDeliver(fn deliverFunc) {
	f.deliver = fn
}

// Ready is closed once the first subscription is confirmed.
func (f *Fanout) Ready() <-chan struct{} {
	return f.ready
}

func (f *Fanout) Publish(ctx context.Context, eventID, exclude, method string, params any) error {
	bs, err := json.Marshal(params)
	if err != nil {
		return errors.Wrap(ErrFanout, err, "fail to marshal params")
	}
	msg, err := json.Marshal(&roomMessage{
		Origin:  f.serverID,
		EventID: eventID,
		Exclude: exclude,
		Method:  method,
		Params:  bs,
	})
	if err != nil {
		return errors.Wrap(ErrFanout, err, "fail to marshal message")
	}
	if err := f.client.Publish(ctx, f.channel, msg).Err(); err != nil {
		fanoutErrors.Add(ctx, 1)
		return errors.Wrap(ErrFanout, err, "fail to publish")
	}
	return nil
}

// Run subscribes until ctx is done, resubscribing with backoff when the
// subscription breaks.
func (f *Fanout) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0

	var once bool
	err := backoff.RetryNotify(func() error {
		err := f.subscribe(ctx, func() {
			b.Reset()
			if !once {
				once = true
				close(f.ready)
			}
		})
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		fanoutErrors.Add(ctx, 1)
		f.logger.Warn("Fanout subscription broken, retrying",
			log.Duration("next", next),
			log.Error(err))
	})

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (f *Fanout) subscribe(ctx context.Context, onReady func()) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return errors.Wrap(ErrFanout, err, "fail to subscribe")
	}
	onReady()
	f.logger.Info("Fanout subscribed", log.String("channel", f.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return errors.New(ErrFanout, "subscription closed")
			}
			f.handle(ctx, m.Payload)
		}
	}
}

func (f *Fanout) handle(ctx context.Context, payload string) {
	var msg roomMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		f.logger.Warn("Dropping malformed fanout message", log.Error(err))
		return
	}
	if msg.Origin == f.serverID {
		return
	}
	if f.deliver != nil {
		f.deliver(ctx, &msg)
	}
}
