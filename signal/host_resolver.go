package signal

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/log"
)

const (
	ErrHostUnknown errors.Code = "host unknown"

	resolveTimeout = 3 * time.Second
)

// HostResolver answers whether a user hosts an event. The host of an event
// never changes, so resolved hosts are cached; concurrent misses for the same
// event share one lookup.
type HostResolver struct {
	events EventGetter
	cache  *lru.Cache[string, string]
	sf     singleflight.Group
	logger *log.Logger
}

func NewHostResolver(events EventGetter, cacheSize int, logger *log.Logger) (*HostResolver, error) {
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &HostResolver{
		events: events,
		cache:  cache,
		logger: logger,
	}, nil
}

func (h *HostResolver) IsHost(ctx context.Context, eventID, userID string) (bool, error) {
	hostID, err := h.hostOf(ctx, eventID)
	if err != nil {
		return false, err
	}
	return userID != "" && hostID == userID, nil
}

func (h *HostResolver) hostOf(ctx context.Context, eventID string) (string, error) {
	if hostID, ok := h.cache.Get(eventID); ok {
		return hostID, nil
	}

	result, err, _ := h.sf.Do(eventID, func() (any, error) {
		// detached so one caller giving up does not fail the others
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()

		ev, err := h.events.GetEvent(ctx, eventID)
		if err != nil {
			return "", errors.Wrapf(ErrHostUnknown, err, "fail to load event %s", eventID)
		}
		hostID := ev.GetHostID()
		if hostID == "" {
			return "", errors.Newf(ErrHostUnknown, "event %s has no host", eventID)
		}

		h.cache.Add(eventID, hostID)
		h.logger.Debug("Resolved event host",
			log.EventID(eventID),
			log.String("hostId", hostID))
		return hostID, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
