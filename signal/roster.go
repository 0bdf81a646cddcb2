package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/log"
	redisutil "github.com/imtaco/meeting-coordinator/internal/redis"
)

const ErrRoster errors.Code = "roster error"

// Roster is the room membership shared by every signal instance, kept in a
// Redis hash per event (connId -> participant JSON). An ended marker with a
// TTL keeps late joiners out after the host ends the room.
type Roster struct {
	client   *redis.Client
	forever  redisutil.Forever
	prefix   string
	endedTTL time.Duration
	logger   *log.Logger
}

func NewRoster(client *redis.Client, prefix string, endedTTL time.Duration, logger *log.Logger) *Roster {
	return &Roster{
		client:   client,
		forever:  redisutil.NewForever(client, 50*time.Millisecond, time.Second, logger.Module("Forever")),
		prefix:   prefix,
		endedTTL: endedTTL,
		logger:   logger,
	}
}

func (r *Roster) rosterKey(eventID string) string {
	return fmt.Sprintf("%s:roster:%s", r.prefix, eventID)
}

func (r *Roster) endedKey(eventID string) string {
	return fmt.Sprintf("%s:ended:%s", r.prefix, eventID)
}

func (r *Roster) Put(ctx context.Context, eventID, connID string, p Participant) error {
	bs, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(ErrRoster, err, "fail to marshal participant")
	}
	if err := r.forever.HSet(ctx, r.rosterKey(eventID), connID, string(bs)); err != nil {
		return errors.Wrap(ErrRoster, err, "fail to add participant")
	}
	return nil
}

func (r *Roster) Remove(ctx context.Context, eventID, connID string) error {
	if err := r.forever.HDel(ctx, r.rosterKey(eventID), connID); err != nil {
		return errors.Wrap(ErrRoster, err, "fail to remove participant")
	}
	return nil
}

func (r *Roster) List(ctx context.Context, eventID string) (map[string]Participant, error) {
	raw, err := r.client.HGetAll(ctx, r.rosterKey(eventID)).Result()
	if err != nil {
		return nil, errors.Wrap(ErrRoster, err, "fail to list participants")
	}

	out := make(map[string]Participant, len(raw))
	for connID, v := range raw {
		var p Participant
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			r.logger.Warn("Skipping corrupt roster entry",
				log.EventID(eventID),
				log.ConnID(connID),
				log.Error(err))
			continue
		}
		out[connID] = p
	}
	return out, nil
}

// End marks the room ended and clears its roster. It reports false when the
// room had already been ended.
func (r *Roster) End(ctx context.Context, eventID string) (bool, error) {
	first, err := r.client.SetNX(ctx, r.endedKey(eventID), "1", r.endedTTL).Result()
	if err != nil {
		return false, errors.Wrap(ErrRoster, err, "fail to mark room ended")
	}
	if err := r.forever.Del(ctx, r.rosterKey(eventID)); err != nil {
		return first, errors.Wrap(ErrRoster, err, "fail to clear roster")
	}
	return first, nil
}

func (r *Roster) Ended(ctx context.Context, eventID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.endedKey(eventID)).Result()
	if err != nil {
		return false, errors.Wrap(ErrRoster, err, "fail to check room state")
	}
	return n > 0, nil
}
