package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/imtaco/meeting-coordinator/internal/constants"
	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/etcd"
	"github.com/imtaco/meeting-coordinator/internal/log"
	"github.com/imtaco/meeting-coordinator/meetings"
)

type eventStoreImpl struct {
	etcdClient etcd.KV
	prefix     string
	clock      clockwork.Clock
	logger     *log.Logger
}

func NewEventStore(etcdClient etcd.KV, prefix string, logger *log.Logger) meetings.EventStore {
	return newEventStoreWithClock(etcdClient, prefix, clockwork.NewRealClock(), logger)
}

func newEventStoreWithClock(etcdClient etcd.KV, prefix string, clock clockwork.Clock, logger *log.Logger) *eventStoreImpl {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &eventStoreImpl{
		etcdClient: etcdClient,
		prefix:     prefix,
		clock:      clock,
		logger:     logger,
	}
}

func (es *eventStoreImpl) metaKey(eventID string) string {
	return fmt.Sprintf("%s%s/%s", es.prefix, eventID, constants.EventKeyMeta)
}

func (es *eventStoreImpl) CreateEvent(ctx context.Context, ev *meetings.EventRecord) (*meetings.EventRecord, error) {
	metaKey := es.metaKey(ev.ID)

	resp, err := es.etcdClient.Get(ctx, metaKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check event existence: %w", err)
	}
	if len(resp.Kvs) > 0 {
		return nil, fmt.Errorf("event %s already exists", ev.ID)
	}

	ev.CreatedAt = es.clock.Now().UTC()
	if ev.Status == "" {
		ev.Status = constants.EventStatusNotStarted
	}

	if err := es.put(ctx, metaKey, ev); err != nil {
		return nil, err
	}

	es.logger.Info("Created event",
		log.EventID(ev.ID),
		log.String("hostId", ev.HostID))
	return ev, nil
}

func (es *eventStoreImpl) GetEvent(ctx context.Context, eventID string) (*meetings.EventRecord, error) {
	resp, err := es.etcdClient.Get(ctx, es.metaKey(eventID))
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, errors.Newf(meetings.ErrEventNotFound, "event %s not found", eventID)
	}

	var ev meetings.EventRecord
	if err := json.Unmarshal(resp.Kvs[0].Value, &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
	}
	ev.Revision = resp.Kvs[0].ModRevision
	return &ev, nil
}

// UpdateEvent writes the record if it is still at ev.Revision, stamping the
// status timestamps the first time a status is reached. A record changed in
// the meantime fails with ErrConflict.
func (es *eventStoreImpl) UpdateEvent(ctx context.Context, ev *meetings.EventRecord) error {
	now := es.clock.Now().UTC()
	switch ev.Status {
	case constants.EventStatusLive:
		if ev.StartedAt == nil {
			ev.StartedAt = &now
		}
	case constants.EventStatusCompleted:
		if ev.CompletedAt == nil {
			ev.CompletedAt = &now
		}
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	key := es.metaKey(ev.ID)
	resp, err := es.etcdClient.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(key), "=", ev.Revision)).
		Then(clientv3.OpPut(key, string(data))).
		Commit()
	if err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}
	if !resp.Succeeded {
		return errors.Newf(meetings.ErrConflict, "event %s changed since revision %d", ev.ID, ev.Revision)
	}
	if resp.Header != nil {
		ev.Revision = resp.Header.Revision
	}

	es.logger.Info("Updated event",
		log.EventID(ev.ID),
		log.String("status", string(ev.Status)),
		log.Time("at", now))
	return nil
}

func (es *eventStoreImpl) put(ctx context.Context, key string, ev *meetings.EventRecord) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if _, err := es.etcdClient.Put(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}
	return nil
}

