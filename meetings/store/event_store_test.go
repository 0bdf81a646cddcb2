package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/suite"
	"go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/mock/gomock"

	"github.com/imtaco/meeting-coordinator/internal/constants"
	errs "github.com/imtaco/meeting-coordinator/internal/errors"
	etcdmocks "github.com/imtaco/meeting-coordinator/internal/etcd/mocks"
	"github.com/imtaco/meeting-coordinator/internal/log"
	"github.com/imtaco/meeting-coordinator/meetings"
)

type EventStoreTestSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	mockKV *etcdmocks.MockKV
	clock  *clockwork.FakeClock
	store  *eventStoreImpl
	ctx    context.Context
	cancel context.CancelFunc
}

func TestEventStoreSuite(t *testing.T) {
	suite.Run(t, new(EventStoreTestSuite))
}

func (s *EventStoreTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockKV = etcdmocks.NewMockKV(s.ctrl)
	s.clock = clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	s.store = newEventStoreWithClock(s.mockKV, "/events", s.clock, log.NewTest(s.T()))
	s.ctx, s.cancel = context.WithCancel(context.Background())
}

func (s *EventStoreTestSuite) TearDownTest() {
	s.cancel()
	s.ctrl.Finish()
}

func (s *EventStoreTestSuite) storedValue(ev *meetings.EventRecord) []byte {
	data, err := json.Marshal(ev)
	s.Require().NoError(err)
	return data
}

func (s *EventStoreTestSuite) TestCreateEvent_Success() {
	s.mockKV.EXPECT().
		Get(gomock.Any(), "/events/evt-1/meta").
		Return(&clientv3.GetResponse{Kvs: []*mvccpb.KeyValue{}}, nil)

	s.mockKV.EXPECT().
		Put(gomock.Any(), "/events/evt-1/meta", gomock.Any()).
		DoAndReturn(func(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error) {
			var stored meetings.EventRecord
			s.NoError(json.Unmarshal([]byte(val), &stored))
			s.Equal("host-1", stored.HostID)
			s.Equal(constants.EventStatusNotStarted, stored.Status)
			s.Equal(s.clock.Now().UTC(), stored.CreatedAt)
			return &clientv3.PutResponse{}, nil
		})

	ev, err := s.store.CreateEvent(s.ctx, &meetings.EventRecord{ID: "evt-1", HostID: "host-1", Title: "Town hall"})
	s.NoError(err)
	s.Equal(constants.EventStatusNotStarted, ev.Status)
}

func (s *EventStoreTestSuite) TestCreateEvent_AlreadyExists() {
	s.mockKV.EXPECT().
		Get(gomock.Any(), "/events/evt-1/meta").
		Return(&clientv3.GetResponse{
			Kvs: []*mvccpb.KeyValue{{Key: []byte("/events/evt-1/meta"), Value: []byte(`{"id":"evt-1"}`)}},
		}, nil)

	ev, err := s.store.CreateEvent(s.ctx, &meetings.EventRecord{ID: "evt-1"})
	s.Error(err)
	s.Nil(ev)
	s.Contains(err.Error(), "already exists")
}

func (s *EventStoreTestSuite) TestCreateEvent_GetError() {
	s.mockKV.EXPECT().
		Get(gomock.Any(), "/events/evt-1/meta").
		Return(nil, errors.New("etcd connection error"))

	ev, err := s.store.CreateEvent(s.ctx, &meetings.EventRecord{ID: "evt-1"})
	s.Error(err)
	s.Nil(ev)
	s.Contains(err.Error(), "failed to check event existence")
}

func (s *EventStoreTestSuite) TestCreateEvent_PutError() {
	s.mockKV.EXPECT().
		Get(gomock.Any(), "/events/evt-1/meta").
		Return(&clientv3.GetResponse{}, nil)
	s.mockKV.EXPECT().
		Put(gomock.Any(), "/events/evt-1/meta", gomock.Any()).
		Return(nil, errors.New("etcd write error"))

	ev, err := s.store.CreateEvent(s.ctx, &meetings.EventRecord{ID: "evt-1"})
	s.Error(err)
	s.Nil(ev)
	s.Contains(err.Error(), "failed to store event")
}

func (s *EventStoreTestSuite) TestGetEvent_Success() {
	want := &meetings.EventRecord{ID: "evt-1", HostID: "host-1", Status: constants.EventStatusLive}
	s.mockKV.EXPECT().
		Get(gomock.Any(), "/events/evt-1/meta").
		Return(&clientv3.GetResponse{
			Kvs: []*mvccpb.KeyValue{{Value: s.storedValue(want)}},
		}, nil)

	ev, err := s.store.GetEvent(s.ctx, "evt-1")
	s.NoError(err)
	s.Equal("host-1", ev.HostID)
	s.Equal(constants.EventStatusLive, ev.Status)
}

func (s *EventStoreTestSuite) TestGetEvent_NotFound() {
	s.mockKV.EXPECT().
		Get(gomock.Any(), "/events/missing/meta").
		Return(&clientv3.GetResponse{}, nil)

	ev, err := s.store.GetEvent(s.ctx, "missing")
	s.Nil(ev)
	s.True(errs.Is(err, meetings.ErrEventNotFound))
}

func (s *EventStoreTestSuite) TestGetEvent_CorruptedData() {
	s.mockKV.EXPECT().
		Get(gomock.Any(), "/events/evt-1/meta").
		Return(&clientv3.GetResponse{
			Kvs: []*mvccpb.KeyValue{{Value: []byte("{not json")}},
		}, nil)

	ev, err := s.store.GetEvent(s.ctx, "evt-1")
	s.Nil(ev)
	s.Contains(err.Error(), "failed to unmarshal")
}

func (s *EventStoreTestSuite) expectTxn(resp *clientv3.TxnResponse, err error) *etcdmocks.Txn {
	txn := &etcdmocks.Txn{Resp: resp, Err: err}
	s.mockKV.EXPECT().Txn(gomock.Any()).Return(txn)
	return txn
}

func (s *EventStoreTestSuite) TestGetEvent_CarriesRevision() {
	s.mockKV.EXPECT().
		Get(gomock.Any(), "/events/evt-1/meta").
		Return(&clientv3.GetResponse{
			Kvs: []*mvccpb.KeyValue{{Value: []byte(`{"id":"evt-1"}`), ModRevision: 42}},
		}, nil)

	ev, err := s.store.GetEvent(s.ctx, "evt-1")
	s.Require().NoError(err)
	s.Equal(int64(42), ev.Revision)
}

func (s *EventStoreTestSuite) TestUpdateEvent_StampsStartedAt() {
	ev := &meetings.EventRecord{ID: "evt-1", Status: constants.EventStatusLive, Revision: 7}
	txn := s.expectTxn(&clientv3.TxnResponse{
		Succeeded: true,
		Header:    &etcdserverpb.ResponseHeader{Revision: 8},
	}, nil)

	s.NoError(s.store.UpdateEvent(s.ctx, ev))
	s.Require().NotNil(ev.StartedAt)
	s.Equal(s.clock.Now().UTC(), *ev.StartedAt)
	s.Nil(ev.CompletedAt)
	s.Equal(int64(8), ev.Revision)

	s.Require().Len(txn.Cmps, 1)
	s.Equal("/events/evt-1/meta", string(txn.Cmps[0].KeyBytes()))
	s.Equal(etcdserverpb.Compare_MOD, txn.Cmps[0].Target)
	s.Equal(int64(7), txn.Cmps[0].TargetUnion.(*etcdserverpb.Compare_ModRevision).ModRevision)

	s.Require().Len(txn.Thens, 1)
	s.True(txn.Thens[0].IsPut())
	var stored meetings.EventRecord
	s.Require().NoError(json.Unmarshal(txn.Thens[0].ValueBytes(), &stored))
	s.Equal(constants.EventStatusLive, stored.Status)
}

func (s *EventStoreTestSuite) TestUpdateEvent_KeepsFirstTimestamp() {
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ev := &meetings.EventRecord{ID: "evt-1", Status: constants.EventStatusCompleted, CompletedAt: &first}
	s.expectTxn(&clientv3.TxnResponse{Succeeded: true}, nil)

	s.NoError(s.store.UpdateEvent(s.ctx, ev))
	s.Equal(first, *ev.CompletedAt)
}

func (s *EventStoreTestSuite) TestUpdateEvent_Conflict() {
	s.expectTxn(&clientv3.TxnResponse{Succeeded: false}, nil)

	err := s.store.UpdateEvent(s.ctx, &meetings.EventRecord{ID: "evt-1", Status: constants.EventStatusLive, Revision: 3})
	s.True(errs.Is(err, meetings.ErrConflict))
}

func (s *EventStoreTestSuite) TestUpdateEvent_PutError() {
	s.expectTxn(nil, errors.New("etcd write error"))

	err := s.store.UpdateEvent(s.ctx, &meetings.EventRecord{ID: "evt-1", Status: constants.EventStatusLive})
	s.Error(err)
	s.Contains(err.Error(), "failed to store event")
}
