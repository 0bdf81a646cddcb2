package mocks

import (
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Txn is a canned clientv3.Txn. It records what it was built with and
// commits to Resp/Err.
type Txn struct {
	Cmps  []clientv3.Cmp
	Thens []clientv3.Op
	Elses []clientv3.Op

	Resp *clientv3.TxnResponse
	Err  error
}

func (t *Txn) If(cs ...clientv3.Cmp) clientv3.Txn {
	t.Cmps = append(t.Cmps, cs...)
	return t
}

func (t *Txn) Then(ops ...clientv3.Op) clientv3.Txn {
	t.Thens = append(t.Thens, ops...)
	return t
}

func (t *Txn) Else(ops ...clientv3.Op) clientv3.Txn {
	t.Elses = append(t.Elses, ops...)
	return t
}

func (t *Txn) Commit() (*clientv3.TxnResponse, error) {
	return t.Resp, t.Err
}
