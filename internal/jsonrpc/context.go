package jsonrpc

import "sync/atomic"

// MethodContext carries per-connection state to every handler on it.
type MethodContext[T any] interface {
	Get() *T
	Set(v *T)
	Peer() Conn[T]
}

type methodContext[T any] struct {
	conn Conn[T]
	v    atomic.Pointer[T]
}

func newMethodContext[T any](conn Conn[T], v *T) *methodContext[T] {
	mc := &methodContext[T]{conn: conn}
	mc.v.Store(v)
	return mc
}

func (m *methodContext[T]) Get() *T { return m.v.Load() }
func (m *methodContext[T]) Set(v *T) { m.v.Store(v) }
func (m *methodContext[T]) Peer() Conn[T] { return m.conn }
