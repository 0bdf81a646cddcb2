package jsonrpc

import (
	"context"
	"time"
)

// TimeoutClient bounds every Call and Notify on conn by timeout, on top of
// whatever deadline the caller's ctx carries.
func TimeoutClient[T any](conn Conn[T], timeout time.Duration) Client[T] {
	if timeout <= 0 {
		panic("jsonrpc: timeout must be positive")
	}
	return &timeoutClient[T]{Conn: conn, timeout: timeout}
}

type timeoutClient[T any] struct {
	Conn[T]
	timeout time.Duration
}

func (c *timeoutClient[T]) Call(ctx context.Context, method string, params, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.Conn.Call(ctx, method, params, result)
}

func (c *timeoutClient[T]) Notify(ctx context.Context, method string, params any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.Conn.Notify(ctx, method, params)
}
