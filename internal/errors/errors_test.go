package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	errA Code = "a failed"
	errB Code = "b failed"
)

type customErr struct{ n int }

func (c *customErr) Error() string { return fmt.Sprint(c.n) }

func TestWrapKeepsCodeAndCause(t *testing.T) {
	cause := &customErr{n: 7}
	err := Wrap(errA, cause, "loading")

	assert.True(t, Is(err, errA))
	assert.False(t, Is(err, errB))
	assert.Equal(t, "a failed: loading: 7", err.Error())

	got, ok := As[*customErr](err)
	assert.True(t, ok)
	assert.Equal(t, 7, (*got).n)

	assert.Nil(t, Wrap(errA, nil, "x"))
	assert.Nil(t, Wrapf(errA, nil, "x %d", 1))
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
		ok   bool
	}{
		{"new", New(errA, "x"), errA, true},
		{"outermost wins", Wrap(errB, Newf(errA, "x %d", 1), "y"), errB, true},
		{"fmt wrapped", fmt.Errorf("ctx: %w", New(errA, "x")), errA, true},
		{"bare code", errB, errB, true},
		{"plain", PureNew("x"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := CodeOf(tt.err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, code)
		})
	}
}
