package kvcache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/casedge/internal/logging"
)

type countingExpirer struct {
	calls atomic.Int32
	err   error
}

func (e *countingExpirer) DeleteExpired(context.Context) (int64, error) {
	e.calls.Add(1)
	return 3, e.err
}

func TestJanitor_SweepsOnEveryTick(t *testing.T) {
	clk := clock.NewMock()
	exp := &countingExpirer{}
	j := NewJanitor(exp, time.Minute, clk, logging.Nop{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		clk.Add(time.Minute)
		return exp.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestJanitor_KeepsRunningAfterErrors(t *testing.T) {
	clk := clock.NewMock()
	exp := &countingExpirer{err: errors.New("db is down")}
	j := NewJanitor(exp, time.Minute, clk, logging.Nop{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go j.Run(ctx)

	require.Eventually(t, func() bool {
		clk.Add(time.Minute)
		return exp.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, exp.calls.Load(), int32(2))
}
