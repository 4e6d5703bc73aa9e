package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls   atomic.Int32
	evicted int
	err     error
}

func (c *countingSweeper) Sweep(ctx context.Context) (int, error) {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("sweep called without a deadline")
	}
	return c.evicted, c.err
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	_, err := New(&countingSweeper{}, "every now and then")
	require.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	sw := &countingSweeper{evicted: 3}
	s, err := New(sw, "@every 10m")
	require.NoError(t, err)

	assert.Equal(t, 3, s.RunOnce(context.Background()))
	assert.Equal(t, int32(1), sw.calls.Load())
}

func TestRunOnce_LogsErrors(t *testing.T) {
	sw := &countingSweeper{evicted: 1, err: errors.New("store down")}
	s, err := New(sw, "*/10 * * * *")
	require.NoError(t, err)

	assert.Equal(t, 1, s.RunOnce(context.Background()))
}

func TestStart_RunsOnSchedule(t *testing.T) {
	sw := &countingSweeper{}
	s, err := New(sw, "@every 1s")
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return sw.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
