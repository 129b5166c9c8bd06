package scheduler_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/predictstats/internal/domain"
	"github.com/alejandrodnm/predictstats/internal/scheduler"
)

func okRun(calls *atomic.Int32) scheduler.RunFunc {
	return func(context.Context) domain.RunResult {
		n := calls.Add(1)
		return domain.RunResult{RunID: fmt.Sprintf("run-%d", n), Status: domain.RunOK}
	}
}

func TestTrigger_RecordsLast(t *testing.T) {
	var calls atomic.Int32
	r := scheduler.New(context.Background(), okRun(&calls), 0)

	_, ok := r.Last()
	assert.False(t, ok)

	res, err := r.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RunOK, res.Status)

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, res.RunID, last.RunID)
	assert.False(t, r.Running())
}

func TestTrigger_RejectsOverlap(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	r := scheduler.New(context.Background(), func(context.Context) domain.RunResult {
		close(started)
		<-release
		return domain.RunResult{Status: domain.RunOK}
	}, 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := r.Trigger(context.Background())
		assert.NoError(t, err)
	}()
	<-started

	assert.True(t, r.Running())
	_, err := r.Trigger(context.Background())
	assert.ErrorIs(t, err, scheduler.ErrBusy)

	close(release)
	<-done
	assert.False(t, r.Running())
}

func TestTrigger_AppliesTimeout(t *testing.T) {
	r := scheduler.New(context.Background(), func(ctx context.Context) domain.RunResult {
		<-ctx.Done()
		return domain.RunResult{Status: domain.RunFailed, Error: ctx.Err().Error()}
	}, 20*time.Millisecond)

	res, err := r.Trigger(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, res.Status)
	assert.Contains(t, res.Error, "deadline")
}

func TestSchedule_InvalidSpec(t *testing.T) {
	r := scheduler.New(context.Background(), okRun(new(atomic.Int32)), 0)
	_, err := r.Schedule("every now and then")
	assert.Error(t, err)
}

func TestSchedule_RunsPeriodically(t *testing.T) {
	var calls atomic.Int32
	r := scheduler.New(context.Background(), okRun(&calls), 0)
	_, err := r.Schedule("@every 1s")
	require.NoError(t, err)

	r.Start()
	assert.False(t, r.Next().IsZero())
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	r.Stop()

	_, ok := r.Last()
	assert.True(t, ok)
}
