package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	calls     atomic.Int32
	olderThan atomic.Int64
	err       error
}

func (f *fakeSweeper) SweepStale(_ context.Context, olderThan time.Duration) (int, error) {
	f.calls.Add(1)
	f.olderThan.Store(int64(olderThan))
	return 3, f.err
}

type fakeArchiver struct {
	calls   atomic.Int32
	idleFor time.Duration
}

func (f *fakeArchiver) ArchiveIdle(_ context.Context, idleFor time.Duration) (int, error) {
	f.calls.Add(1)
	f.idleFor = idleFor
	return 2, nil
}

func TestRunJobsDirectly(t *testing.T) {
	sweeper := &fakeSweeper{}
	archiver := &fakeArchiver{}
	s, err := New(nil, sweeper, archiver, Options{PresenceStale: 2 * time.Minute, IdleArchive: 72 * time.Hour})
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)

	assert.Equal(t, 3, s.SweepPresence(context.Background()))
	assert.Equal(t, int64(2*time.Minute), sweeper.olderThan.Load())
	assert.Equal(t, 2, s.ArchiveIdle(context.Background()))
	assert.Equal(t, 72*time.Hour, archiver.idleFor)

	sweeper.err = errors.New("db down")
	assert.Zero(t, s.SweepPresence(context.Background()))
}

func TestDisabledJobsAreNotScheduled(t *testing.T) {
	s, err := New(nil, &fakeSweeper{}, &fakeArchiver{}, Options{PresenceStale: time.Minute})
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 1)
}

func TestInvalidSchedule(t *testing.T) {
	_, err := New(nil, &fakeSweeper{}, nil, Options{PresenceStale: time.Minute, SweepSpec: "every now and then"})
	assert.Error(t, err)
}

func TestSchedulerRunsSweep(t *testing.T) {
	sweeper := &fakeSweeper{}
	s, err := New(nil, sweeper, nil, Options{PresenceStale: time.Minute, SweepSpec: "@every 1s"})
	require.NoError(t, err)
	s.Start()
	assert.Eventually(t, func() bool { return sweeper.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
