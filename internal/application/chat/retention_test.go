package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appchat "github.com/tracefold/anonymizer/internal/application/chat"
	"github.com/tracefold/anonymizer/pkg/errors"
)

type fakeLocker struct {
	acquired bool
	lockErr  error
	unlocks  int
	tryCalls int
}

func (l *fakeLocker) TryLock(_ context.Context) (bool, error) {
	l.tryCalls++
	return l.acquired, l.lockErr
}

func (l *fakeLocker) Unlock(_ context.Context) error {
	l.unlocks++
	return nil
}

func TestPurgeOnceRemovesExpiredLogs(t *testing.T) {
	repo := newFakeRepo()
	repo.purgeRows = 42
	purger := appchat.NewPurger(repo, nil, appchat.WithRetention(30*24*time.Hour))

	removed, err := purger.PurgeOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(42), removed)
	require.Len(t, repo.purged, 1)
	assert.WithinDuration(t, time.Now().UTC().Add(-30*24*time.Hour), repo.purged[0], time.Minute)
}

func TestPurgeOnceSkipsWhenLockHeldElsewhere(t *testing.T) {
	repo := newFakeRepo()
	locker := &fakeLocker{acquired: false}
	purger := appchat.NewPurger(repo, nil, appchat.WithLocker(locker))

	removed, err := purger.PurgeOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Empty(t, repo.purged)
	assert.Zero(t, locker.unlocks)
}

func TestPurgeOnceReleasesLockAfterPurge(t *testing.T) {
	repo := newFakeRepo()
	locker := &fakeLocker{acquired: true}
	purger := appchat.NewPurger(repo, nil, appchat.WithLocker(locker))

	_, err := purger.PurgeOnce(context.Background())

	require.NoError(t, err)
	assert.Len(t, repo.purged, 1)
	assert.Equal(t, 1, locker.unlocks)
}

func TestPurgeOnceLockFailureIsTypedError(t *testing.T) {
	repo := newFakeRepo()
	locker := &fakeLocker{lockErr: errors.New(errors.ErrCodeCacheError, "redis down")}
	purger := appchat.NewPurger(repo, nil, appchat.WithLocker(locker))

	_, err := purger.PurgeOnce(context.Background())

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeExternalService))
	assert.Empty(t, repo.purged)
}

func TestPurgerRunStopsOnCancel(t *testing.T) {
	repo := newFakeRepo()
	purger := appchat.NewPurger(repo, nil, appchat.WithPurgeInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- purger.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return repo.purgeCount() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("purger did not stop")
	}
}
