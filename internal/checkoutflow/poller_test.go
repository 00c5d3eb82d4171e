package checkoutflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
)

const testRef = "BK_1700000000000_abcdef012345"

func newTestPoller(t *testing.T, backend *fakeBackend, store PendingStore) (*Poller, *clockz.FakeClock) {
	t.Helper()
	clock := clockz.NewFakeClock()
	poller, err := NewPoller(PollerParams{
		Client: backend,
		Store:  store,
		Clock:  clock,
	})
	require.NoError(t, err)
	return poller, clock
}

// advancePolls moves the clock one poll interval at a time and waits for each poll
// to begin before moving again.
func advancePolls(t *testing.T, clock *clockz.FakeClock, p *Poller, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		want := p.Ticks() + 1
		clock.Advance(DefaultPollInterval)
		clock.BlockUntilReady()
		require.Eventually(t, func() bool { return p.Ticks() >= want }, 2*time.Second, time.Millisecond, "poll %d never ran", want)
	}
}

func openWindow(t *testing.T) (*fakeWindow, PresentationHandle) {
	t.Helper()
	opener := &fakeOpener{}
	redirect, _ := NewRedirectPresenter(&fakeNavigator{})
	presenter, _ := NewPopupPresenter(opener, Screen{Width: 1280, Height: 800}, redirect)
	handle, err := presenter.Present(context.Background(), "https://checkout.example.test/"+testRef)
	require.NoError(t, err)
	return opener.current(), handle
}

func waitPoller(t *testing.T, p *Poller) (PollState, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.Wait(ctx)
}

func TestPollerTimesOutAfterTickCap(t *testing.T) {
	backend := &fakeBackend{}
	store := NewMemoryStore()
	poller, clock := newTestPoller(t, backend, store)
	window, handle := openWindow(t)

	require.NoError(t, poller.Start(context.Background(), testRef, handle))
	ref, _ := store.Load()
	assert.Equal(t, testRef, ref)
	assert.Equal(t, PollPolling, poller.Outcome())

	advancePolls(t, clock, poller, DefaultMaxPollTicks)

	state, err := waitPoller(t, poller)
	require.NoError(t, err)
	assert.Equal(t, PollTimedOut, state)
	assert.Equal(t, DefaultMaxPollTicks, poller.Ticks())
	assert.Equal(t, DefaultMaxPollTicks, backend.calls())
	assert.Equal(t, 1, window.closes())
	ref, _ = store.Load()
	assert.Empty(t, ref)

	assert.False(t, clock.HasWaiters(), "timer must stop at the cap")
	clock.Advance(DefaultPollInterval)
	clock.BlockUntilReady()
	assert.Equal(t, DefaultMaxPollTicks, backend.calls())
}

func TestPollerCompletesAndClosesPopup(t *testing.T) {
	backend := &fakeBackend{statuses: []string{StatusPending, StatusPending, StatusCompleted}}
	store := NewMemoryStore()
	poller, clock := newTestPoller(t, backend, store)
	window, handle := openWindow(t)

	require.NoError(t, poller.Start(context.Background(), testRef, handle))
	advancePolls(t, clock, poller, 3)

	state, err := waitPoller(t, poller)
	require.NoError(t, err)
	assert.Equal(t, PollResolvedSuccess, state)
	assert.Equal(t, 3, backend.calls())
	assert.Equal(t, 1, window.closes())
	ref, _ := store.Load()
	assert.Empty(t, ref)
}

func TestPollerFailedStatusStops(t *testing.T) {
	backend := &fakeBackend{statuses: []string{StatusFailed}}
	store := NewMemoryStore()
	poller, clock := newTestPoller(t, backend, store)
	window, handle := openWindow(t)

	require.NoError(t, poller.Start(context.Background(), testRef, handle))
	advancePolls(t, clock, poller, 1)

	state, err := waitPoller(t, poller)
	require.NoError(t, err)
	assert.Equal(t, PollResolvedFailure, state)
	assert.Equal(t, 1, window.closes())
}

func TestPollerPopupClosedWhilePendingResolvesFailure(t *testing.T) {
	backend := &fakeBackend{statuses: []string{StatusPending}}
	store := NewMemoryStore()
	poller, clock := newTestPoller(t, backend, store)
	window, handle := openWindow(t)

	require.NoError(t, poller.Start(context.Background(), testRef, handle))
	advancePolls(t, clock, poller, 1)
	require.Eventually(t, func() bool { return backend.calls() == 1 }, time.Second, time.Millisecond)
	window.dismiss()
	advancePolls(t, clock, poller, 1)

	state, err := waitPoller(t, poller)
	require.NoError(t, err)
	assert.Equal(t, PollResolvedFailure, state)
	assert.Equal(t, 2, backend.calls(), "one regular verify and one final verify")
	assert.Equal(t, 0, window.closes())
	ref, _ := store.Load()
	assert.Empty(t, ref)
}

func TestPollerPopupClosedAfterPaymentResolvesSuccess(t *testing.T) {
	backend := &fakeBackend{statuses: []string{StatusCompleted}}
	poller, clock := newTestPoller(t, backend, NewMemoryStore())
	window, handle := openWindow(t)

	require.NoError(t, poller.Start(context.Background(), testRef, handle))
	window.dismiss()
	advancePolls(t, clock, poller, 1)

	state, err := waitPoller(t, poller)
	require.NoError(t, err)
	assert.Equal(t, PollResolvedSuccess, state)
}

func TestPollerTreatsVerifyErrorsAsPending(t *testing.T) {
	backend := &fakeBackend{verifyErr: errors.New("connection refused")}
	poller, clock := newTestPoller(t, backend, NewMemoryStore())
	_, handle := openWindow(t)

	require.NoError(t, poller.Start(context.Background(), testRef, handle))
	advancePolls(t, clock, poller, 5)
	require.Eventually(t, func() bool { return backend.calls() == 5 }, time.Second, time.Millisecond)
	assert.Equal(t, PollPolling, poller.Outcome())

	backend.mu.Lock()
	backend.verifyErr = nil
	backend.statuses = []string{StatusCompleted}
	backend.mu.Unlock()
	advancePolls(t, clock, poller, 1)

	state, err := waitPoller(t, poller)
	require.NoError(t, err)
	assert.Equal(t, PollResolvedSuccess, state)
	assert.Equal(t, 6, poller.Ticks())
}

func TestPollerCancelKeepsPendingReference(t *testing.T) {
	backend := &fakeBackend{}
	store := NewMemoryStore()
	poller, clock := newTestPoller(t, backend, store)
	window, handle := openWindow(t)

	require.NoError(t, poller.Start(context.Background(), testRef, handle))
	advancePolls(t, clock, poller, 1)
	poller.Cancel()

	state, err := waitPoller(t, poller)
	require.ErrorIs(t, err, ErrPollerCancelled)
	assert.Equal(t, PollPolling, state)
	assert.Equal(t, 0, window.closes())
	ref, _ := store.Load()
	assert.Equal(t, testRef, ref)
}

func TestPollerCancelBeforeStartNeverPolls(t *testing.T) {
	backend := &fakeBackend{statuses: []string{StatusCompleted}}
	store := NewMemoryStore()
	poller, clock := newTestPoller(t, backend, store)

	poller.Cancel()
	err := poller.Start(context.Background(), testRef, nil)
	require.ErrorIs(t, err, ErrPollerCancelled)
	assert.Equal(t, PollIdle, poller.Outcome())
	assert.False(t, clock.HasWaiters(), "no timer may be armed")

	clock.Advance(DefaultPollInterval)
	clock.BlockUntilReady()
	assert.Equal(t, 0, backend.calls())
	assert.Equal(t, 0, poller.Ticks())
	ref, _ := store.Load()
	assert.Empty(t, ref)

	_, err = waitPoller(t, poller)
	require.ErrorIs(t, err, ErrPollerCancelled)
}

func TestPollerStartsOnce(t *testing.T) {
	poller, _ := newTestPoller(t, &fakeBackend{}, NewMemoryStore())
	require.NoError(t, poller.Start(context.Background(), testRef, nil))
	require.ErrorIs(t, poller.Start(context.Background(), testRef, nil), ErrPollerStarted)
	poller.Cancel()
}

func TestPollerSurvivesStoreFailures(t *testing.T) {
	backend := &fakeBackend{statuses: []string{StatusCompleted}}
	poller, clock := newTestPoller(t, backend, failingStore{})

	require.NoError(t, poller.Start(context.Background(), testRef, nil))
	advancePolls(t, clock, poller, 1)

	state, err := waitPoller(t, poller)
	require.NoError(t, err)
	assert.Equal(t, PollResolvedSuccess, state)
}

func TestPollerWaitBeforeStart(t *testing.T) {
	poller, _ := newTestPoller(t, &fakeBackend{}, nil)
	state, err := poller.Wait(context.Background())
	require.Error(t, err)
	assert.Equal(t, PollIdle, state)
}

func TestNewPollerRequiresClient(t *testing.T) {
	_, err := NewPoller(PollerParams{})
	require.Error(t, err)
}

func TestResume(t *testing.T) {
	t.Run("nothing pending", func(t *testing.T) {
		backend := &fakeBackend{}
		ref, state, err := Resume(context.Background(), backend, NewMemoryStore())
		require.NoError(t, err)
		assert.Empty(t, ref)
		assert.Equal(t, PollIdle, state)
		assert.Equal(t, 0, backend.calls())
	})

	t.Run("completed", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Save(testRef))
		ref, state, err := Resume(context.Background(), &fakeBackend{statuses: []string{StatusCompleted}}, store)
		require.NoError(t, err)
		assert.Equal(t, testRef, ref)
		assert.Equal(t, PollResolvedSuccess, state)
		left, _ := store.Load()
		assert.Empty(t, left)
	})

	t.Run("still pending counts as failure", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Save(testRef))
		_, state, err := Resume(context.Background(), &fakeBackend{}, store)
		require.NoError(t, err)
		assert.Equal(t, PollResolvedFailure, state)
	})

	t.Run("verify error clears and reports", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Save(testRef))
		_, state, err := Resume(context.Background(), &fakeBackend{verifyErr: errors.New("offline")}, store)
		require.Error(t, err)
		assert.Equal(t, PollResolvedFailure, state)
		left, _ := store.Load()
		assert.Empty(t, left)
	})
}
