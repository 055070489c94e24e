package flow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct{ ok bool }

func signWith(sig string) SignFunc[string, string] {
	return func(ctx context.Context, trigger string) (string, error) { return sig, nil }
}

func submitOK(ctx context.Context, trigger, signature string) (result, error) {
	return result{ok: true}, nil
}

func wait(t *testing.T, f *Flow[string, string, result]) Snapshot[string, string, result] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := f.Wait(ctx)
	require.NoError(t, err)
	return snap
}

func TestSuccessRunsMutatorsOnce(t *testing.T) {
	var balances, profile atomic.Int32
	var gotTrigger, gotSig string

	f := New(signWith("sig1"), func(ctx context.Context, trigger, signature string) (result, error) {
		gotTrigger, gotSig = trigger, signature
		return result{ok: true}, nil
	}, WithOnSuccess(
		func(context.Context) { balances.Add(1) },
		func(context.Context) { profile.Add(1) },
	))

	require.NoError(t, f.Trigger(context.Background(), "0xDEF"))
	snap := wait(t, f)

	assert.Equal(t, Success, snap.State)
	assert.True(t, snap.IsSuccess())
	assert.True(t, snap.Result.ok)
	assert.Equal(t, "0xDEF", snap.Trigger)
	assert.Equal(t, "sig1", snap.Signature)
	assert.Equal(t, "0xDEF", gotTrigger)
	assert.Equal(t, "sig1", gotSig)
	assert.Equal(t, int32(1), balances.Load())
	assert.Equal(t, int32(1), profile.Load())
}

func TestFailureSkipsMutators(t *testing.T) {
	var refreshed atomic.Int32
	boom := errors.New("503 Error: Service Unavailable")

	f := New(signWith("sig1"), func(ctx context.Context, trigger, signature string) (result, error) {
		return result{}, boom
	}, WithOnSuccess(func(context.Context) { refreshed.Add(1) }))

	require.NoError(t, f.Trigger(context.Background(), "0xDEF"))
	snap := wait(t, f)

	assert.Equal(t, Failure, snap.State)
	assert.True(t, snap.IsError())
	assert.ErrorIs(t, snap.Err, boom)
	assert.Zero(t, refreshed.Load())
}

func TestSigningFailureSkipsRequest(t *testing.T) {
	declined := errors.New("declined")
	var submitted atomic.Bool

	f := New(func(ctx context.Context, trigger string) (string, error) {
		return "", declined
	}, func(ctx context.Context, trigger, signature string) (result, error) {
		submitted.Store(true)
		return result{}, nil
	})

	require.NoError(t, f.Trigger(context.Background(), "0xDEF"))
	snap := wait(t, f)

	assert.Equal(t, Failure, snap.State)
	assert.ErrorIs(t, snap.Err, declined)
	assert.Empty(t, snap.Signature)
	assert.False(t, submitted.Load())
}

func TestTriggerRejectedWhileNotIdle(t *testing.T) {
	release := make(chan struct{})
	f := New(func(ctx context.Context, trigger string) (string, error) {
		<-release
		return "sig1", nil
	}, submitOK)

	require.NoError(t, f.Trigger(context.Background(), "0xDEF"))
	before := f.Snapshot()
	assert.Equal(t, AwaitingSignature, before.State)

	err := f.Trigger(context.Background(), "0x123")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, before, f.Snapshot())

	close(release)
	snap := wait(t, f)
	require.Equal(t, Success, snap.State)

	// terminal states also reject until reset
	assert.ErrorIs(t, f.Trigger(context.Background(), "0x123"), ErrBusy)
	assert.Equal(t, "0xDEF", f.Snapshot().Trigger)
}

func TestResetFromTerminal(t *testing.T) {
	for _, submit := range []SubmitFunc[string, string, result]{
		submitOK,
		func(context.Context, string, string) (result, error) { return result{}, errors.New("nope") },
	} {
		f := New(signWith("sig1"), submit)
		require.NoError(t, f.Trigger(context.Background(), "0xDEF"))
		snap := wait(t, f)
		require.True(t, snap.State.Terminal())

		f.Reset()
		assert.Equal(t, Snapshot[string, string, result]{}, f.Snapshot())
		assert.Equal(t, Idle, f.State())

		// retry is possible
		require.NoError(t, f.Trigger(context.Background(), "0xDEF"))
		wait(t, f)
	}
}

func TestResetDropsLateResponse(t *testing.T) {
	var refreshed atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})

	f := New(signWith("sig1"), func(ctx context.Context, trigger, signature string) (result, error) {
		close(entered)
		<-release
		return result{ok: true}, nil
	}, WithOnSuccess(func(context.Context) { refreshed.Add(1) }))

	require.NoError(t, f.Trigger(context.Background(), "0xDEF"))
	<-entered
	assert.Equal(t, AwaitingServer, f.State())

	f.Reset()
	close(release)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, Idle, f.State())
	assert.Empty(t, f.Snapshot().Signature)
	assert.Zero(t, refreshed.Load())
}

func TestResetCancelsSigning(t *testing.T) {
	cancelled := make(chan struct{})
	f := New(func(ctx context.Context, trigger string) (string, error) {
		<-ctx.Done()
		close(cancelled)
		return "", ctx.Err()
	}, submitOK)

	require.NoError(t, f.Trigger(context.Background(), "0xDEF"))
	f.Reset()

	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("signing was not cancelled")
	}
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, Idle, f.State())
}

func TestResetOnIdleIsNoop(t *testing.T) {
	f := New(signWith("sig1"), submitOK)
	var events atomic.Int32
	f.Subscribe(func(Snapshot[string, string, result]) { events.Add(1) })

	f.Reset()
	assert.Equal(t, Idle, f.State())
	assert.Zero(t, events.Load())
}

func TestMinDuration(t *testing.T) {
	f := New(signWith("sig1"), submitOK, WithMinDuration(50*time.Millisecond))

	start := time.Now()
	require.NoError(t, f.Trigger(context.Background(), "0xDEF"))
	snap := wait(t, f)

	assert.Equal(t, Success, snap.State)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestMinDurationNotAddedToSlowResponse(t *testing.T) {
	var slept time.Duration
	f := New(signWith("sig1"), submitOK, WithMinDuration(500*time.Millisecond))

	now := time.Unix(0, 0)
	f.now = func() time.Time {
		now = now.Add(300 * time.Millisecond)
		return now
	}
	f.sleep = func(ctx context.Context, d time.Duration) error {
		slept += d
		return nil
	}

	require.NoError(t, f.Trigger(context.Background(), "0xDEF"))
	wait(t, f)

	// response took 300ms, so only the remaining 200ms is waited
	assert.Equal(t, 200*time.Millisecond, slept)
}

func TestTimeout(t *testing.T) {
	f := New(signWith("sig1"), func(ctx context.Context, trigger, signature string) (result, error) {
		<-ctx.Done()
		return result{}, ctx.Err()
	}, WithTimeout(20*time.Millisecond))

	require.NoError(t, f.Trigger(context.Background(), "0xDEF"))
	snap := wait(t, f)

	assert.Equal(t, Failure, snap.State)
	assert.ErrorIs(t, snap.Err, context.DeadlineExceeded)
}

func TestSubscribe(t *testing.T) {
	f := New(signWith("sig1"), submitOK)

	var mu sync.Mutex
	var states []State
	unsubscribe := f.Subscribe(func(s Snapshot[string, string, result]) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s.State)
	})

	require.NoError(t, f.Trigger(context.Background(), "0xDEF"))
	wait(t, f)
	unsubscribe()
	unsubscribe()
	f.Reset()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{AwaitingSignature, AwaitingServer, Success}, states)
}

func TestResetNotifiedAfterInFlightChange(t *testing.T) {
	f := New(signWith("sig1"), func(ctx context.Context, trigger, signature string) (result, error) {
		<-ctx.Done()
		return result{}, ctx.Err()
	})

	var mu sync.Mutex
	var states []State
	entered := make(chan struct{})
	f.Subscribe(func(s Snapshot[string, string, result]) {
		if s.State == AwaitingServer {
			close(entered)
			// a slow observer still sees the change before the reset
			time.Sleep(50 * time.Millisecond)
		}
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})

	require.NoError(t, f.Trigger(context.Background(), "0xDEF"))
	<-entered
	f.Reset()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{AwaitingSignature, AwaitingServer, Idle}, states)
	assert.Equal(t, Idle, f.State())
}

func TestWaitOnIdle(t *testing.T) {
	f := New(signWith("sig1"), submitOK)
	snap := wait(t, f)
	assert.Equal(t, Idle, snap.State)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting-server", AwaitingServer.String())
	assert.Equal(t, "state(9)", State(9).String())
	assert.True(t, AwaitingSignature.Pending())
	assert.False(t, Failure.Pending())
}
