package watchdog_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"game-station/internal/watchdog"
	"game-station/internal/watchdog/watchdogtest"
)

type expiryRecorder struct {
	mu  sync.Mutex
	got []watchdog.Expiry
}

func (r *expiryRecorder) record(e watchdog.Expiry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e)
}

func (r *expiryRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestTimer_ExpiresOncePerCycle(t *testing.T) {
	clock := watchdogtest.NewClock()
	rec := &expiryRecorder{}
	timer := watchdog.New("post-game", 30*time.Second, rec.record, watchdog.WithClock(clock))

	timer.Start()
	clock.Advance(29 * time.Second)
	assert.Equal(t, 0, rec.count())
	assert.Equal(t, time.Second, timer.Remaining())

	clock.Advance(time.Second)
	require.Equal(t, 1, rec.count())
	assert.Equal(t, "post-game", rec.got[0].Name)
	assert.False(t, timer.Armed())
	assert.Equal(t, time.Duration(0), timer.Remaining())

	// No repeat until explicitly restarted.
	clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, rec.count())

	timer.Restart()
	clock.Advance(30 * time.Second)
	assert.Equal(t, 2, rec.count())
}

func TestTimer_StartIsIdempotent(t *testing.T) {
	clock := watchdogtest.NewClock()
	rec := &expiryRecorder{}
	timer := watchdog.New("reset", 10*time.Second, rec.record, watchdog.WithClock(clock))

	timer.Start()
	clock.Advance(6 * time.Second)
	timer.Start()
	assert.Equal(t, 4*time.Second, timer.Remaining())
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(4 * time.Second)
	assert.Equal(t, 1, rec.count())
}

func TestTimer_ResetRestartsFromFullInterval(t *testing.T) {
	clock := watchdogtest.NewClock()
	rec := &expiryRecorder{}
	timer := watchdog.New("reset", 10*time.Second, rec.record, watchdog.WithClock(clock))

	timer.Start()
	clock.Advance(9 * time.Second)
	timer.Reset()
	assert.Equal(t, 10*time.Second, timer.Remaining())

	clock.Advance(9 * time.Second)
	assert.Equal(t, 0, rec.count())
	clock.Advance(time.Second)
	assert.Equal(t, 1, rec.count())
}

func TestTimer_ResetDoesNotArm(t *testing.T) {
	clock := watchdogtest.NewClock()
	rec := &expiryRecorder{}
	timer := watchdog.New("pre-game", 30*time.Second, rec.record, watchdog.WithClock(clock))

	timer.Reset()
	assert.False(t, timer.Armed())
	assert.Equal(t, 30*time.Second, timer.Remaining())

	clock.Advance(time.Minute)
	assert.Equal(t, 0, rec.count())
}

func TestTimer_StopFreezesRemaining(t *testing.T) {
	clock := watchdogtest.NewClock()
	rec := &expiryRecorder{}
	timer := watchdog.New("auth", 60*time.Second, rec.record, watchdog.WithClock(clock))

	timer.Start()
	clock.Advance(20 * time.Second)
	timer.Stop()
	clock.Advance(20 * time.Second)

	assert.Equal(t, 40*time.Second, timer.Remaining())
	assert.Equal(t, 0, rec.count())
	assert.Equal(t, 0, clock.Pending())
}

func TestTimer_CurrentTracksEpoch(t *testing.T) {
	clock := watchdogtest.NewClock()
	rec := &expiryRecorder{}
	timer := watchdog.New("auth", time.Second, rec.record, watchdog.WithClock(clock))

	timer.Start()
	clock.Advance(time.Second)
	require.Equal(t, 1, rec.count())
	expiry := rec.got[0]
	assert.True(t, timer.Current(expiry.Epoch))

	// Anything that touches the countdown after delivery makes the expiry stale.
	timer.Restart()
	assert.False(t, timer.Current(expiry.Epoch))
}

func TestTimer_RealClockDeliversAsynchronously(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fired := make(chan watchdog.Expiry, 1)
	timer := watchdog.New("settle", 10*time.Millisecond, func(e watchdog.Expiry) { fired <- e })
	timer.Start()

	select {
	case e := <-fired:
		assert.Equal(t, "settle", e.Name)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for expiry")
	}
}
