package watchdog

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civita/internal/platform/clock"
)

func TestExpiresExactlyOnceAfterQuietPeriod(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	var fired atomic.Int32

	dog := New(30*time.Minute, nil, func() { fired.Add(1) }, WithClock(fake))
	dog.Arm()
	require.True(t, dog.Active())

	fake.Advance(29 * time.Minute)
	assert.Equal(t, int32(0), fired.Load())

	fake.Advance(time.Minute)
	assert.Equal(t, int32(1), fired.Load())
	assert.False(t, dog.Active())

	// No second expiry, however long we wait.
	fake.Advance(2 * time.Hour)
	assert.Equal(t, int32(1), fired.Load())
}

func TestTouchJustBeforeDeadlineResetsFullTimeout(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	var fired atomic.Int32

	dog := New(30*time.Minute, nil, func() { fired.Add(1) }, WithClock(fake))
	dog.Arm()

	// Activity at 29:59 suppresses the pending expiry.
	fake.Advance(29*time.Minute + 59*time.Second)
	dog.Touch()
	fake.Advance(time.Second)
	assert.Equal(t, int32(0), fired.Load())

	// The countdown restarted in full.
	fake.Advance(29*time.Minute + 58*time.Second)
	assert.Equal(t, int32(0), fired.Load())
	fake.Advance(time.Second)
	assert.Equal(t, int32(1), fired.Load())
}

func TestStopPreventsExpiry(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	var fired atomic.Int32

	dog := New(20*time.Minute, nil, func() { fired.Add(1) }, WithClock(fake))
	dog.Arm()
	dog.Stop()

	fake.Advance(time.Hour)
	assert.Equal(t, int32(0), fired.Load())
	assert.False(t, dog.Active())
}

func TestTouchAfterStopIsNoop(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	var fired atomic.Int32

	dog := New(20*time.Minute, nil, func() { fired.Add(1) }, WithClock(fake))
	dog.Arm()
	dog.Stop()
	dog.Touch()

	fake.Advance(time.Hour)
	assert.Equal(t, int32(0), fired.Load())
}

func TestArmRespectsPredicate(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	var fired atomic.Int32
	armed := false

	dog := New(20*time.Minute, func() bool { return armed }, func() { fired.Add(1) }, WithClock(fake))

	dog.Arm()
	assert.False(t, dog.Active(), "precondition false, must not arm")
	fake.Advance(time.Hour)
	assert.Equal(t, int32(0), fired.Load())

	armed = true
	dog.Arm()
	require.True(t, dog.Active())
	fake.Advance(20 * time.Minute)
	assert.Equal(t, int32(1), fired.Load())
}

func TestTouchDisarmsWhenPredicateTurnsFalse(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	var fired atomic.Int32
	armed := true

	dog := New(20*time.Minute, func() bool { return armed }, func() { fired.Add(1) }, WithClock(fake))
	dog.Arm()

	armed = false
	dog.Touch()
	assert.False(t, dog.Active())

	fake.Advance(time.Hour)
	assert.Equal(t, int32(0), fired.Load())
}

func TestRearmRestartsCountdown(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	var fired atomic.Int32

	dog := New(30*time.Minute, nil, func() { fired.Add(1) }, WithClock(fake))
	dog.Arm()
	fake.Advance(15 * time.Minute)
	dog.Arm()

	fake.Advance(15 * time.Minute)
	assert.Equal(t, int32(0), fired.Load())
	fake.Advance(15 * time.Minute)
	assert.Equal(t, int32(1), fired.Load())
}
