package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTouch_CreatesNewSessionOnFirstHit(t *testing.T) {
	k := New(time.Second, time.Minute)

	sess, created := k.Touch("client-a", 100)
	require.True(t, created)
	assert.True(t, strings.HasPrefix(sess.ID, "sess_"))
	assert.Equal(t, 1, sess.Hits)
	assert.Equal(t, int64(100), sess.TotalTokens)
}

func TestTouch_ReusesSessionWithinTTL(t *testing.T) {
	k := New(time.Minute, time.Hour)

	first, _ := k.Touch("client-b", 10)
	second, created := k.Touch("client-b", 20)

	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Hits)
	assert.Equal(t, int64(30), second.TotalTokens)
}

func TestTouch_DistinctKeysGetDistinctSessions(t *testing.T) {
	k := New(time.Minute, time.Hour)

	a, _ := k.Touch("client-a", 1)
	b, _ := k.Touch("client-b", 1)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestTouch_TTLGrowsWithHitsAndTokens(t *testing.T) {
	k := New(time.Second, time.Hour)

	sess, _ := k.Touch("client-c", 0)
	initialTTL := sess.TTLCurrent

	for i := 0; i < 5; i++ {
		sess, _ = k.Touch("client-c", 1000)
	}

	assert.Greater(t, sess.TTLCurrent, initialTTL)
	assert.LessOrEqual(t, sess.TTLCurrent, time.Hour)
}

func TestTouch_TTLNeverBelowMin(t *testing.T) {
	k := New(5*time.Second, time.Hour)

	sess, _ := k.Touch("client-d", 0)
	assert.GreaterOrEqual(t, sess.TTLCurrent, 5*time.Second)
}

func TestSweep_RemovesExpiredSessions(t *testing.T) {
	k := New(time.Nanosecond, time.Nanosecond)

	k.Touch("client-e", 0)
	time.Sleep(time.Millisecond)

	removed := k.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, k.Len())
}

func TestTouch_ExpiredSessionIsReplacedNotReused(t *testing.T) {
	k := New(time.Nanosecond, time.Nanosecond)

	first, _ := k.Touch("client-f", 0)
	time.Sleep(time.Millisecond)

	second, created := k.Touch("client-f", 0)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRunCleanup_SweepsUntilContextCanceled(t *testing.T) {
	k := New(time.Millisecond, time.Millisecond)
	k.Touch("client-g", 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		k.RunCleanup(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunCleanup did not return after context cancellation")
	}

	assert.Equal(t, 0, k.Len())
}
