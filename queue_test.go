package framewatch

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"sync"
	"testing"
	"time"
)

// testFrame returns a small frame with the given sequence number
func testFrame(seq uint64) *Frame {
	return NewFrame(gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3), seq)
}

func TestFrameQueueFIFO(t *testing.T) {

	q := NewFrameQueue(3)
	defer q.Close()

	for i := uint64(1); i <= 3; i++ {
		require.True(t, q.Push(testFrame(i)))
	}

	assert.Equal(t, 3, q.Len())

	for i := uint64(1); i <= 3; i++ {
		f, state := q.Poll(context.Background(), time.Second)
		require.Equal(t, PollReceived, state)
		assert.Equal(t, i, f.Seq)
		f.Close()
	}
}

func TestFrameQueueDropOldest(t *testing.T) {

	q := NewFrameQueue(2)
	defer q.Close()

	for i := uint64(1); i <= 5; i++ {
		require.True(t, q.Push(testFrame(i)))
	}

	assert.Equal(t, 2, q.Len())

	stats := q.Stats()
	assert.Equal(t, uint64(5), stats.Pushed)
	assert.Equal(t, uint64(3), stats.Dropped)

	f, state := q.TryPop()
	require.Equal(t, PollReceived, state)
	assert.Equal(t, uint64(4), f.Seq)
	f.Close()

	f, state = q.TryPop()
	require.Equal(t, PollReceived, state)
	assert.Equal(t, uint64(5), f.Seq)
	f.Close()

	assert.Equal(t, uint64(2), q.Stats().Delivered)
}

func TestFrameQueueSingleSlot(t *testing.T) {

	q := NewFrameQueue(1)
	defer q.Close()

	q.Push(testFrame(1))
	q.Push(testFrame(2))

	f, state := q.TryPop()
	require.Equal(t, PollReceived, state)
	assert.Equal(t, uint64(2), f.Seq)
	f.Close()
}

func TestFrameQueueTimeout(t *testing.T) {

	q := NewFrameQueue(2)
	defer q.Close()

	start := time.Now()
	f, state := q.Poll(context.Background(), 20*time.Millisecond)

	assert.Nil(t, f)
	assert.Equal(t, PollTimeout, state)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestFrameQueueWakesConsumer(t *testing.T) {

	q := NewFrameQueue(2)
	defer q.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Push(testFrame(7))
	}()

	f, state := q.Poll(context.Background(), 2*time.Second)
	require.Equal(t, PollReceived, state)
	assert.Equal(t, uint64(7), f.Seq)
	f.Close()
}

func TestFrameQueueClose(t *testing.T) {

	q := NewFrameQueue(2)
	q.Push(testFrame(1))

	var wg sync.WaitGroup
	wg.Add(1)

	waiter := NewFrameQueue(1)

	go func() {
		defer wg.Done()
		_, state := waiter.Poll(context.Background(), 5*time.Second)
		assert.Equal(t, PollClosed, state)
	}()

	time.Sleep(10 * time.Millisecond)
	waiter.Close()
	wg.Wait()

	q.Close()
	assert.Equal(t, 0, q.Len())

	_, state := q.Poll(context.Background(), time.Second)
	assert.Equal(t, PollClosed, state)

	assert.False(t, q.Push(testFrame(2)))

	// closing twice is harmless
	q.Close()
}

func TestFrameQueueSeal(t *testing.T) {

	q := NewFrameQueue(3)
	defer q.Close()

	q.Push(testFrame(1))
	q.Push(testFrame(2))
	q.Seal()

	assert.False(t, q.Push(testFrame(3)))

	for _, want := range []uint64{1, 2} {
		f, state := q.Poll(context.Background(), time.Second)
		require.Equal(t, PollReceived, state)
		assert.Equal(t, want, f.Seq)
		f.Close()
	}

	_, state := q.Poll(context.Background(), time.Second)
	assert.Equal(t, PollClosed, state)
}

func TestFrameQueueCancelled(t *testing.T) {

	q := NewFrameQueue(1)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, state := q.Poll(ctx, time.Second)
	assert.Equal(t, PollCancelled, state)
}

func TestPollStateString(t *testing.T) {
	assert.Equal(t, "received", PollReceived.String())
	assert.Equal(t, "timeout", PollTimeout.String())
	assert.Equal(t, "closed", PollClosed.String())
	assert.Equal(t, "cancelled", PollCancelled.String())
	assert.Equal(t, "unknown", PollState(99).String())
}
