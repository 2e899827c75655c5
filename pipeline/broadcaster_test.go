package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/crackwatch/model"
)

func TestSlowViewerDoesNotStallOthers(t *testing.T) {
	b := NewBroadcaster(2, 5)

	fast, err := b.Subscribe()
	require.NoError(t, err)
	slow, err := b.Subscribe()
	require.NoError(t, err)

	received := 0
	for i := 0; i < 100; i++ {
		begin := time.Now()
		b.Publish([]byte{byte(i)})
		assert.Less(t, time.Since(begin), 100*time.Millisecond)

		frame := <-fast.Frames()
		assert.Equal(t, byte(i), frame[0])
		received++
	}
	assert.Equal(t, 100, received)
	assert.Equal(t, 1, b.Viewers())

	// The slow viewer keeps what it buffered, then sees the end
	buffered := 0
	for range slow.Frames() {
		buffered++
	}
	assert.Equal(t, 2, buffered)
}

func TestMissCounterResetsOnDelivery(t *testing.T) {
	b := NewBroadcaster(1, 3)
	sub, err := b.Subscribe()
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		b.Publish([]byte{1})
		b.Publish([]byte{2})
		<-sub.Frames()
	}
	assert.Equal(t, 1, b.Viewers())
}

func TestCloseEndsSubscriptions(t *testing.T) {
	b := NewBroadcaster(1, 1)
	sub, err := b.Subscribe()
	require.NoError(t, err)

	b.Close()
	_, ok := <-sub.Frames()
	assert.False(t, ok)

	delivered, missed := b.Publish([]byte{1})
	assert.Zero(t, delivered)
	assert.Zero(t, missed)

	_, err = b.Subscribe()
	assert.True(t, errors.Is(err, model.ErrNotRunning))

	// Closing twice and unsubscribing after close are harmless
	b.Close()
	sub.Close()
}

func TestUnsubscribe(t *testing.T) {
	b := NewBroadcaster(1, 1)
	sub, err := b.Subscribe()
	require.NoError(t, err)

	sub.Close()
	sub.Close()
	assert.Zero(t, b.Viewers())
}
