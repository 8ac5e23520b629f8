package pcm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePushPop(t *testing.T) {
	q := newQueue(16)

	q.push([]byte{1, 2, 3, 4})
	buf := make([]byte, 8)
	n := q.pop(buf)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf[:n])

	assert.Equal(t, 0, q.pop(buf))
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	q := newQueue(4)

	q.push([]byte{1, 2, 3, 4})
	q.push([]byte{5, 6})

	buf := make([]byte, 8)
	n := q.pop(buf)
	require.Equal(t, 4, n)
	assert.Equal(t, []byte{3, 4, 5, 6}, buf[:n])
	assert.Equal(t, 2, q.droppedBytes())
}

func TestSilencePacing(t *testing.T) {
	s := NewSilence(22050, 1)
	require.NoError(t, s.Start())

	// Immediately after start nearly nothing is available.
	buf := make([]byte, 4096)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Less(t, n, 512)

	time.Sleep(50 * time.Millisecond)
	n, err = s.Read(buf)
	require.NoError(t, err)
	// ~50ms at 22050Hz mono s16 is ~2205 bytes.
	assert.Greater(t, n, 1500)
	assert.Zero(t, n%2)

	require.NoError(t, s.Stop())
}
