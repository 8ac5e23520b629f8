package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrarSingleTrack(t *testing.T) {
	m := &fakeMuxer{}
	r := newRegistrar(m, 1, testLogger())

	assert.False(t, r.Started())

	track, err := r.FormatKnown(kindVideo, videoTestFormat())
	require.NoError(t, err)
	assert.Equal(t, 0, track)
	assert.True(t, r.Started())
	assert.Equal(t, 1, m.startCalls)
}

func TestRegistrarTwoTracksEitherOrder(t *testing.T) {
	orders := [][]streamKind{
		{kindVideo, kindAudio},
		{kindAudio, kindVideo},
	}

	for _, order := range orders {
		m := &fakeMuxer{}
		r := newRegistrar(m, 2, testLogger())

		_, err := r.FormatKnown(order[0], videoTestFormat())
		require.NoError(t, err)
		assert.False(t, r.Started(), "muxer must not start after the first track")
		assert.Zero(t, m.startCalls)

		_, err = r.FormatKnown(order[1], audioTestFormat())
		require.NoError(t, err)
		assert.True(t, r.Started())
		assert.Equal(t, 1, m.startCalls)
		assert.Equal(t, 2, m.tracksAtStart)
	}
}

func TestRegistrarRejectsDuplicateStream(t *testing.T) {
	m := &fakeMuxer{}
	r := newRegistrar(m, 2, testLogger())

	_, err := r.FormatKnown(kindVideo, videoTestFormat())
	require.NoError(t, err)

	_, err = r.FormatKnown(kindVideo, videoTestFormat())
	require.Error(t, err)
	assert.Zero(t, m.startCalls)
}
