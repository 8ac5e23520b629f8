package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidgrab/vidgrab/internal/media"
)

var (
	testAUD = []byte{0x00, 0x00, 0x00, 0x01, 0x09, 0x10}
	testSPS = []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0x00, 0x1e, 0x96, 0x54, 0x05, 0x01, 0xed, 0x80}
	testPPS = []byte{0x00, 0x00, 0x00, 0x01, 0x68, 0xce, 0x38, 0x80}
	testIDR = []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0x88, 0x84, 0x00, 0x33, 0xff}
	testP   = []byte{0x00, 0x00, 0x00, 0x01, 0x41, 0x9a, 0x02}
)

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestVideoParserSplitsAccessUnits(t *testing.T) {
	p := &videoParser{width: 1280, height: 720}

	stream := concat(testAUD, testSPS, testPPS, testIDR, testAUD, testP)

	// First delivery closes only the keyframe unit; the P frame stays
	// buffered until the next delimiter arrives.
	units := p.Feed(stream)
	require.Len(t, units, 1)
	assert.True(t, p.Sync(units[0]))

	units = p.Feed(testAUD)
	require.Len(t, units, 1)
	assert.False(t, p.Sync(units[0]))

	format, payload, ok := p.Format()
	require.True(t, ok)
	assert.Equal(t, media.MimeVideoAVC, format.Mime)
	assert.Equal(t, 1280, format.Width)
	assert.Equal(t, testSPS[4:], format.SPS)
	assert.Equal(t, testPPS[4:], format.PPS)
	assert.Equal(t, concat(testSPS, testPPS), payload)
}

func TestVideoParserPartialDeliveries(t *testing.T) {
	p := &videoParser{width: 640, height: 480}

	stream := concat(testAUD, testSPS, testPPS, testIDR, testAUD)
	var units [][]byte
	for _, b := range stream {
		units = append(units, p.Feed([]byte{b})...)
	}
	require.Len(t, units, 1)
	assert.Equal(t, concat(testAUD, testSPS, testPPS, testIDR), units[0])
}

func TestVideoParserFormatUnknownWithoutParameterSets(t *testing.T) {
	p := &videoParser{}
	p.Feed(concat(testAUD, testP, testAUD))
	_, _, ok := p.Format()
	assert.False(t, ok)
}

func TestVideoParserFinishFlushesTrailingUnit(t *testing.T) {
	p := &videoParser{}
	units := p.Feed(concat(testAUD, testIDR))
	assert.Empty(t, units)

	units = p.Finish()
	require.Len(t, units, 1)
	assert.Equal(t, concat(testAUD, testIDR), units[0])
	assert.Empty(t, p.Finish())
}

// adtsFrame builds a syntactically valid ADTS frame: AAC-LC, 22050 Hz
// (index 7), one channel, with the given payload.
func adtsFrame(payload []byte) []byte {
	frameLen := 7 + len(payload)
	header := []byte{
		0xFF, 0xF1,
		0x40 | byte(7<<2), // profile AAC-LC, sampling index 7
		0x40 | byte(frameLen>>11),
		byte(frameLen >> 3),
		byte(frameLen&0x07) << 5,
		0xFC,
	}
	return append(header, payload...)
}

func TestADTSParserFramesAndFormat(t *testing.T) {
	p := &adtsParser{}

	frameA := adtsFrame([]byte{0x21, 0x10, 0x05})
	frameB := adtsFrame([]byte{0x21, 0x22})

	units := p.Feed(concat(frameA, frameB))
	require.Len(t, units, 2)
	assert.Equal(t, frameA, units[0])
	assert.Equal(t, frameB, units[1])
	assert.True(t, p.Sync(units[0]))

	format, configBytes, ok := p.Format()
	require.True(t, ok)
	assert.Equal(t, media.MimeAudioAAC, format.Mime)
	assert.Equal(t, 22050, format.SampleRate)
	assert.Equal(t, 1, format.Channels)
	assert.NotEmpty(t, configBytes)
}

func TestADTSParserPartialFrame(t *testing.T) {
	p := &adtsParser{}

	frame := adtsFrame([]byte{0x01, 0x02, 0x03, 0x04})
	units := p.Feed(frame[:5])
	assert.Empty(t, units)

	units = p.Feed(frame[5:])
	require.Len(t, units, 1)
	assert.Equal(t, frame, units[0])
}

func TestADTSParserResyncsOnGarbage(t *testing.T) {
	p := &adtsParser{}

	frame := adtsFrame([]byte{0x42})
	units := p.Feed(concat([]byte{0x00, 0x13, 0x37}, frame))
	require.Len(t, units, 1)
	assert.Equal(t, frame, units[0])
}
