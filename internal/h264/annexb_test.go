package h264

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSPS = []byte{0x67, 0x42, 0x00, 0x1e, 0x96, 0x54, 0x05, 0x01, 0xed, 0x80}
	testPPS = []byte{0x68, 0xce, 0x38, 0x80}
	testIDR = []byte{0x65, 0x88, 0x84, 0x00, 0x33, 0xff}
)

func annexB(nalus ...[]byte) []byte {
	var out []byte
	for _, nalu := range nalus {
		out = append(out, 0x00, 0x00, 0x00, 0x01)
		out = append(out, nalu...)
	}
	return out
}

func TestSplitNALUs(t *testing.T) {
	data := annexB(testSPS, testPPS, testIDR)
	nalus := SplitNALUs(data)
	require.Len(t, nalus, 3)
	assert.Equal(t, testSPS, nalus[0])
	assert.Equal(t, testPPS, nalus[1])
	assert.Equal(t, testIDR, nalus[2])
}

func TestSplitNALUsShortStartCode(t *testing.T) {
	data := []byte{0x00, 0x00, 0x01}
	data = append(data, testSPS...)
	data = append(data, 0x00, 0x00, 0x01)
	data = append(data, testPPS...)

	nalus := SplitNALUs(data)
	require.Len(t, nalus, 2)
	assert.Equal(t, testSPS, nalus[0])
	assert.Equal(t, testPPS, nalus[1])
}

func TestSplitNALUsNoStartCode(t *testing.T) {
	assert.Nil(t, SplitNALUs([]byte{0x65, 0x88}))
	assert.Nil(t, SplitNALUs(nil))
}

func TestExtractParameterSets(t *testing.T) {
	sps, pps := ExtractParameterSets(annexB(testSPS, testPPS, testIDR))
	assert.Equal(t, testSPS, sps)
	assert.Equal(t, testPPS, pps)

	sps, pps = ExtractParameterSets(annexB(testIDR))
	assert.Nil(t, sps)
	assert.Nil(t, pps)
}

func TestContainsIDR(t *testing.T) {
	assert.True(t, ContainsIDR(annexB(testSPS, testPPS, testIDR)))
	assert.False(t, ContainsIDR(annexB(testSPS, testPPS)))
}

func TestAnnexBToAVCC(t *testing.T) {
	avcc, err := AnnexBToAVCC(annexB(testSPS, testPPS, testIDR))
	require.NoError(t, err)

	// Parameter sets are dropped; only the IDR slice remains, with a
	// 4-byte length prefix instead of a start code.
	require.Len(t, avcc, 4+len(testIDR))
	length := uint32(avcc[0])<<24 | uint32(avcc[1])<<16 | uint32(avcc[2])<<8 | uint32(avcc[3])
	assert.Equal(t, uint32(len(testIDR)), length)
	assert.Equal(t, testIDR, avcc[4:])
}

func TestAnnexBToAVCCNoStartCode(t *testing.T) {
	_, err := AnnexBToAVCC([]byte{0x65, 0x88, 0x84})
	assert.Error(t, err)
}

func TestPrependParameterSetsAVCC(t *testing.T) {
	au := []byte{0x00, 0x00, 0x00, 0x02, 0x65, 0x88}
	out := PrependParameterSetsAVCC(au, testSPS, testPPS)

	require.Len(t, out, 8+len(testSPS)+len(testPPS)+len(au))
	spsLen := uint32(out[0])<<24 | uint32(out[1])<<16 | uint32(out[2])<<8 | uint32(out[3])
	assert.Equal(t, uint32(len(testSPS)), spsLen)
	assert.Equal(t, testSPS, out[4:4+len(testSPS)])

	// Missing parameter sets leave the access unit untouched.
	assert.Equal(t, au, PrependParameterSetsAVCC(au, nil, testPPS))
}

func TestBuildAVCDecoderConfig(t *testing.T) {
	avcc, err := BuildAVCDecoderConfig(testSPS, testPPS)
	require.NoError(t, err)

	require.True(t, len(avcc) > 11)
	assert.Equal(t, byte(0x01), avcc[0])
	assert.Equal(t, testSPS[1], avcc[1]) // profile
	assert.Equal(t, testSPS[3], avcc[3]) // level

	_, err = BuildAVCDecoderConfig(nil, testPPS)
	assert.Error(t, err)
}

func TestNALUnitType(t *testing.T) {
	assert.Equal(t, NALUnitTypeSPS, Type(testSPS))
	assert.Equal(t, NALUnitTypePPS, Type(testPPS))
	assert.Equal(t, NALUnitTypeIDR, Type(testIDR))
}
