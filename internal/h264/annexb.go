package h264

import (
	"bytes"
	"fmt"
)

var (
	// Standard Annex-B start codes
	startCode3 = []byte{0x00, 0x00, 0x01}
	startCode4 = []byte{0x00, 0x00, 0x00, 0x01}
)

// NALUnitType represents H.264 NAL unit types.
type NALUnitType uint8

const (
	NALUnitTypeSlice NALUnitType = 1
	NALUnitTypeIDR   NALUnitType = 5
	NALUnitTypeSEI   NALUnitType = 6
	NALUnitTypeSPS   NALUnitType = 7
	NALUnitTypePPS   NALUnitType = 8
	NALUnitTypeAUD   NALUnitType = 9
)

// Type extracts the NAL unit type from a raw NAL payload (no start code).
func Type(nalu []byte) NALUnitType {
	if len(nalu) == 0 {
		return 0
	}
	return NALUnitType(nalu[0] & 0x1F)
}

// HasStartCode checks if data begins with an Annex-B start code.
func HasStartCode(data []byte) bool {
	return bytes.HasPrefix(data, startCode4) || bytes.HasPrefix(data, startCode3)
}

// findStartCode returns the offset and length of the next start code in
// data, or (-1, 0) if none remains.
func findStartCode(data []byte) (int, int) {
	for i := 0; i+3 <= len(data); i++ {
		if data[i] != 0x00 || data[i+1] != 0x00 {
			continue
		}
		if i+4 <= len(data) && data[i+2] == 0x00 && data[i+3] == 0x01 {
			return i, 4
		}
		if data[i+2] == 0x01 {
			return i, 3
		}
	}
	return -1, 0
}

// SplitNALUs splits Annex-B data into raw NAL unit payloads, start codes
// stripped. Data before the first start code is discarded.
func SplitNALUs(data []byte) [][]byte {
	var nalus [][]byte

	pos, sc := findStartCode(data)
	if pos == -1 {
		return nil
	}
	data = data[pos+sc:]

	for len(data) > 0 {
		next, nextSC := findStartCode(data)
		if next == -1 {
			if len(data) > 0 {
				nalus = append(nalus, data)
			}
			break
		}
		if next > 0 {
			nalus = append(nalus, data[:next])
		}
		data = data[next+nextSC:]
	}
	return nalus
}

// ExtractParameterSets returns the first SPS and PPS NAL payloads found in
// Annex-B data, without start codes. Either may be nil.
func ExtractParameterSets(data []byte) (sps, pps []byte) {
	for _, nalu := range SplitNALUs(data) {
		switch Type(nalu) {
		case NALUnitTypeSPS:
			if sps == nil {
				sps = append([]byte{}, nalu...)
			}
		case NALUnitTypePPS:
			if pps == nil {
				pps = append([]byte{}, nalu...)
			}
		}
	}
	return sps, pps
}

// ContainsIDR reports whether Annex-B data carries an IDR slice.
func ContainsIDR(data []byte) bool {
	for _, nalu := range SplitNALUs(data) {
		if Type(nalu) == NALUnitTypeIDR {
			return true
		}
	}
	return false
}

// AnnexBToAVCC converts Annex-B data (start codes) to AVCC (4-byte big-endian
// length prefixes) as required inside MP4 and Matroska containers. SPS, PPS
// and AUD units are dropped; parameter sets travel in the track's codec
// configuration instead.
func AnnexBToAVCC(data []byte) ([]byte, error) {
	nalus := SplitNALUs(data)
	if len(nalus) == 0 {
		return nil, fmt.Errorf("no start code in %d bytes", len(data))
	}

	out := make([]byte, 0, len(data))
	for _, nalu := range nalus {
		switch Type(nalu) {
		case NALUnitTypeSPS, NALUnitTypePPS, NALUnitTypeAUD:
			continue
		}
		length := uint32(len(nalu))
		out = append(out,
			byte(length>>24),
			byte(length>>16),
			byte(length>>8),
			byte(length),
		)
		out = append(out, nalu...)
	}
	return out, nil
}

// PrependParameterSetsAVCC prepends length-prefixed SPS/PPS to an AVCC access
// unit. sps and pps are raw NAL payloads. Used on keyframes to improve
// decoder robustness.
func PrependParameterSetsAVCC(avcc, sps, pps []byte) []byte {
	if len(avcc) == 0 || len(sps) == 0 || len(pps) == 0 {
		return avcc
	}
	out := make([]byte, 0, 8+len(sps)+len(pps)+len(avcc))
	for _, ps := range [][]byte{sps, pps} {
		length := uint32(len(ps))
		out = append(out,
			byte(length>>24),
			byte(length>>16),
			byte(length>>8),
			byte(length),
		)
		out = append(out, ps...)
	}
	return append(out, avcc...)
}

// BuildAVCDecoderConfig builds an AVCDecoderConfigurationRecord (the avcC
// box payload) from raw SPS/PPS, for use as Matroska CodecPrivate.
func BuildAVCDecoderConfig(sps, pps []byte) ([]byte, error) {
	if len(sps) < 4 || len(pps) == 0 {
		return nil, fmt.Errorf("parameter sets too short (sps=%d pps=%d)", len(sps), len(pps))
	}

	out := make([]byte, 0, 11+len(sps)+len(pps))
	out = append(out,
		0x01,   // configurationVersion
		sps[1], // AVCProfileIndication
		sps[2], // profile_compatibility
		sps[3], // AVCLevelIndication
		0xFF,   // 4-byte NALU lengths
		0xE1,   // one SPS
	)
	out = append(out, byte(len(sps)>>8), byte(len(sps)))
	out = append(out, sps...)
	out = append(out, 0x01) // one PPS
	out = append(out, byte(len(pps)>>8), byte(len(pps)))
	out = append(out, pps...)
	return out, nil
}
