package mux

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4/seekablebuffer"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"

	"github.com/vidgrab/vidgrab/internal/h264"
	"github.com/vidgrab/vidgrab/internal/media"
)

const videoTimeScale = 90000

// scaleToTimescale converts a microsecond timestamp into track timescale
// units.
func scaleToTimescale(timestampUs int64, timeScale uint32) int64 {
	if timestampUs <= 0 {
		return 0
	}
	return (timestampUs * int64(timeScale)) / 1_000_000
}

// stripADTSHeader removes the ADTS header if present; MP4 samples carry raw
// AAC.
func stripADTSHeader(data []byte) []byte {
	if len(data) < 7 {
		return data
	}
	if data[0] == 0xFF && data[1]&0xF0 == 0xF0 {
		headerLen := 7
		if data[1]&0x01 == 0 { // CRC present
			headerLen = 9
		}
		if len(data) > headerLen {
			return data[headerLen:]
		}
	}
	return data
}

type fmp4Track struct {
	id        int
	codec     mp4.Codec
	timeScale uint32
	isVideo   bool
	sps       []byte
	pps       []byte

	lastDTS   int64
	sampleNum uint32
}

// fmp4Muxer writes a fragmented MP4: one init segment at Start, then one
// moof+mdat part per sample. Fragmented output needs no trailer, so a
// recording cut short by a signal is still playable.
type fmp4Muxer struct {
	f      *os.File
	logger *slog.Logger

	mu       sync.Mutex
	tracks   []*fmp4Track
	started  bool
	stopped  bool
	rotation int
	seq      uint32
}

func newFMP4Muxer(f *os.File, logger *slog.Logger) *fmp4Muxer {
	return &fmp4Muxer{
		f:      f,
		logger: logger.With("component", "fmp4"),
		seq:    1,
	}
}

func (m *fmp4Muxer) AddTrack(f media.Format) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return 0, fmt.Errorf("cannot add track after start")
	}

	t := &fmp4Track{id: len(m.tracks) + 1}
	switch f.Mime {
	case media.MimeVideoAVC:
		if len(f.SPS) == 0 || len(f.PPS) == 0 {
			return 0, fmt.Errorf("video format lacks parameter sets")
		}
		t.isVideo = true
		t.timeScale = videoTimeScale
		t.sps = f.SPS
		t.pps = f.PPS
		t.codec = &mp4.CodecH264{SPS: f.SPS, PPS: f.PPS}
	case media.MimeAudioAAC:
		if f.SampleRate == 0 || f.Channels == 0 {
			return 0, fmt.Errorf("audio format lacks sample rate or channels")
		}
		t.timeScale = uint32(f.SampleRate)
		t.codec = &mp4.CodecMPEG4Audio{
			Config: mpeg4audio.AudioSpecificConfig{
				Type:         mpeg4audio.ObjectTypeAACLC,
				SampleRate:   f.SampleRate,
				ChannelCount: f.Channels,
			},
		}
	default:
		return 0, fmt.Errorf("unsupported mime %q", f.Mime)
	}

	m.tracks = append(m.tracks, t)
	return t.id - 1, nil
}

func (m *fmp4Muxer) SetOrientationHint(degrees int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("cannot set orientation after start")
	}
	if degrees%90 != 0 {
		return fmt.Errorf("orientation %d is not a multiple of 90", degrees)
	}
	m.rotation = degrees
	return nil
}

func (m *fmp4Muxer) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("muxer already started")
	}
	if len(m.tracks) == 0 {
		return fmt.Errorf("no tracks registered")
	}

	init := &fmp4.Init{}
	for _, t := range m.tracks {
		init.Tracks = append(init.Tracks, &fmp4.InitTrack{
			ID:        t.id,
			TimeScale: t.timeScale,
			Codec:     t.codec,
		})
	}

	var buf seekablebuffer.Buffer
	if err := init.Marshal(&buf); err != nil {
		return fmt.Errorf("marshal init segment: %w", err)
	}
	if _, err := m.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write init segment: %w", err)
	}

	m.started = true
	m.logger.Debug("Init segment written", "tracks", len(m.tracks),
		"size", buf.Len(), "rotation", m.rotation)
	return nil
}

func (m *fmp4Muxer) WriteSample(track int, payload []byte, ptsUs int64, flags media.SampleFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return fmt.Errorf("muxer stopped")
	}
	if err := checkSample(m.started, track, len(m.tracks), flags); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}

	t := m.tracks[track]
	sample := &fmp4.Sample{IsNonSyncSample: !flags.IsSync()}

	if t.isVideo {
		avcc, err := h264.AnnexBToAVCC(payload)
		if err != nil {
			return fmt.Errorf("track %d: %w", track, err)
		}
		if len(avcc) == 0 {
			return nil
		}
		if flags.IsSync() {
			avcc = h264.PrependParameterSetsAVCC(avcc, t.sps, t.pps)
		}
		sample.Payload = avcc
	} else {
		sample.Payload = stripADTSHeader(payload)
		sample.IsNonSyncSample = false
	}

	dts := scaleToTimescale(ptsUs, t.timeScale)
	if t.sampleNum > 0 {
		if d := dts - t.lastDTS; d > 0 {
			sample.Duration = uint32(d)
		}
	}
	if sample.Duration == 0 {
		if t.isVideo {
			sample.Duration = videoTimeScale / 30
		} else {
			sample.Duration = mpeg4audio.SamplesPerAccessUnit
		}
	}

	part := &fmp4.Part{
		SequenceNumber: m.seq,
		Tracks: []*fmp4.PartTrack{{
			ID:       t.id,
			BaseTime: uint64(dts),
			Samples:  []*fmp4.Sample{sample},
		}},
	}

	var buf seekablebuffer.Buffer
	if err := part.Marshal(&buf); err != nil {
		return fmt.Errorf("marshal part: %w", err)
	}
	if _, err := m.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write part: %w", err)
	}

	t.lastDTS = dts
	t.sampleNum++
	m.seq++
	return nil
}

func (m *fmp4Muxer) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return fmt.Errorf("muxer already stopped")
	}
	m.stopped = true

	if err := m.f.Sync(); err != nil {
		m.f.Close()
		return fmt.Errorf("sync output: %w", err)
	}
	if err := m.f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	for _, t := range m.tracks {
		m.logger.Debug("Track finished", "track", t.id, "samples", t.sampleNum)
	}
	return nil
}
