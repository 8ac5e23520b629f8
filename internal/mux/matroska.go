package mux

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/at-wat/ebml-go/webm"

	"github.com/vidgrab/vidgrab/internal/h264"
	"github.com/vidgrab/vidgrab/internal/media"
)

type matroskaTrack struct {
	format    media.Format
	writer    webm.BlockWriteCloser
	sampleNum uint32
}

// syncFile is the write-closer handed to the block writers. Closing the
// last block writer finalizes the segment and closes the underlying
// writer; syncing first makes sure the finalized file reaches disk.
type syncFile struct {
	f *os.File
}

func (s syncFile) Write(p []byte) (int, error) { return s.f.Write(p) }

func (s syncFile) Close() error {
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// matroskaMuxer writes a Matroska container via simple-block writers, one
// per track. The same writer serves .mkv and .webm paths; H.264/AAC in a
// .webm file is tolerated by common players but is not strict WebM.
type matroskaMuxer struct {
	f      *os.File
	logger *slog.Logger

	mu       sync.Mutex
	tracks   []*matroskaTrack
	started  bool
	stopped  bool
	rotation int
}

func newMatroskaMuxer(f *os.File, logger *slog.Logger) *matroskaMuxer {
	return &matroskaMuxer{
		f:      f,
		logger: logger.With("component", "matroska"),
	}
}

func (m *matroskaMuxer) AddTrack(f media.Format) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return 0, fmt.Errorf("cannot add track after start")
	}

	switch f.Mime {
	case media.MimeVideoAVC:
		if len(f.SPS) == 0 || len(f.PPS) == 0 {
			return 0, fmt.Errorf("video format lacks parameter sets")
		}
	case media.MimeAudioAAC:
		if f.SampleRate == 0 || f.Channels == 0 {
			return 0, fmt.Errorf("audio format lacks sample rate or channels")
		}
		if len(f.AudioConfig) == 0 {
			return 0, fmt.Errorf("audio format lacks codec configuration")
		}
	default:
		return 0, fmt.Errorf("unsupported mime %q", f.Mime)
	}

	m.tracks = append(m.tracks, &matroskaTrack{format: f})
	return len(m.tracks) - 1, nil
}

func (m *matroskaMuxer) SetOrientationHint(degrees int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("cannot set orientation after start")
	}
	if degrees%90 != 0 {
		return fmt.Errorf("orientation %d is not a multiple of 90", degrees)
	}
	// Matroska has no rotation metadata element; frames are stored as
	// captured and the hint is only logged.
	m.rotation = degrees
	return nil
}

func (m *matroskaMuxer) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("muxer already started")
	}
	if len(m.tracks) == 0 {
		return fmt.Errorf("no tracks registered")
	}

	entries := make([]webm.TrackEntry, 0, len(m.tracks))
	for i, t := range m.tracks {
		num := uint64(i + 1)
		if t.format.IsVideo() {
			codecPrivate, err := h264.BuildAVCDecoderConfig(t.format.SPS, t.format.PPS)
			if err != nil {
				return fmt.Errorf("track %d: %w", i, err)
			}
			entries = append(entries, webm.TrackEntry{
				Name:            "Video",
				TrackNumber:     num,
				TrackUID:        num,
				CodecID:         "V_MPEG4/ISO/AVC",
				TrackType:       1,
				DefaultDuration: 33333333,
				CodecPrivate:    codecPrivate,
				Video: &webm.Video{
					PixelWidth:  uint64(t.format.Width),
					PixelHeight: uint64(t.format.Height),
				},
			})
		} else {
			frameDurationNs := uint64(1024) * 1_000_000_000 / uint64(t.format.SampleRate)
			entries = append(entries, webm.TrackEntry{
				Name:            "Audio",
				TrackNumber:     num,
				TrackUID:        num,
				CodecID:         "A_AAC",
				TrackType:       2,
				DefaultDuration: frameDurationNs,
				CodecPrivate:    t.format.AudioConfig,
				Audio: &webm.Audio{
					SamplingFrequency: float64(t.format.SampleRate),
					Channels:          uint64(t.format.Channels),
				},
			})
		}
	}

	writers, err := webm.NewSimpleBlockWriter(syncFile{f: m.f}, entries)
	if err != nil {
		return fmt.Errorf("create block writers: %w", err)
	}
	for i, w := range writers {
		m.tracks[i].writer = w
	}

	m.started = true
	m.logger.Debug("Container header written", "tracks", len(m.tracks),
		"rotation", m.rotation)
	return nil
}

func (m *matroskaMuxer) WriteSample(track int, payload []byte, ptsUs int64, flags media.SampleFlags) error {
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
	keyframe := flags.IsSync()

	if t.format.IsVideo() {
		avcc, err := h264.AnnexBToAVCC(payload)
		if err != nil {
			return fmt.Errorf("track %d: %w", track, err)
		}
		if len(avcc) == 0 {
			return nil
		}
		payload = avcc
	} else {
		payload = stripADTSHeader(payload)
		keyframe = true
	}

	// Block timestamps use the default 1ms timecode scale.
	if _, err := t.writer.Write(keyframe, ptsUs/1000, payload); err != nil {
		return fmt.Errorf("write block: %w", err)
	}
	t.sampleNum++
	return nil
}

func (m *matroskaMuxer) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return fmt.Errorf("muxer already stopped")
	}
	m.stopped = true

	var firstErr error
	if m.started {
		// Closing the block writers finalizes the segment.
		for _, t := range m.tracks {
			if err := t.writer.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("close track writer: %w", err)
			}
		}
	} else if err := m.f.Close(); err != nil {
		firstErr = fmt.Errorf("close output: %w", err)
	}

	for i, t := range m.tracks {
		m.logger.Debug("Track finished", "track", i+1, "samples", t.sampleNum)
	}
	return firstErr
}
