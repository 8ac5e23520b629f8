// Package mux writes encoded video and audio samples into a single
// container file. Two backends exist: fragmented MP4 and Matroska, selected
// by the output path's extension.
package mux

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vidgrab/vidgrab/internal/media"
)

// Muxer is the container writer contract. AddTrack may only be called
// before Start; WriteSample only after. Stop finalizes the file and must be
// called exactly once.
type Muxer interface {
	// AddTrack registers a stream and returns its track index.
	AddTrack(f media.Format) (int, error)
	// SetOrientationHint records the display rotation in degrees. It must
	// be called before Start.
	SetOrientationHint(degrees int) error
	Start() error
	// WriteSample appends one encoded sample. Video payloads are Annex-B;
	// audio payloads are ADTS frames. Config-flagged buffers are rejected:
	// codec configuration travels through AddTrack, never the sample path.
	WriteSample(track int, payload []byte, ptsUs int64, flags media.SampleFlags) error
	Stop() error
}

// ForPath creates the muxer matching the output path's extension and
// creates the file eagerly, so an unwritable path fails before any capture
// work starts.
func ForPath(path string, logger *slog.Logger) (Muxer, error) {
	ext := strings.ToLower(filepath.Ext(path))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0664)
	if err != nil {
		return nil, fmt.Errorf("unable to open %q: %w", path, err)
	}

	switch ext {
	case ".mp4", ".m4v":
		return newFMP4Muxer(f, logger), nil
	case ".mkv", ".webm":
		return newMatroskaMuxer(f, logger), nil
	default:
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("unsupported container extension %q (want .mp4, .m4v, .mkv or .webm)", ext)
	}
}

func checkSample(started bool, track, tracks int, flags media.SampleFlags) error {
	if !started {
		return fmt.Errorf("muxer not started")
	}
	if track < 0 || track >= tracks {
		return fmt.Errorf("unknown track %d", track)
	}
	if flags.IsConfig() {
		return fmt.Errorf("config buffer on track %d must not reach the container", track)
	}
	return nil
}
