package record

import (
	"fmt"
	"log/slog"

	"github.com/vidgrab/vidgrab/internal/media"
	"github.com/vidgrab/vidgrab/internal/mux"
)

// streamKind identifies which encoder a format announcement came from.
type streamKind int

const (
	kindVideo streamKind = iota
	kindAudio
)

func (k streamKind) String() string {
	if k == kindVideo {
		return "video"
	}
	return "audio"
}

// registrar decides when enough format information exists to start the
// muxer. The expected track count is fixed at construction and never
// changes mid-session; the muxer is started exactly once, the instant the
// last expected track registers.
type registrar struct {
	mux      mux.Muxer
	expected int
	logger   *slog.Logger

	tracks  map[streamKind]int
	started bool
}

func newRegistrar(m mux.Muxer, expected int, logger *slog.Logger) *registrar {
	return &registrar{
		mux:      m,
		expected: expected,
		logger:   logger,
		tracks:   make(map[streamKind]int),
	}
}

// FormatKnown registers one stream's format and returns its track index.
// A second announcement for the same stream means the encoder broke its
// contract; that is fatal, recovery would mask corruption.
func (r *registrar) FormatKnown(kind streamKind, f media.Format) (int, error) {
	if _, dup := r.tracks[kind]; dup {
		return 0, fmt.Errorf("%s encoder announced its format twice", kind)
	}

	track, err := r.mux.AddTrack(f)
	if err != nil {
		return 0, fmt.Errorf("adding %s track: %w", kind, err)
	}
	r.tracks[kind] = track
	r.logger.Debug("Track registered", "stream", kind.String(), "track", track,
		"registered", len(r.tracks), "expected", r.expected)

	if len(r.tracks) == r.expected {
		if err := r.mux.Start(); err != nil {
			return 0, fmt.Errorf("starting muxer: %w", err)
		}
		r.started = true
		r.logger.Debug("Muxer started")
	}
	return track, nil
}

func (r *registrar) Started() bool { return r.started }
