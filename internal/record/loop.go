package record

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/vidgrab/vidgrab/internal/codec"
	"github.com/vidgrab/vidgrab/internal/mux"
	"github.com/vidgrab/vidgrab/internal/pcm"
	"github.com/vidgrab/vidgrab/internal/util"
)

// pollTimeout bounds every dequeue call, so the loop re-checks the stop
// flag and deadline at least this often even when no output is pending.
const pollTimeout = 20 * time.Millisecond

// stream is one encoder's loop-side state: its output buffer table and,
// once the format announcement arrived, its container track.
type stream struct {
	kind streamKind
	enc  codec.Encoder

	buffers    [][]byte
	track      int
	registered bool
	samples    int

	// pending holds a dequeued data buffer that arrived before the other
	// track registered. It stays dequeued (never dropped) and is written
	// the moment the muxer starts.
	pending *codec.OutputBuffer
}

// pipeline is the single-owner state of one running session. It is driven
// by exactly one goroutine; the encoders compress asynchronously and are
// only polled from here.
type pipeline struct {
	mux       mux.Muxer
	registrar *registrar
	rec       reconciler
	logger    *slog.Logger

	video *stream
	audio *stream // nil when the session is video-only

	source   pcm.Source
	pcmChunk []byte

	stop     *stopFlag
	deadline time.Time
}

// run drives both encoders until the stop flag or the deadline fires. Both
// are checked before any blocking call, so cancellation latency is bounded
// by one iteration of bounded-timeout dequeues.
func (p *pipeline) run() error {
	for {
		if p.stop.IsSet() {
			p.logger.Debug("Stop requested, ending recording")
			return nil
		}
		if !time.Now().Before(p.deadline) {
			p.logger.Info("Time limit reached")
			return nil
		}

		if p.audio != nil {
			if err := p.feedAudio(); err != nil {
				return err
			}
		}
		if err := p.drain(p.video); err != nil {
			return err
		}
		if p.audio != nil {
			if err := p.drain(p.audio); err != nil {
				return err
			}
		}
	}
}

// feedAudio moves one PCM chunk from the source into the audio encoder.
// Capture is best-effort per iteration: no data or no free input buffer
// just skips the step, it never blocks the loop.
func (p *pipeline) feedAudio() error {
	n, err := p.source.Read(p.pcmChunk)
	if err != nil {
		return fmt.Errorf("reading audio source: %w", err)
	}
	if n == 0 {
		return nil
	}

	index, ok, err := p.audio.enc.DequeueInput(pollTimeout)
	if err != nil {
		return fmt.Errorf("audio encoder input: %w", err)
	}
	if !ok {
		// Encoder is behind; this chunk is lost.
		return nil
	}

	bufs, err := p.audio.enc.InputBuffers()
	if err != nil {
		return fmt.Errorf("audio encoder input buffers: %w", err)
	}
	n = copy(bufs[index], p.pcmChunk[:n])
	if err := p.audio.enc.QueueInput(index, n, util.NowMicros()); err != nil {
		return fmt.Errorf("queueing audio input: %w", err)
	}
	return nil
}

// drain handles one output dequeue on a stream: transient conditions are
// absorbed here, data is reconciled and forwarded, protocol violations and
// muxer failures abort the session.
func (p *pipeline) drain(s *stream) error {
	if s.pending != nil {
		if !p.registrar.Started() {
			// Still waiting on the other track; the encoder keeps
			// buffering internally until the held sample is flushed.
			return nil
		}
		out := *s.pending
		s.pending = nil
		if err := p.write(s, out); err != nil {
			return err
		}
	}

	out, event, err := s.enc.DequeueOutput(pollTimeout)
	if err != nil {
		return fmt.Errorf("%s encoder: %w", s.kind, err)
	}

	switch event {
	case codec.EventTryAgain:
		return nil

	case codec.EventFormatChanged:
		format, err := s.enc.OutputFormat()
		if err != nil {
			return fmt.Errorf("%s encoder format: %w", s.kind, err)
		}
		track, err := p.registrar.FormatKnown(s.kind, format)
		if err != nil {
			return err
		}
		s.track = track
		s.registered = true
		return nil

	case codec.EventBuffersChanged:
		s.buffers, err = s.enc.OutputBuffers()
		if err != nil {
			return fmt.Errorf("%s encoder buffers: %w", s.kind, err)
		}
		return nil
	}

	return p.forward(s, out)
}

// forward routes one dequeued buffer: config buffers are dropped, data
// before the stream's own registration is a protocol violation, and data
// arriving before the muxer started is held back rather than written.
func (p *pipeline) forward(s *stream, out codec.OutputBuffer) error {
	if out.Flags.IsConfig() {
		// Configuration bytes were already consumed through the format
		// announcement; they must never appear as a sample.
		p.logger.Debug("Ignoring config buffer", "stream", s.kind.String(),
			"size", out.Size)
		return s.enc.ReleaseOutput(out.Index)
	}

	if out.Size > 0 {
		if !s.registered {
			s.enc.ReleaseOutput(out.Index)
			return fmt.Errorf("%s encoder produced data before announcing its format", s.kind)
		}
		if !p.registrar.Started() {
			s.pending = &out
			return nil
		}
	}
	return p.write(s, out)
}

// write reconciles one data buffer's timestamp, hands it to the muxer and
// releases it.
func (p *pipeline) write(s *stream, out codec.OutputBuffer) error {
	defer s.enc.ReleaseOutput(out.Index)

	if out.Size > 0 {
		if s.buffers == nil {
			s.buffers, _ = s.enc.OutputBuffers()
		}
		if out.Index < 0 || out.Index >= len(s.buffers) ||
			out.Offset < 0 || out.Size < 0 ||
			out.Offset+out.Size > len(s.buffers[out.Index]) {
			return fmt.Errorf("%s encoder returned invalid buffer window [%d:%d] in slot %d",
				s.kind, out.Offset, out.Offset+out.Size, out.Index)
		}
		payload := s.buffers[out.Index][out.Offset : out.Offset+out.Size]

		var pts int64
		if s.kind == kindVideo {
			pts = p.rec.Video(out.PTS)
		} else {
			pts = p.rec.Audio(out.PTS)
		}

		if err := p.mux.WriteSample(s.track, payload, pts, out.Flags); err != nil {
			return fmt.Errorf("writing %s sample: %w", s.kind, err)
		}
		s.samples++
	}

	if out.Flags.IsEndOfStream() {
		// A live capture source is not expected to end its stream; only
		// the deadline or a signal stops the session.
		p.logger.Warn("Unexpected end of stream, continuing",
			"stream", s.kind.String())
	}
	return nil
}
