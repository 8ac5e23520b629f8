package record

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/vidgrab/vidgrab/config"
	"github.com/vidgrab/vidgrab/internal/capture"
	"github.com/vidgrab/vidgrab/internal/codec"
	"github.com/vidgrab/vidgrab/internal/mux"
	"github.com/vidgrab/vidgrab/internal/pcm"
	"github.com/vidgrab/vidgrab/internal/util"
)

// Session is one recording: options plus the identifier that tags its log
// lines. All resource acquisition happens in Run.
type Session struct {
	opts   Options
	id     string
	logger *slog.Logger
}

// NewSession creates a session from validated options.
func NewSession(opts Options) (*Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	return &Session{
		opts:   opts,
		id:     id,
		logger: util.GetLogger().With("session", id[:8]),
	}, nil
}

// Run records until the time limit or a stop signal. Setup failures abort
// before the loop starts; a signal is not an error and leaves a normally
// finalized file truncated at the cancellation point.
func (s *Session) Run(ctx context.Context) error {
	bounds, err := capture.PrimaryDisplayBounds()
	if err != nil {
		return fmt.Errorf("detecting display: %w", err)
	}
	capW, capH := bounds.Dx(), bounds.Dy()

	outW, outH := s.opts.Width, s.opts.Height
	if !s.opts.SizeSpecified {
		outW, outH = capW, capH
	}
	if s.opts.Rotate {
		outW, outH = outH, outW
	}

	s.logger.Debug("Session configuration",
		"output", s.opts.OutputPath,
		"display", fmt.Sprintf("%dx%d", capW, capH),
		"video", fmt.Sprintf("%dx%d", outW, outH),
		"bit_rate", s.opts.BitRate,
		"time_limit_sec", s.opts.TimeLimit,
		"rotate", s.opts.Rotate,
		"audio", s.opts.Audio)

	// The output file is created before any encoder spins up, so an
	// unwritable path fails fast instead of as a late muxer error.
	muxer, err := mux.ForPath(s.opts.OutputPath, s.logger)
	if err != nil {
		return err
	}
	if s.opts.Rotate {
		if err := muxer.SetOrientationHint(90); err != nil {
			muxer.Stop()
			return err
		}
	}

	videoEnc, err := s.startVideoEncoder(capW, capH, outW, outH)
	if err != nil {
		muxer.Stop()
		return err
	}

	// Audio setup failure is not fatal: the session downgrades to
	// video-only. The expected track count is fixed here, before the loop
	// starts; the registrar is never reconfigured mid-session.
	audioEnc, source := s.setupAudio()
	expected := 1
	if audioEnc != nil {
		expected = 2
	}

	display := capture.NewDisplay(videoEnc, bounds, config.FrameRate(), s.logger)
	if err := display.Start(ctx); err != nil {
		videoEnc.Stop()
		if audioEnc != nil {
			source.Stop()
			audioEnc.Stop()
		}
		muxer.Stop()
		return err
	}

	var flag stopFlag
	detach := watchSignals(&flag, s.logger)
	defer detach()
	go func() {
		<-ctx.Done()
		flag.Set()
	}()

	p := &pipeline{
		mux:       muxer,
		registrar: newRegistrar(muxer, expected, s.logger),
		logger:    s.logger,
		video:     &stream{kind: kindVideo, enc: videoEnc},
		stop:      &flag,
		deadline:  time.Now().Add(time.Duration(s.opts.TimeLimit) * time.Second),
	}
	if audioEnc != nil {
		p.audio = &stream{kind: kindAudio, enc: audioEnc}
		p.source = source
		p.pcmChunk = make([]byte, config.AudioSamplesPerFrame*config.AudioChannels*2)
	}

	started := time.Now()
	loopErr := p.run()

	// Teardown order matters: the capture producer first, then the
	// encoders, the muxer last, so no sample can arrive after the
	// container is finalized.
	display.Stop()
	videoEnc.Stop()
	if audioEnc != nil {
		source.Stop()
		audioEnc.Stop()
	}
	if err := muxer.Stop(); err != nil && loopErr == nil {
		loopErr = err
	}

	if loopErr != nil {
		// The partial file is left on disk for inspection.
		return loopErr
	}

	audioSamples := 0
	if p.audio != nil {
		audioSamples = p.audio.samples
	}
	s.logger.Info("Recording finished",
		"file", s.opts.OutputPath,
		"duration", time.Since(started).Round(time.Millisecond).String(),
		"video_samples", p.video.samples,
		"audio_samples", audioSamples)

	s.notify()
	return nil
}

// startVideoEncoder starts the H.264 encoder, retrying once at the
// fallback resolution when the requested size is rejected and the user did
// not ask for an explicit size.
func (s *Session) startVideoEncoder(capW, capH, outW, outH int) (codec.Encoder, error) {
	cfg := codec.VideoConfig{
		FFmpegPath:        config.FFmpegPath(),
		CaptureWidth:      capW,
		CaptureHeight:     capH,
		Width:             outW,
		Height:            outH,
		FrameRate:         config.FrameRate(),
		BitRate:           s.opts.BitRate,
		IFrameIntervalSec: config.IFrameIntervalSec(),
	}

	enc := codec.NewVideoEncoder(cfg, s.logger)
	err := enc.Start()
	if err == nil {
		return enc, nil
	}
	if s.opts.SizeSpecified {
		return nil, fmt.Errorf("starting video encoder: %w", err)
	}

	fbW, fbH := config.FallbackWidth, config.FallbackHeight
	if outH > outW { // portrait
		fbW, fbH = fbH, fbW
	}
	if fbW == outW && fbH == outH {
		return nil, fmt.Errorf("starting video encoder: %w", err)
	}

	s.logger.Warn("Video encoder rejected size, retrying at fallback",
		"error", err,
		"requested", fmt.Sprintf("%dx%d", outW, outH),
		"fallback", fmt.Sprintf("%dx%d", fbW, fbH))

	cfg.Width, cfg.Height = fbW, fbH
	enc = codec.NewVideoEncoder(cfg, s.logger)
	if err := enc.Start(); err != nil {
		return nil, fmt.Errorf("starting video encoder at fallback size: %w", err)
	}
	return enc, nil
}

// setupAudio starts the AAC encoder and a PCM source. Encoder failure
// downgrades the session to video-only; an unavailable microphone falls
// back to recording silence so the container still carries the requested
// audio track.
func (s *Session) setupAudio() (codec.Encoder, pcm.Source) {
	if !s.opts.Audio {
		return nil, nil
	}

	enc := codec.NewAudioEncoder(codec.AudioConfig{
		FFmpegPath:      config.FFmpegPath(),
		SampleRate:      config.AudioSampleRate,
		Channels:        config.AudioChannels,
		BitRate:         config.AudioBitRate(),
		SamplesPerFrame: config.AudioSamplesPerFrame,
	}, s.logger)
	if err := enc.Start(); err != nil {
		s.logger.Warn("Audio encoder unavailable, recording video only", "error", err)
		return nil, nil
	}

	var source pcm.Source = pcm.NewMic(pcm.MicConfig{
		FFmpegPath:      config.FFmpegPath(),
		Device:          config.AudioDevice(),
		SampleRate:      config.AudioSampleRate,
		Channels:        config.AudioChannels,
		QueueFrames:     32,
		SamplesPerFrame: config.AudioSamplesPerFrame,
	}, s.logger)
	if err := source.Start(); err != nil {
		s.logger.Warn("Microphone unavailable, recording silence", "error", err)
		source = pcm.NewSilence(config.AudioSampleRate, config.AudioChannels)
		source.Start()
	}
	return enc, source
}

// notify runs the configured media-index hook with the finished file path.
// Failures are logged, never fatal; the recording already succeeded.
func (s *Session) notify() {
	command := config.NotifyCommand()
	if command == "" {
		return
	}
	cmd := exec.Command(command, s.opts.OutputPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		s.logger.Warn("Notify command failed", "command", command,
			"error", err, "output", string(out))
	}
}
