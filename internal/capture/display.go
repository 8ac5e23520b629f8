package capture

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/kbinani/screenshot"

	"github.com/vidgrab/vidgrab/internal/codec"
	"github.com/vidgrab/vidgrab/internal/util"
)

// Producer pushes raw frames into a video encoder's input at the display's
// pace. The recording loop never talks to it directly; it only configures
// and starts it before the loop begins.
type Producer interface {
	Start(ctx context.Context) error
	Stop()
}

// PrimaryDisplayBounds returns the pixel rectangle of the main display.
func PrimaryDisplayBounds() (image.Rectangle, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return image.Rectangle{}, fmt.Errorf("no active display")
	}
	return screenshot.GetDisplayBounds(0), nil
}

// Display grabs the primary display at a fixed rate and feeds frames into
// the encoder's input buffers. Frames are dropped when the encoder has no
// input buffer free; the display is never blocked on the encoder.
type Display struct {
	enc       codec.Encoder
	bounds    image.Rectangle
	frameRate int
	logger    *slog.Logger

	cancel  context.CancelFunc
	done    chan struct{}
	dropped int
}

// NewDisplay creates a display frame producer for the given capture bounds.
func NewDisplay(enc codec.Encoder, bounds image.Rectangle, frameRate int, logger *slog.Logger) *Display {
	return &Display{
		enc:       enc,
		bounds:    bounds,
		frameRate: frameRate,
		logger:    logger.With("component", "display"),
	}
}

// Start begins the grab loop. The encoder must be started first.
func (d *Display) Start(ctx context.Context) error {
	if d.cancel != nil {
		return fmt.Errorf("display producer already started")
	}

	// Fail before the loop starts if the display cannot be grabbed at all.
	if _, err := screenshot.CaptureRect(d.bounds); err != nil {
		return fmt.Errorf("capturing display: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	go d.run(ctx)
	d.logger.Debug("Display producer started",
		"bounds", d.bounds.String(), "frame_rate", d.frameRate)
	return nil
}

func (d *Display) run(ctx context.Context) {
	defer close(d.done)

	interval := time.Second / time.Duration(d.frameRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		index, ok, err := d.enc.DequeueInput(interval / 2)
		if err != nil {
			if err != codec.ErrStopped {
				d.logger.Warn("Display producer stopping", "error", err)
			}
			return
		}
		if !ok {
			// Encoder is behind; skip this frame.
			d.dropped++
			continue
		}

		img, err := screenshot.CaptureRect(d.bounds)
		if err != nil {
			d.logger.Warn("Display grab failed", "error", err)
			// Hand the buffer back as a zero-length write.
			d.enc.QueueInput(index, 0, util.NowMicros())
			continue
		}

		bufs, err := d.enc.InputBuffers()
		if err != nil {
			return
		}
		n := copy(bufs[index], img.Pix)
		if err := d.enc.QueueInput(index, n, util.NowMicros()); err != nil {
			if err != codec.ErrStopped {
				d.logger.Warn("Display producer stopping", "error", err)
			}
			return
		}
	}
}

// Stop halts the grab loop and waits for it to exit.
func (d *Display) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	<-d.done
	d.cancel = nil
	if d.dropped > 0 {
		d.logger.Debug("Display producer stopped", "dropped_frames", d.dropped)
	}
}
