// Package record drives one recording session: it owns the pipeline loop
// that polls both encoders, reconciles timestamps, registers container
// tracks and forwards samples to the muxer until a signal or the time limit
// stops it.
package record

import (
	"fmt"

	"github.com/vidgrab/vidgrab/config"
)

// Options is the validated session configuration.
type Options struct {
	OutputPath string

	// Width and Height are the requested video size. Zero means the
	// display's native resolution; SizeSpecified records whether the user
	// asked for an explicit size, which disables the resolution fallback.
	Width         int
	Height        int
	SizeSpecified bool

	BitRate   int // bits per second
	TimeLimit int // seconds
	Rotate    bool
	Audio     bool
	Verbose   bool
}

// Validate checks argument bounds. Failures here map to exit code 2.
func (o *Options) Validate() error {
	if o.OutputPath == "" {
		return fmt.Errorf("output path must not be empty")
	}
	if o.BitRate < config.MinBitRate || o.BitRate > config.MaxBitRate {
		return fmt.Errorf("bit rate %d outside acceptable range [%d, %d]",
			o.BitRate, config.MinBitRate, config.MaxBitRate)
	}
	if o.TimeLimit < 1 || o.TimeLimit > config.MaxTimeLimitSec {
		return fmt.Errorf("time limit %ds outside acceptable range [1, %d]",
			o.TimeLimit, config.MaxTimeLimitSec)
	}
	if o.SizeSpecified && (o.Width <= 0 || o.Height <= 0) {
		return fmt.Errorf("invalid size %dx%d", o.Width, o.Height)
	}
	return nil
}
