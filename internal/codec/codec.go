package codec

import (
	"errors"
	"time"

	"github.com/vidgrab/vidgrab/internal/media"
)

// Event is the outcome of an output dequeue, mirroring the hardware-codec
// convention: the format announcement always precedes the first data buffer,
// and the local buffer table must be refreshed after EventBuffersChanged.
type Event int

const (
	// EventBuffer means the returned OutputBuffer holds data.
	EventBuffer Event = iota
	// EventTryAgain means no output was available within the timeout.
	EventTryAgain
	// EventFormatChanged means the output format is now known; read it with
	// OutputFormat before dequeuing further.
	EventFormatChanged
	// EventBuffersChanged means the output buffer table was invalidated;
	// re-fetch it with OutputBuffers before touching any index.
	EventBuffersChanged
)

// ErrStopped is returned by queue operations after the encoder stopped or
// its backing process exited.
var ErrStopped = errors.New("encoder stopped")

// OutputBuffer describes one dequeued output buffer. Index is only valid
// until ReleaseOutput; the payload lives in the table slot returned by
// OutputBuffers.
type OutputBuffer struct {
	Index  int
	Offset int
	Size   int
	PTS    int64 // microseconds
	Flags  media.SampleFlags
}

// Encoder is the buffer dequeue/enqueue contract of one compression unit.
// Compression runs asynchronously; the caller polls with bounded timeouts.
type Encoder interface {
	// Start launches the compression pipeline.
	Start() error

	// DequeueOutput waits up to timeout for encoder output. The error is
	// fatal when non-nil; transient conditions are reported as events.
	DequeueOutput(timeout time.Duration) (OutputBuffer, Event, error)

	// OutputBuffers returns the current output buffer table.
	OutputBuffers() ([][]byte, error)

	// ReleaseOutput returns an output buffer to the encoder. The index is
	// invalid afterwards.
	ReleaseOutput(index int) error

	// OutputFormat returns the stream format. Valid only after
	// EventFormatChanged has been observed.
	OutputFormat() (media.Format, error)

	// DequeueInput waits up to timeout for a free input buffer. ok is
	// false when none became available (not an error).
	DequeueInput(timeout time.Duration) (index int, ok bool, err error)

	// InputBuffers returns the input buffer table. The caller fills a
	// dequeued slot and submits it with QueueInput.
	InputBuffers() ([][]byte, error)

	// QueueInput submits size bytes of a previously dequeued input buffer,
	// stamped with a presentation time in microseconds.
	QueueInput(index, size int, ptsUs int64) error

	// Stop shuts the encoder down and releases its resources.
	Stop() error
}
