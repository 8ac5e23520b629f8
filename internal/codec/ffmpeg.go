package codec

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/vidgrab/vidgrab/internal/media"
	procgroup "github.com/vidgrab/vidgrab/internal/proc_group"
)

// streamParser turns the encoder subprocess's output byte stream into
// discrete compressed units and discovers the stream format.
type streamParser interface {
	// Feed consumes stream bytes and returns the complete units they close.
	Feed(p []byte) [][]byte
	// Finish returns whatever remains buffered at end of stream.
	Finish() [][]byte
	// Format returns the stream format and the codec-config payload once
	// enough of the stream has been seen.
	Format() (media.Format, []byte, bool)
	// Sync reports whether a unit is independently decodable.
	Sync(unit []byte) bool
}

type inputRequest struct {
	index int
	size  int
	pts   int64
}

type outEvent struct {
	event Event
	buf   OutputBuffer
	err   error
}

// FFmpegEncoder implements Encoder on top of an ffmpeg subprocess: raw
// input buffers are piped to stdin, the compressed stream is read back from
// stdout and re-framed into buffers. It stands in for a hardware codec and
// therefore speaks the same dequeue/enqueue protocol, including the
// format-changed announcement before the first data buffer and buffer-table
// invalidation when a slot has to grow.
type FFmpegEncoder struct {
	name   string
	path   string
	args   []string
	parser streamParser
	logger *slog.Logger

	mu          sync.Mutex
	started     bool
	stopped     bool
	formatKnown bool
	format      media.Format

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr bytes.Buffer

	inputBufs [][]byte
	freeIn    chan int
	writeReq  chan inputRequest

	outputBufs [][]byte
	outBusy    []bool
	freeOut    chan int

	events chan outEvent
	stopc  chan struct{}
	wg     sync.WaitGroup

	ptsMu    sync.Mutex
	ptsQueue []int64
	lastPTS  int64
}

func newFFmpegEncoder(name, path string, args []string, parser streamParser,
	inputSlots, inputSize, outputSlots, outputSize int, logger *slog.Logger) *FFmpegEncoder {

	e := &FFmpegEncoder{
		name:       name,
		path:       path,
		args:       args,
		parser:     parser,
		logger:     logger.With("encoder", name),
		inputBufs:  make([][]byte, inputSlots),
		freeIn:     make(chan int, inputSlots),
		writeReq:   make(chan inputRequest, inputSlots),
		outputBufs: make([][]byte, outputSlots),
		outBusy:    make([]bool, outputSlots),
		freeOut:    make(chan int, outputSlots),
		events:     make(chan outEvent, outputSlots+8),
		stopc:      make(chan struct{}),
	}
	for i := range e.inputBufs {
		e.inputBufs[i] = make([]byte, inputSize)
		e.freeIn <- i
	}
	for i := range e.outputBufs {
		e.outputBufs[i] = make([]byte, outputSize)
		e.freeOut <- i
	}
	return e
}

// Start launches the ffmpeg subprocess and the pump goroutines.
func (e *FFmpegEncoder) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("%s encoder already started", e.name)
	}

	e.cmd = exec.Command(e.path, e.args...)
	e.cmd.Stderr = &e.stderr
	// Keep the subprocess out of the terminal's process group; shutdown is
	// ours to sequence, not the terminal's.
	procgroup.SetProcGrp(e.cmd)

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := e.cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	e.stdin = stdin
	e.stdout = stdout

	if err := e.cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return fmt.Errorf("start %s: %w", e.path, err)
	}

	e.started = true
	e.logger.Debug("Encoder subprocess started", "pid", e.cmd.Process.Pid, "args", strings.Join(e.args, " "))

	e.wg.Add(2)
	go e.writeLoop()
	go e.readLoop()
	return nil
}

func (e *FFmpegEncoder) writeLoop() {
	defer e.wg.Done()

	for req := range e.writeReq {
		data := e.inputBufs[req.index][:req.size]
		_, err := e.stdin.Write(data)

		e.ptsMu.Lock()
		e.ptsQueue = append(e.ptsQueue, req.pts)
		e.ptsMu.Unlock()

		e.freeIn <- req.index

		if err != nil {
			e.fail(fmt.Errorf("feeding %s encoder: %w", e.name, err))
			e.stdin.Close()
			return
		}
	}
	// Input queue closed: flush the subprocess so the reader sees EOF
	// after the tail units.
	e.stdin.Close()
}

func (e *FFmpegEncoder) readLoop() {
	defer e.wg.Done()

	buf := make([]byte, 64*1024)
	for {
		n, err := e.stdout.Read(buf)
		if n > 0 {
			e.deliver(e.parser.Feed(buf[:n]))
		}
		if err != nil {
			e.deliver(e.parser.Finish())
			if err != io.EOF && !e.stopping() {
				e.fail(fmt.Errorf("reading %s encoder output: %w", e.name, err))
				return
			}
			// Terminal zero-size buffer carrying the EOS flag.
			e.emitBuffer(nil, e.lastQueuedPTS(), media.FlagEndOfStream)
			return
		}
	}
}

func (e *FFmpegEncoder) deliver(units [][]byte) {
	if len(units) == 0 {
		return
	}

	e.mu.Lock()
	known := e.formatKnown
	e.mu.Unlock()

	if !known {
		if format, configPayload, ok := e.parser.Format(); ok {
			e.mu.Lock()
			e.format = format
			e.formatKnown = true
			e.mu.Unlock()

			e.emitEvent(outEvent{event: EventFormatChanged})
			// The codec-config buffer follows the format announcement,
			// as hardware codecs do. Its bytes never reach the muxer.
			e.emitBuffer(configPayload, 0, media.FlagConfig)
		}
	}

	for _, unit := range units {
		flags := media.SampleFlags(0)
		if e.parser.Sync(unit) {
			flags |= media.FlagSync
		}
		e.emitBuffer(unit, e.popPTS(), flags)
	}
}

// emitBuffer copies data into a free output slot and queues a buffer event.
// If the slot is too small the table is reallocated first and a
// buffers-changed event precedes the buffer itself.
func (e *FFmpegEncoder) emitBuffer(data []byte, pts int64, flags media.SampleFlags) {
	var index int
	select {
	case index = <-e.freeOut:
	case <-e.stopc:
		return
	}

	e.mu.Lock()
	if len(data) > cap(e.outputBufs[index]) {
		table := make([][]byte, len(e.outputBufs))
		copy(table, e.outputBufs)
		table[index] = make([]byte, len(data))
		e.outputBufs = table
		e.mu.Unlock()
		e.emitEvent(outEvent{event: EventBuffersChanged})
		e.mu.Lock()
	}
	copy(e.outputBufs[index][:len(data)], data)
	e.outBusy[index] = true
	e.mu.Unlock()

	e.emitEvent(outEvent{event: EventBuffer, buf: OutputBuffer{
		Index: index,
		Size:  len(data),
		PTS:   pts,
		Flags: flags,
	}})
}

func (e *FFmpegEncoder) emitEvent(ev outEvent) {
	select {
	case e.events <- ev:
	case <-e.stopc:
	}
}

func (e *FFmpegEncoder) fail(err error) {
	tail := strings.TrimSpace(e.stderr.String())
	if tail != "" {
		err = fmt.Errorf("%w (ffmpeg: %s)", err, lastLine(tail))
	}
	e.emitEvent(outEvent{err: err})
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i != -1 {
		return s[i+1:]
	}
	return s
}

func (e *FFmpegEncoder) stopping() bool {
	select {
	case <-e.stopc:
		return true
	default:
		return false
	}
}

func (e *FFmpegEncoder) popPTS() int64 {
	e.ptsMu.Lock()
	defer e.ptsMu.Unlock()
	if len(e.ptsQueue) > 0 {
		pts := e.ptsQueue[0]
		e.ptsQueue = e.ptsQueue[1:]
		e.lastPTS = pts
		return pts
	}
	// More output units than queued inputs; reuse the last stamp and let
	// the reconciler restore monotonicity.
	return e.lastPTS
}

func (e *FFmpegEncoder) lastQueuedPTS() int64 {
	e.ptsMu.Lock()
	defer e.ptsMu.Unlock()
	return e.lastPTS
}

// DequeueOutput implements Encoder.
func (e *FFmpegEncoder) DequeueOutput(timeout time.Duration) (OutputBuffer, Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-e.events:
		if ev.err != nil {
			return OutputBuffer{}, EventTryAgain, ev.err
		}
		return ev.buf, ev.event, nil
	case <-timer.C:
		return OutputBuffer{}, EventTryAgain, nil
	}
}

// OutputBuffers implements Encoder.
func (e *FFmpegEncoder) OutputBuffers() ([][]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return nil, fmt.Errorf("%s encoder not started", e.name)
	}
	return e.outputBufs, nil
}

// ReleaseOutput implements Encoder.
func (e *FFmpegEncoder) ReleaseOutput(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.outBusy) {
		return fmt.Errorf("release of invalid output buffer %d", index)
	}
	if !e.outBusy[index] {
		return fmt.Errorf("release of idle output buffer %d", index)
	}
	e.outBusy[index] = false
	e.freeOut <- index
	return nil
}

// OutputFormat implements Encoder.
func (e *FFmpegEncoder) OutputFormat() (media.Format, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.formatKnown {
		return media.Format{}, fmt.Errorf("%s encoder format not yet known", e.name)
	}
	return e.format, nil
}

// DequeueInput implements Encoder.
func (e *FFmpegEncoder) DequeueInput(timeout time.Duration) (int, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case index := <-e.freeIn:
		return index, true, nil
	case <-timer.C:
		return -1, false, nil
	case <-e.stopc:
		return -1, false, ErrStopped
	}
}

// InputBuffers implements Encoder.
func (e *FFmpegEncoder) InputBuffers() ([][]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return nil, fmt.Errorf("%s encoder not started", e.name)
	}
	return e.inputBufs, nil
}

// QueueInput implements Encoder.
func (e *FFmpegEncoder) QueueInput(index, size int, ptsUs int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrStopped
	}
	if index < 0 || index >= len(e.inputBufs) || size < 0 || size > len(e.inputBufs[index]) {
		return fmt.Errorf("queue of invalid input buffer %d (size %d)", index, size)
	}
	// writeReq is sized to the slot count, so this never blocks.
	e.writeReq <- inputRequest{index: index, size: size, pts: ptsUs}
	return nil
}

// Stop implements Encoder. It closes the input side, lets the subprocess
// flush, and reaps it.
func (e *FFmpegEncoder) Stop() error {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	close(e.stopc)
	close(e.writeReq)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		e.logger.Warn("Encoder pumps did not drain, killing subprocess")
		e.cmd.Process.Kill()
	}

	err := e.cmd.Wait()
	if err != nil && !e.stderrIsNoise() {
		e.logger.Warn("Encoder subprocess exited abnormally", "error", err,
			"stderr", lastLine(strings.TrimSpace(e.stderr.String())))
	}
	e.logger.Debug("Encoder stopped")
	return nil
}

// Closing stdin mid-stream makes ffmpeg report a benign broken-pipe style
// complaint on some builds; do not escalate that to a warning.
func (e *FFmpegEncoder) stderrIsNoise() bool {
	s := strings.TrimSpace(e.stderr.String())
	return s == "" || strings.Contains(s, "Exiting normally")
}
