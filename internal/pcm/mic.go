package pcm

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	procgroup "github.com/vidgrab/vidgrab/internal/proc_group"
)

// MicConfig describes the microphone grabber.
type MicConfig struct {
	FFmpegPath string
	Device     string
	SampleRate int
	Channels   int
	// Frames of queue headroom before old audio is dropped.
	QueueFrames     int
	SamplesPerFrame int
}

// Mic captures the default microphone through an ffmpeg subprocess and
// buffers the PCM stream for opportunistic reads.
type Mic struct {
	cfg    MicConfig
	logger *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  bytes.Buffer
	queue   *queue
	started bool
	done    chan struct{}
}

// NewMic creates a microphone source.
func NewMic(cfg MicConfig, logger *slog.Logger) *Mic {
	frameBytes := cfg.SamplesPerFrame * cfg.Channels * 2
	return &Mic{
		cfg:    cfg,
		logger: logger.With("component", "mic"),
		queue:  newQueue(frameBytes * cfg.QueueFrames),
	}
}

// captureArgs selects the platform's capture input.
func (m *Mic) captureArgs() []string {
	switch runtime.GOOS {
	case "darwin":
		dev := m.cfg.Device
		if dev == "default" {
			dev = ":0"
		}
		return []string{"-f", "avfoundation", "-i", dev}
	case "windows":
		return []string{"-f", "dshow", "-i", "audio=" + m.cfg.Device}
	default:
		return []string{"-f", "pulse", "-i", m.cfg.Device}
	}
}

// Start launches the grabber. Failure here is how audio setup failure
// surfaces; the caller downgrades to video-only.
func (m *Mic) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("microphone source already started")
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, m.captureArgs()...)
	args = append(args,
		"-ar", fmt.Sprintf("%d", m.cfg.SampleRate),
		"-ac", fmt.Sprintf("%d", m.cfg.Channels),
		"-f", "s16le",
		"pipe:1",
	)

	m.cmd = exec.Command(m.cfg.FFmpegPath, args...)
	m.cmd.Stderr = &m.stderr
	procgroup.SetProcGrp(m.cmd)

	stdout, err := m.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	m.stdout = stdout

	if err := m.cmd.Start(); err != nil {
		stdout.Close()
		return fmt.Errorf("start %s: %w", m.cfg.FFmpegPath, err)
	}

	m.started = true
	m.done = make(chan struct{})
	go m.readLoop()

	m.logger.Debug("Microphone capture started", "device", m.cfg.Device,
		"sample_rate", m.cfg.SampleRate)
	return nil
}

func (m *Mic) readLoop() {
	defer close(m.done)

	buf := make([]byte, 16*1024)
	for {
		n, err := m.stdout.Read(buf)
		if n > 0 {
			m.queue.push(buf[:n])
		}
		if err != nil {
			if err != io.EOF {
				m.logger.Warn("Microphone capture ended", "error", err,
					"stderr", strings.TrimSpace(m.stderr.String()))
			}
			return
		}
	}
}

// Read implements Source.
func (m *Mic) Read(buf []byte) (int, error) {
	return m.queue.pop(buf), nil
}

// Stop implements Source.
func (m *Mic) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}
	m.started = false

	m.cmd.Process.Kill()
	m.cmd.Wait()
	<-m.done

	if dropped := m.queue.droppedBytes(); dropped > 0 {
		m.logger.Debug("Microphone capture stopped", "dropped_bytes", dropped)
	}
	return nil
}
