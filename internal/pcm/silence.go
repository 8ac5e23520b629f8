package pcm

import "time"

// Silence is a Source producing zeroed PCM at real-time pace, used when no
// capture device is available but an audio track is still wanted.
type Silence struct {
	sampleRate int
	channels   int

	started  time.Time
	consumed int64
}

// NewSilence creates a silence source.
func NewSilence(sampleRate, channels int) *Silence {
	return &Silence{sampleRate: sampleRate, channels: channels}
}

// Start implements Source.
func (s *Silence) Start() error {
	s.started = time.Now()
	return nil
}

// Read implements Source. It yields only as many zero bytes as wall time
// has made available, so the audio track cannot run ahead of the video.
func (s *Silence) Read(buf []byte) (int, error) {
	elapsed := time.Since(s.started)
	bytesPerSec := int64(s.sampleRate * s.channels * 2)
	available := elapsed.Microseconds()*bytesPerSec/1_000_000 - s.consumed
	if available <= 0 {
		return 0, nil
	}

	n := len(buf)
	if int64(n) > available {
		n = int(available)
	}
	n -= n % (s.channels * 2) // whole samples only
	for i := 0; i < n; i++ {
		buf[i] = 0
	}
	s.consumed += int64(n)
	return n, nil
}

// Stop implements Source.
func (s *Silence) Stop() error {
	return nil
}
